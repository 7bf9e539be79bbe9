package demosrv

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/programme-lv/extserver/akey"
)

const maxUploadMemory = 32 << 20

var generalParams = []string{
	akey.ParamTimestamp,
	akey.ParamUser,
	akey.ParamSessKey,
	akey.ParamUserIDNr,
	akey.ParamAction,
	akey.ParamCourseID,
	akey.ParamAssignID,
	akey.ParamAssignNm,
	akey.ParamFirstname,
	akey.ParamLastname,
	akey.ParamRole,
}

type verifiedRequest struct {
	form            url.Values
	effectiveAction string
}

// verify authenticates an incoming request: required parameters,
// bearer token (when configured), replay window, role/action pairing,
// akey recomputation, and the group-info hash. On failure it writes
// the protocol's status code and returns ok=false.
//
// Status codes: 400 missing/invalid parameters, 401 bad token or akey
// mismatch, 403 role not allowed for action, 418 group-info tampering.
func (s *Server) verify(w http.ResponseWriter, r *http.Request) (*verifiedRequest, bool) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			http.Error(w, "unreadable multipart body", http.StatusBadRequest)
			return nil, false
		}
	} else if err := r.ParseForm(); err != nil {
		http.Error(w, "unreadable form", http.StatusBadRequest)
		return nil, false
	}

	if s.cfg.RequireBearer && !s.verifyBearer(r) {
		http.Error(w, "invalid bearer token", http.StatusUnauthorized)
		return nil, false
	}

	params := map[string]akey.Value{}
	for _, name := range generalParams {
		if !r.Form.Has(name) {
			http.Error(w, "missing parameter: "+name, http.StatusBadRequest)
			return nil, false
		}
		params[name] = akey.S(r.Form.Get(name))
	}

	ts, err := strconv.ParseInt(r.Form.Get(akey.ParamTimestamp), 10, 64)
	if err != nil {
		http.Error(w, "invalid timestamp", http.StatusBadRequest)
		return nil, false
	}
	drift := s.now().Unix() - ts
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(s.cfg.replayWindow().Seconds()) {
		http.Error(w, "timestamp outside replay window", http.StatusBadRequest)
		return nil, false
	}

	action := r.Form.Get(akey.ParamAction)
	role := r.Form.Get(akey.ParamRole)
	effective := akey.EffectiveAction(action, role)

	if !roleAllowed(effective, role) {
		http.Error(w, "role not allowed for action", http.StatusForbidden)
		return nil, false
	}

	switch effective {
	case akey.ActionSubmit:
		params[akey.ParamFilename] = akey.S(r.Form.Get(akey.ParamFilename))
		params[akey.ParamFilehash] = akey.S(r.Form.Get(akey.ParamFilehash))
	case akey.ActionTeacherView:
		params[akey.ParamStudUsername] = akey.S(r.Form.Get(akey.ParamStudUsername))
	case akey.ActionGetGrades:
		params[akey.ParamUsernames] = akey.L(r.Form[akey.ParamUsernames+"[]"]...)
	}

	want, err := akey.Sign(params, s.cfg.Secret, s.cfg.hashAlgorithm())
	if err != nil {
		http.Error(w, "invalid parameters", http.StatusBadRequest)
		return nil, false
	}
	if want != r.Form.Get(akey.ParamAKey) {
		http.Error(w, "signature mismatch", http.StatusUnauthorized)
		return nil, false
	}

	if s.cfg.RequireGroupInfo {
		groupJSON := r.Form.Get(akey.ParamGroupInfo)
		groupHash := r.Form.Get(akey.ParamGroupInfoHash)
		if groupJSON == "" || groupHash == "" {
			http.Error(w, "missing group info", http.StatusBadRequest)
			return nil, false
		}
		ok, err := akey.VerifyGroupInfo(groupJSON, groupHash, s.cfg.Secret, s.cfg.hashAlgorithm())
		if err != nil || !ok {
			// Tamper evidence, not a generic error. 418 keeps it
			// distinguishable in server logs and client transcripts.
			http.Error(w, "group info hash mismatch", http.StatusTeapot)
			return nil, false
		}
	}

	return &verifiedRequest{form: r.Form, effectiveAction: effective}, true
}

func roleAllowed(effectiveAction, role string) bool {
	switch effectiveAction {
	case akey.ActionSubmit:
		return role == "student"
	case akey.ActionGetGrades, akey.ActionTeacherView:
		return role == "teacher"
	default:
		return true
	}
}

func (s *Server) verifyBearer(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(auth, "Bearer ")
	if !found {
		return false
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.JWTKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil && tok.Valid
}
