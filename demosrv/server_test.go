package demosrv_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/programme-lv/extserver/akey"
	"github.com/programme-lv/extserver/demosrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const secret = "s3cret"

func newTestServer(t *testing.T, cfg demosrv.Config) (*demosrv.Server, *httptest.Server, string) {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = secret
	}
	uploadDir := t.TempDir()
	server := demosrv.NewServer(cfg, demosrv.NewDirStore(uploadDir))
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return server, ts, uploadDir
}

// signedForm builds a wire-complete form the way a conforming client
// would: general set, action extras, akey.
func signedForm(t *testing.T, action, role string, extra map[string]akey.Value) url.Values {
	t.Helper()
	params := map[string]akey.Value{
		akey.ParamTimestamp: akey.S(strconv.FormatInt(time.Now().Unix(), 10)),
		akey.ParamUser:      akey.S("alice"),
		akey.ParamSessKey:   akey.S("sesskey123"),
		akey.ParamUserIDNr:  akey.S("42"),
		akey.ParamAction:    akey.S(action),
		akey.ParamCourseID:  akey.S("7"),
		akey.ParamAssignID:  akey.S("13"),
		akey.ParamAssignNm:  akey.S("Essay 1"),
		akey.ParamFirstname: akey.S("Alice"),
		akey.ParamLastname:  akey.S("Smith"),
		akey.ParamRole:      akey.S(role),
	}
	for name, v := range extra {
		params[name] = v
	}

	sig, err := akey.Sign(params, secret, "sha256")
	require.NoError(t, err)

	form := url.Values{}
	for name, v := range params {
		if v.IsList() {
			for _, item := range v.List() {
				form.Add(name+"[]", item)
			}
			continue
		}
		form.Set(name, v.Scalar())
	}
	form.Set(akey.ParamAKey, sig)
	return form
}

func postForm(t *testing.T, ts *httptest.Server, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.PostForm(ts.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestConnectivityProbe(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{})

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Available", string(body))
}

func TestMissingParameterRejected(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{})

	form := signedForm(t, "view", "student", nil)
	form.Del(akey.ParamSessKey)

	resp := postForm(t, ts, "/", form)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignatureMismatchRejected(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{})

	form := signedForm(t, "view", "student", nil)
	form.Set(akey.ParamAssignNm, "Tampered name")

	resp := postForm(t, ts, "/", form)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStudentViewAccepted(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{})

	resp := postForm(t, ts, "/", signedForm(t, "view", "student", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetGradesRequiresTeacherRole(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{})

	form := signedForm(t, "getgrades", "student", map[string]akey.Value{
		akey.ParamUsernames: akey.L("alice"),
	})

	resp := postForm(t, ts, "/", form)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetGradesXmlShape(t *testing.T) {
	server, ts, _ := newTestServer(t, demosrv.Config{})
	server.SetGrade("alice", 87, "good job", "0", 1700000000)

	form := signedForm(t, "getgrades", "teacher", map[string]akey.Value{
		akey.ParamUsernames: akey.L("alice", "bob"),
	})

	resp := postForm(t, ts, "/", form)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/xml")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `uname="alice"`)
	assert.Contains(t, string(body), `grade="87"`)
	assert.Contains(t, string(body), "good job")
	assert.NotContains(t, string(body), `uname="bob"`, "ungraded students are omitted")
}

func TestReplayWindowRejectsStaleTimestamp(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{ReplayWindow: time.Minute})

	stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	params := map[string]akey.Value{akey.ParamTimestamp: akey.S(stale)}
	form := signedForm(t, "view", "student", params)

	resp := postForm(t, ts, "/", form)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGroupInfoHashMismatchIsTeapot(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{RequireGroupInfo: true})

	groupJSON := `[{"id":3,"name":"Group A","members":["alice"]}]`
	groupHash, err := akey.SignGroupInfo(groupJSON, secret, "sha256")
	require.NoError(t, err)

	form := signedForm(t, "view", "student", nil)
	form.Set(akey.ParamGroupInfo, groupJSON)
	form.Set(akey.ParamGroupInfoHash, groupHash)

	resp := postForm(t, ts, "/", form)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Tampering with the payload after hashing is a security event,
	// answered with 418 rather than a generic 400.
	form.Set(akey.ParamGroupInfo, strings.Replace(groupJSON, "alice", "mallory", 1))
	resp = postForm(t, ts, "/", form)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestGroupInfoRequiredButAbsent(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{RequireGroupInfo: true})

	resp := postForm(t, ts, "/", signedForm(t, "view", "student", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func multipartSubmit(t *testing.T, form url.Values, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, values := range form {
		for _, value := range values {
			require.NoError(t, mw.WriteField(name, value))
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestSubmitStoresFile(t *testing.T) {
	_, ts, uploadDir := newTestServer(t, demosrv.Config{})

	content := []byte("submission bytes")
	fileHash, err := akey.DigestHex(content, "sha256")
	require.NoError(t, err)

	form := signedForm(t, "submit", "student", map[string]akey.Value{
		akey.ParamFilename: akey.S("essay.txt"),
		akey.ParamFilehash: akey.S(fileHash),
	})
	body, contentType := multipartSubmit(t, form, "essay.txt", content)

	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := os.ReadFile(filepath.Join(uploadDir, "7", "13", "essay.txt"))
	require.NoError(t, err)
	assert.Equal(t, content, stored)
}

func TestSubmitFileHashMismatch(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{})

	content := []byte("submission bytes")
	form := signedForm(t, "submit", "student", map[string]akey.Value{
		akey.ParamFilename: akey.S("essay.txt"),
		akey.ParamFilehash: akey.S("0000000000000000"),
	})
	body, contentType := multipartSubmit(t, form, "essay.txt", content)

	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitRequiresStudentRole(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{})

	content := []byte("x")
	fileHash, err := akey.DigestHex(content, "sha256")
	require.NoError(t, err)

	form := signedForm(t, "submit", "teacher", map[string]akey.Value{
		akey.ParamFilename: akey.S("essay.txt"),
		akey.ParamFilehash: akey.S(fileHash),
	})
	body, contentType := multipartSubmit(t, form, "essay.txt", content)

	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTokenEndpoint(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("clientsecret"), bcrypt.MinCost)
	require.NoError(t, err)

	_, ts, _ := newTestServer(t, demosrv.Config{
		RequireBearer:    true,
		JWTKey:           []byte("jwt-key"),
		ClientID:         "moodle",
		ClientSecretHash: string(hash),
	})

	resp := postForm(t, ts, "/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"moodle"},
		"client_secret": {"clientsecret"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tr struct {
		TokenType   string `json:"token_type"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	assert.Equal(t, "Bearer", tr.TokenType)
	assert.Positive(t, tr.ExpiresIn)

	parsed, err := jwt.Parse(tr.AccessToken, func(tok *jwt.Token) (interface{}, error) {
		return []byte("jwt-key"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
}

func TestTokenEndpointRejections(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("clientsecret"), bcrypt.MinCost)
	require.NoError(t, err)

	_, ts, _ := newTestServer(t, demosrv.Config{
		RequireBearer:    true,
		JWTKey:           []byte("jwt-key"),
		ClientID:         "moodle",
		ClientSecretHash: string(hash),
	})

	resp := postForm(t, ts, "/token", url.Values{
		"grant_type":    {"password"},
		"client_id":     {"moodle"},
		"client_secret": {"clientsecret"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postForm(t, ts, "/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"moodle"},
		"client_secret": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postForm(t, ts, "/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"unknown"},
		"client_secret": {"clientsecret"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBearerRequiredForSignedActions(t *testing.T) {
	_, ts, _ := newTestServer(t, demosrv.Config{
		RequireBearer: true,
		JWTKey:        []byte("jwt-key"),
	})

	resp := postForm(t, ts, "/", signedForm(t, "view", "student", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

