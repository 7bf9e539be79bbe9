package extsrv

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/programme-lv/extserver/akey"
)

// buildParams assembles the general signature parameter set plus any
// action-specific extras. The timestamp doubles as a nonce for the
// server's replay-window check, so it is taken at call time.
func buildParams(
	rc RequestContext,
	action Action,
	role Role,
	now time.Time,
	extra map[string]akey.Value,
) map[string]akey.Value {
	params := map[string]akey.Value{
		akey.ParamTimestamp: akey.S(strconv.FormatInt(now.Unix(), 10)),
		akey.ParamUser:      akey.S(rc.User.Username),
		akey.ParamSessKey:   akey.S(rc.User.SessKey),
		akey.ParamUserIDNr:  akey.S(rc.User.IDNumber),
		akey.ParamAction:    akey.S(string(action)),
		akey.ParamCourseID:  akey.S(strconv.Itoa(rc.CourseID)),
		akey.ParamAssignID:  akey.S(strconv.Itoa(rc.AssignmentID)),
		akey.ParamAssignNm:  akey.S(rc.AssignmentName),
		akey.ParamFirstname: akey.S(rc.User.Firstname),
		akey.ParamLastname:  akey.S(rc.User.Lastname),
		akey.ParamRole:      akey.S(string(role)),
	}
	for name, v := range extra {
		params[name] = v
	}
	return params
}

// signedForm signs the parameter set and renders it as form values.
// List parameters keep their original order on the wire (only the
// signature accumulator sorts them) and use the bracketed key form.
// The group-info block rides outside the akey: it is tamper-checked
// by its own secondary hash only.
func (c *Client) signedForm(rc RequestContext, action Action, role Role, extra map[string]akey.Value) (url.Values, error) {
	params := buildParams(rc, action, role, c.now(), extra)

	sig, err := akey.Sign(params, c.cfg.Secret, c.cfg.hashAlgorithm())
	if err != nil {
		return nil, newErrSignature(err)
	}

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

	if c.cfg.GroupInfo == GroupInfoRequired {
		groups := rc.Groups
		if groups == nil {
			groups = []Group{}
		}
		groupJSON, err := json.Marshal(groups)
		if err != nil {
			return nil, newErrSignature(err)
		}
		groupHash, err := akey.SignGroupInfo(string(groupJSON), c.cfg.Secret, c.cfg.hashAlgorithm())
		if err != nil {
			return nil, newErrSignature(err)
		}
		form.Set(akey.ParamGroupInfo, string(groupJSON))
		form.Set(akey.ParamGroupInfoHash, groupHash)
	}

	return form, nil
}
