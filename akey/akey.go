// Package akey computes the request authentication key ("akey") that
// binds an outgoing request's parameters to the shared secret of an
// external grading server. The concatenation order and the handling of
// list-valued parameters are part of the wire contract: both sides must
// produce the exact same accumulator string or the server rejects the
// request with 401.
package akey

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"slices"
	"strings"
)

// Wire parameter names. Every request carries the general set; the
// action-specific sets are appended after it.
const (
	ParamTimestamp = "timestamp"
	ParamUser      = "user"
	ParamSessKey   = "skey"
	ParamUserIDNr  = "uidnr"
	ParamAction    = "action"
	ParamCourseID  = "cidnr"
	ParamAssignID  = "aid"
	ParamAssignNm  = "aname"
	ParamFirstname = "fname"
	ParamLastname  = "lname"
	ParamRole      = "role"

	ParamFilename     = "filename"
	ParamFilehash     = "filehash"
	ParamStudUsername = "studusername"
	ParamUsernames    = "unames"

	ParamAKey          = "akey"
	ParamGroupInfo     = "groupinfo"
	ParamGroupInfoHash = "groupinfohash"
)

// Effective actions as they enter the signature. A plain "view" never
// signs as "view": it resolves to studentview or teacherview depending
// on the caller's role.
const (
	ActionStudentView = "studentview"
	ActionTeacherView = "teacherview"
	ActionSubmit      = "submit"
	ActionGetGrades   = "getgrades"
)

// generalOrder is the fixed concatenation order of the general
// parameter set. Changing it breaks interop with deployed servers.
var generalOrder = []string{
	ParamTimestamp,
	ParamUser,
	ParamSessKey,
	ParamUserIDNr,
	ParamAction,
	ParamCourseID,
	ParamAssignID,
	ParamAssignNm,
	ParamFirstname,
	ParamLastname,
	ParamRole,
}

// actionOrder maps an effective action to the extra parameters it
// appends, in declared order. Studentview has no extras.
var actionOrder = map[string][]string{
	ActionStudentView: {},
	ActionTeacherView: {ParamStudUsername},
	ActionSubmit:      {ParamFilename, ParamFilehash},
	ActionGetGrades:   {ParamUsernames},
}

var digests = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// Value is a signable parameter value: either a single scalar or a
// list of scalars (e.g. the unames parameter of getgrades).
type Value struct {
	scalar string
	list   []string
	isList bool
}

// S wraps a scalar parameter value.
func S(s string) Value { return Value{scalar: s} }

// L wraps a list parameter value. The original order is kept (it is
// meaningful on the wire); only the signature accumulator sorts it.
func L(vals ...string) Value { return Value{list: vals, isList: true} }

func (v Value) IsList() bool { return v.isList }

func (v Value) Scalar() string { return v.scalar }

func (v Value) List() []string { return v.list }

// accumulate returns the signable form of the value. List values are
// sorted and concatenated without delimiter so that the signature is
// deterministic regardless of the order the caller supplied them in.
// The delimiter-free concatenation is load-bearing wire behavior.
func (v Value) accumulate() string {
	if !v.isList {
		return v.scalar
	}
	sorted := slices.Clone(v.list)
	slices.Sort(sorted)
	return strings.Join(sorted, "")
}

// EffectiveAction resolves the signature-relevant action label from the
// raw action/role pair carried on the wire.
func EffectiveAction(action, role string) string {
	if action == "view" {
		if role == "teacher" {
			return ActionTeacherView
		}
		return ActionStudentView
	}
	return action
}

// Sign computes the akey over params with the shared secret.
//
// The accumulator starts with the secret, then appends the general
// parameter set in fixed order, then the effective action's extra
// parameters in declared order. A missing parameter is a hard error:
// silently skipping it would produce a signature that also verifies
// against a request missing that field.
//
// An empty algorithm returns the raw accumulator string. That form is
// only valid for diagnostics and tests, never for the wire.
func Sign(params map[string]Value, secret string, algorithm string) (string, error) {
	var sb strings.Builder
	sb.WriteString(secret)

	for _, name := range generalOrder {
		v, ok := params[name]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingParam, name)
		}
		sb.WriteString(v.accumulate())
	}

	action := params[ParamAction].Scalar()
	role := params[ParamRole].Scalar()
	effective := EffectiveAction(action, role)

	extras, ok := actionOrder[effective]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, effective)
	}
	for _, name := range extras {
		v, ok := params[name]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingParam, name)
		}
		sb.WriteString(v.accumulate())
	}

	return digestHex(sb.String(), algorithm)
}

// SignGroupInfo computes the secondary hash over the group-info JSON
// payload. Empty input yields an empty hash: a request without group
// data carries no groupinfohash either.
func SignGroupInfo(groupJSON string, secret string, algorithm string) (string, error) {
	if groupJSON == "" {
		return "", nil
	}
	return digestHex(secret+groupJSON, algorithm)
}

// VerifyGroupInfo is the receiving side of SignGroupInfo.
func VerifyGroupInfo(groupJSON string, got string, secret string, algorithm string) (bool, error) {
	want, err := SignGroupInfo(groupJSON, secret, algorithm)
	if err != nil {
		return false, err
	}
	return want == got, nil
}

func digestHex(accumulated string, algorithm string) (string, error) {
	if algorithm == "" {
		return accumulated, nil
	}
	return DigestHex([]byte(accumulated), algorithm)
}

// DigestHex computes the hex digest of data under the named algorithm.
// Request builders use it for the filehash of uploaded submissions so
// that both sides hash file bytes the same way they hash signatures.
func DigestHex(data []byte, algorithm string) (string, error) {
	newHash, ok := digests[algorithm]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	h := newHash()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
