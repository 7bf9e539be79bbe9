package extsrv

import "encoding/json"

// Role is the caller's role as seen by the external server.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Action is a raw wire action. The signature-relevant effective action
// (studentview/teacherview) is derived from action+role by akey.
type Action string

const (
	ActionView      Action = "view"
	ActionSubmit    Action = "submit"
	ActionGetGrades Action = "getgrades"
)

// UserIdentity carries the identity fields every request is signed
// over. SessKey is the LMS session key, IDNumber the institutional id.
type UserIdentity struct {
	Username  string
	IDNumber  string
	SessKey   string
	Firstname string
	Lastname  string
}

// RequestContext is the assignment context a call happens in. It is
// assembled by the calling layer; the client only reads it.
type RequestContext struct {
	CourseID       int
	AssignmentID   int
	AssignmentName string
	User           UserIdentity

	// Groups is attached (and hashed separately) when the server's
	// group-info mode requires it.
	Groups []Group
}

// Group is one course group in the group-info payload.
type Group struct {
	ID      int
	Name    string
	Members []string
}

// MarshalJSON renders an empty member list as `false`, matching the
// wire contract for groups without members.
func (g Group) MarshalJSON() ([]byte, error) {
	out := struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		Members any    `json:"members"`
	}{ID: g.ID, Name: g.Name, Members: g.Members}
	if len(g.Members) == 0 {
		out.Members = false
	}
	return json.Marshal(out)
}

// SubmissionFile references the file of one submission. Name defaults
// to the base of Path; MimeType is sniffed from content when empty.
type SubmissionFile struct {
	Path     string
	Name     string
	MimeType string
}
