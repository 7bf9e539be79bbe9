package demosrv

import (
	"encoding/xml"
	"net/http"

	"github.com/programme-lv/extserver/akey"
)

type submissionXML struct {
	XMLName      xml.Name `xml:"submission"`
	Uname        string   `xml:"uname,attr"`
	TeacherIDNr  string   `xml:"teacheridnr,attr,omitempty"`
	Grade        float64  `xml:"grade,attr"`
	TimeModified int64    `xml:"timemodified,attr,omitempty"`
	Comment      string   `xml:",chardata"`
}

type assignmentXML struct {
	XMLName     xml.Name        `xml:"assignment"`
	CourseIDNr  string          `xml:"cidnr,attr"`
	AssignIDNr  string          `xml:"aidnr,attr"`
	Submissions []submissionXML `xml:"submission"`
}

// renderGrades answers a getgrades request with the XML batch of every
// requested student that has a grade, in request order.
func (s *Server) renderGrades(w http.ResponseWriter, req *verifiedRequest) {
	doc := assignmentXML{
		CourseIDNr: req.form.Get(akey.ParamCourseID),
		AssignIDNr: req.form.Get(akey.ParamAssignID),
	}

	s.mu.Lock()
	for _, uname := range req.form[akey.ParamUsernames+"[]"] {
		entry, ok := s.grades[uname]
		if !ok {
			continue
		}
		doc.Submissions = append(doc.Submissions, submissionXML{
			Uname:        uname,
			TeacherIDNr:  entry.TeacherIDNr,
			Grade:        entry.Grade,
			TimeModified: entry.TimeModified,
			Comment:      entry.Comment,
		})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	xml.NewEncoder(w).Encode(doc)
}
