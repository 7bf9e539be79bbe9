package extsrv

import "encoding/xml"

// GradeRecord is one graded submission as reported by the external
// server. TeacherIDNr and TimeModified are optional on the wire and
// zero-valued when absent.
type GradeRecord struct {
	Username     string
	Comment      string
	Grade        float64
	TeacherIDNr  string
	TimeModified int64
}

type submissionXML struct {
	Uname        string  `xml:"uname,attr"`
	TeacherIDNr  string  `xml:"teacheridnr,attr"`
	Grade        float64 `xml:"grade,attr"`
	TimeModified int64   `xml:"timemodified,attr"`
	Comment      string  `xml:",chardata"`
}

type assignmentXML struct {
	XMLName     xml.Name        `xml:"assignment"`
	CourseIDNr  string          `xml:"cidnr,attr"`
	AssignIDNr  string          `xml:"aidnr,attr"`
	Submissions []submissionXML `xml:"submission"`
}

// ParseGrades interprets a getgrades response body. The only accepted
// shape is an <assignment> root with zero or more <submission>
// children in document order; an assignment without submissions is an
// empty grade set, not an error.
func ParseGrades(body []byte) ([]GradeRecord, error) {
	var doc assignmentXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, newErrMalformedResponse(err)
	}

	grades := make([]GradeRecord, 0, len(doc.Submissions))
	for _, s := range doc.Submissions {
		grades = append(grades, GradeRecord{
			Username:     s.Uname,
			Comment:      s.Comment,
			Grade:        s.Grade,
			TeacherIDNr:  s.TeacherIDNr,
			TimeModified: s.TimeModified,
		})
	}
	return grades, nil
}
