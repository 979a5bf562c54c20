package model

import "time"

// ExportSubmission is a submission enriched for export: the file name and
// URL are resolved up front so downstream stages never touch the raw
// SubmissionFile pointer.
type ExportSubmission struct {
	ID          int64      `json:"id"`
	StudentID   int64      `json:"studentId"`
	StudentCode string     `json:"studentCode"`
	SubmittedAt *time.Time `json:"submittedAt"`
	FileName    string     `json:"fileName"`
	FileURL     string     `json:"fileUrl"`
}

// ExportGroup is a grading group with its resolved semester code and its
// routed submissions attached. SemesterCode is never empty inside a built
// hierarchy; groups that fail resolution are dropped before insertion.
type ExportGroup struct {
	GradingGroup
	SemesterCode string             `json:"semesterCode"`
	Subs         []ExportSubmission `json:"subs"`
}

type GroupedLecturer struct {
	LecturerID   int64         `json:"lecturerId"`
	LecturerName string        `json:"lecturerName"`
	LecturerCode *string       `json:"lecturerCode"`
	Groups       []ExportGroup `json:"groups"`
}

type GroupedTemplate struct {
	TemplateID   int64             `json:"templateId"`
	TemplateName string            `json:"templateName"`
	Lecturers    []GroupedLecturer `json:"lecturers"`
}

type GroupedCourse struct {
	CourseID   int64             `json:"courseId"`
	CourseName string            `json:"courseName"`
	CourseCode string            `json:"courseCode"`
	Templates  []GroupedTemplate `json:"templates"`
}

// FlatGradingGroup aggregates every grading group sharing a
// (course, template, lecturer) identity into one display row. ID and Group
// always refer to the most recently created member; GroupIDs lists every
// merged member including ID.
type FlatGradingGroup struct {
	ID              int64       `json:"id"`
	CourseCode      string      `json:"courseCode"`
	CourseName      string      `json:"courseName"`
	TemplateName    string      `json:"templateName"`
	LecturerNames   []string    `json:"lecturerNames"`
	LecturerCodes   []*string   `json:"lecturerCodes"`
	SemesterCode    string      `json:"semesterCode"`
	SubmissionCount int         `json:"submissionCount"`
	GroupIDs        []int64     `json:"groupIds"`
	Group           ExportGroup `json:"group"`
}
