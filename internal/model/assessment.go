package model

import "time"

// AssessmentTemplate is a reusable exam/assignment definition owned by the
// remote assessment service. It carries papers, which carry questions,
// which carry rubric items.
type AssessmentTemplate struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	CourseElementID *int64    `json:"courseElementId"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Paper struct {
	ID                   int64  `json:"id"`
	AssessmentTemplateID int64  `json:"assessmentTemplateId"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
}

type Question struct {
	ID                int64    `json:"id"`
	AssessmentPaperID int64    `json:"assessmentPaperId"`
	QuestionNumber    *int     `json:"questionNumber"`
	Content           string   `json:"content"`
	Score             *float64 `json:"score"`
	SampleInput       string   `json:"sampleInput"`
	SampleOutput      string   `json:"sampleOutput"`
}

type RubricItem struct {
	ID                   int64    `json:"id"`
	AssessmentQuestionID int64    `json:"assessmentQuestionId"`
	Description          string   `json:"description"`
	Input                *string  `json:"input"`
	Output               *string  `json:"output"`
	Score                *float64 `json:"score"`
}

// TemplateFile is a requirement attachment uploaded alongside a template.
type TemplateFile struct {
	ID                   int64  `json:"id"`
	AssessmentTemplateID int64  `json:"assessmentTemplateId"`
	Name                 string `json:"name"`
	FileURL              string `json:"fileUrl"`
}

// GradingGroup assigns one lecturer to grade all submissions routed to one
// assessment template.
type GradingGroup struct {
	ID                   int64     `json:"id"`
	AssessmentTemplateID *int64    `json:"assessmentTemplateId"`
	LecturerID           int64     `json:"lecturerId"`
	LecturerName         string    `json:"lecturerName"`
	LecturerCode         *string   `json:"lecturerCode"`
	CreatedAt            time.Time `json:"createdAt"`
}

type SubmissionFile struct {
	Name          string `json:"name"`
	SubmissionURL string `json:"submissionUrl"`
}

type Submission struct {
	ID             int64           `json:"id"`
	StudentID      int64           `json:"studentId"`
	StudentCode    string          `json:"studentCode"`
	GradingGroupID int64           `json:"gradingGroupId"`
	SubmittedAt    *time.Time      `json:"submittedAt"`
	SubmissionFile *SubmissionFile `json:"submissionFile"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type Course struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// CourseElement is a gradable unit inside a course offering; it ties a
// template to a semester-scoped course.
type CourseElement struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	SemesterCourseID *int64 `json:"semesterCourseId"`
}

type SemesterCourse struct {
	ID         int64 `json:"id"`
	SemesterID int64 `json:"semesterId"`
	CourseID   int64 `json:"courseId"`
}

type Semester struct {
	ID           int64     `json:"id"`
	SemesterCode string    `json:"semesterCode"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
}
