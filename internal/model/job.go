package model

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusEmpty     JobStatus = "EMPTY"
	JobStatusFailed    JobStatus = "FAILED"
)

// ExportJob is one archive-build request tracked in the export_jobs table.
type ExportJob struct {
	ID              int64     `json:"id" db:"id"`
	Status          JobStatus `json:"status" db:"status"`
	ArtifactKey     *string   `json:"artifact_key,omitempty" db:"artifact_key"`
	SubmissionCount int       `json:"submission_count" db:"submission_count"`
	DroppedCount    int       `json:"dropped_count" db:"dropped_count"`
	ErrorMessage    *string   `json:"error_message,omitempty" db:"error_message"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ExportFilter narrows which grading groups an export covers. An empty or
// "all" semester and zero IDs mean no filtering on that axis.
type ExportFilter struct {
	Semester   string `json:"semester"`
	CourseID   int64  `json:"courseId"`
	TemplateID int64  `json:"templateId"`
	LecturerID int64  `json:"lecturerId"`
}

// ExportJobPayload is the queue message consumed by the export worker.
// GroupIDs is empty for "download all"; for "download selected" it holds
// the union of group IDs behind the chosen flat rows.
type ExportJobPayload struct {
	JobID    int64        `json:"job_id"`
	Filter   ExportFilter `json:"filter"`
	GroupIDs []int64      `json:"group_ids,omitempty"`
}

type ExportRequest struct {
	Filter   ExportFilter `json:"filter"`
	GroupIDs []int64      `json:"groupIds,omitempty"`
}
