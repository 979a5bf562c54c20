package db

import (
	"context"
	"database/sql"

	"github.com/lethanbinh/apsas-export-service/internal/model"
	apperrors "github.com/lethanbinh/apsas-export-service/pkg/errors"
)

type Repository interface {
	CreateJob(ctx context.Context) (int64, error)
	GetJob(ctx context.Context, jobID int64) (*model.ExportJob, error)
	MarkJobRunning(ctx context.Context, jobID int64) error
	MarkJobCompleted(ctx context.Context, jobID int64, artifactKey string, submissionCount, droppedCount int) error
	MarkJobEmpty(ctx context.Context, jobID int64, droppedCount int) error
	MarkJobFailed(ctx context.Context, jobID int64, errorMessage string) error
	DeleteJob(ctx context.Context, jobID int64) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateJob(ctx context.Context) (int64, error) {
	query := `INSERT INTO export_jobs (status, created_at, updated_at) VALUES (?, NOW(), NOW())`

	result, err := r.db.ExecContext(ctx, query, model.JobStatusPending)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

func (r *repository) GetJob(ctx context.Context, jobID int64) (*model.ExportJob, error) {
	query := `SELECT id, status, artifact_key, submission_count, dropped_count, error_message, created_at, updated_at
			  FROM export_jobs WHERE id = ?`

	var job model.ExportJob
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.Status, &job.ArtifactKey, &job.SubmissionCount,
		&job.DroppedCount, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func (r *repository) MarkJobRunning(ctx context.Context, jobID int64) error {
	query := `UPDATE export_jobs SET status = ?, updated_at = NOW() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, model.JobStatusRunning, jobID)
	return err
}

func (r *repository) MarkJobCompleted(ctx context.Context, jobID int64, artifactKey string, submissionCount, droppedCount int) error {
	query := `UPDATE export_jobs SET status = ?, artifact_key = ?, submission_count = ?, dropped_count = ?, updated_at = NOW()
			  WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, model.JobStatusCompleted, artifactKey, submissionCount, droppedCount, jobID)
	return err
}

func (r *repository) MarkJobEmpty(ctx context.Context, jobID int64, droppedCount int) error {
	query := `UPDATE export_jobs SET status = ?, dropped_count = ?, updated_at = NOW() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, model.JobStatusEmpty, droppedCount, jobID)
	return err
}

func (r *repository) MarkJobFailed(ctx context.Context, jobID int64, errorMessage string) error {
	query := `UPDATE export_jobs SET status = ?, error_message = ?, updated_at = NOW() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, model.JobStatusFailed, errorMessage, jobID)
	return err
}

func (r *repository) DeleteJob(ctx context.Context, jobID int64) error {
	query := `DELETE FROM export_jobs WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrJobNotFound
	}

	return nil
}
