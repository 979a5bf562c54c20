package api_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lethanbinh/apsas-export-service/internal/api"
	"github.com/lethanbinh/apsas-export-service/internal/config"
	"github.com/lethanbinh/apsas-export-service/internal/model"
	apperrors "github.com/lethanbinh/apsas-export-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	jobs    map[int64]*model.ExportJob
	deleted []int64
}

func newFakeRepo(jobs ...*model.ExportJob) *fakeRepo {
	r := &fakeRepo{jobs: make(map[int64]*model.ExportJob)}
	for _, job := range jobs {
		r.jobs[job.ID] = job
	}
	return r
}

func (r *fakeRepo) CreateJob(ctx context.Context) (int64, error) {
	id := int64(len(r.jobs) + 1)
	r.jobs[id] = &model.ExportJob{ID: id, Status: model.JobStatusPending}
	return id, nil
}

func (r *fakeRepo) GetJob(ctx context.Context, jobID int64) (*model.ExportJob, error) {
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, apperrors.ErrJobNotFound
	}
	return job, nil
}

func (r *fakeRepo) MarkJobRunning(ctx context.Context, jobID int64) error {
	r.jobs[jobID].Status = model.JobStatusRunning
	return nil
}

func (r *fakeRepo) MarkJobCompleted(ctx context.Context, jobID int64, artifactKey string, submissionCount, droppedCount int) error {
	job := r.jobs[jobID]
	job.Status = model.JobStatusCompleted
	job.ArtifactKey = &artifactKey
	job.SubmissionCount = submissionCount
	job.DroppedCount = droppedCount
	return nil
}

func (r *fakeRepo) MarkJobEmpty(ctx context.Context, jobID int64, droppedCount int) error {
	job := r.jobs[jobID]
	job.Status = model.JobStatusEmpty
	job.DroppedCount = droppedCount
	return nil
}

func (r *fakeRepo) MarkJobFailed(ctx context.Context, jobID int64, errorMessage string) error {
	job := r.jobs[jobID]
	job.Status = model.JobStatusFailed
	job.ErrorMessage = &errorMessage
	return nil
}

func (r *fakeRepo) DeleteJob(ctx context.Context, jobID int64) error {
	if _, ok := r.jobs[jobID]; !ok {
		return apperrors.ErrJobNotFound
	}
	delete(r.jobs, jobID)
	r.deleted = append(r.deleted, jobID)
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object at key %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStorage) Upload(ctx context.Context, key string, data io.Reader) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.objects[key] = buf
	return nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	if _, ok := s.objects[key]; !ok {
		return false, fmt.Errorf("no object at key %s", key)
	}
	return true, nil
}

func newTestRouter(repo *fakeRepo, store *fakeStorage) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := api.NewHandler(repo, nil, store, &config.Config{})
	router := gin.New()
	api.SetupRoutes(router, handler)
	return router
}

func strPtr(v string) *string { return &v }

func completedJob(id int64, key string) *model.ExportJob {
	return &model.ExportJob{
		ID:          id,
		Status:      model.JobStatusCompleted,
		ArtifactKey: strPtr(key),
	}
}

func TestDownloadExportStreamsArchive(t *testing.T) {
	repo := newFakeRepo(completedJob(1, "exports/archive.zip"))
	store := newFakeStorage()
	store.objects["exports/archive.zip"] = []byte("zip-bytes")

	router := newTestRouter(repo, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/1/download", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, "zip-bytes", w.Body.String())
}

func TestDownloadExportGoneWhenArtifactMissing(t *testing.T) {
	repo := newFakeRepo(completedJob(1, "exports/archive.zip"))
	store := newFakeStorage() // artifact never stored

	router := newTestRouter(repo, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/1/download", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGone, w.Code)
}

func TestDownloadExportNotReady(t *testing.T) {
	repo := newFakeRepo(&model.ExportJob{ID: 1, Status: model.JobStatusRunning})
	router := newTestRouter(repo, newFakeStorage())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/1/download", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteExportJobRemovesArtifactAndRow(t *testing.T) {
	repo := newFakeRepo(completedJob(1, "exports/archive.zip"))
	store := newFakeStorage()
	store.objects["exports/archive.zip"] = []byte("zip-bytes")

	router := newTestRouter(repo, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/exports/1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"exports/archive.zip"}, store.deleted)
	assert.Equal(t, []int64{1}, repo.deleted)
}

func TestDeleteExportJobUnknownJob(t *testing.T) {
	router := newTestRouter(newFakeRepo(), newFakeStorage())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/exports/99", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
