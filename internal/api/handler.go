package api

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lethanbinh/apsas-export-service/internal/assessment"
	"github.com/lethanbinh/apsas-export-service/internal/config"
	"github.com/lethanbinh/apsas-export-service/internal/db"
	"github.com/lethanbinh/apsas-export-service/internal/grouping"
	"github.com/lethanbinh/apsas-export-service/internal/logger"
	"github.com/lethanbinh/apsas-export-service/internal/model"
	"github.com/lethanbinh/apsas-export-service/internal/queue"
	"github.com/lethanbinh/apsas-export-service/internal/storage"
	apperrors "github.com/lethanbinh/apsas-export-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	repo        db.Repository
	producer    *queue.Producer
	client      *assessment.Client
	loader      *assessment.Loader
	storage     storage.Storage
	cfg         *config.Config
	proxyClient *http.Client
	log         zerolog.Logger
}

func NewHandler(
	repo db.Repository,
	producer *queue.Producer,
	store storage.Storage,
	cfg *config.Config,
) *Handler {
	client := assessment.NewClient(cfg)
	return &Handler{
		repo:     repo,
		producer: producer,
		client:   client,
		loader:   assessment.NewLoader(client),
		storage:  store,
		cfg:      cfg,
		proxyClient: &http.Client{
			Timeout: cfg.Export.FetchTimeout,
		},
		log: logger.Get(),
	}
}

// TriggerExportAll queues a "download all" export covering every grading
// group matching the filter.
func (h *Handler) TriggerExportAll(c *gin.Context) {
	var req model.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	h.enqueueExport(c, req.Filter, nil)
}

// TriggerExportSelected queues a "download selected" export limited to the
// grading groups behind the chosen flat rows.
func (h *Handler) TriggerExportSelected(c *gin.Context) {
	var req model.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if len(req.GroupIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No grading groups selected"})
		return
	}

	h.enqueueExport(c, req.Filter, req.GroupIDs)
}

func (h *Handler) enqueueExport(c *gin.Context, filter model.ExportFilter, groupIDs []int64) {
	jobID, err := h.repo.CreateJob(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create export job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	payload := model.ExportJobPayload{
		JobID:    jobID,
		Filter:   filter,
		GroupIDs: groupIDs,
	}

	if err := h.producer.EnqueueExportJob(c.Request.Context(), payload); err != nil {
		h.log.Error().Err(err).Int64("job_id", jobID).Msg("Failed to enqueue export job")
		h.repo.MarkJobFailed(c.Request.Context(), jobID, "failed to queue export job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue export job"})
		return
	}

	h.log.Info().
		Int64("job_id", jobID).
		Int("selected_groups", len(groupIDs)).
		Msg("Export job enqueued")

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Export job queued successfully",
		"job_id":  jobID,
	})
}

func (h *Handler) GetExportJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := h.repo.GetJob(c.Request.Context(), jobID)
	if err == apperrors.ErrJobNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export job not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("job_id", jobID).Msg("Failed to get export job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// DownloadExport streams a finished archive from storage.
func (h *Handler) DownloadExport(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := h.repo.GetJob(c.Request.Context(), jobID)
	if err == apperrors.ErrJobNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export job not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("job_id", jobID).Msg("Failed to get export job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if job.Status != model.JobStatusCompleted || job.ArtifactKey == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Export artifact not ready",
			"status": job.Status,
		})
		return
	}

	exists, err := h.storage.Exists(c.Request.Context(), *job.ArtifactKey)
	if err != nil || !exists {
		c.JSON(http.StatusGone, gin.H{"error": "Export artifact no longer exists"})
		return
	}

	reader, err := h.storage.Download(c.Request.Context(), *job.ArtifactKey)
	if err != nil {
		h.log.Error().Err(err).Str("key", *job.ArtifactKey).Msg("Failed to download archive from storage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read archive"})
		return
	}
	defer reader.Close()

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="`+*job.ArtifactKey+`"`)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		h.log.Error().Err(err).Int64("job_id", jobID).Msg("Failed to stream archive")
	}
}

// DeleteExportJob removes a job row together with its stored archive.
func (h *Handler) DeleteExportJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := h.repo.GetJob(c.Request.Context(), jobID)
	if err == apperrors.ErrJobNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export job not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("job_id", jobID).Msg("Failed to get export job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if job.ArtifactKey != nil {
		if err := h.storage.Delete(c.Request.Context(), *job.ArtifactKey); err != nil {
			h.log.Error().Err(err).Str("key", *job.ArtifactKey).Msg("Failed to delete archive from storage")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete archive"})
			return
		}
	}

	if err := h.repo.DeleteJob(c.Request.Context(), jobID); err != nil {
		h.log.Error().Err(err).Int64("job_id", jobID).Msg("Failed to delete export job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.log.Info().Int64("job_id", jobID).Msg("Export job deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Export job deleted"})
}

// ListFlatGradingGroups builds the flattened table from live assessment
// data, honoring the same filter axes the exports use.
func (h *Handler) ListFlatGradingGroups(c *gin.Context) {
	filter := grouping.Filter{
		Semester: c.Query("semester"),
	}
	if v := c.Query("courseId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid courseId"})
			return
		}
		filter.CourseID = id
	}
	if v := c.Query("templateId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid templateId"})
			return
		}
		filter.TemplateID = id
	}
	if v := c.Query("lecturerId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lecturerId"})
			return
		}
		filter.LecturerID = id
	}

	snapshot, err := h.loader.LoadSnapshot(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load assessment snapshot")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Assessment service unavailable"})
		return
	}

	engine := grouping.NewEngine(snapshot.Lookups)
	courses, report := engine.Build(snapshot.Groups, snapshot.Submissions, filter)
	rows := grouping.Flatten(courses)

	c.JSON(http.StatusOK, gin.H{
		"items":   rows,
		"dropped": report.Dropped,
	})
}

// DeleteGradingGroup relays a deletion to the assessment service.
func (h *Handler) DeleteGradingGroup(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	if err := h.client.DeleteGradingGroup(c.Request.Context(), groupID); err != nil {
		h.log.Error().Err(err).Int64("group_id", groupID).Msg("Failed to delete grading group")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to delete grading group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Grading group deleted"})
}

// FileProxy streams a remote binary back same-origin so archive downloads
// have a single egress point.
func (h *Handler) FileProxy(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid url parameter"})
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, parsed.String(), nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid url parameter"})
		return
	}

	resp, err := h.proxyClient.Do(req)
	if err != nil {
		h.log.Warn().Err(err).Str("url", rawURL).Msg("File proxy fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch remote file"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  "Remote server returned an error",
			"status": resp.StatusCode,
		})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		h.log.Warn().Err(err).Str("url", rawURL).Msg("File proxy stream interrupted")
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}
