package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/lethanbinh/apsas-export-service/internal/assessment"
	"github.com/lethanbinh/apsas-export-service/internal/config"
	"github.com/lethanbinh/apsas-export-service/internal/db"
	"github.com/lethanbinh/apsas-export-service/internal/export"
	"github.com/lethanbinh/apsas-export-service/internal/grouping"
	"github.com/lethanbinh/apsas-export-service/internal/logger"
	"github.com/lethanbinh/apsas-export-service/internal/model"
	"github.com/lethanbinh/apsas-export-service/internal/queue"
	"github.com/lethanbinh/apsas-export-service/internal/storage"

	"github.com/rs/zerolog"
)

// ExportWorker consumes export jobs from the queue, builds the hierarchy
// from live assessment data, runs the archive pipeline and uploads the
// finished archive. Job rows in MySQL track the outcome.
type ExportWorker struct {
	cfg        *config.Config
	repo       db.Repository
	client     *assessment.Client
	loader     *assessment.Loader
	storage    storage.Storage
	pipeline   *export.Pipeline
	consumer   *queue.Consumer
	workerPool *WorkerPool
	log        zerolog.Logger
}

func NewExportWorker(
	cfg *config.Config,
	repo db.Repository,
	store storage.Storage,
	redisClient *queue.RedisClient,
) *ExportWorker {
	client := assessment.NewClient(cfg)
	return &ExportWorker{
		cfg:        cfg,
		repo:       repo,
		client:     client,
		loader:     assessment.NewLoader(client),
		storage:    store,
		pipeline:   export.NewPipeline(client, assessment.NewFileFetcher(cfg), cfg),
		consumer:   queue.NewConsumer(redisClient, cfg),
		workerPool: NewWorkerPool(cfg.Export.Workers),
		log:        logger.Get(),
	}
}

func (w *ExportWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting export worker")

	// Start worker pool
	w.workerPool.Start(ctx)

	// Start consuming messages
	return w.consumer.ConsumeExportQueue(ctx, w.handleMessage)
}

func (w *ExportWorker) Stop() {
	w.log.Info().Msg("Stopping export worker")
	w.workerPool.Stop()
}

func (w *ExportWorker) handleMessage(ctx context.Context, data []byte) error {
	var payload model.ExportJobPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal export job")
		return err
	}

	w.log.Info().
		Int64("job_id", payload.JobID).
		Int("selected_groups", len(payload.GroupIDs)).
		Msg("Processing export job")

	// Submit blocks under backpressure; a submit error means the pool is
	// shutting down, so the message goes to the DLQ and the row is closed.
	if err := w.workerPool.Submit(ctx, func(ctx context.Context) error {
		return w.ProcessJob(ctx, payload)
	}); err != nil {
		w.log.Error().Err(err).Int64("job_id", payload.JobID).Msg("Failed to hand job to worker pool")
		w.repo.MarkJobFailed(context.Background(), payload.JobID, "worker pool unavailable")
		return err
	}

	return nil
}

// ProcessJob runs one export end to end. Every failure path lands in a
// terminal job status; nothing is re-thrown past this boundary.
func (w *ExportWorker) ProcessJob(ctx context.Context, payload model.ExportJobPayload) (err error) {
	log := w.log.With().Int64("job_id", payload.JobID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Export job panicked")
			w.repo.MarkJobFailed(ctx, payload.JobID, "internal error during export")
		}
	}()

	if err := w.repo.MarkJobRunning(ctx, payload.JobID); err != nil {
		log.Error().Err(err).Msg("Failed to mark job running")
		return err
	}

	courses, err := w.buildHierarchy(ctx, payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build export hierarchy")
		w.repo.MarkJobFailed(ctx, payload.JobID, err.Error())
		return err
	}

	result, err := w.pipeline.Run(ctx, courses)
	if err != nil {
		log.Error().Err(err).Msg("Archive pipeline failed")
		w.repo.MarkJobFailed(ctx, payload.JobID, err.Error())
		return err
	}

	if result.Empty {
		log.Warn().Int("dropped", result.DroppedCount).Msg("Export produced no archive")
		return w.repo.MarkJobEmpty(ctx, payload.JobID, result.DroppedCount)
	}

	artifactKey := "exports/" + result.Name
	if err := w.storage.Upload(ctx, artifactKey, bytes.NewReader(result.Archive)); err != nil {
		log.Error().Err(err).Str("key", artifactKey).Msg("Failed to upload archive")
		w.repo.MarkJobFailed(ctx, payload.JobID, err.Error())
		return err
	}

	log.Info().
		Str("key", artifactKey).
		Int("submissions", result.SubmissionCount).
		Int("dropped", result.DroppedCount).
		Msg("Export job completed")

	return w.repo.MarkJobCompleted(ctx, payload.JobID, artifactKey, result.SubmissionCount, result.DroppedCount)
}

func (w *ExportWorker) buildHierarchy(ctx context.Context, payload model.ExportJobPayload) ([]model.GroupedCourse, error) {
	snapshot, err := w.loader.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	engine := grouping.NewEngine(snapshot.Lookups)
	courses, report := engine.Build(snapshot.Groups, snapshot.Submissions, grouping.Filter{
		Semester:   payload.Filter.Semester,
		CourseID:   payload.Filter.CourseID,
		TemplateID: payload.Filter.TemplateID,
		LecturerID: payload.Filter.LecturerID,
	})

	w.log.Debug().
		Int64("job_id", payload.JobID).
		Int("kept", report.Kept).
		Int("dropped", report.Dropped).
		Int("filtered", report.FilteredOut).
		Msg("Hierarchy built for export")

	if len(payload.GroupIDs) > 0 {
		courses = grouping.FilterByGroupIDs(courses, payload.GroupIDs)
	}

	return courses, nil
}
