package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lethanbinh/apsas-export-service/internal/config"
	"github.com/lethanbinh/apsas-export-service/internal/db"
	"github.com/lethanbinh/apsas-export-service/internal/logger"
	"github.com/lethanbinh/apsas-export-service/internal/queue"
	"github.com/lethanbinh/apsas-export-service/internal/storage"
	"github.com/lethanbinh/apsas-export-service/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	log.Info().Str("version", cfg.App.Version).Msg("Starting export worker")

	// Initialize database
	database, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize repository
	repo := db.NewRepository(database)

	// Initialize Redis client
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize archive storage
	store, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
	}

	// Create export worker
	exportWorker := worker.NewExportWorker(cfg, repo, store, redisClient)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker
	go func() {
		if err := exportWorker.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Export worker failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down export worker...")

	// Cancel context to stop worker
	cancel()
	exportWorker.Stop()

	log.Info().Msg("Export worker exited")
}
