package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vodmill/vodmill/config"
	HTTPAdapter "github.com/vodmill/vodmill/internal/adapter/http"
	sqlitestore "github.com/vodmill/vodmill/internal/adapter/storage/sqlite"
	"github.com/vodmill/vodmill/internal/adapter/transcoder/ffmpeg"
	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/infrastructure/logger"
	"github.com/vodmill/vodmill/internal/service"
)

// orphanSweepAge is how long an upload may sit unconsumed before the hourly
// sweep removes it.
const orphanSweepAge = 48 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	logger.Info.Printf("starting vodmill on port %d (workers=%d, edit_policy=%s)",
		cfg.Port, cfg.Workers, cfg.EditPolicy)

	for _, dir := range []string{cfg.DataDir, cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error.Printf("failed to create directory %s: %v", dir, err)
			os.Exit(1)
		}
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error.Printf("failed to create store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	jobQueue := sqlitestore.NewJobQueue(store, cfg.JobMaxAttempts)
	jobTracker := sqlitestore.NewJobTracker(store)
	transcoder := ffmpeg.NewRunner(cfg.FFmpegPath, cfg.FFprobePath)
	eventBus := service.NewEventBus()

	videoSvc := service.NewVideoService(
		store, jobQueue, jobTracker,
		cfg.UploadDir, cfg.OutputDir,
		service.EditPolicy(cfg.EditPolicy),
	)
	authSvc := service.NewAuthService(store, cfg.AuthSecret)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	workerPool := service.NewWorkerPool(jobQueue, store, jobTracker, transcoder, eventBus, cfg.JobTimeout, cfg.Workers)
	workerPool.Start(workerCtx)

	// Reaper: jobs running past the timeout (plus grace for cleanup) are
	// failed and their videos marked accordingly.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				overdue, err := jobQueue.FailOverdue(cfg.JobTimeout + 5*time.Minute)
				if err != nil {
					logger.Error.Printf("reaper: %v", err)
					continue
				}
				for _, job := range overdue {
					logger.Warn.Printf("reaper: job %d exceeded timeout, marking video %s as error",
						job.ID, job.Descriptor.VideoID)
					if err := store.UpdateStatus(job.Descriptor.VideoID, domain.VideoStatusError, "transcoding timed out"); err != nil {
						logger.Error.Printf("reaper: failed to update video %s: %v", job.Descriptor.VideoID, err)
					}
					eventBus.Publish(job.Descriptor.VideoID, service.Event{
						Status:  domain.VideoStatusError,
						Message: "transcoding timed out",
					})
				}
			case <-workerCtx.Done():
				return
			}
		}
	}()

	// Hourly sweep of upload files no job will ever consume.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed, err := videoSvc.SweepOrphanUploads(orphanSweepAge)
				if err != nil {
					logger.Error.Printf("orphan sweep failed: %v", err)
				} else if removed > 0 {
					logger.Info.Printf("orphan sweep removed %d files", removed)
				}
			case <-workerCtx.Done():
				return
			}
		}
	}()

	server := HTTPAdapter.NewServer(authSvc, videoSvc, eventBus, cfg.OutputDir, cfg.MaxUploadSizeMB, cfg.BehindProxy)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info.Printf("received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
		}

		// Stop workers; interrupted jobs are requeued on the next start.
		workerCancel()

		logger.Info.Printf("shutdown complete")
	}()

	logger.Info.Printf("server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error.Printf("server failed: %v", err)
		os.Exit(1)
	}
}
