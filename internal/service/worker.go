package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/infrastructure/logger"
	"github.com/vodmill/vodmill/internal/port"
)

// thumbnailFileName is the preview image written next to the HLS tree.
const thumbnailFileName = "thumbnail.jpg"

type EventPublisher interface {
	Publish(videoID string, event Event)
}

// WorkerPool runs the per-job state machine: claim, probe, select renditions,
// transcode and thumbnail concurrently, then settle the video record. Workers
// only block on external processes and persistence; per-video writes need no
// locking because at most one tracked job targets a video.
type WorkerPool struct {
	queue      port.JobQueue
	store      port.VideoStore
	tracker    port.JobTracker
	transcoder port.Transcoder
	events     EventPublisher
	jobTimeout time.Duration
	workers    int
}

func NewWorkerPool(
	queue port.JobQueue,
	store port.VideoStore,
	tracker port.JobTracker,
	transcoder port.Transcoder,
	events EventPublisher,
	jobTimeout time.Duration,
	workers int,
) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		queue:      queue,
		store:      store,
		tracker:    tracker,
		transcoder: transcoder,
		events:     events,
		jobTimeout: jobTimeout,
		workers:    workers,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	// Jobs left running by a previous process go back to pending.
	if err := wp.queue.ResetStalled(); err != nil {
		logger.Error.Printf("failed to reset stalled jobs: %v", err)
	}

	for i := range wp.workers {
		go wp.runWorker(ctx, i)
	}
	logger.Info.Printf("started %d workers", wp.workers)
}

func (wp *WorkerPool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			logger.Info.Printf("worker %d shutting down", id)
			return
		default:
		}

		job, err := wp.queue.Claim()
		if err != nil {
			logger.Error.Printf("worker %d: failed to claim job: %v", id, err)
			time.Sleep(2 * time.Second)
			continue
		}

		if job == nil {
			// No pending jobs, wait before polling again
			time.Sleep(500 * time.Millisecond)
			continue
		}

		logger.Info.Printf("worker %d: processing job %d (kind=%s, video=%s)",
			id, job.ID, job.Descriptor.Kind, job.Descriptor.VideoID)
		wp.ProcessJob(ctx, job)
	}
}

// ProcessJob executes one job to its terminal outcome: on success the video
// is finished and the tracking entry removed; on failure the video goes to
// error (when it exists), the error is handed to the queue for its retry
// budget, and the tracking entry stays for reconciliation.
func (wp *WorkerPool) ProcessJob(ctx context.Context, job *domain.Job) {
	jobCtx := ctx
	if wp.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, wp.jobTimeout)
		defer cancel()
	}

	videoID := job.Descriptor.VideoID
	if err := wp.runJob(jobCtx, job); err != nil {
		logger.Error.Printf("job %d failed: %v", job.ID, err)
		if failErr := wp.queue.Fail(job.ID, err.Error()); failErr != nil {
			logger.Error.Printf("job %d: failed to record failure: %v", job.ID, failErr)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			_ = wp.store.UpdateStatus(videoID, domain.VideoStatusError, err.Error())
			wp.publish(videoID, domain.VideoStatusError, err.Error())
		}
		return
	}

	if err := wp.queue.Complete(job.ID); err != nil {
		logger.Error.Printf("job %d: failed to mark complete: %v", job.ID, err)
	}
	if err := wp.tracker.Delete(job.ID); err != nil {
		logger.Error.Printf("job %d: failed to delete tracking entry: %v", job.ID, err)
	}
	wp.publish(videoID, domain.VideoStatusFinished, "")
	logger.Info.Printf("job %d completed for video %s", job.ID, videoID)
}

func (wp *WorkerPool) runJob(ctx context.Context, job *domain.Job) error {
	d := job.Descriptor

	video, err := wp.store.Get(d.VideoID)
	if err != nil {
		// ErrNotFound: the video was deleted after enqueue. Nothing to
		// update, the job just fails.
		return fmt.Errorf("load video %s: %w", d.VideoID, err)
	}

	if err := wp.store.UpdateStatus(video.ID, domain.VideoStatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	wp.publish(video.ID, domain.VideoStatusProcessing, "")

	probe, err := wp.transcoder.Probe(ctx, d.SourcePath)
	if err != nil {
		return err
	}
	info, err := probe.Source()
	if err != nil {
		return err
	}

	rungs := domain.SelectRenditions(domain.DefaultLadder, info.Width, info.Height)
	if len(rungs) == 0 {
		return fmt.Errorf("%w: source is %dx%d", domain.ErrNoRenditions, info.Width, info.Height)
	}

	// Transcode and thumbnail run as independent external processes; either
	// failing cancels the other and fails the job.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wp.transcoder.Transcode(gctx, d.SourcePath, d.OutputDir, rungs, info.HasAudio)
	})
	g.Go(func() error {
		return wp.transcoder.Thumbnail(gctx, d.SourcePath, filepath.Join(d.OutputDir, thumbnailFileName))
	})
	if err := g.Wait(); err != nil {
		return err
	}

	video.MarkFinished(domain.RungNames(rungs), info.Duration, filepath.Base(d.OutputDir))
	if d.ReplacementOriginalName != "" {
		video.OriginalFileName = d.ReplacementOriginalName
	}
	if err := wp.store.UpdateFinished(video); err != nil {
		return fmt.Errorf("persist finished video: %w", err)
	}

	// Post-success cleanup is logged, never fatal: the record already points
	// at the new output.
	if err := os.Remove(d.SourcePath); err != nil {
		logger.Warn.Printf("job %d: failed to remove source %s: %v", job.ID, d.SourcePath, err)
	}
	if d.Kind == domain.JobKindRetranscode && d.PreviousOutputDir != "" && d.PreviousOutputDir != d.OutputDir {
		if err := os.RemoveAll(d.PreviousOutputDir); err != nil {
			logger.Warn.Printf("job %d: failed to remove superseded output %s: %v", job.ID, d.PreviousOutputDir, err)
		}
	}

	return nil
}

func (wp *WorkerPool) publish(videoID string, status domain.VideoStatus, message string) {
	if wp.events != nil {
		wp.events.Publish(videoID, Event{Status: status, Message: message})
	}
}
