package port

import (
	"time"

	"github.com/vodmill/vodmill/internal/domain"
)

// JobQueue is a durable at-least-once queue of transcoding jobs. Enqueued
// jobs survive process restarts; delivery order is FIFO per queue.
type JobQueue interface {
	Enqueue(desc domain.JobDescriptor) (*domain.Job, error)

	// Claim atomically takes the oldest pending job, marking it running.
	// Returns (nil, nil) when the queue is empty.
	Claim() (*domain.Job, error)

	// Get looks up a job by ID; absent jobs return domain.ErrNotFound.
	Get(jobID int64) (*domain.Job, error)

	// Remove cancels a job that has not started yet. It reports whether a
	// pending job was actually removed; a running or absent job is a no-op.
	Remove(jobID int64) (bool, error)

	Complete(jobID int64) error

	// Fail records the error and either requeues the job for another
	// attempt or, once attempts are exhausted, marks it failed for good.
	Fail(jobID int64, errMsg string) error

	// ResetStalled requeues jobs left running by a previous process.
	ResetStalled() error

	// FailOverdue marks jobs running longer than maxAge as failed and
	// returns them so the caller can reconcile their videos.
	FailOverdue(maxAge time.Duration) ([]*domain.Job, error)
}
