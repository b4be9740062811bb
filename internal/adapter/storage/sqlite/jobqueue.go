package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/port"
)

// JobQueue is a durable FIFO queue backed by the jobs table. Claiming is a
// single UPDATE..RETURNING, so concurrent workers never see the same job.
type JobQueue struct {
	db          *sql.DB
	maxAttempts int64
}

// NewJobQueue wraps the store's database. maxAttempts bounds redelivery: a
// job failing that many times stays failed instead of being requeued.
func NewJobQueue(store *Store, maxAttempts int) *JobQueue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &JobQueue{
		db:          store.db,
		maxAttempts: int64(maxAttempts),
	}
}

const jobColumns = `id, kind, payload, status, error_message, attempts, created_at, started_at, completed_at`

func (q *JobQueue) Enqueue(desc domain.JobDescriptor) (*domain.Job, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job descriptor: %w", err)
	}
	payload, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}

	row := q.db.QueryRowContext(context.Background(), `
		INSERT INTO jobs (kind, payload, created_at)
		VALUES (?, ?, ?)
		RETURNING `+jobColumns,
		string(desc.Kind), string(payload), now())
	return scanJob(row)
}

func (q *JobQueue) Get(jobID int64) (*domain.Job, error) {
	row := q.db.QueryRowContext(context.Background(),
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (q *JobQueue) Claim() (*domain.Job, error) {
	row := q.db.QueryRowContext(context.Background(), `
		UPDATE jobs
		SET status = 'running', started_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM jobs WHERE status = 'pending' ORDER BY id LIMIT 1
		)
		RETURNING `+jobColumns,
		now())
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (q *JobQueue) Remove(jobID int64) (bool, error) {
	res, err := q.db.ExecContext(context.Background(),
		`DELETE FROM jobs WHERE id = ? AND status = 'pending'`, jobID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *JobQueue) Complete(jobID int64) error {
	_, err := q.db.ExecContext(context.Background(),
		`UPDATE jobs SET status = 'done', completed_at = ? WHERE id = ?`,
		now(), jobID)
	return err
}

func (q *JobQueue) Fail(jobID int64, errMsg string) error {
	// Below the attempt budget the job goes back to pending for redelivery;
	// at the budget it is failed terminally.
	_, err := q.db.ExecContext(context.Background(), `
		UPDATE jobs
		SET status = CASE WHEN attempts >= ? THEN 'failed' ELSE 'pending' END,
			error_message = ?,
			completed_at = CASE WHEN attempts >= ? THEN ? ELSE NULL END
		WHERE id = ?`,
		q.maxAttempts, errMsg, q.maxAttempts, now(), jobID)
	return err
}

func (q *JobQueue) ResetStalled() error {
	_, err := q.db.ExecContext(context.Background(),
		`UPDATE jobs SET status = 'pending' WHERE status = 'running'`)
	return err
}

func (q *JobQueue) FailOverdue(maxAge time.Duration) ([]*domain.Job, error) {
	rows, err := q.db.QueryContext(context.Background(),
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'running'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cutoff := now().Add(-maxAge)
	var overdue []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		if job.StartedAt.Valid && job.StartedAt.Time.Before(cutoff) {
			overdue = append(overdue, job)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("job exceeded maximum duration of %s", maxAge)
	for _, job := range overdue {
		_, err := q.db.ExecContext(context.Background(), `
			UPDATE jobs
			SET status = 'failed', error_message = ?, completed_at = ?
			WHERE id = ? AND status = 'running'`,
			msg, now(), job.ID)
		if err != nil {
			return nil, err
		}
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = msg
	}
	return overdue, nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var kind, payload, status string
	err := row.Scan(
		&j.ID, &kind, &payload, &status, &j.ErrorMessage,
		&j.Attempts, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	if err := json.Unmarshal([]byte(payload), &j.Descriptor); err != nil {
		return nil, fmt.Errorf("decode payload for job %d: %w", j.ID, err)
	}
	if j.Descriptor.Kind == "" {
		j.Descriptor.Kind = domain.JobKind(kind)
	}
	return &j, nil
}

var _ port.JobQueue = (*JobQueue)(nil)
