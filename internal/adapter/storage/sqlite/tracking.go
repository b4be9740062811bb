package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/port"
)

type JobTracker struct {
	db *sql.DB
}

func NewJobTracker(store *Store) *JobTracker {
	return &JobTracker{db: store.db}
}

func (t *JobTracker) Track(jobID int64, videoID string) error {
	_, err := t.db.ExecContext(context.Background(), `
		INSERT INTO job_tracking (job_id, video_id, created_at)
		VALUES (?, ?, ?)`,
		jobID, videoID, now())
	return err
}

func (t *JobTracker) FindByVideo(videoID string) (*domain.TrackingEntry, error) {
	row := t.db.QueryRowContext(context.Background(), `
		SELECT job_id, video_id, created_at
		FROM job_tracking
		WHERE video_id = ?
		ORDER BY job_id DESC
		LIMIT 1`,
		videoID)

	var entry domain.TrackingEntry
	err := row.Scan(&entry.JobID, &entry.VideoID, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (t *JobTracker) Delete(jobID int64) error {
	_, err := t.db.ExecContext(context.Background(),
		`DELETE FROM job_tracking WHERE job_id = ?`, jobID)
	return err
}

var _ port.JobTracker = (*JobTracker)(nil)
