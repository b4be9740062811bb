package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/port"
)

// In-memory fakes for the storage and transcoder ports.

type fakeVideoStore struct {
	mu     sync.Mutex
	videos map[string]*domain.Video

	// statusLog records every UpdateStatus call as "id:status".
	statusLog []string
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: make(map[string]*domain.Video)}
}

func (f *fakeVideoStore) Save(v *domain.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *v
	f.videos[v.ID] = &cp
	return nil
}

func (f *fakeVideoStore) Get(id string) (*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVideoStore) ListByOwner(ownerID int64) ([]*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Video
	for _, v := range f.videos {
		if v.OwnerID == ownerID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeVideoStore) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.videos[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.videos, id)
	return nil
}

func (f *fakeVideoStore) UpdateMeta(v *domain.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.videos[v.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Title = v.Title
	cur.Description = v.Description
	cur.Visibility = v.Visibility
	return nil
}

func (f *fakeVideoStore) UpdateStatus(id string, status domain.VideoStatus, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.Status = status
	v.ErrorMessage = errMsg
	f.statusLog = append(f.statusLog, fmt.Sprintf("%s:%s", id, status))
	return nil
}

func (f *fakeVideoStore) UpdateFinished(v *domain.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.videos[v.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *v
	f.videos[v.ID] = &cp
	return nil
}

func (f *fakeVideoStore) SearchPublic(query string) ([]*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Video
	for _, v := range f.videos {
		if v.Visibility == domain.VisibilityPublic && v.Status == domain.VideoStatusFinished {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeQueue struct {
	mu          sync.Mutex
	nextID      int64
	jobs        map[int64]*domain.Job
	order       []int64
	maxAttempts int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(map[int64]*domain.Job), maxAttempts: 3}
}

func (f *fakeQueue) Enqueue(desc domain.JobDescriptor) (*domain.Job, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	job := &domain.Job{
		ID:         f.nextID,
		Descriptor: desc,
		Status:     domain.JobStatusPending,
		CreatedAt:  time.Now(),
	}
	f.jobs[job.ID] = job
	f.order = append(f.order, job.ID)
	return job, nil
}

func (f *fakeQueue) Get(jobID int64) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeQueue) Claim() (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		job := f.jobs[id]
		if job != nil && job.Status == domain.JobStatusPending {
			job.Status = domain.JobStatusRunning
			job.Attempts++
			job.StartedAt = sql.NullTime{Time: time.Now(), Valid: true}
			cp := *job
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeQueue) Remove(jobID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.Status != domain.JobStatusPending {
		return false, nil
	}
	delete(f.jobs, jobID)
	return true, nil
}

func (f *fakeQueue) Complete(jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusDone
	return nil
}

func (f *fakeQueue) Fail(jobID int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.ErrorMessage = errMsg
	if job.Attempts >= int64(f.maxAttempts) {
		job.Status = domain.JobStatusFailed
	} else {
		job.Status = domain.JobStatusPending
	}
	return nil
}

func (f *fakeQueue) ResetStalled() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.Status == domain.JobStatusRunning {
			job.Status = domain.JobStatusPending
		}
	}
	return nil
}

func (f *fakeQueue) FailOverdue(maxAge time.Duration) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var overdue []*domain.Job
	for _, job := range f.jobs {
		if job.Status == domain.JobStatusRunning && job.StartedAt.Valid && job.StartedAt.Time.Before(cutoff) {
			job.Status = domain.JobStatusFailed
			cp := *job
			overdue = append(overdue, &cp)
		}
	}
	return overdue, nil
}

func (f *fakeQueue) job(id int64) *domain.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

type fakeTracker struct {
	mu      sync.Mutex
	entries map[int64]string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{entries: make(map[int64]string)}
}

func (f *fakeTracker) Track(jobID int64, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[jobID] = videoID
	return nil
}

func (f *fakeTracker) FindByVideo(videoID string) (*domain.TrackingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest int64 = -1
	for jobID, vid := range f.entries {
		if vid == videoID && jobID > latest {
			latest = jobID
		}
	}
	if latest < 0 {
		return nil, domain.ErrNotFound
	}
	return &domain.TrackingEntry{JobID: latest, VideoID: videoID}, nil
}

func (f *fakeTracker) Delete(jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, jobID)
	return nil
}

func (f *fakeTracker) has(jobID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[jobID]
	return ok
}

type fakeTranscoder struct {
	mu sync.Mutex

	probeResult  *domain.ProbeResult
	probeErr     error
	transcodeErr error
	thumbErr     error

	transcodeCalls int
	thumbnailCalls int
	gotRungs       []domain.Rung
	gotHasAudio    bool
	gotOutputDir   string
}

func (f *fakeTranscoder) Probe(ctx context.Context, inputPath string) (*domain.ProbeResult, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.probeResult, nil
}

func (f *fakeTranscoder) Transcode(ctx context.Context, inputPath, outputDir string, rungs []domain.Rung, hasAudio bool) error {
	f.mu.Lock()
	f.transcodeCalls++
	f.gotRungs = rungs
	f.gotHasAudio = hasAudio
	f.gotOutputDir = outputDir
	f.mu.Unlock()
	return f.transcodeErr
}

func (f *fakeTranscoder) Thumbnail(ctx context.Context, inputPath, outputPath string) error {
	f.mu.Lock()
	f.thumbnailCalls++
	f.mu.Unlock()
	return f.thumbErr
}

// probeFixture builds a probe result for a source of the given geometry.
func probeFixture(width, height int, hasAudio bool, duration string) *domain.ProbeResult {
	streams := []domain.ProbeStream{
		{CodecType: "video", Width: width, Height: height},
	}
	if hasAudio {
		streams = append(streams, domain.ProbeStream{CodecType: "audio"})
	}
	return &domain.ProbeResult{
		Streams: streams,
		Format:  domain.ProbeFormat{Duration: duration},
	}
}

var (
	_ port.VideoStore = (*fakeVideoStore)(nil)
	_ port.JobQueue   = (*fakeQueue)(nil)
	_ port.JobTracker = (*fakeTracker)(nil)
	_ port.Transcoder = (*fakeTranscoder)(nil)
)
