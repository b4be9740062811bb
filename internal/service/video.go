package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/infrastructure/logger"
	"github.com/vodmill/vodmill/internal/port"
)

// EditPolicy decides what happens when an edit supplies a new source file
// while a previous job for the same video is still tracked.
type EditPolicy string

const (
	// EditPolicyReject refuses the edit until the active job settles.
	EditPolicyReject EditPolicy = "reject"
	// EditPolicySupersede cancels the queued job (best effort; a job already
	// running finishes and its output is superseded by the new run).
	EditPolicySupersede EditPolicy = "supersede"
)

func (p EditPolicy) Valid() bool {
	return p == EditPolicyReject || p == EditPolicySupersede
}

// UploadedFile is a received source file parked at a temporary path.
type UploadedFile struct {
	TempPath     string
	OriginalName string
}

// EditPatch carries the metadata fields an edit wants to change; nil means
// leave the field alone.
type EditPatch struct {
	Title       *string
	Description *string
	Visibility  *domain.Visibility
}

// VideoService owns the video lifecycle around the queue: publishing
// enqueues the first transcode, edits with a new file enqueue a retranscode,
// deletion cancels whatever is still queued.
type VideoService struct {
	store      port.VideoStore
	queue      port.JobQueue
	tracker    port.JobTracker
	uploadDir  string
	outputDir  string
	editPolicy EditPolicy
}

func NewVideoService(
	store port.VideoStore,
	queue port.JobQueue,
	tracker port.JobTracker,
	uploadDir, outputDir string,
	editPolicy EditPolicy,
) *VideoService {
	if !editPolicy.Valid() {
		editPolicy = EditPolicySupersede
	}
	return &VideoService{
		store:      store,
		queue:      queue,
		tracker:    tracker,
		uploadDir:  uploadDir,
		outputDir:  outputDir,
		editPolicy: editPolicy,
	}
}

// Publish stores the upload under a unique name, creates the waiting video
// record, and enqueues its first transcode. The call never waits for the job.
func (s *VideoService) Publish(ownerID int64, file UploadedFile, title, description string, visibility domain.Visibility) (*domain.Video, error) {
	uniqueName := uuid.NewString()
	uploadPath, err := s.stashUpload(file, uniqueName)
	if err != nil {
		return nil, err
	}

	video := domain.NewVideo(ownerID, title, description, file.OriginalName, uniqueName, visibility)
	if err := s.store.Save(video); err != nil {
		_ = os.Remove(uploadPath)
		return nil, fmt.Errorf("save video record: %w", err)
	}

	if err := s.enqueue(video.ID, domain.JobDescriptor{
		Kind:       domain.JobKindTranscode,
		SourcePath: uploadPath,
		OutputDir:  filepath.Join(s.outputDir, uniqueName),
		VideoID:    video.ID,
	}); err != nil {
		_ = s.store.UpdateStatus(video.ID, domain.VideoStatusError, err.Error())
		return nil, err
	}

	logger.Info.Printf("video published: id=%s file=%s", video.ID, logger.SanitizeForLog(file.OriginalName))
	return video, nil
}

// Edit applies metadata changes and, when a new file is supplied, flips the
// video back to waiting and enqueues a retranscode that will supersede the
// previous output on success.
func (s *VideoService) Edit(ownerID int64, videoID string, patch EditPatch, newFile *UploadedFile) (*domain.Video, error) {
	video, err := s.getOwned(ownerID, videoID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil && strings.TrimSpace(*patch.Title) != "" {
		video.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		video.Description = *patch.Description
	}
	if patch.Visibility != nil && patch.Visibility.Valid() {
		video.Visibility = *patch.Visibility
	}
	if err := s.store.UpdateMeta(video); err != nil {
		return nil, fmt.Errorf("update video metadata: %w", err)
	}

	if newFile == nil {
		return video, nil
	}

	if err := s.clearActiveJob(video.ID); err != nil {
		return nil, err
	}

	uniqueName := uuid.NewString()
	uploadPath, err := s.stashUpload(*newFile, uniqueName)
	if err != nil {
		return nil, err
	}

	if err := s.enqueue(video.ID, domain.JobDescriptor{
		Kind:                    domain.JobKindRetranscode,
		SourcePath:              uploadPath,
		OutputDir:               filepath.Join(s.outputDir, uniqueName),
		VideoID:                 video.ID,
		PreviousOutputDir:       filepath.Join(s.outputDir, video.UniqueFileName),
		ReplacementOriginalName: newFile.OriginalName,
	}); err != nil {
		_ = os.Remove(uploadPath)
		return nil, err
	}

	if err := s.store.UpdateStatus(video.ID, domain.VideoStatusWaiting, ""); err != nil {
		return nil, fmt.Errorf("mark video waiting: %w", err)
	}
	video.Status = domain.VideoStatusWaiting
	video.ErrorMessage = ""

	logger.Info.Printf("video re-transcode queued: id=%s", video.ID)
	return video, nil
}

// Delete cancels any still-queued job for the video, then removes the record
// and its files. Filesystem failures are logged but never fail the deletion.
func (s *VideoService) Delete(ownerID int64, videoID string) error {
	video, err := s.getOwned(ownerID, videoID)
	if err != nil {
		return err
	}

	entry, err := s.tracker.FindByVideo(video.ID)
	switch {
	case err == nil:
		removed, removeErr := s.queue.Remove(entry.JobID)
		if removeErr != nil {
			logger.Error.Printf("video %s: failed to remove job %d from queue: %v", video.ID, entry.JobID, removeErr)
		} else if !removed {
			logger.Warn.Printf("video %s: job %d already running or done, output will be orphaned", video.ID, entry.JobID)
		}
		if err := s.tracker.Delete(entry.JobID); err != nil {
			logger.Error.Printf("video %s: failed to delete tracking entry %d: %v", video.ID, entry.JobID, err)
		}
	case errors.Is(err, domain.ErrNotFound):
		// No active job.
	default:
		return fmt.Errorf("look up tracking entry: %w", err)
	}

	if err := s.store.Delete(video.ID); err != nil {
		return fmt.Errorf("delete video record: %w", err)
	}

	outputDir := filepath.Join(s.outputDir, video.UniqueFileName)
	if err := os.RemoveAll(outputDir); err != nil {
		logger.Error.Printf("video %s: failed to remove output dir %s: %v", video.ID, outputDir, err)
	}
	s.removeUploads(video)

	logger.Info.Printf("video deleted: id=%s", video.ID)
	return nil
}

func (s *VideoService) Get(ownerID int64, videoID string) (*domain.Video, error) {
	return s.getOwned(ownerID, videoID)
}

func (s *VideoService) List(ownerID int64) ([]*domain.Video, error) {
	return s.store.ListByOwner(ownerID)
}

// Watch returns a video for anonymous playback: public and finished only.
func (s *VideoService) Watch(videoID string) (*domain.Video, error) {
	video, err := s.store.Get(videoID)
	if err != nil {
		return nil, err
	}
	if video.Visibility != domain.VisibilityPublic || !video.Playable() {
		return nil, domain.ErrNotFound
	}
	return video, nil
}

func (s *VideoService) Search(query string) ([]*domain.Video, error) {
	return s.store.SearchPublic(query)
}

func (s *VideoService) getOwned(ownerID int64, videoID string) (*domain.Video, error) {
	video, err := s.store.Get(videoID)
	if err != nil {
		return nil, err
	}
	if video.OwnerID != ownerID {
		// Same answer as a missing video so ownership is not probeable.
		return nil, domain.ErrNotFound
	}
	return video, nil
}

// stashUpload moves a received temp file into the upload directory under the
// video's unique name, keeping the original extension.
func (s *VideoService) stashUpload(file UploadedFile, uniqueName string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	uploadPath := filepath.Join(s.uploadDir, uniqueName+strings.ToLower(filepath.Ext(file.OriginalName)))
	if err := os.Rename(file.TempPath, uploadPath); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return uploadPath, nil
}

func (s *VideoService) enqueue(videoID string, desc domain.JobDescriptor) (err error) {
	job, err := s.queue.Enqueue(desc)
	if err != nil {
		return fmt.Errorf("enqueue %s job: %w", desc.Kind, err)
	}
	if err := s.tracker.Track(job.ID, videoID); err != nil {
		// The job still runs; only cancellation-by-deletion is degraded.
		logger.Error.Printf("video %s: failed to track job %d: %v", videoID, job.ID, err)
	}
	return nil
}

// clearActiveJob enforces the edit policy against a still-tracked job. A
// tracking entry for a settled job (done or failed) is stale, not active;
// it is cleaned up and the edit proceeds under either policy.
func (s *VideoService) clearActiveJob(videoID string) error {
	entry, err := s.tracker.FindByVideo(videoID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up tracking entry: %w", err)
	}

	job, err := s.queue.Get(entry.JobID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && job.Status.Terminal()) {
		if delErr := s.tracker.Delete(entry.JobID); delErr != nil {
			logger.Error.Printf("video %s: failed to delete stale tracking entry %d: %v", videoID, entry.JobID, delErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up job %d: %w", entry.JobID, err)
	}

	if s.editPolicy == EditPolicyReject {
		return domain.ErrJobActive
	}

	removed, err := s.queue.Remove(entry.JobID)
	if err != nil {
		return fmt.Errorf("remove superseded job %d: %w", entry.JobID, err)
	}
	if !removed {
		logger.Warn.Printf("video %s: job %d already running, new job will supersede its output", videoID, entry.JobID)
	}
	if err := s.tracker.Delete(entry.JobID); err != nil {
		logger.Error.Printf("video %s: failed to delete tracking entry %d: %v", videoID, entry.JobID, err)
	}
	return nil
}

// SweepOrphanUploads removes upload files older than maxAge. Successful jobs
// consume their source, so anything this old belongs to a job that exhausted
// its attempts long ago or to a record that no longer exists. Returns the
// number of files removed.
func (s *VideoService) SweepOrphanUploads(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read upload directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.uploadDir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Error.Printf("sweep: failed to remove orphan upload %s: %v", path, err)
			continue
		}
		logger.Info.Printf("sweep: removed orphan upload %s", path)
		removed++
	}
	return removed, nil
}

// removeUploads clears any source file still sitting in the upload dir for
// this video (present when its job never ran or failed).
func (s *VideoService) removeUploads(video *domain.Video) {
	matches, err := filepath.Glob(filepath.Join(s.uploadDir, video.UniqueFileName+".*"))
	if err != nil {
		logger.Error.Printf("video %s: failed to glob uploads: %v", video.ID, err)
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			logger.Error.Printf("video %s: failed to remove upload %s: %v", video.ID, m, err)
		}
	}
}
