package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodmill/vodmill/internal/domain"
)

type videoEnv struct {
	store     *fakeVideoStore
	queue     *fakeQueue
	tracker   *fakeTracker
	uploadDir string
	outputDir string
	svc       *VideoService
}

func newVideoEnv(t *testing.T, policy EditPolicy) *videoEnv {
	t.Helper()
	dir := t.TempDir()
	env := &videoEnv{
		store:     newFakeVideoStore(),
		queue:     newFakeQueue(),
		tracker:   newFakeTracker(),
		uploadDir: filepath.Join(dir, "uploads"),
		outputDir: filepath.Join(dir, "videos"),
	}
	env.svc = NewVideoService(env.store, env.queue, env.tracker, env.uploadDir, env.outputDir, policy)
	return env
}

func (env *videoEnv) tempUpload(t *testing.T, name string) UploadedFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incoming.bin")
	require.NoError(t, os.WriteFile(path, []byte("fake video bytes"), 0644))
	return UploadedFile{TempPath: path, OriginalName: name}
}

func TestPublish(t *testing.T) {
	env := newVideoEnv(t, EditPolicySupersede)

	video, err := env.svc.Publish(1, env.tempUpload(t, "My Trip.MP4"), "My Trip", "vacation", domain.VisibilityPublic)
	require.NoError(t, err)

	assert.NotEmpty(t, video.ID)
	assert.Equal(t, domain.VideoStatusWaiting, video.Status)
	assert.Equal(t, "My Trip", video.Title)
	assert.Equal(t, "My Trip.MP4", video.OriginalFileName)
	assert.Equal(t, int64(1), video.OwnerID)

	// Upload landed under the unique name with a lowercased extension.
	uploadPath := filepath.Join(env.uploadDir, video.UniqueFileName+".mp4")
	_, statErr := os.Stat(uploadPath)
	require.NoError(t, statErr)

	job, err := env.queue.Claim()
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, domain.JobKindTranscode, job.Descriptor.Kind)
	assert.Equal(t, video.ID, job.Descriptor.VideoID)
	assert.Equal(t, uploadPath, job.Descriptor.SourcePath)
	assert.Equal(t, filepath.Join(env.outputDir, video.UniqueFileName), job.Descriptor.OutputDir)

	entry, err := env.tracker.FindByVideo(video.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, entry.JobID)
}

func TestPublishDefaults(t *testing.T) {
	env := newVideoEnv(t, EditPolicySupersede)

	video, err := env.svc.Publish(1, env.tempUpload(t, "clip.mov"), "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Video", video.Title)
	assert.Equal(t, domain.VisibilityPrivate, video.Visibility)
}

func TestEditMetadataOnly(t *testing.T) {
	env := newVideoEnv(t, EditPolicySupersede)
	video, err := env.svc.Publish(1, env.tempUpload(t, "clip.mp4"), "Old", "", domain.VisibilityPrivate)
	require.NoError(t, err)

	newTitle := "New Title"
	public := domain.VisibilityPublic
	updated, err := env.svc.Edit(1, video.ID, EditPatch{Title: &newTitle, Visibility: &public}, nil)
	require.NoError(t, err)
	assert.Equal(t, "New Title", updated.Title)
	assert.Equal(t, domain.VisibilityPublic, updated.Visibility)

	// Metadata edits never queue new work.
	entry, err := env.tracker.FindByVideo(video.ID)
	require.NoError(t, err)
	first, err := env.queue.Claim()
	require.NoError(t, err)
	assert.Equal(t, entry.JobID, first.ID)
	second, err := env.queue.Claim()
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestEditWrongOwner(t *testing.T) {
	env := newVideoEnv(t, EditPolicySupersede)
	video, err := env.svc.Publish(1, env.tempUpload(t, "clip.mp4"), "Mine", "", domain.VisibilityPrivate)
	require.NoError(t, err)

	title := "hijack"
	_, err = env.svc.Edit(2, video.ID, EditPatch{Title: &title}, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEditNewFileSupersedesQueuedJob(t *testing.T) {
	env := newVideoEnv(t, EditPolicySupersede)
	video, err := env.svc.Publish(1, env.tempUpload(t, "v1.mp4"), "Clip", "", domain.VisibilityPublic)
	require.NoError(t, err)
	firstEntry, err := env.tracker.FindByVideo(video.ID)
	require.NoError(t, err)

	updated, err := env.svc.Edit(1, video.ID, EditPatch{}, ptr(env.tempUpload(t, "v2.mp4")))
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusWaiting, updated.Status)

	// The original job is gone; only the re-transcode remains.
	job, err := env.queue.Claim()
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.NotEqual(t, firstEntry.JobID, job.ID)
	assert.Equal(t, domain.JobKindRetranscode, job.Descriptor.Kind)
	assert.Equal(t, "v2.mp4", job.Descriptor.ReplacementOriginalName)
	assert.Equal(t, filepath.Join(env.outputDir, video.UniqueFileName), job.Descriptor.PreviousOutputDir)

	none, err := env.queue.Claim()
	require.NoError(t, err)
	assert.Nil(t, none)

	entry, err := env.tracker.FindByVideo(video.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, entry.JobID)
}

func TestEditNewFileRejectedWhileJobActive(t *testing.T) {
	env := newVideoEnv(t, EditPolicyReject)
	video, err := env.svc.Publish(1, env.tempUpload(t, "v1.mp4"), "Clip", "", domain.VisibilityPublic)
	require.NoError(t, err)

	_, err = env.svc.Edit(1, video.ID, EditPatch{}, ptr(env.tempUpload(t, "v2.mp4")))
	assert.ErrorIs(t, err, domain.ErrJobActive)
}

func TestEditNewFileAfterJobFailedTerminally(t *testing.T) {
	env := newVideoEnv(t, EditPolicyReject)
	video, err := env.svc.Publish(1, env.tempUpload(t, "v1.mp4"), "Clip", "", domain.VisibilityPublic)
	require.NoError(t, err)

	// Exhaust the job's attempt budget. The tracking entry is retained for
	// failed jobs, but a settled job must not block re-upload.
	entry, err := env.tracker.FindByVideo(video.ID)
	require.NoError(t, err)
	env.queue.maxAttempts = 1
	_, err = env.queue.Claim()
	require.NoError(t, err)
	require.NoError(t, env.queue.Fail(entry.JobID, "ffmpeg exploded"))
	require.Equal(t, domain.JobStatusFailed, env.queue.job(entry.JobID).Status)

	updated, err := env.svc.Edit(1, video.ID, EditPatch{}, ptr(env.tempUpload(t, "v2.mp4")))
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusWaiting, updated.Status)

	// The stale entry was replaced by one for the new job.
	replacement, err := env.tracker.FindByVideo(video.ID)
	require.NoError(t, err)
	assert.NotEqual(t, entry.JobID, replacement.JobID)
}

func TestEditNewFileAfterJobSettled(t *testing.T) {
	env := newVideoEnv(t, EditPolicyReject)
	video, err := env.svc.Publish(1, env.tempUpload(t, "v1.mp4"), "Clip", "", domain.VisibilityPublic)
	require.NoError(t, err)

	// Simulate the worker finishing: tracking entry is gone.
	entry, err := env.tracker.FindByVideo(video.ID)
	require.NoError(t, err)
	_, err = env.queue.Claim()
	require.NoError(t, err)
	require.NoError(t, env.queue.Complete(entry.JobID))
	require.NoError(t, env.tracker.Delete(entry.JobID))

	updated, err := env.svc.Edit(1, video.ID, EditPatch{}, ptr(env.tempUpload(t, "v2.mp4")))
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusWaiting, updated.Status)
}

func TestDeleteCancelsQueuedJob(t *testing.T) {
	env := newVideoEnv(t, EditPolicySupersede)
	video, err := env.svc.Publish(1, env.tempUpload(t, "clip.mp4"), "Clip", "", domain.VisibilityPublic)
	require.NoError(t, err)

	outputDir := filepath.Join(env.outputDir, video.UniqueFileName)
	require.NoError(t, os.MkdirAll(outputDir, 0755))

	require.NoError(t, env.svc.Delete(1, video.ID))

	_, err = env.store.Get(video.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Queued job was cancelled and untracked.
	job, err := env.queue.Claim()
	require.NoError(t, err)
	assert.Nil(t, job)
	_, err = env.tracker.FindByVideo(video.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Output dir and stashed upload are gone.
	_, statErr := os.Stat(outputDir)
	assert.True(t, os.IsNotExist(statErr))
	matches, err := filepath.Glob(filepath.Join(env.uploadDir, video.UniqueFileName+".*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDeleteWrongOwner(t *testing.T) {
	env := newVideoEnv(t, EditPolicySupersede)
	video, err := env.svc.Publish(1, env.tempUpload(t, "clip.mp4"), "Clip", "", domain.VisibilityPublic)
	require.NoError(t, err)

	err = env.svc.Delete(2, video.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.store.Get(video.ID)
	assert.NoError(t, err)
}

func TestWatch(t *testing.T) {
	env := newVideoEnv(t, EditPolicySupersede)

	publicFinished := domain.NewVideo(1, "Public", "", "a.mp4", "pub-1", domain.VisibilityPublic)
	publicFinished.MarkFinished([]string{"144p"}, 10, "pub-1")
	require.NoError(t, env.store.Save(publicFinished))

	privateFinished := domain.NewVideo(1, "Private", "", "b.mp4", "priv-1", domain.VisibilityPrivate)
	privateFinished.MarkFinished([]string{"144p"}, 10, "priv-1")
	require.NoError(t, env.store.Save(privateFinished))

	publicWaiting := domain.NewVideo(1, "Pending", "", "c.mp4", "pend-1", domain.VisibilityPublic)
	require.NoError(t, env.store.Save(publicWaiting))

	got, err := env.svc.Watch(publicFinished.ID)
	require.NoError(t, err)
	assert.Equal(t, publicFinished.ID, got.ID)

	_, err = env.svc.Watch(privateFinished.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.svc.Watch(publicWaiting.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.svc.Watch("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
