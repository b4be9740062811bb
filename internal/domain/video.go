package domain

import (
	"time"

	"github.com/google/uuid"
)

type VideoStatus string

const (
	VideoStatusWaiting    VideoStatus = "waiting"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusFinished   VideoStatus = "finished"
	VideoStatusError      VideoStatus = "error"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Video is the persistent record tracked through the transcoding lifecycle.
// AvailableResolutions names the ladder rungs produced by the last successful
// run; while a re-transcode is waiting or processing it still describes the
// previous output, so playback keeps working until the new job lands.
type Video struct {
	ID                   string      `json:"id"`
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	OriginalFileName     string      `json:"original_file_name"`
	UniqueFileName       string      `json:"unique_file_name"`
	OwnerID              int64       `json:"-"`
	Status               VideoStatus `json:"status"`
	Visibility           Visibility  `json:"visibility"`
	AvailableResolutions []string    `json:"available_resolutions"`
	Duration             float64     `json:"duration"`
	ErrorMessage         string      `json:"error_message,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

func NewVideo(ownerID int64, title, description, originalFileName, uniqueFileName string, visibility Visibility) *Video {
	if title == "" {
		title = "Untitled Video"
	}
	if visibility == "" {
		visibility = VisibilityPrivate
	}
	now := time.Now()
	return &Video{
		ID:                   uuid.NewString(),
		Title:                title,
		Description:          description,
		OriginalFileName:     originalFileName,
		UniqueFileName:       uniqueFileName,
		OwnerID:              ownerID,
		Status:               VideoStatusWaiting,
		Visibility:           visibility,
		AvailableResolutions: []string{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// MarkFinished records the result of a successful transcode run.
func (v *Video) MarkFinished(resolutions []string, duration float64, uniqueFileName string) {
	v.Status = VideoStatusFinished
	v.AvailableResolutions = resolutions
	v.Duration = duration
	v.UniqueFileName = uniqueFileName
	v.ErrorMessage = ""
}

func (v *Video) MarkError(err error) {
	v.Status = VideoStatusError
	v.ErrorMessage = err.Error()
}

// Playable reports whether the video can be served to viewers.
func (v *Video) Playable() bool {
	return v.Status == VideoStatusFinished && len(v.AvailableResolutions) > 0
}

func (s VideoStatus) Valid() bool {
	switch s {
	case VideoStatusWaiting, VideoStatusProcessing, VideoStatusFinished, VideoStatusError:
		return true
	}
	return false
}

func (vis Visibility) Valid() bool {
	return vis == VisibilityPublic || vis == VisibilityPrivate
}
