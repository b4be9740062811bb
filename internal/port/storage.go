package port

import "github.com/vodmill/vodmill/internal/domain"

type VideoStore interface {
	Save(v *domain.Video) error
	Get(id string) (*domain.Video, error)
	ListByOwner(ownerID int64) ([]*domain.Video, error)
	Delete(id string) error

	// UpdateMeta persists title, description, and visibility.
	UpdateMeta(v *domain.Video) error
	UpdateStatus(id string, status domain.VideoStatus, errMsg string) error
	// UpdateFinished persists the full result of a successful run:
	// resolutions, duration, unique filename, original filename, status.
	UpdateFinished(v *domain.Video) error

	// SearchPublic returns public finished videos whose title matches the
	// query, newest first.
	SearchPublic(query string) ([]*domain.Video, error)
}

// JobTracker is the durable jobID-to-videoID link used to cancel queued work
// when its video is deleted or superseded by an edit.
type JobTracker interface {
	Track(jobID int64, videoID string) error
	FindByVideo(videoID string) (*domain.TrackingEntry, error)
	Delete(jobID int64) error
}

type UserStore interface {
	CreateUser(username, passwordHash string) (*domain.User, error)
	GetUser(username string) (*domain.User, error)
	GetUserByID(id int64) (*domain.User, error)
}
