package domain

import (
	"database/sql"
	"fmt"
	"time"
)

type JobKind string

const (
	// JobKindTranscode is the first transcode of a freshly uploaded source.
	JobKindTranscode JobKind = "transcode"
	// JobKindRetranscode replaces the output of an earlier run after an edit
	// supplied a new source file.
	JobKindRetranscode JobKind = "retranscode"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Terminal reports whether the job has settled and will never run again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// JobDescriptor is the queue payload. Kind tags which fields are meaningful:
// PreviousOutputDir and ReplacementOriginalName are only set for retranscode
// jobs, where the worker removes the superseded output tree on success.
type JobDescriptor struct {
	Kind                    JobKind `json:"kind"`
	SourcePath              string  `json:"source_path"`
	OutputDir               string  `json:"output_dir"`
	VideoID                 string  `json:"video_id"`
	PreviousOutputDir       string  `json:"previous_output_dir,omitempty"`
	ReplacementOriginalName string  `json:"replacement_original_name,omitempty"`
}

func (d JobDescriptor) Validate() error {
	switch d.Kind {
	case JobKindTranscode:
		if d.PreviousOutputDir != "" || d.ReplacementOriginalName != "" {
			return fmt.Errorf("transcode descriptor carries retranscode fields")
		}
	case JobKindRetranscode:
		if d.PreviousOutputDir == "" {
			return fmt.Errorf("retranscode descriptor missing previous output dir")
		}
	default:
		return fmt.Errorf("unknown job kind %q", d.Kind)
	}
	if d.SourcePath == "" || d.OutputDir == "" || d.VideoID == "" {
		return fmt.Errorf("descriptor missing source, output dir, or video id")
	}
	return nil
}

type Job struct {
	ID           int64
	Descriptor   JobDescriptor
	Status       JobStatus
	ErrorMessage string
	Attempts     int64
	CreatedAt    time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
}

// TrackingEntry links a queued or running job to the video it affects, so
// deleting the video can cancel the job before a worker picks it up.
type TrackingEntry struct {
	JobID     int64
	VideoID   string
	CreatedAt time.Time
}
