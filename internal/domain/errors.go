package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrNoRenditions means the source is smaller than the smallest ladder
	// rung. The selector returning nothing is a legitimate output; invoking
	// the engine with an empty target list is not, so the job fails with this.
	ErrNoRenditions = errors.New("source smaller than smallest ladder rung")
	// ErrJobActive is returned when an edit supplies a new file while a
	// previous job for the video is still tracked and policy forbids
	// superseding it.
	ErrJobActive = errors.New("a transcoding job is already active for this video")
)

// Pipeline stages, used to classify external tool failures.
const (
	StageProbe     = "probe"
	StageTranscode = "transcode"
	StageThumbnail = "thumbnail"
)

// CommandError wraps a failed external tool invocation, keeping the tool's
// diagnostic stderr so it survives into the video's error message.
type CommandError struct {
	Stage  string
	Tool   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %s failed: %v", e.Stage, e.Tool, e.Err)
	if tail := stderrTail(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// stderrTail keeps the last few lines of tool output. ffmpeg prints its
// actual diagnosis at the end, after pages of stream banners.
func stderrTail(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}
	const maxLen = 2048
	if len(stderr) > maxLen {
		stderr = stderr[len(stderr)-maxLen:]
	}
	return stderr
}
