package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/port"
)

// Runner executes ffprobe and ffmpeg as child processes. Cancellation and
// timeouts come from the caller's context; stderr is captured and folded
// into errors for diagnosis.
type Runner struct {
	ffmpegPath  string
	ffprobePath string
}

func NewRunner(ffmpegPath, ffprobePath string) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Runner{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

func (r *Runner) Probe(ctx context.Context, inputPath string) (*domain.ProbeResult, error) {
	cmd := exec.CommandContext(ctx, r.ffprobePath, ProbeArgs(inputPath)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &domain.CommandError{
			Stage:  domain.StageProbe,
			Tool:   r.ffprobePath,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	result, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, &domain.CommandError{
			Stage:  domain.StageProbe,
			Tool:   r.ffprobePath,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return result, nil
}

func parseProbeOutput(out []byte) (*domain.ProbeResult, error) {
	var result domain.ProbeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(result.Streams) == 0 {
		return nil, fmt.Errorf("ffprobe reported no streams")
	}
	return &result, nil
}

func (r *Runner) Transcode(ctx context.Context, inputPath, outputDir string, rungs []domain.Rung, hasAudio bool) error {
	if len(rungs) == 0 {
		return domain.ErrNoRenditions
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return r.runFFmpeg(ctx, domain.StageTranscode, BuildTranscodeArgs(inputPath, outputDir, rungs, hasAudio))
}

func (r *Runner) Thumbnail(ctx context.Context, inputPath, outputPath string) error {
	// Thumbnail may outrace Transcode into a fresh output directory.
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return r.runFFmpeg(ctx, domain.StageThumbnail, ThumbnailArgs(inputPath, outputPath))
}

func (r *Runner) runFFmpeg(ctx context.Context, stage string, args []string) error {
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &domain.CommandError{
			Stage:  stage,
			Tool:   r.ffmpegPath,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

var _ port.Transcoder = (*Runner)(nil)
