package port

import (
	"context"

	"github.com/vodmill/vodmill/internal/domain"
)

// Transcoder is the boundary to the external media engine. Every method
// spawns one external process and honors ctx cancellation.
type Transcoder interface {
	Probe(ctx context.Context, inputPath string) (*domain.ProbeResult, error)
	Transcode(ctx context.Context, inputPath, outputDir string, rungs []domain.Rung, hasAudio bool) error
	Thumbnail(ctx context.Context, inputPath, outputPath string) error
}
