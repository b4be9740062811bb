// Package ffmpeg drives ffprobe and ffmpeg. Argument vectors are built by
// pure functions so the exact invocation is testable without spawning
// anything.
package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/vodmill/vodmill/internal/domain"
)

// keyframeInterval pins a keyframe every 48 frames across all renditions so
// HLS segments cut at the same instants and players can switch mid-stream.
const keyframeInterval = "keyint=48:min-keyint=48:no-scenecut"

// segmentSeconds is the HLS segment duration passed to -hls_time.
const segmentSeconds = "4"

// BuildTranscodeArgs produces the ffmpeg argument vector that fans one input
// out into one HLS variant per rung, writing per-rung subdirectories of
// outputDir plus a top-level master.m3u8 naming each variant after its rung.
//
// When hasAudio is false every audio argument is omitted, not zeroed: ffmpeg
// rejects an -map [a0] for a stream that does not exist.
func BuildTranscodeArgs(inputPath, outputDir string, rungs []domain.Rung, hasAudio bool) []string {
	args := []string{"-i", inputPath}

	args = append(args, "-filter_complex", splitFilter(len(rungs), hasAudio))
	args = append(args, mapArgs(len(rungs), hasAudio)...)
	args = append(args, codecArgs(hasAudio)...)
	args = append(args, rungArgs(rungs)...)

	args = append(args,
		"-f", "hls",
		"-hls_time", segmentSeconds,
		"-hls_playlist_type", "vod",
		"-hls_segment_type", "mpegts",
		"-master_pl_name", "master.m3u8",
		"-var_stream_map", varStreamMap(rungs, hasAudio),
		"-hls_segment_filename", outputDir+"/%v/segment_%03d.ts",
		outputDir+"/%v/index.m3u8",
	)

	return args
}

// splitFilter builds the filter_complex graph: one split of the decoded
// video (and audio, when present) per rung.
func splitFilter(n int, hasAudio bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[0:v]split=%d", n)
	for i := range n {
		fmt.Fprintf(&b, "[v%d]", i)
	}
	if hasAudio {
		fmt.Fprintf(&b, ";[0:a]asplit=%d", n)
		for i := range n {
			fmt.Fprintf(&b, "[a%d]", i)
		}
	}
	return b.String()
}

func mapArgs(n int, hasAudio bool) []string {
	var args []string
	for i := range n {
		args = append(args, "-map", fmt.Sprintf("[v%d]", i))
		if hasAudio {
			args = append(args, "-map", fmt.Sprintf("[a%d]", i))
		}
	}
	return args
}

func codecArgs(hasAudio bool) []string {
	args := []string{
		"-x264opts", keyframeInterval,
		"-c:v", "libx264",
		"-preset", "medium",
	}
	if hasAudio {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}
	return args
}

// rungArgs emits the per-variant rate control and scaling options, indexed
// by output stream position.
func rungArgs(rungs []domain.Rung) []string {
	var args []string
	for i, rung := range rungs {
		args = append(args,
			fmt.Sprintf("-b:v:%d", i), rung.Bitrate,
			fmt.Sprintf("-s:v:%d", i), fmt.Sprintf("%dx%d", rung.Width, rung.Height),
			fmt.Sprintf("-maxrate:v:%d", i), rung.MaxRate,
			fmt.Sprintf("-bufsize:v:%d", i), rung.BufSize,
		)
	}
	return args
}

// varStreamMap tells the HLS muxer which streams form each variant and names
// the variant after its rung, which becomes the %v subdirectory.
func varStreamMap(rungs []domain.Rung, hasAudio bool) string {
	entries := make([]string, len(rungs))
	for i, rung := range rungs {
		if hasAudio {
			entries[i] = fmt.Sprintf("v:%d,a:%d,name:%s", i, i, rung.Name)
		} else {
			entries[i] = fmt.Sprintf("v:%d,name:%s", i, rung.Name)
		}
	}
	return strings.Join(entries, " ")
}

// ThumbnailArgs extracts the first frame of the input as a single image.
func ThumbnailArgs(inputPath, outputPath string) []string {
	return []string{
		"-ss", "00:00:00",
		"-i", inputPath,
		"-frames:v", "1",
		"-update", "1",
		"-y",
		outputPath,
	}
}

// ProbeArgs asks ffprobe for machine-readable stream and container metadata.
func ProbeArgs(inputPath string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		inputPath,
	}
}
