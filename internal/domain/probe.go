package domain

import (
	"strconv"
)

type ProbeFormat struct {
	FormatName string            `json:"format_name"`
	FormatLong string            `json:"format_long_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	NbStreams  int               `json:"nb_streams"`
	Tags       map[string]string `json:"tags"`
}

type ProbeStream struct {
	Index         int               `json:"index"`
	CodecType     string            `json:"codec_type"`
	CodecName     string            `json:"codec_name"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	PixFmt        string            `json:"pix_fmt"`
	RFrameRate    string            `json:"r_frame_rate"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	Duration      string            `json:"duration"`
	BitRate       string            `json:"bit_rate"`
	SampleRate    string            `json:"sample_rate"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	Tags          map[string]string `json:"tags"`
}

type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

func (p *ProbeResult) VideoStream() *ProbeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

func (p *ProbeResult) HasAudio() bool {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return true
		}
	}
	return false
}

// SourceInfo is the subset of probed metadata the pipeline acts on.
type SourceInfo struct {
	Width    int
	Height   int
	HasAudio bool
	Duration float64
}

// Source condenses the probe into the dimensions, audio presence, and
// duration used for rendition selection. Returns ErrNoVideoStream when the
// container has no decodable video stream.
func (p *ProbeResult) Source() (SourceInfo, error) {
	vs := p.VideoStream()
	if vs == nil {
		return SourceInfo{}, ErrNoVideoStream
	}
	return SourceInfo{
		Width:    vs.Width,
		Height:   vs.Height,
		HasAudio: p.HasAudio(),
		Duration: ParseDuration(p.Format.Duration),
	}, nil
}

// ParseDuration converts ffprobe's duration string (seconds) to a float.
// Missing or "N/A" durations come back as 0.
func ParseDuration(durationStr string) float64 {
	if durationStr == "" || durationStr == "N/A" {
		return 0
	}
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0
	}
	return duration
}
