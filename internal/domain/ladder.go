package domain

// Rung is one candidate rendition in the resolution ladder. Bitrate fields
// keep ffmpeg's "800k" notation since they pass straight into the argument
// vector.
type Rung struct {
	Name    string
	Width   int
	Height  int
	Bitrate string
	MaxRate string
	BufSize string
}

// DefaultLadder is the fixed rendition ladder, ascending by resolution.
// Changing a deployed ladder never rewrites already-finished videos; their
// AvailableResolutions keep naming the rungs that were produced.
var DefaultLadder = []Rung{
	{Name: "144p", Width: 256, Height: 144, Bitrate: "200k", MaxRate: "214k", BufSize: "300k"},
	{Name: "240p", Width: 426, Height: 240, Bitrate: "400k", MaxRate: "428k", BufSize: "600k"},
	{Name: "360p", Width: 640, Height: 360, Bitrate: "800k", MaxRate: "856k", BufSize: "1200k"},
	{Name: "480p", Width: 854, Height: 480, Bitrate: "1500k", MaxRate: "1605k", BufSize: "2500k"},
	{Name: "720p", Width: 1280, Height: 720, Bitrate: "3000k", MaxRate: "3210k", BufSize: "4500k"},
	{Name: "1080p", Width: 1920, Height: 1080, Bitrate: "5000k", MaxRate: "5350k", BufSize: "7500k"},
	{Name: "1440p", Width: 2560, Height: 1440, Bitrate: "8000k", MaxRate: "8560k", BufSize: "12000k"},
	{Name: "4k", Width: 3840, Height: 2160, Bitrate: "15000k", MaxRate: "16000k", BufSize: "20000k"},
}

// SelectRenditions returns the rungs to produce for a source of the given
// dimensions: every rung that fits inside the source on both axes, in ladder
// order. Sources smaller than the smallest rung yield an empty slice; the
// caller must treat that as "nothing to transcode", never upscale.
func SelectRenditions(ladder []Rung, srcWidth, srcHeight int) []Rung {
	var selected []Rung
	for _, rung := range ladder {
		if rung.Width <= srcWidth && rung.Height <= srcHeight {
			selected = append(selected, rung)
		}
	}
	return selected
}

// RungNames maps rungs to their names, preserving order.
func RungNames(rungs []Rung) []string {
	names := make([]string, len(rungs))
	for i, r := range rungs {
		names[i] = r.Name
	}
	return names
}
