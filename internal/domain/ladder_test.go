package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLadder_Ascending(t *testing.T) {
	require.NotEmpty(t, DefaultLadder)
	for i := 1; i < len(DefaultLadder); i++ {
		prev, cur := DefaultLadder[i-1], DefaultLadder[i]
		assert.Less(t, prev.Width, cur.Width, "ladder must ascend by width")
		assert.Less(t, prev.Height, cur.Height, "ladder must ascend by height")
	}
}

func TestSelectRenditions(t *testing.T) {
	tests := []struct {
		name      string
		width     int
		height    int
		wantNames []string
	}{
		{
			name:   "4k source gets the full ladder",
			width:  3840,
			height: 2160,
			wantNames: []string{
				"144p", "240p", "360p", "480p", "720p", "1080p", "1440p", "4k",
			},
		},
		{
			name:   "8k source still gets the full ladder",
			width:  7680,
			height: 4320,
			wantNames: []string{
				"144p", "240p", "360p", "480p", "720p", "1080p", "1440p", "4k",
			},
		},
		{
			name:      "1080p source stops at 1080p",
			width:     1920,
			height:    1080,
			wantNames: []string{"144p", "240p", "360p", "480p", "720p", "1080p"},
		},
		{
			name:      "720p source stops at 720p",
			width:     1280,
			height:    720,
			wantNames: []string{"144p", "240p", "360p", "480p", "720p"},
		},
		{
			name:      "odd aspect ratio limited by height",
			width:     3840,
			height:    480,
			wantNames: []string{"144p", "240p", "360p", "480p"},
		},
		{
			name:      "tiny source selects nothing",
			width:     120,
			height:    90,
			wantNames: []string{},
		},
		{
			name:      "exactly the smallest rung",
			width:     256,
			height:    144,
			wantNames: []string{"144p"},
		},
		{
			name:      "one pixel under the smallest rung",
			width:     255,
			height:    144,
			wantNames: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectRenditions(DefaultLadder, tt.width, tt.height)
			assert.Equal(t, tt.wantNames, RungNames(got))
		})
	}
}

func TestSelectRenditions_Idempotent(t *testing.T) {
	first := SelectRenditions(DefaultLadder, 1920, 1080)
	second := SelectRenditions(DefaultLadder, 1920, 1080)
	assert.Equal(t, first, second)
}

func TestSelectRenditions_NeverUpscales(t *testing.T) {
	got := SelectRenditions(DefaultLadder, 640, 360)
	for _, rung := range got {
		assert.LessOrEqual(t, rung.Width, 640)
		assert.LessOrEqual(t, rung.Height, 360)
	}
}

func TestRungNames_Empty(t *testing.T) {
	assert.Equal(t, []string{}, RungNames(nil))
}
