package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobDescriptor_Validate(t *testing.T) {
	valid := JobDescriptor{
		Kind:       JobKindTranscode,
		SourcePath: "/data/uploads/abc.mp4",
		OutputDir:  "/data/videos/abc",
		VideoID:    "vid-1",
	}
	assert.NoError(t, valid.Validate())

	retranscode := JobDescriptor{
		Kind:                    JobKindRetranscode,
		SourcePath:              "/data/uploads/def.mp4",
		OutputDir:               "/data/videos/def",
		VideoID:                 "vid-1",
		PreviousOutputDir:       "/data/videos/abc",
		ReplacementOriginalName: "newcut.mp4",
	}
	assert.NoError(t, retranscode.Validate())

	t.Run("unknown kind", func(t *testing.T) {
		d := valid
		d.Kind = "sideload"
		assert.Error(t, d.Validate())
	})

	t.Run("transcode with retranscode fields", func(t *testing.T) {
		d := valid
		d.PreviousOutputDir = "/data/videos/old"
		assert.Error(t, d.Validate())
	})

	t.Run("retranscode without previous output", func(t *testing.T) {
		d := retranscode
		d.PreviousOutputDir = ""
		assert.Error(t, d.Validate())
	})

	t.Run("missing video id", func(t *testing.T) {
		d := valid
		d.VideoID = ""
		assert.Error(t, d.Validate())
	})
}

func TestVideo_Lifecycle(t *testing.T) {
	v := NewVideo(7, "", "", "cat.mp4", "unique-1", "")

	assert.Equal(t, "Untitled Video", v.Title)
	assert.Equal(t, VisibilityPrivate, v.Visibility)
	assert.Equal(t, VideoStatusWaiting, v.Status)
	assert.Empty(t, v.AvailableResolutions)
	assert.False(t, v.Playable())

	v.MarkFinished([]string{"144p", "240p"}, 12.5, "unique-1")
	assert.Equal(t, VideoStatusFinished, v.Status)
	assert.Equal(t, 12.5, v.Duration)
	assert.True(t, v.Playable())

	v.MarkError(ErrNoRenditions)
	assert.Equal(t, VideoStatusError, v.Status)
	assert.Contains(t, v.ErrorMessage, "smallest ladder rung")
	assert.False(t, v.Playable())
}
