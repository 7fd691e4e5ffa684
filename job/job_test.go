package job

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/postprocess"
	"github.com/swdee/go-visionedge/video"
)

func TestNewID(t *testing.T) {

	a := newID()
	b := newID()

	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)

	_, err := hex.DecodeString(a)
	assert.NoError(t, err)
}

func TestSummarize(t *testing.T) {

	frames := []FrameResult{
		{
			FrameInfo:    video.FrameInfo{Index: 0},
			Detections:   []postprocess.Detection{{Label: "dog"}, {Label: "cat"}},
			PrivacyFaces: 2,
		},
		{
			FrameInfo:  video.FrameInfo{Index: 5},
			Detections: []postprocess.Detection{{Label: "dog"}},
		},
	}

	s := summarize(frames)

	assert.Equal(t, 2, s.TotalFramesAnalysed)
	assert.Equal(t, 3, s.TotalDetections)
	assert.Equal(t, []string{"cat", "dog"}, s.UniqueLabels)
	assert.Equal(t, map[string]int{"dog": 2, "cat": 1}, s.LabelCounts)
	assert.Equal(t, 2, s.PrivacyTotalFaces)

	empty := summarize(nil)
	assert.Equal(t, []string{}, empty.UniqueLabels)
}

func TestStageSource(t *testing.T) {

	dir := t.TempDir()

	clip := filepath.Join(dir, "Clip.MP4")
	require.NoError(t, os.WriteFile(clip, []byte("video"), 0644))

	staged, err := StageSource(clip)
	require.NoError(t, err)
	defer os.Remove(staged)

	assert.Equal(t, ".mp4", filepath.Ext(staged))

	data, err := os.ReadFile(staged)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))

	_, err = StageSource(filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, visionedge.ErrInvalidInput)

	empty := filepath.Join(dir, "empty.mov")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	_, err = StageSource(empty)
	assert.ErrorIs(t, err, visionedge.ErrInvalidInput)

	_, err = StageSource(filepath.Join(dir, "missing.avi"))
	assert.ErrorIs(t, err, visionedge.ErrSourceUnavailable)
}
