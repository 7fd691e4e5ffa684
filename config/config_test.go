package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/anonymize"
)

func lookupOf(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {

	c := fromLookup(lookupOf(nil))

	assert.Equal(t, DefaultConfig(), c)
	assert.Equal(t, []string{visionedge.ProviderCPU}, c.Runtime.Providers)
	assert.Equal(t, "CPU", c.Runtime.OpenVINODeviceType)
	assert.False(t, c.Privacy.Enabled)
	assert.False(t, c.Privacy.MinScoreSet)
	assert.Equal(t, 5, c.Video.FrameInterval)
	assert.Equal(t, 300, c.Video.MaxFrames)
	assert.Equal(t, anonymize.ModeBlur, c.Privacy.Anonymize.Mode)
	assert.Equal(t, 12.0, c.Privacy.Anonymize.BlurRadius)
	assert.Equal(t, 10, c.Privacy.Anonymize.PixelateSize)
}

func TestFromEnv(t *testing.T) {

	c := fromLookup(lookupOf(map[string]string{
		"VISION_MODEL_PATH":            "/models/yolo",
		"VISION_ORT_PROVIDERS":         "OpenVINOExecutionProvider, CPUExecutionProvider,",
		"VISION_OPENVINO_DEVICE_TYPE":  "GPU",
		"VISION_POOL_SIZE":             "4",
		"VISION_PRIVACY_FACE_BLUR":     " Yes ",
		"VISION_PRIVACY_MODEL_PATH":    "/models/ulfd",
		"VISION_PRIVACY_MIN_SCORE":     "0.3",
		"VISION_PRIVACY_MODE":          "pixelate",
		"VISION_PRIVACY_PIXELATE_SIZE": "16",
		"VISION_PRIVACY_LETTERBOX":     "off",
		"VISION_PRIVACY_SCORE_COLUMN":  "0",
		"VISION_VIDEO_FRAME_INTERVAL":  "2",
		"VISION_VIDEO_MAX_FRAMES":      "bad",
		"VISION_FILTERS_PATH":          "/etc/vision/filters.json",
	}))

	assert.Equal(t, "/models/yolo", c.ModelPath)
	assert.Equal(t, []string{visionedge.ProviderOpenVINO, visionedge.ProviderCPU}, c.Runtime.Providers)
	assert.Equal(t, "GPU", c.Runtime.OpenVINODeviceType)
	assert.Equal(t, 4, c.PoolSize)
	assert.True(t, c.Privacy.Enabled)
	assert.Equal(t, "/models/ulfd", c.Privacy.ModelPath)
	assert.True(t, c.Privacy.MinScoreSet)
	assert.InDelta(t, 0.3, c.Privacy.MinScore, 1e-6)
	assert.Equal(t, anonymize.ModePixelate, c.Privacy.Anonymize.Mode)
	assert.Equal(t, 16, c.Privacy.Anonymize.PixelateSize)
	assert.Equal(t, LetterboxOff, c.Privacy.Letterbox)
	assert.Equal(t, 0, c.Privacy.ScoreColumn)
	assert.Equal(t, 2, c.Video.FrameInterval)
	// unparsable values keep the default
	assert.Equal(t, 300, c.Video.MaxFrames)
	assert.Equal(t, "/etc/vision/filters.json", c.FiltersPath)
}

func TestBlankValuesUnset(t *testing.T) {

	c := fromLookup(lookupOf(map[string]string{
		"VISION_PRIVACY_MIN_SCORE": "  ",
		"VISION_PRIVACY_LETTERBOX": "",
		"VISION_ORT_PROVIDERS":     " , ",
		"VISION_POOL_SIZE":         "0",
	}))

	assert.False(t, c.Privacy.MinScoreSet)
	assert.Equal(t, LetterboxAuto, c.Privacy.Letterbox)
	assert.Equal(t, []string{visionedge.ProviderCPU}, c.Runtime.Providers)
	assert.Equal(t, 1, c.PoolSize)
}

func TestTruthy(t *testing.T) {

	for _, v := range []string{"1", "true", "TRUE", "yes", "y", "on", " On "} {
		assert.True(t, Truthy(v), v)
	}

	for _, v := range []string{"", "0", "false", "no", "off", "enabled"} {
		assert.False(t, Truthy(v), v)
	}
}

func TestLetterboxModeUse(t *testing.T) {
	assert.True(t, LetterboxAuto.Use(320, 320))
	assert.False(t, LetterboxAuto.Use(320, 240))
	assert.True(t, LetterboxOn.Use(320, 240))
	assert.False(t, LetterboxOff.Use(640, 640))
}
