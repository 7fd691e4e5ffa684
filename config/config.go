// Package config resolves runtime settings from VISION_* environment
// variables.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/anonymize"
	"github.com/swdee/go-visionedge/postprocess"
	"github.com/swdee/go-visionedge/video"
)

// LetterboxMode selects the resize used by the privacy model
type LetterboxMode int

const (
	// LetterboxAuto letterboxes square model inputs and stretches others
	LetterboxAuto LetterboxMode = iota
	// LetterboxOn always letterboxes
	LetterboxOn
	// LetterboxOff always stretches
	LetterboxOff
)

// Use reports whether a model with the given input size is letterboxed
func (m LetterboxMode) Use(inW, inH int) bool {
	switch m {
	case LetterboxOn:
		return true
	case LetterboxOff:
		return false
	default:
		return inW == inH
	}
}

// Privacy defines the face anonymization settings
type Privacy struct {
	// Enabled turns on face anonymization
	Enabled bool
	// ModelPath is the face model bundle directory or model file
	ModelPath string
	// MinScore is the minimum face score, only used when MinScoreSet is true
	// otherwise the default for the model variant applies
	MinScore    float32
	MinScoreSet bool
	// NMSThreshold is the IoU above which overlapping faces are suppressed
	NMSThreshold float32
	// ScoreColumn is the face class column of a two tensor face model
	ScoreColumn int
	Letterbox   LetterboxMode
	Anonymize   anonymize.Params
}

// Config holds all runtime settings
type Config struct {
	// ModelPath is the object detection bundle directory or model file
	ModelPath string
	// ORTLibrary is the path to the ONNX Runtime shared library, empty uses
	// the platform search path
	ORTLibrary string
	Runtime    visionedge.RuntimeOptions
	// PoolSize is the number of sessions opened per model
	PoolSize int
	Privacy  Privacy
	Video    video.Params
	// FiltersPath is the detection filters file
	FiltersPath string
	// ActiveFilter is the name of the filter applied when none is requested
	ActiveFilter string
}

// DefaultConfig returns the settings used when no environment variables
// are set
func DefaultConfig() Config {
	return Config{
		Runtime:  visionedge.DefaultRuntimeOptions(),
		PoolSize: 1,
		Privacy: Privacy{
			MinScore:     postprocess.DefaultFaceMinScore,
			NMSThreshold: postprocess.DefaultFaceNMSThreshold,
			ScoreColumn:  postprocess.DefaultScoreColumn,
			Letterbox:    LetterboxAuto,
			Anonymize:    anonymize.DefaultParams(),
		},
		Video:       video.DefaultParams(),
		FiltersPath: "filters.json",
	}
}

// FromEnv returns DefaultConfig overridden by the VISION_* environment
// variables.  Values that fail to parse keep their default
func FromEnv() Config {
	return fromLookup(os.LookupEnv)
}

// fromLookup builds the config from the given environment lookup
func fromLookup(lookup func(string) (string, bool)) Config {

	e := env{lookup: lookup}
	c := DefaultConfig()

	c.ModelPath = e.str("VISION_MODEL_PATH", c.ModelPath)
	c.ORTLibrary = e.str("VISION_ORT_LIBRARY", c.ORTLibrary)
	c.PoolSize = max(1, e.intVal("VISION_POOL_SIZE", c.PoolSize))
	c.FiltersPath = e.str("VISION_FILTERS_PATH", c.FiltersPath)
	c.ActiveFilter = e.str("VISION_ACTIVE_FILTER", c.ActiveFilter)

	if v, ok := e.get("VISION_ORT_PROVIDERS"); ok {
		c.Runtime.Providers = splitList(v)

		if len(c.Runtime.Providers) == 0 {
			c.Runtime.Providers = []string{visionedge.ProviderCPU}
		}
	}

	c.Runtime.OpenVINODeviceType = e.str("VISION_OPENVINO_DEVICE_TYPE", c.Runtime.OpenVINODeviceType)
	c.Runtime.OpenVINOCacheDir = e.str("VISION_OPENVINO_CACHE_DIR", c.Runtime.OpenVINOCacheDir)
	c.Runtime.OpenVINOLoadConfig = e.str("VISION_OPENVINO_LOAD_CONFIG", c.Runtime.OpenVINOLoadConfig)

	p := &c.Privacy
	p.Enabled = Truthy(e.str("VISION_PRIVACY_FACE_BLUR", "0"))
	p.ModelPath = e.str("VISION_PRIVACY_MODEL_PATH", p.ModelPath)

	if v, ok := e.get("VISION_PRIVACY_MIN_SCORE"); ok {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			p.MinScore = float32(f)
			p.MinScoreSet = true
		}
	}

	p.NMSThreshold = e.float32Val("VISION_PRIVACY_NMS_IOU", p.NMSThreshold)
	p.ScoreColumn = e.intVal("VISION_PRIVACY_SCORE_COLUMN", p.ScoreColumn)

	if v, ok := e.get("VISION_PRIVACY_LETTERBOX"); ok {
		if Truthy(v) {
			p.Letterbox = LetterboxOn
		} else {
			p.Letterbox = LetterboxOff
		}
	}

	p.Anonymize.Mode = anonymize.ParseMode(e.str("VISION_PRIVACY_MODE", p.Anonymize.Mode.String()))
	p.Anonymize.BlurRadius = e.floatVal("VISION_PRIVACY_BLUR_RADIUS", p.Anonymize.BlurRadius)
	p.Anonymize.PixelateSize = e.intVal("VISION_PRIVACY_PIXELATE_SIZE", p.Anonymize.PixelateSize)
	p.Anonymize.Margin = e.float32Val("VISION_PRIVACY_MARGIN", p.Anonymize.Margin)

	c.Video.FrameInterval = e.intVal("VISION_VIDEO_FRAME_INTERVAL", c.Video.FrameInterval)
	c.Video.MaxFrames = e.intVal("VISION_VIDEO_MAX_FRAMES", c.Video.MaxFrames)

	return c
}

// Truthy reports whether s is one of 1, true, yes, y or on ignoring case
// and surrounding space
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	}

	return false
}

// splitList splits a comma separated list dropping empty entries
func splitList(s string) []string {

	out := make([]string, 0)

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// env reads typed values from an environment lookup, blank values are
// treated as unset
type env struct {
	lookup func(string) (string, bool)
}

func (e env) get(key string) (string, bool) {

	v, ok := e.lookup(key)

	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}

	return strings.TrimSpace(v), true
}

func (e env) str(key, def string) string {

	if v, ok := e.get(key); ok {
		return v
	}

	return def
}

func (e env) intVal(key string, def int) int {

	if v, ok := e.get(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}

func (e env) floatVal(key string, def float64) float64 {

	if v, ok := e.get(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}

	return def
}

func (e env) float32Val(key string, def float32) float32 {
	return float32(e.floatVal(key, float64(def)))
}
