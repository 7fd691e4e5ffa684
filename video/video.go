// Package video samples frames from video files for inference.
package video

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/swdee/go-visionedge"
	"gocv.io/x/gocv"
)

// DefaultFPS is used when a video does not report its frame rate
const DefaultFPS = 25.0

// extensions are the file extensions treated as video
var extensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// IsVideoFile returns true if the path has a supported video extension
func IsVideoFile(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Params defines how frames are sampled from a video
type Params struct {
	// FrameInterval samples every N'th frame, values below 1 are treated as 1
	FrameInterval int
	// MaxFrames caps the number of frames sampled, 0 is unlimited
	MaxFrames int
	// FPSTarget when positive replaces FrameInterval with the interval that
	// samples the video at roughly this rate
	FPSTarget float64
}

// DefaultParams returns the default sampling parameters
func DefaultParams() Params {
	return Params{
		FrameInterval: 5,
		MaxFrames:     300,
	}
}

// Meta describes the source video
type Meta struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	TotalFrames int     `json:"total_frames"`
	DurationMs  float64 `json:"duration_ms"`
	Codec       string  `json:"codec"`
}

// FrameInfo describes a sampled frame
type FrameInfo struct {
	// Index is the zero based frame index in the source video
	Index int `json:"frame_index"`
	// TimestampMs is the frame position in milliseconds
	TimestampMs float64 `json:"timestamp_ms"`
}

// Extractor reads a video sequentially and yields every N'th frame
type Extractor struct {
	path     string
	params   Params
	interval int
	vc       *gocv.VideoCapture
	log      logs.Log
	idx      int
	yielded  int
}

// NewExtractor returns an Extractor for the video at path
func NewExtractor(path string, p Params, log logs.Log) *Extractor {
	return &Extractor{
		path:     path,
		params:   p,
		interval: max(1, p.FrameInterval),
		log:      log,
	}
}

// Open opens the video and returns its metadata
func (e *Extractor) Open() (Meta, error) {

	vc, err := gocv.VideoCaptureFile(e.path)

	if err != nil {
		return Meta{}, fmt.Errorf("%w: cannot open video %s: %v", visionedge.ErrInvalidInput, e.path, err)
	}

	if !vc.IsOpened() {
		vc.Close()
		return Meta{}, fmt.Errorf("%w: cannot open video %s", visionedge.ErrInvalidInput, e.path)
	}

	e.vc = vc

	fps := vc.Get(gocv.VideoCaptureFPS)

	if fps <= 0 {
		fps = DefaultFPS
	}

	meta := Meta{
		Width:       int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FPS:         fps,
		TotalFrames: int(vc.Get(gocv.VideoCaptureFrameCount)),
		Codec:       fourccString(int(vc.Get(gocv.VideoCaptureFOURCC))),
	}

	meta.DurationMs = float64(meta.TotalFrames) / fps * 1000

	e.interval = SampleInterval(e.params, fps)

	e.log.Infof("Video opened path=%s width=%d height=%d fps=%.2f total=%d interval=%d max=%d",
		filepath.Base(e.path), meta.Width, meta.Height, fps, meta.TotalFrames,
		e.interval, e.params.MaxFrames)

	return meta, nil
}

// Interval returns the frame interval in use, it is final after Open
func (e *Extractor) Interval() int {
	return e.interval
}

// Next reads frames until the next sampled one is in img and returns its
// info.  ok is false at the end of the video or once MaxFrames frames have
// been returned
func (e *Extractor) Next(img *gocv.Mat) (info FrameInfo, ok bool) {

	if e.vc == nil {
		return FrameInfo{}, false
	}

	if e.params.MaxFrames > 0 && e.yielded >= e.params.MaxFrames {
		return FrameInfo{}, false
	}

	for {
		if !e.vc.Read(img) || img.Empty() {
			return FrameInfo{}, false
		}

		idx := e.idx
		e.idx++

		if idx%e.interval != 0 {
			continue
		}

		e.yielded++

		return FrameInfo{
			Index:       idx,
			TimestampMs: e.vc.Get(gocv.VideoCapturePosMsec),
		}, true
	}
}

// Yielded returns the number of frames returned by Next
func (e *Extractor) Yielded() int {
	return e.yielded
}

// Close releases the video
func (e *Extractor) Close() error {

	if e.vc == nil {
		return nil
	}

	e.log.Debugf("Video extracted frames=%d from=%s", e.yielded, filepath.Base(e.path))

	err := e.vc.Close()
	e.vc = nil

	return err
}

// SampleInterval returns the frame interval for a video with the given
// frame rate.  A positive FPSTarget gives max(1, round(fps/target))
func SampleInterval(p Params, fps float64) int {

	if p.FPSTarget > 0 && fps > 0 {
		return max(1, int(math.RoundToEven(fps/p.FPSTarget)))
	}

	return max(1, p.FrameInterval)
}

// EstimateFrames returns the number of frames sampling a video of total
// frames will yield, capped by maxFrames when it is positive
func EstimateFrames(total, interval, maxFrames int) int {

	est := 0

	if interval > 0 && total > 0 {
		est = total / interval
	}

	if maxFrames > 0 && est > maxFrames {
		est = maxFrames
	}

	return est
}

// fourccString decodes a little endian FOURCC code, eg: "avc1"
func fourccString(fourcc int) string {

	if fourcc == 0 {
		return "unknown"
	}

	b := make([]byte, 4)

	for i := 0; i < 4; i++ {
		b[i] = byte((fourcc >> (8 * i)) & 0xFF)
	}

	return string(b)
}
