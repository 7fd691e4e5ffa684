// Package job runs asynchronous video jobs: sampled key-frame inference
// followed by optional rendering of an annotated copy of the video.
package job

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/postprocess"
	"github.com/swdee/go-visionedge/video"
)

var (
	// ErrNotFound is returned for an unknown job ID
	ErrNotFound = errors.New("job not found")
	// ErrNotDone is returned when a job has not finished inference
	ErrNotDone = errors.New("inference not done yet")
	// ErrRenderInProgress is returned when a render is already queued or
	// running for the job
	ErrRenderInProgress = errors.New("render already in progress")
	// ErrModelNotLoaded is the job error when the object model is unavailable
	ErrModelNotLoaded = errors.New("model not loaded")
)

// Status is the inference status of a job
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// RenderStatus is the status of the annotated video render of a job
type RenderStatus string

const (
	RenderNotStarted RenderStatus = "not_started"
	RenderQueued     RenderStatus = "queued"
	RenderRendering  RenderStatus = "rendering"
	RenderDone       RenderStatus = "done"
	RenderError      RenderStatus = "error"
)

// FrameResult holds the detections of a sampled frame
type FrameResult struct {
	video.FrameInfo
	Detections     []postprocess.Detection `json:"detections"`
	PrivacyApplied bool                    `json:"privacy_applied"`
	PrivacyFaces   int                     `json:"privacy_faces"`
	// skipped is set when the frame failed to decode
	skipped bool
}

// Summary aggregates the frame results of a job
type Summary struct {
	TotalFramesAnalysed int            `json:"total_frames_analysed"`
	TotalDetections     int            `json:"total_detections"`
	UniqueLabels        []string       `json:"unique_labels"`
	LabelCounts         map[string]int `json:"label_counts"`
	PrivacyTotalFaces   int            `json:"privacy_total_faces"`
}

// Result is the outcome of the inference phase of a job
type Result struct {
	JobID         string        `json:"job_id"`
	Status        Status        `json:"status"`
	VideoWidth    int           `json:"video_width"`
	VideoHeight   int           `json:"video_height"`
	FPS           float64       `json:"fps"`
	DurationMs    float64       `json:"duration_ms"`
	FrameInterval int           `json:"frame_interval"`
	Frames        []FrameResult `json:"frames"`
	Summary       Summary       `json:"summary"`
}

// Job is a snapshot of a video job
type Job struct {
	ID            string       `json:"job_id"`
	Status        Status       `json:"status"`
	Progress      float64      `json:"progress"`
	FramesDone    int          `json:"frames_done"`
	FramesTotal   int          `json:"frames_total"`
	Error         string       `json:"error,omitempty"`
	Result        *Result      `json:"-"`
	SourcePath    string       `json:"-"`
	RenderStatus  RenderStatus `json:"render_status"`
	RenderedPath  string       `json:"-"`
	RenderError   string       `json:"render_error,omitempty"`
	RenderWarning string       `json:"render_warning,omitempty"`
}

// newID returns a 12 hex character job ID
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// summarize aggregates frame results
func summarize(frames []FrameResult) Summary {

	s := Summary{
		TotalFramesAnalysed: len(frames),
		UniqueLabels:        make([]string, 0),
		LabelCounts:         make(map[string]int),
	}

	for _, fr := range frames {
		for _, det := range fr.Detections {
			s.LabelCounts[det.Label]++
		}

		s.TotalDetections += len(fr.Detections)
		s.PrivacyTotalFaces += fr.PrivacyFaces
	}

	for label := range s.LabelCounts {
		s.UniqueLabels = append(s.UniqueLabels, label)
	}

	sort.Strings(s.UniqueLabels)

	return s
}

// StageSource copies the video at path into a temporary file the job takes
// ownership of, as the source is deleted if inference fails
func StageSource(path string) (string, error) {

	if !video.IsVideoFile(path) {
		return "", fmt.Errorf("%w: unsupported video format %q, supported: "+
			"MP4, AVI, MOV, MKV, WebM", visionedge.ErrInvalidInput, filepath.Ext(path))
	}

	src, err := os.Open(path)

	if err != nil {
		return "", fmt.Errorf("%w: %v", visionedge.ErrSourceUnavailable, err)
	}

	defer src.Close()

	dst, err := os.CreateTemp("", "visionedge_*"+strings.ToLower(filepath.Ext(path)))

	if err != nil {
		return "", fmt.Errorf("error creating staged video: %w", err)
	}

	n, err := io.Copy(dst, src)
	cerr := dst.Close()

	if err == nil {
		err = cerr
	}

	if err == nil && n == 0 {
		err = fmt.Errorf("%w: empty video file", visionedge.ErrInvalidInput)
	}

	if err != nil {
		os.Remove(dst.Name())
		return "", err
	}

	return dst.Name(), nil
}
