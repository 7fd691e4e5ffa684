package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/interpolate"
	"gocv.io/x/gocv"
)

// DefaultFPS is used when a video does not report its frame rate
const DefaultFPS = 25.0

// Anonymizer obscures the faces on a BGR frame in place
type Anonymizer interface {
	Anonymize(img *gocv.Mat) (applied bool, faces int)
}

// RenderParams defines the inputs to RenderVideo
type RenderParams struct {
	// Source is the video the detections were produced from
	Source string
	// Detections are the key-frame detections of the inference phase
	Detections interpolate.FrameMap
	// DrawBoxes enables drawing of detections, when set the key-frame
	// detections are interpolated across every frame
	DrawBoxes bool
	// DrawLabels draws the label and score above each box
	DrawLabels bool
	// Anonymizer when not nil obscures faces on every frame
	Anonymizer Anonymizer
	// OutputDir is where the rendered file is written, the system temporary
	// directory when empty
	OutputDir string
	// FFmpeg is the name or path of the ffmpeg binary
	FFmpeg        string
	Font          Font
	LineThickness int
	Log           logs.Log
}

// DefaultRenderParams returns the default render parameters
func DefaultRenderParams() RenderParams {
	return RenderParams{
		DrawBoxes:     true,
		DrawLabels:    true,
		FFmpeg:        "ffmpeg",
		Font:          DefaultFont(),
		LineThickness: 2,
	}
}

// RenderResult describes a rendered video
type RenderResult struct {
	// Path is the rendered file
	Path string
	// Frames is the number of frames written
	Frames int
	// Encoded is true when the output was re-encoded to H.264
	Encoded bool
	// Warning is set when re-encoding failed and Path is the raw mp4v output
	Warning string
	// Duration is how long rendering took
	Duration time.Duration
}

// RenderVideo reads every frame of the source video in order, obscures faces,
// draws the detections and writes the frames to a new video which is then
// re-encoded for browser playback.  Cancellation is checked between frames,
// a cancelled render removes its partial output and returns ErrCancelled
func RenderVideo(ctx context.Context, p RenderParams) (RenderResult, error) {

	start := time.Now()
	log := p.Log

	if log == nil {
		log, _ = logs.NewLog()
	}

	if _, err := os.Stat(p.Source); err != nil {
		return RenderResult{}, fmt.Errorf("%w: %v", visionedge.ErrSourceUnavailable, err)
	}

	vc, err := gocv.VideoCaptureFile(p.Source)

	if err != nil {
		return RenderResult{}, fmt.Errorf("%w: cannot open video %s: %v",
			visionedge.ErrInvalidInput, p.Source, err)
	}

	defer vc.Close()

	if !vc.IsOpened() {
		return RenderResult{}, fmt.Errorf("%w: cannot open video %s",
			visionedge.ErrInvalidInput, p.Source)
	}

	width := int(vc.Get(gocv.VideoCaptureFrameWidth))
	height := int(vc.Get(gocv.VideoCaptureFrameHeight))
	fps := vc.Get(gocv.VideoCaptureFPS)
	total := int(vc.Get(gocv.VideoCaptureFrameCount))

	if fps <= 0 {
		fps = DefaultFPS
	}

	frames := p.Detections

	if p.DrawBoxes && total > 0 {
		frames = interpolate.Build(p.Detections, total)
	}

	tmp, err := os.CreateTemp(p.OutputDir, "visionedge_render_*.mp4")

	if err != nil {
		return RenderResult{}, fmt.Errorf("error creating render output: %w", err)
	}

	outPath := tmp.Name()
	tmp.Close()

	writer, err := gocv.VideoWriterFile(outPath, "mp4v", fps, width, height, true)

	if err != nil {
		os.Remove(outPath)
		return RenderResult{}, fmt.Errorf("error opening video writer: %w", err)
	}

	count, err := writeFrames(ctx, vc, writer, frames, p)
	writer.Close()

	if err != nil {
		os.Remove(outPath)
		return RenderResult{}, err
	}

	log.Infof("Video rendered frames=%d output=%s", count, outPath)

	res := RenderResult{
		Path:   outPath,
		Frames: count,
	}

	final, err := ReencodeH264(ctx, p.FFmpeg, outPath)

	if err != nil {
		res.Warning = fmt.Sprintf("serving raw mp4v output, it may not play in a browser: %v", err)
		log.Warnf("Re-encode of %s failed: %v", outPath, err)
	} else {
		res.Path = final
		res.Encoded = true
	}

	res.Duration = time.Since(start)

	return res, nil
}

// writeFrames copies frames from vc to writer applying privacy and drawing
func writeFrames(ctx context.Context, vc *gocv.VideoCapture, writer *gocv.VideoWriter,
	frames interpolate.FrameMap, p RenderParams) (int, error) {

	img := gocv.NewMat()
	defer img.Close()

	idx := 0

	for {
		if err := ctx.Err(); err != nil {
			return idx, errors.Join(visionedge.ErrCancelled, err)
		}

		if ok := vc.Read(&img); !ok || img.Empty() {
			break
		}

		// faces are detected fresh on every frame rather than interpolated
		if p.Anonymizer != nil {
			p.Anonymizer.Anonymize(&img)
		}

		if p.DrawBoxes {
			if dets := frames[idx]; len(dets) > 0 {
				DetectionBoxes(&img, dets, p.Font, p.LineThickness, p.DrawLabels)
			}
		}

		if err := writer.Write(img); err != nil {
			return idx, fmt.Errorf("error writing frame %d: %w", idx, err)
		}

		idx++
	}

	return idx, nil
}
