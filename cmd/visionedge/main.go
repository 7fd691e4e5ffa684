// Command visionedge runs object detection with optional face anonymization
// on still images and videos using ONNX Runtime.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/config"
	"github.com/swdee/go-visionedge/filter"
	"github.com/swdee/go-visionedge/metrics"
)

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what the sub-commands share
type app struct {
	cfg     config.Config
	log     logs.Log
	metrics *metrics.Metrics
	filters *filter.Store
}

func main() {
	parser := argparse.NewParser("visionedge", "Object detection and face anonymization on images and video")
	model := parser.String("m", "model", &argparse.Options{Help: "Object model bundle directory or model.onnx, overrides VISION_MODEL_PATH"})
	privacyModel := parser.String("", "privacy-model", &argparse.Options{Help: "Face model bundle directory or model.onnx, overrides VISION_PRIVACY_MODEL_PATH"})
	blur := parser.Flag("b", "blur", &argparse.Options{Help: "Obscure faces, overrides VISION_PRIVACY_FACE_BLUR"})
	filterName := parser.String("f", "filter", &argparse.Options{Help: "Detection filter name, overrides VISION_ACTIVE_FILTER"})
	showMetrics := parser.Flag("", "metrics", &argparse.Options{Help: "Print metrics when done"})

	imageCmd := parser.NewCommand("image", "Detect objects on a still image")
	imgIn := imageCmd.String("i", "input", &argparse.Options{Help: "Input image file", Required: true})
	imgOut := imageCmd.String("o", "output", &argparse.Options{Help: "Annotated output image file"})
	imgFormat := imageCmd.Selector("", "format", []string{"jpeg", "jpg", "png"}, &argparse.Options{Help: "Output format", Default: "jpeg"})
	imgQuality := imageCmd.Int("q", "quality", &argparse.Options{Help: "JPEG quality", Default: 90})
	imgNoScores := imageCmd.Flag("", "no-scores", &argparse.Options{Help: "Omit scores from labels"})

	videoCmd := parser.NewCommand("video", "Detect objects on sampled video frames")
	vidIn := videoCmd.String("i", "input", &argparse.Options{Help: "Input video file", Required: true})
	vidOut := videoCmd.String("o", "output", &argparse.Options{Help: "Result JSON file, stdout when not given"})
	interval := videoCmd.Int("n", "interval", &argparse.Options{Help: "Sample every N'th frame, overrides VISION_VIDEO_FRAME_INTERVAL", Default: 0})
	maxFrames := videoCmd.Int("", "max-frames", &argparse.Options{Help: "Maximum frames sampled, overrides VISION_VIDEO_MAX_FRAMES", Default: 0})
	fpsTarget := videoCmd.Float("", "fps-target", &argparse.Options{Help: "Sample at roughly this frame rate instead of an interval", Default: 0.0})
	doRender := videoCmd.Flag("r", "render", &argparse.Options{Help: "Render an annotated copy of the video"})
	noBoxes := videoCmd.Flag("", "no-boxes", &argparse.Options{Help: "Do not draw boxes on the rendered video"})
	noLabels := videoCmd.Flag("", "no-labels", &argparse.Options{Help: "Do not draw labels on the rendered video"})
	noPrivacy := videoCmd.Flag("", "no-privacy", &argparse.Options{Help: "Do not obscure faces on the rendered video"})

	queryCmd := parser.NewCommand("query", "Print the tensors of a model")
	queryModel := queryCmd.String("i", "input", &argparse.Options{Help: "Model bundle directory or model.onnx", Required: true})

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg := config.FromEnv()

	if *model != "" {
		cfg.ModelPath = *model
	}

	if *privacyModel != "" {
		cfg.Privacy.ModelPath = *privacyModel
	}

	if *blur {
		cfg.Privacy.Enabled = true
	}

	if *filterName != "" {
		cfg.ActiveFilter = *filterName
	}

	logger, err := logs.NewLog()
	check(err)

	a := &app{
		cfg:     cfg,
		log:     logger,
		metrics: metrics.New(),
		filters: filter.NewStore(cfg.FiltersPath, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case imageCmd.Happened():
		check(a.runImage(imageOptions{
			input:    *imgIn,
			output:   *imgOut,
			format:   *imgFormat,
			quality:  *imgQuality,
			noScores: *imgNoScores,
		}))

	case videoCmd.Happened():
		a.cfg.Video.FPSTarget = *fpsTarget

		check(a.runVideo(ctx, videoOptions{
			input:     *vidIn,
			output:    *vidOut,
			interval:  *interval,
			maxFrames: *maxFrames,
			render:    *doRender,
			boxes:     !*noBoxes,
			labels:    !*noLabels,
			privacy:   !*noPrivacy,
		}))

	case queryCmd.Happened():
		check(a.runQuery(*queryModel, os.Stdout))
	}

	if *showMetrics {
		a.printMetrics(os.Stdout)
	}
}

// runQuery prints the tensors of a model
func (a *app) runQuery(path string, w io.Writer) error {

	if err := visionedge.InitializeEnvironment(a.cfg.ORTLibrary); err != nil {
		return fmt.Errorf("error initializing onnx runtime: %w", err)
	}

	rt, err := visionedge.NewRuntime(visionedge.ResolveModelFile(path), a.cfg.Runtime)

	if err != nil {
		return err
	}

	defer rt.Close()

	return rt.Query(w)
}

// printMetrics writes the value of every metric
func (a *app) printMetrics(w io.Writer) {

	snap, err := a.metrics.Snapshot()

	if err != nil {
		a.log.Warnf("Error gathering metrics: %v", err)
		return
	}

	for _, name := range a.metrics.Names() {
		fmt.Fprintf(w, "%s %v\n", name, snap[name])
	}
}

// writeJSON writes v indented to the file at path, or w when path is empty
func writeJSON(path string, w io.Writer, v any) error {

	if path != "" {
		f, err := os.Create(path)

		if err != nil {
			return err
		}

		defer f.Close()
		w = f
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
