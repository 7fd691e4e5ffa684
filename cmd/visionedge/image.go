package main

import (
	"fmt"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/swdee/go-visionedge/engine"
	"github.com/swdee/go-visionedge/export"
	"github.com/swdee/go-visionedge/filter"
	"github.com/swdee/go-visionedge/postprocess"
)

type imageOptions struct {
	input    string
	output   string
	format   string
	quality  int
	noScores bool
}

// imageResult is the JSON written for an image
type imageResult struct {
	Detections     []postprocess.Detection `json:"detections"`
	PrivacyApplied bool                    `json:"privacy_applied"`
	PrivacyFaces   int                     `json:"privacy_faces"`
}

// runImage detects objects on a still image, writing the detections to
// stdout and the annotated image to the output file
func (a *app) runImage(opts imageOptions) error {

	start := time.Now()

	img, err := imaging.Open(opts.input, imaging.AutoOrientation(true))

	if err != nil {
		return fmt.Errorf("error reading image %s: %w", opts.input, err)
	}

	objects := engine.NewObjectEngine(a.cfg, a.log, a.metrics)
	defer objects.Close()

	if !objects.Loaded() {
		return fmt.Errorf("%w: %s", engine.ErrNotLoaded, objects.State().Detail)
	}

	privacy := engine.NewPrivacyEngine(a.cfg, a.log, a.metrics)
	defer privacy.Close()

	img, applied, faces := privacy.AnonymizeImage(img)

	dets, err := objects.DetectImage(img)

	if err != nil {
		return err
	}

	if a.cfg.ActiveFilter != "" && a.cfg.ActiveFilter != filter.DefaultName {
		cfg, err := a.filters.Get(a.cfg.ActiveFilter)

		if err != nil {
			a.log.Warnf("Detection filter not applied: %v", err)
		} else {
			dets = filter.Apply(dets, cfg)
		}
	}

	if opts.output != "" {
		format, err := export.ParseFormat(opts.format)

		if err != nil {
			return err
		}

		style := export.DefaultStyle()
		style.ShowScores = !opts.noScores

		f, err := os.Create(opts.output)

		if err != nil {
			return fmt.Errorf("error creating output: %w", err)
		}

		err = export.NewAnnotator(style).EncodeTo(f, img, dets, format, opts.quality)
		cerr := f.Close()

		if err == nil {
			err = cerr
		}

		if err != nil {
			return err
		}

		a.log.Infof("Saved annotated image to %s", opts.output)
	}

	if dets == nil {
		dets = make([]postprocess.Detection, 0)
	}

	a.log.Infof("Detected %d objects in %s", len(dets), time.Since(start))

	return writeJSON("", os.Stdout, imageResult{
		Detections:     dets,
		PrivacyApplied: applied,
		PrivacyFaces:   faces,
	})
}
