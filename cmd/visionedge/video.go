package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/swdee/go-visionedge/engine"
	"github.com/swdee/go-visionedge/job"
	"github.com/swdee/go-visionedge/render"
)

type videoOptions struct {
	input     string
	output    string
	interval  int
	maxFrames int
	render    bool
	boxes     bool
	labels    bool
	privacy   bool
}

// pollInterval is how often job progress is reported
const pollInterval = 500 * time.Millisecond

// runVideo runs a video job to completion, optionally rendering the
// annotated video afterwards
func (a *app) runVideo(ctx context.Context, opts videoOptions) error {

	start := time.Now()

	objects := engine.NewObjectEngine(a.cfg, a.log, a.metrics)
	defer objects.Close()

	privacy := engine.NewPrivacyEngine(a.cfg, a.log, a.metrics)
	defer privacy.Close()

	source, err := job.StageSource(opts.input)

	if err != nil {
		return err
	}

	// the manager has already removed it when inference failed
	defer os.Remove(source)

	renderParams := render.DefaultRenderParams()
	renderParams.OutputDir = os.TempDir()

	m := job.NewManager(job.Params{
		Video:   a.cfg.Video,
		Workers: a.cfg.PoolSize,
		Render:  renderParams,
	}, objects, privacy, a.filters, a.log, a.metrics)

	id, err := m.Submit(ctx, source, job.Options{
		FrameInterval: opts.interval,
		MaxFrames:     opts.maxFrames,
		FilterName:    a.cfg.ActiveFilter,
	})

	if err != nil {
		return err
	}

	j := a.waitFor(id, m, func(j job.Job) bool {
		return j.Status == job.StatusDone || j.Status == job.StatusError
	})

	if j.Status == job.StatusError {
		return fmt.Errorf("video job %s failed: %s", id, j.Error)
	}

	res, err := m.Result(id)

	if err != nil {
		return err
	}

	a.log.Infof("Video job %s analysed %d frames in %s", id,
		res.Summary.TotalFramesAnalysed, time.Since(start))

	if err := writeJSON(opts.output, os.Stdout, res); err != nil {
		return fmt.Errorf("error writing result: %w", err)
	}

	if !opts.render {
		return nil
	}

	err = m.Render(ctx, id, job.RenderOptions{
		Boxes:   opts.boxes,
		Labels:  opts.labels,
		Privacy: opts.privacy,
	})

	if err != nil {
		return err
	}

	j = a.waitFor(id, m, func(j job.Job) bool {
		return j.RenderStatus == job.RenderDone || j.RenderStatus == job.RenderError
	})

	if j.RenderStatus == job.RenderError {
		return fmt.Errorf("render of job %s failed: %s", id, j.RenderError)
	}

	if j.RenderWarning != "" {
		a.log.Warnf("%s", j.RenderWarning)
	}

	a.log.Infof("Rendered video saved to %s", j.RenderedPath)

	return nil
}

// waitFor polls the job reporting progress until finished returns true
func (a *app) waitFor(id string, m *job.Manager, finished func(j job.Job) bool) job.Job {

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		j, err := m.Get(id)

		if err != nil || finished(j) {
			m.Wait()
			j, _ = m.Get(id)
			return j
		}

		a.log.Infof("Job %s %s %d/%d frames (%.0f%%) render=%s", id, j.Status,
			j.FramesDone, j.FramesTotal, j.Progress*100, j.RenderStatus)

		<-ticker.C
	}
}
