package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cyclopcam/logs"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/filter"
	"github.com/swdee/go-visionedge/interpolate"
	"github.com/swdee/go-visionedge/metrics"
	"github.com/swdee/go-visionedge/postprocess"
	"github.com/swdee/go-visionedge/render"
	"github.com/swdee/go-visionedge/video"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// ObjectDetector runs object detection on a BGR frame
type ObjectDetector interface {
	Loaded() bool
	Detect(img gocv.Mat) ([]postprocess.Detection, error)
}

// FilterSource resolves a named detection filter
type FilterSource interface {
	Get(name string) (filter.Config, error)
}

// FrameSource yields the sampled frames of a video
type FrameSource interface {
	Open() (video.Meta, error)
	Interval() int
	Next(img *gocv.Mat) (video.FrameInfo, bool)
	Close() error
}

// Options are the per job overrides of the inference phase, zero values use
// the manager defaults
type Options struct {
	FrameInterval int
	MaxFrames     int
	// FilterName is the detection filter applied to every frame, empty or
	// "default" applies none
	FilterName string
}

// RenderOptions selects what is drawn on the rendered video
type RenderOptions struct {
	Boxes   bool
	Labels  bool
	Privacy bool
}

// DefaultRenderOptions enables boxes, labels and privacy
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Boxes:   true,
		Labels:  true,
		Privacy: true,
	}
}

// Params defines the Manager settings
type Params struct {
	Video video.Params
	// Workers is the number of frames inferred concurrently
	Workers int
	// Render is the template for render parameters, Source, Detections and
	// the drawing options are set per job
	Render render.RenderParams
}

// Manager runs video jobs in the background and keeps their state in memory
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	wg       sync.WaitGroup
	params   Params
	detector ObjectDetector
	privacy  render.Anonymizer
	filters  FilterSource
	log      logs.Log
	metrics  *metrics.Metrics
	// newSource and renderVideo are swapped in tests
	newSource   func(path string, p video.Params, log logs.Log) FrameSource
	renderVideo func(ctx context.Context, p render.RenderParams) (render.RenderResult, error)
}

// NewManager returns a Manager running jobs with the given detector.
// privacy and filters may be nil
func NewManager(p Params, detector ObjectDetector, privacy render.Anonymizer,
	filters FilterSource, log logs.Log, m *metrics.Metrics) *Manager {

	if m == nil {
		m = metrics.New()
	}

	p.Workers = max(1, p.Workers)

	return &Manager{
		jobs:     make(map[string]*Job),
		params:   p,
		detector: detector,
		privacy:  privacy,
		filters:  filters,
		log:      log,
		metrics:  m,
		newSource: func(path string, p video.Params, log logs.Log) FrameSource {
			return video.NewExtractor(path, p, log)
		},
		renderVideo: render.RenderVideo,
	}
}

// update applies fn to the job under lock
func (m *Manager) update(id string, fn func(j *Job)) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if j, ok := m.jobs[id]; ok {
		fn(j)
	}
}

// Get returns a snapshot of the job
func (m *Manager) Get(id string) (Job, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]

	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return *j, nil
}

// Result returns the inference result of a finished job
func (m *Manager) Result(id string) (*Result, error) {

	j, err := m.Get(id)

	if err != nil {
		return nil, err
	}

	switch j.Status {
	case StatusDone:
		return j.Result, nil
	case StatusError:
		return nil, errors.New(j.Error)
	}

	return nil, fmt.Errorf("%w: job still %s", ErrNotDone, j.Status)
}

// Wait blocks until all running job phases have finished
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Submit starts the inference phase for the video at source and returns the
// job ID.  The job takes ownership of source, it is kept for rendering and
// deleted only when inference fails
func (m *Manager) Submit(ctx context.Context, source string, opts Options) (string, error) {

	if _, err := os.Stat(source); err != nil {
		return "", fmt.Errorf("%w: %v", visionedge.ErrSourceUnavailable, err)
	}

	id := newID()

	m.mu.Lock()
	m.jobs[id] = &Job{
		ID:           id,
		Status:       StatusQueued,
		SourcePath:   source,
		RenderStatus: RenderNotStarted,
	}
	m.mu.Unlock()

	m.metrics.JobsStarted.Add(1)
	m.wg.Add(1)

	go m.runInfer(ctx, id, source, opts)

	return id, nil
}

// runInfer is the inference phase worker
func (m *Manager) runInfer(ctx context.Context, id, source string, opts Options) {

	defer m.wg.Done()

	m.metrics.ActiveJobs.Add(1)
	defer m.metrics.ActiveJobs.Add(-1)

	m.update(id, func(j *Job) { j.Status = StatusProcessing })

	res, err := m.infer(ctx, id, source, opts)

	if err != nil {
		m.log.Errorf("Video job %s failed: %v", id, err)
		m.metrics.JobsFailed.Add(1)

		m.update(id, func(j *Job) {
			j.Status = StatusError
			j.Error = err.Error()
		})

		if rmErr := os.Remove(source); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			m.log.Warnf("Error removing source of failed job %s: %v", id, rmErr)
		}

		return
	}

	m.metrics.JobsCompleted.Add(1)

	m.update(id, func(j *Job) {
		j.Status = StatusDone
		j.Progress = 1
		j.FramesDone = len(res.Frames)
		j.Result = res
	})

	m.log.Infof("Video job %s done frames=%d detections=%d", id,
		res.Summary.TotalFramesAnalysed, res.Summary.TotalDetections)
}

// resolveFilter returns the named filter and whether one applies
func (m *Manager) resolveFilter(name string) (filter.Config, bool) {

	if name == "" || name == filter.DefaultName || m.filters == nil {
		return filter.Config{}, false
	}

	cfg, err := m.filters.Get(name)

	if err != nil {
		m.log.Warnf("Detection filter not applied: %v", err)
		return filter.Config{}, false
	}

	return cfg, true
}

// infer samples the source video and runs detection on each sampled frame.
// Frames are read sequentially and inferred concurrently, results are kept
// in frame order
func (m *Manager) infer(ctx context.Context, id, source string, opts Options) (*Result, error) {

	if m.detector == nil || !m.detector.Loaded() {
		return nil, ErrModelNotLoaded
	}

	params := m.params.Video

	if opts.FrameInterval > 0 {
		params.FrameInterval = opts.FrameInterval
	}

	if opts.MaxFrames > 0 {
		params.MaxFrames = opts.MaxFrames
	}

	src := m.newSource(source, params, m.log)

	meta, err := src.Open()

	if err != nil {
		return nil, err
	}

	defer src.Close()

	estimated := video.EstimateFrames(meta.TotalFrames, src.Interval(), params.MaxFrames)

	m.update(id, func(j *Job) { j.FramesTotal = estimated })

	filterCfg, useFilter := m.resolveFilter(opts.FilterName)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.params.Workers)

	// slots is only appended to by this goroutine, workers write through
	// their own pointer
	slots := make([]*FrameResult, 0, estimated)
	var done atomic.Int64

	for gctx.Err() == nil {

		img := gocv.NewMat()
		info, ok := src.Next(&img)

		if !ok {
			img.Close()
			break
		}

		slot := &FrameResult{FrameInfo: info}
		slots = append(slots, slot)

		g.Go(func() error {
			defer img.Close()

			err := m.processFrame(img, slot, filterCfg, useFilter)

			if errors.Is(err, visionedge.ErrDecodeFailure) {
				m.log.Warnf("Video job %s skipping frame %d: %v", id, info.Index, err)
				m.metrics.FramesSkipped.Add(1)
				slot.skipped = true
				err = nil
			}

			if err != nil {
				return fmt.Errorf("frame %d: %w", info.Index, err)
			}

			n := int(done.Add(1))

			m.update(id, func(j *Job) {
				j.FramesDone = n
				j.Progress = min(float64(n)/float64(max(estimated, 1)), 1)
			})

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Join(visionedge.ErrCancelled, err)
	}

	frames := make([]FrameResult, 0, len(slots))

	for _, slot := range slots {
		if !slot.skipped {
			frames = append(frames, *slot)
		}
	}

	return &Result{
		JobID:         id,
		Status:        StatusDone,
		VideoWidth:    meta.Width,
		VideoHeight:   meta.Height,
		FPS:           meta.FPS,
		DurationMs:    meta.DurationMs,
		FrameInterval: src.Interval(),
		Frames:        frames,
		Summary:       summarize(frames),
	}, nil
}

// processFrame obscures faces then detects and filters objects on a frame
func (m *Manager) processFrame(img gocv.Mat, slot *FrameResult, cfg filter.Config,
	useFilter bool) error {

	if m.privacy != nil {
		slot.PrivacyApplied, slot.PrivacyFaces = m.privacy.Anonymize(&img)
	}

	dets, err := m.detector.Detect(img)

	if err != nil {
		return err
	}

	if useFilter {
		dets = filter.Apply(dets, cfg)
	}

	if dets == nil {
		dets = make([]postprocess.Detection, 0)
	}

	slot.Detections = dets

	return nil
}

// frameMap keys the detections of the sampled frames by frame index
func frameMap(frames []FrameResult) interpolate.FrameMap {

	fm := make(interpolate.FrameMap, len(frames))

	for _, fr := range frames {
		fm[fr.Index] = fr.Detections
	}

	return fm
}

// Render starts rendering an annotated copy of the source video of a
// finished job
func (m *Manager) Render(ctx context.Context, id string, opts RenderOptions) error {

	m.mu.Lock()

	j, ok := m.jobs[id]

	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if j.Status != StatusDone {
		m.mu.Unlock()
		return fmt.Errorf("%w: job %s is %s", ErrNotDone, id, j.Status)
	}

	if j.RenderStatus == RenderQueued || j.RenderStatus == RenderRendering {
		m.mu.Unlock()
		return fmt.Errorf("%w: job %s", ErrRenderInProgress, id)
	}

	if _, err := os.Stat(j.SourcePath); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: source video no longer available: %v",
			visionedge.ErrSourceUnavailable, err)
	}

	j.RenderStatus = RenderQueued
	j.RenderedPath = ""
	j.RenderError = ""
	j.RenderWarning = ""

	source := j.SourcePath
	frames := frameMap(j.Result.Frames)

	m.mu.Unlock()

	m.wg.Add(1)

	go m.runRender(ctx, id, source, frames, opts)

	return nil
}

// runRender is the render phase worker
func (m *Manager) runRender(ctx context.Context, id, source string,
	frames interpolate.FrameMap, opts RenderOptions) {

	defer m.wg.Done()

	m.update(id, func(j *Job) { j.RenderStatus = RenderRendering })

	fail := func(err error) {
		m.log.Errorf("Render of job %s failed: %v", id, err)
		m.metrics.RendersFailed.Add(1)

		m.update(id, func(j *Job) {
			j.RenderStatus = RenderError
			j.RenderError = err.Error()
		})
	}

	if _, err := os.Stat(source); err != nil {
		fail(fmt.Errorf("%w: source video no longer available", visionedge.ErrSourceUnavailable))
		return
	}

	p := m.params.Render
	p.Source = source
	p.Detections = frames
	p.DrawBoxes = opts.Boxes
	p.DrawLabels = opts.Labels
	p.Anonymizer = nil
	p.Log = m.log

	if opts.Privacy && m.privacy != nil {
		p.Anonymizer = m.privacy
	}

	res, err := m.renderVideo(ctx, p)

	if err != nil {
		fail(err)
		return
	}

	m.metrics.RendersCompleted.Add(1)

	if res.Warning != "" {
		m.metrics.RenderWarnings.Add(1)
	}

	m.update(id, func(j *Job) {
		j.RenderStatus = RenderDone
		j.RenderedPath = res.Path
		j.RenderWarning = res.Warning
	})

	m.log.Infof("Render of job %s done frames=%d path=%s in %s", id, res.Frames,
		res.Path, res.Duration)
}
