package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/filter"
	"github.com/swdee/go-visionedge/metrics"
	"github.com/swdee/go-visionedge/postprocess"
	"github.com/swdee/go-visionedge/preprocess"
	"github.com/swdee/go-visionedge/render"
	"github.com/swdee/go-visionedge/video"
	"gocv.io/x/gocv"
)

// fakeSource yields total frames sampled every interval
type fakeSource struct {
	total    int
	interval int
	max      int
	idx      int
	yielded  int
}

func (f *fakeSource) Open() (video.Meta, error) {
	return video.Meta{Width: 4, Height: 4, FPS: 25, TotalFrames: f.total,
		DurationMs: float64(f.total) / 25 * 1000, Codec: "mp4v"}, nil
}

func (f *fakeSource) Interval() int {
	return f.interval
}

func (f *fakeSource) Next(img *gocv.Mat) (video.FrameInfo, bool) {

	if f.idx >= f.total || (f.max > 0 && f.yielded >= f.max) {
		return video.FrameInfo{}, false
	}

	frame := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	frame.CopyTo(img)
	frame.Close()

	info := video.FrameInfo{Index: f.idx, TimestampMs: float64(f.idx) * 40}
	f.idx += f.interval
	f.yielded++

	return info, true
}

func (f *fakeSource) Close() error {
	return nil
}

// fakeDetector returns a person and a car, failing the calls listed in fail
type fakeDetector struct {
	loaded bool
	calls  atomic.Int64
	fail   map[int64]error
}

func (f *fakeDetector) Loaded() bool {
	return f.loaded
}

func (f *fakeDetector) Detect(img gocv.Mat) ([]postprocess.Detection, error) {

	n := f.calls.Add(1)

	if err, ok := f.fail[n]; ok {
		return nil, err
	}

	return []postprocess.Detection{
		{ClassID: 0, Label: "person", Score: 0.9, Box: postprocess.Box{X1: 0, Y1: 0, X2: 2, Y2: 2}},
		{ClassID: 2, Label: "car", Score: 0.3, Box: postprocess.Box{X1: 1, Y1: 1, X2: 3, Y2: 3}},
	}, nil
}

// fakePrivacy reports one face per frame
type fakePrivacy struct {
	calls atomic.Int64
}

func (f *fakePrivacy) Anonymize(img *gocv.Mat) (bool, int) {
	f.calls.Add(1)
	return true, 1
}

type fakeFilters map[string]filter.Config

func (f fakeFilters) Get(name string) (filter.Config, error) {

	cfg, ok := f[name]

	if !ok {
		return filter.Config{}, filter.ErrNotFound
	}

	return cfg, nil
}

// fakeRender records the params of each render
type fakeRender struct {
	mu     sync.Mutex
	params []render.RenderParams
	err    error
}

func (f *fakeRender) render(ctx context.Context, p render.RenderParams) (render.RenderResult, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.params = append(f.params, p)

	if f.err != nil {
		return render.RenderResult{}, f.err
	}

	return render.RenderResult{Path: p.Source + ".h264.mp4", Frames: 25, Encoded: true}, nil
}

func sourceFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	return path
}

func newTestManager(t *testing.T, det ObjectDetector, workers int) (*Manager, *fakePrivacy, *fakeRender) {

	privacy := &fakePrivacy{}
	renderer := &fakeRender{}

	filters := fakeFilters{
		"strict": filter.Config{Name: "strict", Enabled: true, MinConfidence: 0.5},
	}

	p := Params{
		Video:   video.DefaultParams(),
		Workers: workers,
		Render:  render.DefaultRenderParams(),
	}

	m := NewManager(p, det, privacy, filters, logs.NewTestingLog(t), metrics.New())
	m.newSource = func(path string, p video.Params, log logs.Log) FrameSource {
		return &fakeSource{total: 25, interval: max(1, p.FrameInterval), max: p.MaxFrames}
	}
	m.renderVideo = renderer.render

	return m, privacy, renderer
}

func TestSubmitAndResult(t *testing.T) {

	m, privacy, _ := newTestManager(t, &fakeDetector{loaded: true}, 3)
	source := sourceFile(t)

	id, err := m.Submit(context.Background(), source, Options{})
	require.NoError(t, err)
	assert.Len(t, id, 12)

	m.Wait()

	j, err := m.Get(id)
	require.NoError(t, err)

	assert.Equal(t, StatusDone, j.Status)
	assert.Equal(t, 1.0, j.Progress)
	assert.Equal(t, 5, j.FramesTotal)
	assert.Equal(t, 5, j.FramesDone)
	assert.Equal(t, RenderNotStarted, j.RenderStatus)

	res, err := m.Result(id)
	require.NoError(t, err)

	require.Len(t, res.Frames, 5)

	for i, fr := range res.Frames {
		assert.Equal(t, i*5, fr.Index)
		assert.True(t, fr.PrivacyApplied)
		assert.Equal(t, 1, fr.PrivacyFaces)
	}

	assert.Equal(t, 5, res.FrameInterval)
	assert.Equal(t, 4, res.VideoWidth)
	assert.Equal(t, 5, res.Summary.TotalFramesAnalysed)
	assert.Equal(t, 10, res.Summary.TotalDetections)
	assert.Equal(t, []string{"car", "person"}, res.Summary.UniqueLabels)
	assert.Equal(t, map[string]int{"person": 5, "car": 5}, res.Summary.LabelCounts)
	assert.Equal(t, 5, res.Summary.PrivacyTotalFaces)
	assert.EqualValues(t, 5, privacy.calls.Load())

	snap, err := m.metrics.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap["visionedge_jobs_completed_total"])
	assert.Equal(t, 0.0, snap["visionedge_jobs_active"])

	// source kept for rendering
	assert.FileExists(t, source)
}

func TestSubmitOverridesAndFilter(t *testing.T) {

	m, _, _ := newTestManager(t, &fakeDetector{loaded: true}, 2)

	id, err := m.Submit(context.Background(), sourceFile(t),
		Options{FrameInterval: 2, MaxFrames: 4, FilterName: "strict"})
	require.NoError(t, err)

	m.Wait()

	res, err := m.Result(id)
	require.NoError(t, err)

	require.Len(t, res.Frames, 4)
	assert.Equal(t, 6, res.Frames[3].Index)
	assert.Equal(t, []string{"person"}, res.Summary.UniqueLabels)
	assert.Equal(t, 4, res.Summary.TotalDetections)
}

func TestSubmitUnknownFilter(t *testing.T) {

	m, _, _ := newTestManager(t, &fakeDetector{loaded: true}, 1)

	id, err := m.Submit(context.Background(), sourceFile(t), Options{FilterName: "missing"})
	require.NoError(t, err)

	m.Wait()

	res, err := m.Result(id)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Summary.TotalDetections)
}

// shortOutputError decodes a detector output whose buffer is shorter than
// its shape
func shortOutputError(t *testing.T) error {

	out := visionedge.NewOutput("output0", []int64{1, 3, 6}, make([]float32, 12))
	_, err := postprocess.NewDetector(nil).Decode([]visionedge.Output{out},
		preprocess.Letterbox{Ratio: 1}, 100, 100)
	require.Error(t, err)

	return err
}

func TestSubmitSkipsDecodeFailure(t *testing.T) {

	det := &fakeDetector{
		loaded: true,
		fail:   map[int64]error{2: shortOutputError(t)},
	}

	m, _, _ := newTestManager(t, det, 1)
	source := sourceFile(t)

	id, err := m.Submit(context.Background(), source, Options{})
	require.NoError(t, err)

	m.Wait()

	res, err := m.Result(id)
	require.NoError(t, err)

	require.Len(t, res.Frames, 4)
	assert.Equal(t, []int{0, 10, 15, 20}, []int{res.Frames[0].Index,
		res.Frames[1].Index, res.Frames[2].Index, res.Frames[3].Index})
	assert.FileExists(t, source)
}

func TestSubmitFailureRemovesSource(t *testing.T) {

	det := &fakeDetector{
		loaded: true,
		fail:   map[int64]error{3: errors.New("runtime inference failed")},
	}

	m, _, _ := newTestManager(t, det, 1)
	source := sourceFile(t)

	id, err := m.Submit(context.Background(), source, Options{})
	require.NoError(t, err)

	m.Wait()

	j, err := m.Get(id)
	require.NoError(t, err)

	assert.Equal(t, StatusError, j.Status)
	assert.Contains(t, j.Error, "runtime inference failed")
	assert.NoFileExists(t, source)

	_, err = m.Result(id)
	assert.Error(t, err)

	err = m.Render(context.Background(), id, DefaultRenderOptions())
	assert.ErrorIs(t, err, ErrNotDone)
}

func TestSubmitModelNotLoaded(t *testing.T) {

	m, _, _ := newTestManager(t, &fakeDetector{}, 1)
	source := sourceFile(t)

	id, err := m.Submit(context.Background(), source, Options{})
	require.NoError(t, err)

	m.Wait()

	j, err := m.Get(id)
	require.NoError(t, err)

	assert.Equal(t, StatusError, j.Status)
	assert.Equal(t, ErrModelNotLoaded.Error(), j.Error)
	assert.NoFileExists(t, source)
}

func TestSubmitCancelled(t *testing.T) {

	m, _, _ := newTestManager(t, &fakeDetector{loaded: true}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id, err := m.Submit(ctx, sourceFile(t), Options{})
	require.NoError(t, err)

	m.Wait()

	j, err := m.Get(id)
	require.NoError(t, err)

	assert.Equal(t, StatusError, j.Status)
	assert.Contains(t, j.Error, visionedge.ErrCancelled.Error())
}

func TestSubmitMissingSource(t *testing.T) {

	m, _, _ := newTestManager(t, &fakeDetector{loaded: true}, 1)

	_, err := m.Submit(context.Background(), "/no/such/clip.mp4", Options{})
	assert.ErrorIs(t, err, visionedge.ErrSourceUnavailable)
}

func TestUnknownJob(t *testing.T) {

	m, _, _ := newTestManager(t, &fakeDetector{loaded: true}, 1)

	_, err := m.Get("abc")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Result("abc")
	assert.ErrorIs(t, err, ErrNotFound)

	err = m.Render(context.Background(), "abc", DefaultRenderOptions())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRender(t *testing.T) {

	m, _, renderer := newTestManager(t, &fakeDetector{loaded: true}, 2)
	source := sourceFile(t)

	id, err := m.Submit(context.Background(), source, Options{})
	require.NoError(t, err)

	m.Wait()

	opts := RenderOptions{Boxes: true, Labels: false, Privacy: false}
	require.NoError(t, m.Render(context.Background(), id, opts))

	m.Wait()

	j, err := m.Get(id)
	require.NoError(t, err)

	assert.Equal(t, RenderDone, j.RenderStatus)
	assert.Equal(t, source+".h264.mp4", j.RenderedPath)

	require.Len(t, renderer.params, 1)

	p := renderer.params[0]
	assert.Equal(t, source, p.Source)
	assert.True(t, p.DrawBoxes)
	assert.False(t, p.DrawLabels)
	assert.Nil(t, p.Anonymizer)
	assert.Equal(t, []int{0, 5, 10, 15, 20}, p.Detections.Keys())

	// privacy option passes the anonymizer
	require.NoError(t, m.Render(context.Background(), id, DefaultRenderOptions()))
	m.Wait()

	require.Len(t, renderer.params, 2)
	assert.NotNil(t, renderer.params[1].Anonymizer)
}

func TestRenderSourceUnavailable(t *testing.T) {

	m, _, _ := newTestManager(t, &fakeDetector{loaded: true}, 1)
	source := sourceFile(t)

	id, err := m.Submit(context.Background(), source, Options{})
	require.NoError(t, err)

	m.Wait()

	require.NoError(t, os.Remove(source))

	err = m.Render(context.Background(), id, DefaultRenderOptions())
	assert.ErrorIs(t, err, visionedge.ErrSourceUnavailable)

	j, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, RenderNotStarted, j.RenderStatus)
}

func TestRenderFailure(t *testing.T) {

	m, _, renderer := newTestManager(t, &fakeDetector{loaded: true}, 1)
	renderer.err = errors.New("error opening video writer")

	id, err := m.Submit(context.Background(), sourceFile(t), Options{})
	require.NoError(t, err)

	m.Wait()

	require.NoError(t, m.Render(context.Background(), id, DefaultRenderOptions()))
	m.Wait()

	j, err := m.Get(id)
	require.NoError(t, err)

	assert.Equal(t, RenderError, j.RenderStatus)
	assert.Equal(t, "error opening video writer", j.RenderError)
}
