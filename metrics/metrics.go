// Package metrics exposes inference, anonymization and job counters to
// Prometheus.
package metrics

import (
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame processing counters
	FramesInferred atomic.Uint64
	FramesSkipped  atomic.Uint64
	Detections     atomic.Uint64
	FacesObscured  atomic.Uint64

	// Job counters
	JobsStarted   atomic.Uint64
	JobsCompleted atomic.Uint64
	JobsFailed    atomic.Uint64
	ActiveJobs    atomic.Int64

	// Render counters
	RendersCompleted atomic.Uint64
	RendersFailed    atomic.Uint64
	RenderWarnings   atomic.Uint64

	// Latency tracking
	InferenceLatencyMs atomic.Uint64 // last frame inference latency in ms

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registerPrometheusMetrics()

	return m
}

// gauge registers a gauge named name reading its value from fn
func (m *Metrics) gauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		fn,
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {

	// frame metrics
	m.gauge("visionedge_frames_inferred_total", "Total frames run through a detector",
		func() float64 { return float64(m.FramesInferred.Load()) })
	m.gauge("visionedge_frames_skipped_total", "Total frames skipped after a decode failure",
		func() float64 { return float64(m.FramesSkipped.Load()) })
	m.gauge("visionedge_detections_total", "Total detections produced",
		func() float64 { return float64(m.Detections.Load()) })
	m.gauge("visionedge_faces_obscured_total", "Total face regions blurred or pixelated",
		func() float64 { return float64(m.FacesObscured.Load()) })

	// job metrics
	m.gauge("visionedge_jobs_started_total", "Total video jobs started",
		func() float64 { return float64(m.JobsStarted.Load()) })
	m.gauge("visionedge_jobs_completed_total", "Total video jobs completed",
		func() float64 { return float64(m.JobsCompleted.Load()) })
	m.gauge("visionedge_jobs_failed_total", "Total video jobs failed",
		func() float64 { return float64(m.JobsFailed.Load()) })
	m.gauge("visionedge_jobs_active", "Video jobs currently running",
		func() float64 { return float64(m.ActiveJobs.Load()) })

	// render metrics
	m.gauge("visionedge_renders_completed_total", "Total annotated videos rendered",
		func() float64 { return float64(m.RendersCompleted.Load()) })
	m.gauge("visionedge_renders_failed_total", "Total annotated video renders failed",
		func() float64 { return float64(m.RendersFailed.Load()) })
	m.gauge("visionedge_render_warnings_total", "Total renders served without re-encoding",
		func() float64 { return float64(m.RenderWarnings.Load()) })

	// latency metrics
	m.gauge("visionedge_inference_latency_ms", "Last frame inference latency in milliseconds",
		func() float64 { return float64(m.InferenceLatencyMs.Load()) })
}

// UpdateInferenceLatency records the latency of a frame inference
func (m *Metrics) UpdateInferenceLatency(duration time.Duration) {
	m.InferenceLatencyMs.Store(uint64(duration.Milliseconds()))
}

// Snapshot returns the current value of every metric keyed by name
func (m *Metrics) Snapshot() (map[string]float64, error) {

	families, err := m.registry.Gather()

	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(families))

	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if g := metric.GetGauge(); g != nil {
				out[f.GetName()] = g.GetValue()
			}
		}
	}

	return out, nil
}

// Names returns the sorted metric names
func (m *Metrics) Names() []string {

	snap, _ := m.Snapshot()
	names := make([]string, 0, len(snap))

	for name := range snap {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
