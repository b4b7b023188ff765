// Package bench collects per-stage timings of a batch run when benchmarking
// is enabled.
package bench

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Stage names a timed part of the pipeline.
type Stage string

// Timed stages.
const (
	StageDecode Stage = "decode"
	StageEngine Stage = "engine"
	StageRender Stage = "render"
	StageReport Stage = "report"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageDecode, StageEngine, StageRender, StageReport}

const stageMetric = "ppbatch_stage_duration_seconds"

// Recorder accumulates stage durations in a private prometheus registry.
// A nil or disabled Recorder ignores every call.
type Recorder struct {
	enabled bool

	mu       sync.Mutex
	registry *prometheus.Registry
	stages   *prometheus.HistogramVec
	images   *prometheus.CounterVec
}

// NewRecorder returns a Recorder. When enabled is false all methods are
// no-ops.
func NewRecorder(enabled bool) *Recorder {
	r := &Recorder{enabled: enabled}
	r.Reset()
	return r
}

// Enabled reports whether timings are collected.
func (r *Recorder) Enabled() bool {
	return r != nil && r.enabled
}

// Reset discards every recorded observation.
func (r *Recorder) Reset() {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registry = prometheus.NewRegistry()
	r.stages = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    stageMetric,
			Help:    "Time spent per pipeline stage in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	r.images = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppbatch_images_total",
			Help: "Images handled per outcome",
		},
		[]string{"outcome"}, // decoded, skipped, failed
	)
	r.registry.MustRegister(r.stages, r.images)
}

// Observe records d against stage.
func (r *Recorder) Observe(stage Stage, d time.Duration) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// CountImage records the outcome of one manifest entry.
func (r *Recorder) CountImage(outcome string) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images.WithLabelValues(outcome).Inc()
}

// Start begins timing stage. Stop the returned timer to record it.
func (r *Recorder) Start(stage Stage) *Timer {
	return &Timer{start: time.Now(), stage: stage, rec: r}
}

// Totals returns the summed duration and observation count per stage.
func (r *Recorder) Totals() (map[Stage]time.Duration, map[Stage]uint64, error) {
	sums := map[Stage]time.Duration{}
	counts := map[Stage]uint64{}
	if !r.Enabled() {
		return sums, counts, nil
	}

	r.mu.Lock()
	families, err := r.registry.Gather()
	r.mu.Unlock()
	if err != nil {
		return nil, nil, fmt.Errorf("gather benchmark metrics: %w", err)
	}

	for _, mf := range families {
		if mf.GetName() != stageMetric {
			continue
		}
		for _, m := range mf.GetMetric() {
			stage := Stage(labelValue(m, "stage"))
			h := m.GetHistogram()
			sums[stage] = time.Duration(h.GetSampleSum() * float64(time.Second))
			counts[stage] = h.GetSampleCount()
		}
	}
	return sums, counts, nil
}

// Log writes the aggregate timings for a batch of n manifest entries.
func (r *Recorder) Log(logger *slog.Logger, n int) {
	if !r.Enabled() {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	sums, _, err := r.Totals()
	if err != nil {
		logger.Warn("benchmark metrics unavailable", "error", err)
		return
	}

	var total time.Duration
	attrs := []any{"images", n}
	for _, s := range Stages {
		d := sums[s]
		total += d
		attrs = append(attrs, string(s)+"_ms", float64(d.Microseconds())/1000)
	}
	attrs = append(attrs, "total_ms", float64(total.Microseconds())/1000)
	if n > 0 {
		attrs = append(attrs, "avg_ms_per_image", float64(total.Microseconds())/1000/float64(n))
	}
	logger.Info("benchmark", attrs...)
}

// WriteTextfile exports the collected metrics in the text exposition
// format, for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if !r.Enabled() || path == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
