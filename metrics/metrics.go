// Package metrics exports Scheduler frame and stage timings as Prometheus
// collectors.
package metrics

import (
	"strconv"

	"github.com/oriumgames/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scheduler collectors.
type Metrics struct {
	// Frame metrics
	Frames        *prometheus.CounterVec
	FrameDuration prometheus.Histogram

	// Stage metrics
	StageDuration *prometheus.HistogramVec
	StageSystems  *prometheus.GaugeVec
	StageFailures *prometheus.CounterVec
}

// New registers the collectors on reg under namespace. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Frames run by the scheduler, by result.",
			},
			[]string{"result"},
		),
		FrameDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "frame_duration_seconds",
				Help:      "Wall time of one frame.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of one stage, barrier included.",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
			},
			[]string{"stage"},
		),
		StageSystems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_systems",
				Help:      "Systems in each stage of the running pipeline.",
			},
			[]string{"stage"},
		),
		StageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Stages that returned an error.",
			},
			[]string{"stage"},
		),
	}
}

// ObserveFrame records one frame report.
func (m *Metrics) ObserveFrame(r pipeline.FrameReport) {
	result := "ok"
	if r.Err != nil {
		result = "error"
	}
	m.Frames.WithLabelValues(result).Inc()
	m.FrameDuration.Observe(r.Duration.Seconds())
}

// ObserveStage records one stage report.
func (m *Metrics) ObserveStage(r pipeline.StageReport) {
	stage := strconv.Itoa(r.Stage)
	m.StageDuration.WithLabelValues(stage).Observe(r.Duration.Seconds())
	m.StageSystems.WithLabelValues(stage).Set(float64(r.Systems))
	if r.Err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// SchedulerOptions returns the hooks that feed m.
func (m *Metrics) SchedulerOptions() []pipeline.SchedulerOption {
	return []pipeline.SchedulerOption{
		pipeline.WithFrameHook(m.ObserveFrame),
		pipeline.WithStageHook(m.ObserveStage),
	}
}
