package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oriumgames/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry(), "test")

	m.ObserveFrame(pipeline.FrameReport{Tick: 1, Duration: time.Millisecond})
	m.ObserveFrame(pipeline.FrameReport{Tick: 2, Duration: time.Millisecond, Err: errors.New("x")})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("error")))

	m.ObserveStage(pipeline.StageReport{Stage: 0, Systems: 3, Duration: time.Millisecond})
	m.ObserveStage(pipeline.StageReport{Stage: 1, Systems: 1, Err: errors.New("x")})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StageSystems.WithLabelValues("0")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StageFailures.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageFailures.WithLabelValues("1")))
}

func TestSchedulerOptions_FeedStageMetrics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	noop := pipeline.RunnableFunc(func(context.Context) error { return nil })
	resolver := pipeline.ResolverFunc[pipeline.Runnable](func(pipeline.SystemID) (pipeline.Runnable, error) { return noop, nil })

	b := pipeline.NewBuilder[pipeline.Runnable](resolver, pipeline.WithLogger(logger))
	b.SystemNamed("A").Produces("X", "1").Build().
		SystemNamed("B").Produces("Y", "1").Build().
		SystemNamed("C").Requires("X", "1").Build()
	p, err := b.Build()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := New(reg, "frame")
	opts := append(m.SchedulerOptions(), pipeline.WithSchedulerLogger(logger))
	s := pipeline.NewScheduler(p, opts...)
	require.NoError(t, s.RunFrame(context.Background()))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageSystems.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageSystems.WithLabelValues("1")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StageDuration))
}
