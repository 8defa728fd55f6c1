package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// recorder collects the order in which systems start and finish.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) log(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func buildRunnable(t *testing.T, bindings map[SystemID]Runnable, declare func(b *Builder[Runnable])) *Pipeline[Runnable] {
	t.Helper()
	resolver := ResolverFunc[Runnable](func(id SystemID) (Runnable, error) {
		r, ok := bindings[id]
		if !ok {
			return nil, ErrUnresolved
		}
		return r, nil
	})
	b := NewBuilder[Runnable](resolver, WithLogger(discard))
	declare(b)
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func TestScheduler_RunFrameHonoursStageBarrier(t *testing.T) {
	rec := &recorder{}
	step := func(name string) Runnable {
		return RunnableFunc(func(context.Context) error {
			rec.log(name + ":start")
			time.Sleep(5 * time.Millisecond)
			rec.log(name + ":end")
			return nil
		})
	}
	p := buildRunnable(t, map[SystemID]Runnable{
		"A": step("A"), "B": step("B"), "C": step("C"),
	}, func(b *Builder[Runnable]) {
		b.SystemNamed("A").Produces("X", "1").Build().
			SystemNamed("B").Produces("Y", "1").Build().
			SystemNamed("C").Requires("X", "1").Requires("Y", "1").Build()
	})
	require.Equal(t, [][]SystemID{{"A", "B"}, {"C"}}, p.Layout())

	s := NewScheduler(p, WithSchedulerLogger(discard))
	require.NoError(t, s.RunFrame(context.Background()))

	events := rec.snapshot()
	require.Len(t, events, 6)
	assert.Equal(t, []string{"C:start", "C:end"}, events[4:])
	assert.ElementsMatch(t, []string{"A:start", "A:end", "B:start", "B:end"}, events[:4])
}

func TestScheduler_RunsStageMembersConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	gate := make(chan struct{})
	work := RunnableFunc(func(context.Context) error {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-gate
		running.Add(-1)
		return nil
	})
	p := buildRunnable(t, map[SystemID]Runnable{"A": work, "B": work, "C": work},
		func(b *Builder[Runnable]) {
			b.SystemNamed("A").Build().SystemNamed("B").Build().SystemNamed("C").Build()
		})

	s := NewScheduler(p, WithWorkers(3), WithSchedulerLogger(discard))
	done := make(chan error, 1)
	go func() { done <- s.RunFrame(context.Background()) }()

	require.Eventually(t, func() bool { return running.Load() == 3 }, time.Second, time.Millisecond)
	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, int32(3), peak.Load())
}

func TestScheduler_FailureSkipsLaterStages(t *testing.T) {
	boom := errors.New("boom")
	var ranB, ranC atomic.Bool
	p := buildRunnable(t, map[SystemID]Runnable{
		"A": RunnableFunc(func(context.Context) error { return boom }),
		"B": RunnableFunc(func(context.Context) error { ranB.Store(true); return nil }),
		"C": RunnableFunc(func(context.Context) error { ranC.Store(true); return nil }),
	}, func(b *Builder[Runnable]) {
		b.SystemNamed("A").Produces("X", "1").Build().
			SystemNamed("B").Produces("Y", "1").Build().
			SystemNamed("C").Requires("X", "1").Build()
	})

	err := NewScheduler(p, WithSchedulerLogger(discard)).RunFrame(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	var se *SystemError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, SystemID("A"), se.System)
	assert.Equal(t, 0, se.Stage)
	assert.True(t, ranB.Load(), "stage peers still complete")
	assert.False(t, ranC.Load(), "later stages are skipped")
}

func TestScheduler_RecoversPanics(t *testing.T) {
	p := buildRunnable(t, map[SystemID]Runnable{
		"A": RunnableFunc(func(context.Context) error { panic("kaboom") }),
	}, func(b *Builder[Runnable]) {
		b.SystemNamed("A").Build()
	})

	err := NewScheduler(p, WithSchedulerLogger(discard)).RunFrame(context.Background())
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestScheduler_CancelledContext(t *testing.T) {
	var ran atomic.Bool
	p := buildRunnable(t, map[SystemID]Runnable{
		"A": RunnableFunc(func(context.Context) error { ran.Store(true); return nil }),
	}, func(b *Builder[Runnable]) {
		b.SystemNamed("A").Build()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewScheduler(p, WithSchedulerLogger(discard)).RunFrame(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

func TestScheduler_Swap(t *testing.T) {
	var first, second atomic.Int32
	p1 := buildRunnable(t, map[SystemID]Runnable{
		"A": RunnableFunc(func(context.Context) error { first.Add(1); return nil }),
	}, func(b *Builder[Runnable]) { b.SystemNamed("A").Build() })
	p2 := buildRunnable(t, map[SystemID]Runnable{
		"B": RunnableFunc(func(context.Context) error { second.Add(1); return nil }),
	}, func(b *Builder[Runnable]) { b.SystemNamed("B").Build() })

	s := NewScheduler(p1, WithSchedulerLogger(discard))
	require.NoError(t, s.RunFrame(context.Background()))
	s.Swap(p2)
	assert.Same(t, p2, s.Pipeline())
	require.NoError(t, s.RunFrame(context.Background()))

	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestScheduler_StartStop(t *testing.T) {
	var frames atomic.Int32
	reports := make(chan FrameReport, 64)
	p := buildRunnable(t, map[SystemID]Runnable{
		"A": RunnableFunc(func(context.Context) error { frames.Add(1); return nil }),
	}, func(b *Builder[Runnable]) { b.SystemNamed("A").Build() })

	s := NewScheduler(p,
		WithTickRate(time.Millisecond),
		WithSchedulerLogger(discard),
		WithFrameHook(func(r FrameReport) {
			select {
			case reports <- r:
			default:
			}
		}),
	)
	s.Start(context.Background())
	s.Start(context.Background())

	require.Eventually(t, func() bool { return frames.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()
	s.Stop()

	stopped := frames.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, frames.Load())
	assert.Equal(t, uint64(stopped), s.TickNumber())

	r := <-reports
	assert.Equal(t, uint64(1), r.Tick)
	assert.NoError(t, r.Err)
}

func TestScheduler_StageHook(t *testing.T) {
	boom := errors.New("boom")
	p := buildRunnable(t, map[SystemID]Runnable{
		"A": RunnableFunc(func(context.Context) error { return nil }),
		"B": RunnableFunc(func(context.Context) error { return nil }),
		"C": RunnableFunc(func(context.Context) error { return boom }),
	}, func(b *Builder[Runnable]) {
		b.SystemNamed("A").Produces("X", "1").Build().
			SystemNamed("B").Produces("Y", "1").Build().
			SystemNamed("C").Requires("X", "1").Build()
	})

	var reports []StageReport
	s := NewScheduler(p, WithSchedulerLogger(discard), WithStageHook(func(r StageReport) {
		reports = append(reports, r)
	}))
	require.Error(t, s.RunFrame(context.Background()))

	require.Len(t, reports, 2)
	assert.Equal(t, 0, reports[0].Stage)
	assert.Equal(t, 2, reports[0].Systems)
	assert.NoError(t, reports[0].Err)
	assert.Equal(t, 1, reports[1].Stage)
	assert.ErrorIs(t, reports[1].Err, boom)
}

func TestScheduler_SwapNilPanics(t *testing.T) {
	p := buildRunnable(t, map[SystemID]Runnable{
		"A": RunnableFunc(func(context.Context) error { return nil }),
	}, func(b *Builder[Runnable]) { b.SystemNamed("A").Build() })

	s := NewScheduler(p, WithSchedulerLogger(discard))
	assert.PanicsWithValue(t, "pipeline: Swap called with nil pipeline", func() { s.Swap(nil) })
	assert.Same(t, p, s.Pipeline())
	assert.NoError(t, s.RunFrame(context.Background()))
}

func TestScheduler_ConcurrentStartStop(t *testing.T) {
	p := buildRunnable(t, map[SystemID]Runnable{
		"A": RunnableFunc(func(context.Context) error { return nil }),
	}, func(b *Builder[Runnable]) { b.SystemNamed("A").Build() })

	s := NewScheduler(p, WithTickRate(time.Millisecond), WithSchedulerLogger(discard))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Start(context.Background())
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Stop()
			}
		}()
	}
	wg.Wait()
	s.Stop()

	stopped := s.TickNumber()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, s.TickNumber())
}

func TestScheduler_RestartAfterContextCancel(t *testing.T) {
	var frames atomic.Int32
	p := buildRunnable(t, map[SystemID]Runnable{
		"A": RunnableFunc(func(context.Context) error { frames.Add(1); return nil }),
	}, func(b *Builder[Runnable]) { b.SystemNamed("A").Build() })

	s := NewScheduler(p, WithTickRate(time.Millisecond), WithSchedulerLogger(discard))
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return frames.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()
	before := frames.Load()

	// Start is a no-op until the cancelled loop has exited.
	require.Eventually(t, func() bool {
		s.Start(context.Background())
		return frames.Load() > before+2
	}, time.Second, time.Millisecond)
	s.Stop()
}
