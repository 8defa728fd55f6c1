package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// TickRate is the interval between frames started by Start.
	// Default: 50ms (20 TPS).
	TickRate time.Duration

	// Workers caps how many members of one stage run at the same time.
	// Default: GOMAXPROCS.
	Workers int

	// Logger receives start/stop and failure logs.
	// Default: slog.Default().
	Logger *slog.Logger

	// OnFrame is called after every frame run by Start.
	OnFrame func(FrameReport)

	// OnStage is called after every stage of every frame.
	OnStage func(StageReport)
}

// defaultSchedulerOptions returns sensible defaults.
func defaultSchedulerOptions() SchedulerOptions {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	return SchedulerOptions{
		TickRate: 50 * time.Millisecond,
		Workers:  workers,
		Logger:   slog.Default(),
	}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*SchedulerOptions)

// WithTickRate sets the interval between frames.
func WithTickRate(d time.Duration) SchedulerOption {
	return func(o *SchedulerOptions) {
		if d > 0 {
			o.TickRate = d
		}
	}
}

// WithWorkers caps stage concurrency.
func WithWorkers(n int) SchedulerOption {
	return func(o *SchedulerOptions) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(o *SchedulerOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithFrameHook registers a callback invoked after every ticked frame.
func WithFrameHook(fn func(FrameReport)) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.OnFrame = fn
	}
}

// WithStageHook registers a callback invoked after every executed stage.
func WithStageHook(fn func(StageReport)) SchedulerOption {
	return func(o *SchedulerOptions) {
		o.OnStage = fn
	}
}

// StageReport summarizes one executed stage.
type StageReport struct {
	Stage    int
	Systems  int
	Duration time.Duration
	Err      error
}

// FrameReport summarizes one frame run by Start.
type FrameReport struct {
	Tick     uint64
	Duration time.Duration
	Err      error
}

// SystemError reports a system that failed while a frame was running.
type SystemError struct {
	Stage  int
	System SystemID
	Err    error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("pipeline: stage %d system %s: %v", e.Stage, e.System, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

// PanicError carries a panic recovered from a system.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", e.Value, e.Stack)
}

// Scheduler is the reference frame runner for pipelines of Runnable
// bindings. Stages run strictly in order; the members of a stage run
// concurrently and the next stage starts only after all of them return.
type Scheduler struct {
	pipeline atomic.Pointer[Pipeline[Runnable]]
	options  SchedulerOptions

	// frameMu serializes frames and pipeline swaps
	frameMu sync.Mutex

	// Execution state, guarded by lifecycleMu
	lifecycleMu sync.Mutex
	stopCh      chan struct{}
	doneCh      chan struct{}

	// Tick tracking
	tickNumber atomic.Uint64
}

// NewScheduler creates a scheduler executing p.
func NewScheduler(p *Pipeline[Runnable], opts ...SchedulerOption) *Scheduler {
	options := defaultSchedulerOptions()
	for _, opt := range opts {
		opt(&options)
	}
	s := &Scheduler{options: options}
	s.pipeline.Store(p)
	return s
}

// Pipeline returns the pipeline currently executed.
func (s *Scheduler) Pipeline() *Pipeline[Runnable] {
	return s.pipeline.Load()
}

// Swap replaces the executed pipeline. It waits for a running frame to
// finish, so a rebuilt pipeline never overlaps a frame of the old one.
// Swap panics if p is nil.
func (s *Scheduler) Swap(p *Pipeline[Runnable]) {
	if p == nil {
		panic("pipeline: Swap called with nil pipeline")
	}
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	old := s.pipeline.Swap(p)
	s.options.Logger.Info("pipeline: swapped pipeline", "old", old.ID(), "new", p.ID())
}

// TickNumber returns the number of frames started by Start.
func (s *Scheduler) TickNumber() uint64 {
	return s.tickNumber.Load()
}

// RunFrame executes every stage of the pipeline once.
// If a system fails, the remaining members of its stage still complete,
// later stages are skipped and the first failure is returned as a
// *SystemError.
func (s *Scheduler) RunFrame(ctx context.Context) error {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	p := s.pipeline.Load()
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		err := s.runStage(ctx, stage)
		if s.options.OnStage != nil {
			s.options.OnStage(StageReport{
				Stage:    stage.index,
				Systems:  len(stage.bindings),
				Duration: time.Since(start),
				Err:      err,
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// runStage runs all members of a stage and waits for them.
func (s *Scheduler) runStage(ctx context.Context, stage *Stage[Runnable]) error {
	if len(stage.bindings) == 1 {
		return s.runSystem(ctx, stage, 0)
	}

	var g errgroup.Group
	g.SetLimit(s.options.Workers)
	for i := range stage.bindings {
		g.Go(func() error {
			return s.runSystem(ctx, stage, i)
		})
	}
	return g.Wait()
}

// runSystem executes one binding with panic recovery.
func (s *Scheduler) runSystem(ctx context.Context, stage *Stage[Runnable], i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SystemError{
				Stage:  stage.index,
				System: stage.systems[i],
				Err:    &PanicError{Value: r, Stack: debug.Stack()},
			}
		}
	}()

	if runErr := stage.bindings[i].Run(ctx); runErr != nil {
		return &SystemError{Stage: stage.index, System: stage.systems[i], Err: runErr}
	}
	return nil
}

// Start begins running frames every TickRate until Stop is called or ctx
// is cancelled. Calling Start on a running scheduler does nothing. Start and
// Stop may be called from any goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.doneCh != nil {
		select {
		case <-s.doneCh:
			// The previous loop ended with its context.
		default:
			return
		}
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.options.Logger.Info("pipeline: scheduler started",
		"pipeline", s.Pipeline().ID(),
		"tick_rate", s.options.TickRate,
		"workers", s.options.Workers)

	go s.tickLoop(ctx, s.stopCh, s.doneCh)
}

// Stop halts the tick loop and waits for the running frame to finish.
// Calling Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.options.Logger.Info("pipeline: scheduler stopped", "ticks", s.TickNumber())
}

// tickLoop is the main scheduler loop.
func (s *Scheduler) tickLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.options.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick executes one frame and reports it.
func (s *Scheduler) tick(ctx context.Context) {
	tick := s.tickNumber.Add(1)
	start := time.Now()
	err := s.RunFrame(ctx)
	if err != nil {
		s.options.Logger.Error("pipeline: frame failed", "tick", tick, "error", err)
	}
	if s.options.OnFrame != nil {
		s.options.OnFrame(FrameReport{Tick: tick, Duration: time.Since(start), Err: err})
	}
}
