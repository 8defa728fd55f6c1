// Package dragonfly executes pipelines against a Dragonfly world: every
// stage runs inside one world transaction and its members run concurrently
// within it.
package dragonfly

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/df-mc/dragonfly/server/world"
	"github.com/oriumgames/pipeline"
)

// System is a pipeline binding that works on a world transaction.
type System interface {
	Run(tx *world.Tx)
}

// SystemFunc adapts a function to the System interface.
type SystemFunc func(tx *world.Tx)

// Run calls f(tx).
func (f SystemFunc) Run(tx *world.Tx) { f(tx) }

// ExecFunc runs fn inside a world transaction. It may return before fn has
// run; the Runner waits for fn itself.
type ExecFunc func(fn func(tx *world.Tx))

// WorldExec returns an ExecFunc that opens transactions on w.
func WorldExec(w *world.World) ExecFunc {
	return func(fn func(tx *world.Tx)) {
		w.Exec(fn)
	}
}

// Options configures a Runner.
type Options struct {
	// Logger receives panics and frame failures.
	// Default: slog.Default().
	Logger *slog.Logger

	// Exec replaces the world transaction entry point.
	Exec ExecFunc
}

// Option configures a Runner.
type Option func(*Options)

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithExec overrides how transactions are opened.
func WithExec(exec ExecFunc) Option {
	return func(o *Options) {
		o.Exec = exec
	}
}

// Runner executes a pipeline of Systems on a world.
type Runner struct {
	pipeline *pipeline.Pipeline[System]
	exec     ExecFunc
	logger   *slog.Logger

	mu sync.Mutex
}

// NewRunner creates a runner for p on w. w may be nil when WithExec is set.
func NewRunner(p *pipeline.Pipeline[System], w *world.World, opts ...Option) *Runner {
	options := Options{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Exec == nil {
		if w == nil {
			panic("dragonfly: NewRunner needs a world or an ExecFunc")
		}
		options.Exec = WorldExec(w)
	}
	return &Runner{pipeline: p, exec: options.Exec, logger: options.Logger}
}

// Pipeline returns the pipeline the runner executes.
func (r *Runner) Pipeline() *pipeline.Pipeline[System] {
	return r.pipeline
}

// RunFrame runs every stage once, one transaction per stage. A panicking
// system does not stop its stage peers; the frame stops after that stage and
// the first failure is returned as a *pipeline.SystemError.
func (r *Runner) RunFrame(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stage := range r.pipeline.Stages() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runStage(stage); err != nil {
			return err
		}
	}
	return nil
}

// runStage executes one stage in its own transaction and waits for it.
func (r *Runner) runStage(stage *pipeline.Stage[System]) error {
	errs := make([]error, stage.Len())
	done := make(chan struct{})

	r.exec(func(tx *world.Tx) {
		defer close(done)

		if stage.Len() == 1 {
			errs[0] = r.runSystem(tx, stage, 0)
			return
		}

		// Run members in parallel
		var wg sync.WaitGroup
		wg.Add(stage.Len())
		for i := 0; i < stage.Len(); i++ {
			go func() {
				defer wg.Done()
				errs[i] = r.runSystem(tx, stage, i)
			}()
		}
		wg.Wait()
	})
	<-done

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// runSystem executes one member with panic recovery.
func (r *Runner) runSystem(tx *world.Tx, stage *pipeline.Stage[System], i int) (err error) {
	id := stage.Systems()[i]
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			r.logger.Error("dragonfly: system panicked",
				"stage", stage.Index(),
				"system", id,
				"panic", rec,
				"stack", string(stack))
			err = &pipeline.SystemError{
				Stage:  stage.Index(),
				System: id,
				Err:    &pipeline.PanicError{Value: rec, Stack: stack},
			}
		}
	}()

	stage.Binding(i).Run(tx)
	return nil
}

// Run calls RunFrame every interval until ctx is cancelled. Frame failures
// are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("dragonfly: runner started", "pipeline", r.pipeline.ID(), "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("dragonfly: runner stopped", "pipeline", r.pipeline.ID())
			return ctx.Err()
		case <-ticker.C:
			if err := r.RunFrame(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("dragonfly: frame failed", "error", err)
			}
		}
	}
}
