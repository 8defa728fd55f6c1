package pipeline

import "context"

// Runnable is the binding type executed by the Scheduler.
// Run performs one frame of the system's work and must return before the
// stage barrier can advance.
type Runnable interface {
	Run(ctx context.Context) error
}

// RunnableFunc adapts a function to the Runnable interface.
type RunnableFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}
