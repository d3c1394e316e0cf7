package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Task is one step executed by Poller on every iteration.
// Tasks must not block: they poll non-blocking primitives and return.
type Task interface {
	Poll(context.Context) error
}

// PollFunc is the func form of Task.
type PollFunc func(context.Context) error

// Poll implements Task.
func (f PollFunc) Poll(ctx context.Context) error {
	return f(ctx)
}

// Waker schedules the next poll iteration immediately.
type Waker interface {
	TriggerNext()
}
