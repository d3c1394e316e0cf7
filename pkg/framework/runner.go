package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	perrors "github.com/pkg/errors"
)

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun attaches a name to a Runnable, shown in logs and errors.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

func nameOf(runnable Runnable, index int) string {
	if named, ok := runnable.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("#%d", index)
}

// ErrForcedExit is returned by Runner.Wait when a second stop signal
// arrives before all runners stopped.
var ErrForcedExit = errors.New("forced exit")

type runResult struct {
	name string
	err  error
}

// Runner runs a group of Runnables sharing one context. The group lives
// as long as all its members: whichever stops first cancels the rest.
type Runner struct {
	Context context.Context
	Runners []Runnable

	cancel   context.CancelFunc
	resultCh chan runResult
	forceCh  chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner whose context derives from ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	r := &Runner{
		resultCh: make(chan runResult),
		forceCh:  make(chan struct{}),
	}
	r.Context, r.cancel = context.WithCancel(ctx)
	return r
}

// HandleSignals stops the group on SIGINT or SIGTERM; a second signal
// makes Wait return immediately.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v: stopping", sig)
		r.Stop()
		sig = <-sigCh
		glog.Errorf("%v again: exit without waiting", sig)
		close(r.forceCh)
	}()
	return r
}

// Go starts runnables in the group.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		name := nameOf(runnable, len(r.Runners))
		r.Runners = append(r.Runners, runnable)
		glog.V(4).Infof("runner %s: start", name)
		go r.run(name, runnable)
	}
	return r
}

func (r *Runner) run(name string, runnable Runnable) {
	err := runnable.Run(r.Context)
	glog.V(4).Infof("runner %s: exit %v", name, err)
	select {
	case r.resultCh <- runResult{name: name, err: err}:
	case <-r.forceCh:
	}
}

// Stop cancels the group.
func (r *Runner) Stop() {
	r.cancel()
}

// Wait blocks until every runnable returned. Errors other than
// cancellation are collected as an AggregatedError, each prefixed with
// the runnable name.
func (r *Runner) Wait() error {
	defer r.cancel()
	var errs AggregatedError
	for pending := len(r.Runners); pending > 0; pending-- {
		select {
		case res := <-r.resultCh:
			r.cancel()
			if res.err != nil && !errors.Is(res.err, context.Canceled) {
				errs.Add(perrors.WithMessage(res.err, res.name))
			}
		case <-r.forceCh:
			return ErrForcedExit
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs fn, which doesn't accept a context, until it
// returns or ctx is done. In the latter case onCancel must make fn return,
// and ctx.Err() is the result.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	doneCh := make(chan error, 1)
	go func() { doneCh <- fn() }()
	select {
	case err := <-doneCh:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-doneCh
	return ctx.Err()
}

// RunWithContextCloser runs fn and closes closer exactly once, either to
// unblock fn on cancel or after fn returned by itself.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	canceled := false
	err := RunWithContextCancel(ctx, func() {
		canceled = true
		closer.Close()
	}, fn)
	if !canceled {
		closer.Close()
	}
	return err
}
