package framework

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultPollInterval is used when Poller.Interval is not set.
const DefaultPollInterval = 10 * time.Millisecond

// ErrStopPolling can be returned by a Task to stop the Poller without error.
var ErrStopPolling = errors.New("stop polling")

// Poller runs tasks periodically. It layers the waiting on top of
// non-blocking primitives like Ring.Pop: tasks run on every tick, or
// immediately when TriggerNext is called.
type Poller struct {
	Interval time.Duration
	// FailFast stops the poller on the first task error, otherwise errors
	// are logged and polling continues.
	FailFast bool

	tasks    []Task
	wakeUpCh chan struct{}
	once     sync.Once
}

// NewPoller creates a Poller with the given interval.
func NewPoller(interval time.Duration) *Poller {
	return &Poller{Interval: interval}
}

// Add registers tasks. It must be called before Run.
func (p *Poller) Add(tasks ...Task) *Poller {
	p.tasks = append(p.tasks, tasks...)
	return p
}

// Run implements Runnable.
func (p *Poller) Run(ctx context.Context) error {
	p.init()
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-p.wakeUpCh:
		}
		if err := p.runIteration(ctx); err != nil {
			if errors.Is(err, ErrStopPolling) {
				return nil
			}
			return err
		}
	}
}

// TriggerNext implements Waker. It never blocks and coalesces
// multiple calls between iterations.
func (p *Poller) TriggerNext() {
	p.init()
	select {
	case p.wakeUpCh <- struct{}{}:
	default:
	}
}

func (p *Poller) init() {
	p.once.Do(func() {
		p.wakeUpCh = make(chan struct{}, 1)
	})
}

func (p *Poller) runIteration(ctx context.Context) error {
	for _, task := range p.tasks {
		err := task.Poll(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrStopPolling) || p.FailFast {
			return err
		}
		glog.Errorf("poll error: %v", err)
	}
	return nil
}
