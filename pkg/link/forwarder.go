package link

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	fx "github.com/robotalks/mcuipc/pkg/framework"
	"github.com/robotalks/mcuipc/pkg/ipc"
	"github.com/robotalks/mcuipc/pkg/ipc/wire"
)

// ForwarderStats are counters of a Forwarder.
type ForwarderStats struct {
	Forwarded   uint64
	AcksRelayed uint64
	AcksDropped uint64
}

// Forwarder is the consumer of the tx ring on the sender side. It forwards
// messages to a remote Mirror and relays the acks coming back into the
// local ack path.
type Forwarder struct {
	stats ForwarderStats

	Config ipc.Config
	LinkID string

	ring    *ipc.Ring
	acks    ipc.AckSender
	pipe    Pipe
	poller  fx.Poller
	session string
	credit  int32
	ready   int32
}

// NewForwarder creates a Forwarder consuming ring and relaying acks to acks.
func NewForwarder(rw PacketReadWriter, ring *ipc.Ring, acks ipc.AckSender, conf ipc.Config) *Forwarder {
	f := &Forwarder{
		Config:  conf,
		ring:    ring,
		acks:    acks,
		session: uuid.New().String(),
	}
	f.pipe.ReadWriter = rw
	f.pipe.Handler = HandleFrameFunc(f.handleFrame)
	f.poller.FailFast = true
	f.poller.Add(fx.PollFunc(f.forward))
	return f
}

// WithInterval sets the polling interval of the tx ring.
func (f *Forwarder) WithInterval(interval time.Duration) *Forwarder {
	f.poller.Interval = interval
	return f
}

// Session gets the id of the session opened by this forwarder.
func (f *Forwarder) Session() string {
	return f.session
}

// Ready indicates the remote end accepted the session.
func (f *Forwarder) Ready() bool {
	return atomic.LoadInt32(&f.ready) != 0
}

// Credit is the number of messages which can be forwarded now.
func (f *Forwarder) Credit() int {
	return int(atomic.LoadInt32(&f.credit))
}

// Stats gets the counters.
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Forwarded:   atomic.LoadUint64(&f.stats.Forwarded),
		AcksRelayed: atomic.LoadUint64(&f.stats.AcksRelayed),
		AcksDropped: atomic.LoadUint64(&f.stats.AcksDropped),
	}
}

// TriggerNext implements Waker. Call it after sending to forward without
// waiting for the next tick.
func (f *Forwarder) TriggerNext() {
	f.poller.TriggerNext()
}

// Run implements Runnable.
func (f *Forwarder) Run(ctx context.Context) error {
	hello := wire.NewHello(f.session, f.LinkID, f.Config)
	if err := f.pipe.Send(hello); err != nil {
		return errors.Wrap(err, "send hello")
	}
	glog.V(1).Infof("MCU1 link hello %s", f.session)
	runner := fx.NewRunnerWith(ctx)
	runner.Go(fx.NamedRun("pipe", &f.pipe), fx.NamedRun("forward", &f.poller))
	return runner.Wait()
}

func (f *Forwarder) handleFrame(ctx context.Context, body wire.Body) error {
	switch body := body.(type) {
	case *wire.HelloAck:
		if body.Session != f.session {
			glog.Warningf("MCU1 link ignored hello ack of session %q", body.Session)
			return nil
		}
		if body.Error != "" {
			return errors.Wrap(ErrConfigMismatch, body.Error)
		}
		atomic.StoreInt32(&f.credit, int32(body.Free))
		atomic.StoreInt32(&f.ready, 1)
		glog.Infof("MCU1 link ready, credit %d", body.Free)
	case *wire.AckFrame:
		ack, err := body.Ack()
		if err != nil {
			glog.Warningf("MCU1 link dropped ack: %v", err)
			return nil
		}
		// the remote slot is free again regardless of what happens locally.
		atomic.AddInt32(&f.credit, 1)
		if err = f.acks.SendAck(ack); err != nil {
			atomic.AddUint64(&f.stats.AcksDropped, 1)
			glog.Warningf("MCU1 link dropped %s: %v", ack, err)
		} else {
			atomic.AddUint64(&f.stats.AcksRelayed, 1)
		}
	default:
		return errors.Wrapf(ErrUnexpectedFrame, "%T on sender side", body)
	}
	f.poller.TriggerNext()
	return nil
}

func (f *Forwarder) forward(ctx context.Context) error {
	if !f.Ready() {
		return nil
	}
	for atomic.LoadInt32(&f.credit) > 0 {
		msg, err := f.ring.Pop()
		if errors.Is(err, ipc.ErrBufferEmpty) {
			return nil
		}
		if err != nil {
			return err
		}
		if err = f.pipe.Send(wire.FromMessage(msg)); err != nil {
			return errors.Wrapf(err, "forward #%d", msg.ID)
		}
		atomic.AddInt32(&f.credit, -1)
		atomic.AddUint64(&f.stats.Forwarded, 1)
		glog.V(2).Infof("MCU1 link forwarded #%d", msg.ID)
	}
	return nil
}
