package link

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/mcuipc/pkg/ipc"
	"github.com/robotalks/mcuipc/pkg/ipc/wire"
)

// MirrorStats are counters of a Mirror.
type MirrorStats struct {
	Received uint64
	Rejected uint64
	AcksSent uint64
}

// Mirror is the producer of the rx ring on the receiver side. It pushes
// messages forwarded by the remote Forwarder into the ring as they are and
// sends acks back. It implements ipc.AckSender for the local Receiver.
type Mirror struct {
	stats MirrorStats

	Config ipc.Config

	ring    *ipc.Ring
	pipe    Pipe
	session string
	lock    sync.RWMutex
}

// NewMirror creates a Mirror producing into ring.
func NewMirror(rw PacketReadWriter, ring *ipc.Ring, conf ipc.Config) *Mirror {
	m := &Mirror{Config: conf, ring: ring}
	m.pipe.ReadWriter = rw
	m.pipe.Handler = HandleFrameFunc(m.handleFrame)
	return m
}

// Session gets the accepted session, empty before any Hello.
func (m *Mirror) Session() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.session
}

// Stats gets the counters.
func (m *Mirror) Stats() MirrorStats {
	return MirrorStats{
		Received: atomic.LoadUint64(&m.stats.Received),
		Rejected: atomic.LoadUint64(&m.stats.Rejected),
		AcksSent: atomic.LoadUint64(&m.stats.AcksSent),
	}
}

// SendAck implements ipc.AckSender.
func (m *Mirror) SendAck(ack ipc.Ack) error {
	if err := m.pipe.Send(wire.FromAck(ack)); err != nil {
		return errors.Wrapf(err, "send %s", ack)
	}
	atomic.AddUint64(&m.stats.AcksSent, 1)
	return nil
}

// Run implements Runnable.
func (m *Mirror) Run(ctx context.Context) error {
	return m.pipe.Run(ctx)
}

func (m *Mirror) handleFrame(ctx context.Context, body wire.Body) error {
	switch body := body.(type) {
	case *wire.Hello:
		return m.handleHello(body)
	case *wire.MessageFrame:
		m.handleMessage(body)
		return nil
	}
	return errors.Wrapf(ErrUnexpectedFrame, "%T on receiver side", body)
}

func (m *Mirror) handleHello(hello *wire.Hello) error {
	if err := m.checkHello(hello); err != nil {
		glog.Errorf("MCU2 link rejected %s: %v", hello.LinkID, err)
		if sendErr := m.pipe.Send(&wire.HelloAck{Session: hello.Session, Error: err.Error()}); sendErr != nil {
			glog.Errorf("MCU2 link %s: rejection not sent: %v", hello.LinkID, sendErr)
		}
		return err
	}
	m.lock.Lock()
	m.session = hello.Session
	m.lock.Unlock()
	free := m.ring.Free()
	glog.Infof("MCU2 link accepted %s session %s, free %d", hello.LinkID, hello.Session, free)
	return m.pipe.Send(&wire.HelloAck{Session: hello.Session, Free: uint32(free)})
}

func (m *Mirror) checkHello(hello *wire.Hello) error {
	if c := int(hello.Capacity); c != m.Config.Capacity {
		return errors.Wrapf(ErrConfigMismatch, "capacity %d, expect %d", c, m.Config.Capacity)
	}
	if s := int(hello.PayloadSize); s != m.Config.PayloadSize {
		return errors.Wrapf(ErrConfigMismatch, "payload size %d, expect %d", s, m.Config.PayloadSize)
	}
	if name := m.Config.Checksum.String(); hello.Checksum != name {
		return errors.Wrapf(ErrConfigMismatch, "checksum %s, expect %s", hello.Checksum, name)
	}
	return nil
}

// handleMessage pushes a forwarded message. A frame which can't be pushed
// is answered with a ChecksumFailed ack so the sender can resend it and the
// forwarder's credit stays balanced.
func (m *Mirror) handleMessage(frame *wire.MessageFrame) {
	if m.Session() == "" {
		glog.Warningf("MCU2 link dropped #%d before hello", frame.Id)
		return
	}
	msg, err := frame.Message()
	if err == nil {
		err = m.ring.Push(msg)
	}
	if err == nil {
		atomic.AddUint64(&m.stats.Received, 1)
		glog.V(2).Infof("MCU2 link mirrored #%d", msg.ID)
		return
	}
	atomic.AddUint64(&m.stats.Rejected, 1)
	glog.Errorf("MCU2 link rejected #%d: %v", frame.Id, err)
	if frame.Id <= 0xffff {
		if err = m.SendAck(ipc.Ack{MessageID: ipc.MessageID(frame.Id), Status: ipc.ChecksumFailed}); err != nil {
			glog.Errorf("MCU2 link: %v", err)
		}
	}
}
