package ipc

import (
	"errors"
	"sync/atomic"

	"github.com/golang/glog"
)

// ReceiverStats are counters of the receiver.
type ReceiverStats struct {
	Received       uint64
	Delivered      uint64
	ChecksumFailed uint64
	EmptyPolls     uint64
}

// Receiver is the MCU2 side of the protocol. It's not safe for concurrent
// use; exactly one goroutine receives.
type Receiver struct {
	stats    ReceiverStats
	ring     *Ring
	checksum Checksum
}

// NewReceiver creates a Receiver consuming from ring.
func NewReceiver(ring *Ring, checksum Checksum) *Receiver {
	return &Receiver{ring: ring, checksum: checksum}
}

// Ring gets the ring the receiver consumes from.
func (r *Receiver) Ring() *Ring {
	return r.ring
}

// Receive pops the next message and verifies it. A corrupted message is
// returned with a ChecksumFailed ack and is never requeued.
// ErrNoMessage is returned when the ring is empty.
func (r *Receiver) Receive() (Message, Ack, error) {
	msg, err := r.ring.Pop()
	if err != nil {
		if errors.Is(err, ErrBufferEmpty) {
			atomic.AddUint64(&r.stats.EmptyPolls, 1)
			return Message{}, Ack{}, ErrNoMessage
		}
		return Message{}, Ack{}, err
	}
	atomic.AddUint64(&r.stats.Received, 1)
	ack := r.Acknowledge(msg)
	if ack.Status == Delivered {
		atomic.AddUint64(&r.stats.Delivered, 1)
		glog.V(2).Infof("MCU2 received #%d (%d bytes)", msg.ID, len(msg.Payload))
	} else {
		atomic.AddUint64(&r.stats.ChecksumFailed, 1)
		glog.Warningf("MCU2 corrupted message #%d", msg.ID)
	}
	return msg, ack, nil
}

// Acknowledge verifies an already popped message and produces its ack.
func (r *Receiver) Acknowledge(msg Message) Ack {
	if r.checksum.Verify(msg) {
		return Ack{MessageID: msg.ID, Status: Delivered}
	}
	return Ack{MessageID: msg.ID, Status: ChecksumFailed}
}

// ReceiveAndAck receives one message and forwards its ack. The message
// is consumed and returned even if the ack couldn't be sent, in which case
// the error is an *AckLostError.
func (r *Receiver) ReceiveAndAck(acks AckSender) (Message, Ack, error) {
	msg, ack, err := r.Receive()
	if err != nil {
		return msg, ack, err
	}
	if err = acks.SendAck(ack); err != nil {
		return msg, ack, &AckLostError{Ack: ack, Err: err}
	}
	return msg, ack, nil
}

// Drain receives until the ring is empty and calls fn for each message.
// A non-nil error from fn stops draining.
func (r *Receiver) Drain(fn func(Message, Ack) error) (n int, err error) {
	for {
		msg, ack, err := r.Receive()
		if errors.Is(err, ErrNoMessage) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		if err = fn(msg, ack); err != nil {
			return n, err
		}
	}
}

// Stats gets the counters. It's safe to call from other goroutines.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Received:       atomic.LoadUint64(&r.stats.Received),
		Delivered:      atomic.LoadUint64(&r.stats.Delivered),
		ChecksumFailed: atomic.LoadUint64(&r.stats.ChecksumFailed),
		EmptyPolls:     atomic.LoadUint64(&r.stats.EmptyPolls),
	}
}
