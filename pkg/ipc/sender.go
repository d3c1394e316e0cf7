package ipc

import (
	"container/list"
	"errors"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// InFlight records a sent message which hasn't been acknowledged as
// delivered yet.
type InFlight struct {
	ID      MessageID
	Payload []byte
	SentAt  time.Time
	// Status is zero while pending, ChecksumFailed once the receiver
	// reported corruption.
	Status AckStatus

	elem *list.Element
}

// SenderStats are counters of the sender.
type SenderStats struct {
	Sent          uint64
	RejectedFull  uint64
	AckDelivered  uint64
	AckFailed     uint64
	AckUnknown    uint64
	Evicted       uint64
	InFlightCount int64
}

// Sender is the MCU1 side of the protocol. It's not safe for concurrent
// use; exactly one goroutine sends and handles acks.
type Sender struct {
	stats SenderStats // first for 64-bit atomic alignment

	// InFlightLimit bounds the number of tracked messages, the oldest is
	// evicted when exceeded. Zero means twice the ring capacity.
	InFlightLimit int

	ring     *Ring
	checksum Checksum
	nextID   MessageID
	inflight list.List
	idMap    map[MessageID]*InFlight
	now      func() time.Time
}

// NewSender creates a Sender producing into ring.
func NewSender(ring *Ring, checksum Checksum) *Sender {
	return &Sender{
		ring:     ring,
		checksum: checksum,
		idMap:    make(map[MessageID]*InFlight),
		now:      time.Now,
	}
}

// WithFirstID sets the id assigned by the next Send.
func (s *Sender) WithFirstID(id MessageID) *Sender {
	s.nextID = id
	return s
}

// NextID returns the id the next successful Send will assign.
func (s *Sender) NextID() MessageID {
	return s.nextID
}

// Ring gets the ring the sender produces into.
func (s *Sender) Ring() *Ring {
	return s.ring
}

// Send stamps payload with the next id and pushes it. The id is only
// consumed when the push succeeds.
func (s *Sender) Send(payload []byte) (MessageID, error) {
	if len(payload) > s.ring.PayloadSize() {
		return 0, ErrPayloadTooLarge
	}
	id := s.nextID
	if err := s.ring.Push(s.checksum.Stamp(id, payload)); err != nil {
		if errors.Is(err, ErrBufferFull) {
			atomic.AddUint64(&s.stats.RejectedFull, 1)
			return 0, ErrFull
		}
		return 0, err
	}
	s.nextID = id.Next()
	atomic.AddUint64(&s.stats.Sent, 1)
	s.track(id, payload)
	glog.V(2).Infof("MCU1 sent #%d (%d bytes)", id, len(payload))
	return id, nil
}

// HandleAck retires the message acknowledged. Delivered messages are
// forgotten; failed ones stay tracked for Resend. The returned bool is
// false when the id isn't tracked.
func (s *Sender) HandleAck(ack Ack) (InFlight, bool) {
	f := s.idMap[ack.MessageID]
	if f == nil {
		atomic.AddUint64(&s.stats.AckUnknown, 1)
		glog.V(2).Infof("MCU1 %s: not in flight", ack)
		return InFlight{}, false
	}
	switch ack.Status {
	case Delivered:
		atomic.AddUint64(&s.stats.AckDelivered, 1)
		s.untrack(f)
	case ChecksumFailed:
		atomic.AddUint64(&s.stats.AckFailed, 1)
		f.Status = ChecksumFailed
		glog.Warningf("MCU1 #%d reported corrupted", ack.MessageID)
	}
	glog.V(2).Infof("MCU1 %s", ack)
	return *f, true
}

// PollAcks drains acks from rcv until none is pending and handles them.
// Corrupted acks are skipped.
func (s *Sender) PollAcks(rcv AckReceiver) (n int, err error) {
	for {
		ack, err := rcv.ReceiveAck()
		if errors.Is(err, ErrBufferEmpty) {
			return n, nil
		}
		if errors.Is(err, ErrCorruptAck) {
			glog.Warningf("MCU1 dropped corrupted ack for #%d", ack.MessageID)
			continue
		}
		if err != nil {
			return n, err
		}
		s.HandleAck(ack)
		n++
	}
}

// Resend sends the payload of a tracked message again as a fresh message
// with a new id. The old id is forgotten once the new one is enqueued.
func (s *Sender) Resend(id MessageID) (MessageID, error) {
	f := s.idMap[id]
	if f == nil {
		return 0, ErrUnknownMessage
	}
	newID, err := s.Send(f.Payload)
	if err != nil {
		return 0, err
	}
	// f may have been evicted by Send already.
	if s.idMap[id] == f {
		s.untrack(f)
	}
	glog.V(2).Infof("MCU1 resent #%d as #%d", id, newID)
	return newID, nil
}

// InFlight lists tracked messages, oldest first.
func (s *Sender) InFlight() []InFlight {
	items := make([]InFlight, 0, s.inflight.Len())
	for elem := s.inflight.Front(); elem != nil; elem = elem.Next() {
		items = append(items, *elem.Value.(*InFlight))
	}
	return items
}

// Stats gets the counters. It's safe to call from other goroutines.
func (s *Sender) Stats() SenderStats {
	return SenderStats{
		Sent:          atomic.LoadUint64(&s.stats.Sent),
		RejectedFull:  atomic.LoadUint64(&s.stats.RejectedFull),
		AckDelivered:  atomic.LoadUint64(&s.stats.AckDelivered),
		AckFailed:     atomic.LoadUint64(&s.stats.AckFailed),
		AckUnknown:    atomic.LoadUint64(&s.stats.AckUnknown),
		Evicted:       atomic.LoadUint64(&s.stats.Evicted),
		InFlightCount: atomic.LoadInt64(&s.stats.InFlightCount),
	}
}

func (s *Sender) track(id MessageID, payload []byte) {
	limit := s.InFlightLimit
	if limit <= 0 {
		limit = 2 * s.ring.Capacity()
	}
	if old := s.idMap[id]; old != nil {
		// id wrapped around while the old one was never acknowledged.
		s.untrack(old)
	}
	for s.inflight.Len() >= limit {
		oldest := s.inflight.Front().Value.(*InFlight)
		glog.Warningf("MCU1 #%d evicted from in-flight window without ack", oldest.ID)
		atomic.AddUint64(&s.stats.Evicted, 1)
		s.untrack(oldest)
	}
	f := &InFlight{
		ID:      id,
		Payload: append([]byte(nil), payload...),
		SentAt:  s.now(),
	}
	f.elem = s.inflight.PushBack(f)
	s.idMap[id] = f
	atomic.AddInt64(&s.stats.InFlightCount, 1)
}

func (s *Sender) untrack(f *InFlight) {
	s.inflight.Remove(f.elem)
	delete(s.idMap, f.ID)
	atomic.AddInt64(&s.stats.InFlightCount, -1)
}
