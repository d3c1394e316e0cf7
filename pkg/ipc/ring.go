package ipc

import (
	"sync/atomic"
)

// Status is a snapshot of ring occupancy.
type Status struct {
	Len      int
	Capacity int
	Empty    bool
	Full     bool
}

// RingStats are counters of ring operations since creation.
type RingStats struct {
	Pushed        uint64
	Popped        uint64
	RejectedFull  uint64
	RejectedEmpty uint64
}

type slot struct {
	id       MessageID
	size     int
	checksum uint32
	payload  []byte // fixed window into Ring.arena
}

// Ring is a fixed capacity circular buffer of message slots.
// Push must only be called from the producer and Pop from the consumer;
// the two may run concurrently.
type Ring struct {
	// 64-bit counters first to keep them aligned on 32-bit targets.
	pushed        uint64
	popped        uint64
	rejectedFull  uint64
	rejectedEmpty uint64

	slots       []slot
	arena       []byte
	payloadSize int

	head  int   // producer only
	tail  int   // consumer only
	count int32 // atomic
}

// NewRing creates a ring with all slot storage allocated up front.
func NewRing(capacity, payloadSize int) (*Ring, error) {
	if capacity <= 0 {
		return nil, &ConfigError{Field: "capacity", Value: capacity, Err: ErrInvalidCapacity}
	}
	if payloadSize <= 0 {
		return nil, &ConfigError{Field: "payload size", Value: payloadSize, Err: ErrInvalidPayloadSize}
	}
	r := &Ring{
		slots:       make([]slot, capacity),
		arena:       make([]byte, capacity*payloadSize),
		payloadSize: payloadSize,
	}
	for n := range r.slots {
		off := n * payloadSize
		r.slots[n].payload = r.arena[off : off+payloadSize : off+payloadSize]
	}
	return r, nil
}

// Push copies msg into the slot at head. It fails with ErrBufferFull
// and leaves the ring unchanged when all slots are occupied.
func (r *Ring) Push(msg Message) error {
	if len(msg.Payload) > r.payloadSize {
		return ErrPayloadTooLarge
	}
	if int(atomic.LoadInt32(&r.count)) >= len(r.slots) {
		atomic.AddUint64(&r.rejectedFull, 1)
		return ErrBufferFull
	}
	s := &r.slots[r.head]
	s.id, s.checksum, s.size = msg.ID, msg.Checksum, len(msg.Payload)
	copy(s.payload, msg.Payload)
	r.head = (r.head + 1) % len(r.slots)
	// publishes the slot to the consumer.
	atomic.AddInt32(&r.count, 1)
	atomic.AddUint64(&r.pushed, 1)
	return nil
}

// Pop returns a copy of the message at tail. It fails with ErrBufferEmpty
// and leaves the ring unchanged when no slot is occupied.
func (r *Ring) Pop() (Message, error) {
	if atomic.LoadInt32(&r.count) <= 0 {
		atomic.AddUint64(&r.rejectedEmpty, 1)
		return Message{}, ErrBufferEmpty
	}
	s := &r.slots[r.tail]
	msg := Message{ID: s.id, Checksum: s.checksum}
	if s.size > 0 {
		msg.Payload = append(make([]byte, 0, s.size), s.payload[:s.size]...)
	}
	r.tail = (r.tail + 1) % len(r.slots)
	// releases the slot to the producer.
	atomic.AddInt32(&r.count, -1)
	atomic.AddUint64(&r.popped, 1)
	return msg, nil
}

// Len returns the number of occupied slots.
func (r *Ring) Len() int {
	return int(atomic.LoadInt32(&r.count))
}

// Capacity returns the number of slots.
func (r *Ring) Capacity() int {
	return len(r.slots)
}

// PayloadSize returns the payload storage size of each slot.
func (r *Ring) PayloadSize() int {
	return r.payloadSize
}

// Free returns the number of unoccupied slots.
func (r *Ring) Free() int {
	return r.Capacity() - r.Len()
}

// IsEmpty indicates no slot is occupied.
func (r *Ring) IsEmpty() bool {
	return r.Len() == 0
}

// IsFull indicates all slots are occupied.
func (r *Ring) IsFull() bool {
	return r.Len() >= r.Capacity()
}

// Status gets a snapshot of occupancy.
func (r *Ring) Status() Status {
	n := r.Len()
	return Status{Len: n, Capacity: len(r.slots), Empty: n == 0, Full: n >= len(r.slots)}
}

// Stats gets the operation counters.
func (r *Ring) Stats() RingStats {
	return RingStats{
		Pushed:        atomic.LoadUint64(&r.pushed),
		Popped:        atomic.LoadUint64(&r.popped),
		RejectedFull:  atomic.LoadUint64(&r.rejectedFull),
		RejectedEmpty: atomic.LoadUint64(&r.rejectedEmpty),
	}
}

// Tamper flips bits of a byte stored in an occupied slot to simulate
// corruption in transit. offset counts from tail; index addresses the
// big-endian id bytes (0, 1) followed by the payload. It must not race
// with Pop and is meant for simulation only.
func (r *Ring) Tamper(offset, index int, mask byte) bool {
	if offset < 0 || offset >= r.Len() || index < 0 {
		return false
	}
	s := &r.slots[(r.tail+offset)%len(r.slots)]
	switch {
	case index < 2:
		s.id ^= MessageID(mask) << (8 * uint(1-index))
	case index-2 < s.size:
		s.payload[index-2] ^= mask
	default:
		return false
	}
	return true
}
