package ipc

import (
	"encoding/binary"
	"fmt"
)

// MessageID identifies a message for ack correlation.
type MessageID uint16

// Next calculates the next id. It wraps to 0 after 0xffff without special
// handling: ids only need to be unique within the in-flight window.
func (id MessageID) Next() MessageID {
	return id + 1
}

// Bytes returns the big-endian representation of the id.
func (id MessageID) Bytes() []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(id))
	return b[:]
}

// Message is the framed unit of data carried in a ring slot.
type Message struct {
	ID       MessageID
	Payload  []byte
	Checksum uint32
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	c := m
	if m.Payload != nil {
		c.Payload = append([]byte(nil), m.Payload...)
	}
	return c
}

// String implements fmt.Stringer.
func (m Message) String() string {
	return fmt.Sprintf("#%d[% x] sum=%08x", m.ID, m.Payload, m.Checksum)
}
