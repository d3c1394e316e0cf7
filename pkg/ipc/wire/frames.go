package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/robotalks/mcuipc/pkg/ipc"
)

// Frame kinds.
const (
	KindHello    uint32 = 1
	KindHelloAck uint32 = 2
	KindMessage  uint32 = 3
	KindAck      uint32 = 4
)

// Body is the content of a Frame.
type Body interface {
	fmt.Stringer
	Kind() uint32
	// AppendWire appends the protobuf encoding of the body to b.
	AppendWire(b []byte) []byte
	// UnmarshalWire decodes the body from its protobuf encoding. Unknown
	// fields are skipped.
	UnmarshalWire(b []byte) error
}

// Frame is the envelope of every packet.
//
//	message Frame { uint32 kind = 1; bytes body = 2; }
type Frame struct {
	Kind uint32
	Body []byte
}

// AppendWire appends the encoded frame to b.
func (m *Frame) AppendWire(b []byte) []byte {
	b = appendUint32(b, 1, m.Kind)
	return appendBytes(b, 2, m.Body)
}

// UnmarshalWire decodes the frame.
func (m *Frame) UnmarshalWire(b []byte) error {
	*m = Frame{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeUint32(typ, b, &m.Kind)
		case 2:
			return consumeBytes(typ, b, &m.Body)
		}
		return 0
	})
}

func (m *Frame) String() string {
	return fmt.Sprintf("kind:%d body:%d bytes", m.Kind, len(m.Body))
}

// Hello opens a session. The receiving side checks the ring parameters
// match its own before accepting messages.
//
//	message Hello {
//	  string session = 1; uint32 capacity = 2; uint32 payload_size = 3;
//	  string checksum = 4; string link_id = 5;
//	}
type Hello struct {
	Session     string
	Capacity    uint32
	PayloadSize uint32
	Checksum    string
	LinkID      string
}

// NewHello creates a Hello describing conf.
func NewHello(session, linkID string, conf ipc.Config) *Hello {
	return &Hello{
		Session:     session,
		Capacity:    uint32(conf.Capacity),
		PayloadSize: uint32(conf.PayloadSize),
		Checksum:    conf.Checksum.String(),
		LinkID:      linkID,
	}
}

// Kind implements Body.
func (m *Hello) Kind() uint32 { return KindHello }

// AppendWire implements Body.
func (m *Hello) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.Session)
	b = appendUint32(b, 2, m.Capacity)
	b = appendUint32(b, 3, m.PayloadSize)
	b = appendString(b, 4, m.Checksum)
	return appendString(b, 5, m.LinkID)
}

// UnmarshalWire implements Body.
func (m *Hello) UnmarshalWire(b []byte) error {
	*m = Hello{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Session)
		case 2:
			return consumeUint32(typ, b, &m.Capacity)
		case 3:
			return consumeUint32(typ, b, &m.PayloadSize)
		case 4:
			return consumeString(typ, b, &m.Checksum)
		case 5:
			return consumeString(typ, b, &m.LinkID)
		}
		return 0
	})
}

func (m *Hello) String() string {
	return fmt.Sprintf("session:%q capacity:%d payload_size:%d checksum:%q link_id:%q",
		m.Session, m.Capacity, m.PayloadSize, m.Checksum, m.LinkID)
}

// HelloAck accepts or rejects a session. Free is the number of slots
// available in the receiving ring, which is the initial credit.
//
//	message HelloAck { string session = 1; uint32 free = 2; string error = 3; }
type HelloAck struct {
	Session string
	Free    uint32
	Error   string
}

// Kind implements Body.
func (m *HelloAck) Kind() uint32 { return KindHelloAck }

// AppendWire implements Body.
func (m *HelloAck) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.Session)
	b = appendUint32(b, 2, m.Free)
	return appendString(b, 3, m.Error)
}

// UnmarshalWire implements Body.
func (m *HelloAck) UnmarshalWire(b []byte) error {
	*m = HelloAck{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Session)
		case 2:
			return consumeUint32(typ, b, &m.Free)
		case 3:
			return consumeString(typ, b, &m.Error)
		}
		return 0
	})
}

func (m *HelloAck) String() string {
	str := fmt.Sprintf("session:%q free:%d", m.Session, m.Free)
	if m.Error != "" {
		str += fmt.Sprintf(" error:%q", m.Error)
	}
	return str
}

// MessageFrame carries one ring message as it is, including the checksum
// computed by the sender. It's never re-stamped on the way.
//
//	message MessageFrame { uint32 id = 1; bytes payload = 2; uint32 checksum = 3; }
type MessageFrame struct {
	Id       uint32
	Payload  []byte
	Checksum uint32
}

// FromMessage creates a MessageFrame.
func FromMessage(msg ipc.Message) *MessageFrame {
	return &MessageFrame{Id: uint32(msg.ID), Payload: msg.Payload, Checksum: msg.Checksum}
}

// Message converts the frame back.
func (m *MessageFrame) Message() (ipc.Message, error) {
	if m.Id > 0xffff {
		return ipc.Message{}, &InvalidFrameError{Kind: KindMessage, Reason: "id out of range"}
	}
	msg := ipc.Message{ID: ipc.MessageID(m.Id), Checksum: m.Checksum}
	if len(m.Payload) > 0 {
		msg.Payload = m.Payload
	}
	return msg, nil
}

// Kind implements Body.
func (m *MessageFrame) Kind() uint32 { return KindMessage }

// AppendWire implements Body.
func (m *MessageFrame) AppendWire(b []byte) []byte {
	b = appendUint32(b, 1, m.Id)
	b = appendBytes(b, 2, m.Payload)
	return appendUint32(b, 3, m.Checksum)
}

// UnmarshalWire implements Body.
func (m *MessageFrame) UnmarshalWire(b []byte) error {
	*m = MessageFrame{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeUint32(typ, b, &m.Id)
		case 2:
			return consumeBytes(typ, b, &m.Payload)
		case 3:
			return consumeUint32(typ, b, &m.Checksum)
		}
		return 0
	})
}

func (m *MessageFrame) String() string {
	return fmt.Sprintf("id:%d payload:%x checksum:%#x", m.Id, m.Payload, m.Checksum)
}

// AckFrame carries an ack back to the sender.
//
//	message AckFrame { uint32 id = 1; uint32 status = 2; }
type AckFrame struct {
	Id     uint32
	Status uint32
}

// FromAck creates an AckFrame.
func FromAck(ack ipc.Ack) *AckFrame {
	return &AckFrame{Id: uint32(ack.MessageID), Status: uint32(ack.Status)}
}

// Ack converts the frame back.
func (m *AckFrame) Ack() (ipc.Ack, error) {
	if m.Id > 0xffff {
		return ipc.Ack{}, &InvalidFrameError{Kind: KindAck, Reason: "id out of range"}
	}
	status := ipc.AckStatus(m.Status)
	if m.Status > 0xff || !status.IsValid() {
		return ipc.Ack{}, &InvalidFrameError{Kind: KindAck, Reason: "invalid status"}
	}
	return ipc.Ack{MessageID: ipc.MessageID(m.Id), Status: status}, nil
}

// Kind implements Body.
func (m *AckFrame) Kind() uint32 { return KindAck }

// AppendWire implements Body.
func (m *AckFrame) AppendWire(b []byte) []byte {
	b = appendUint32(b, 1, m.Id)
	return appendUint32(b, 2, m.Status)
}

// UnmarshalWire implements Body.
func (m *AckFrame) UnmarshalWire(b []byte) error {
	*m = AckFrame{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeUint32(typ, b, &m.Id)
		case 2:
			return consumeUint32(typ, b, &m.Status)
		}
		return 0
	})
}

func (m *AckFrame) String() string {
	return fmt.Sprintf("id:%d status:%d", m.Id, m.Status)
}
