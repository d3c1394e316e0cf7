package ipc

import "fmt"

// AckStatus is the final delivery outcome of a message.
type AckStatus byte

const (
	// Delivered means the message passed checksum verification.
	Delivered AckStatus = 1
	// ChecksumFailed means the message was corrupted and must not be trusted.
	ChecksumFailed AckStatus = 2
)

// String implements fmt.Stringer.
func (s AckStatus) String() string {
	switch s {
	case Delivered:
		return "Delivered"
	case ChecksumFailed:
		return "ChecksumFailed"
	}
	return fmt.Sprintf("AckStatus(%d)", byte(s))
}

// IsValid checks if it's a known status.
func (s AckStatus) IsValid() bool {
	return s == Delivered || s == ChecksumFailed
}

// Ack acknowledges a received message.
type Ack struct {
	MessageID MessageID
	Status    AckStatus
}

// String implements fmt.Stringer.
func (a Ack) String() string {
	return fmt.Sprintf("ack #%d %s", a.MessageID, a.Status)
}

// AckSender transmits acks from the receiver back to the sender.
type AckSender interface {
	SendAck(Ack) error
}

// AckReceiver retrieves acks on the sender side.
type AckReceiver interface {
	ReceiveAck() (Ack, error)
}

// AckChannel carries acks in both directions of the call.
type AckChannel interface {
	AckSender
	AckReceiver
}

// SendAckFunc is func form of AckSender.
type SendAckFunc func(Ack) error

// SendAck implements AckSender.
func (f SendAckFunc) SendAck(ack Ack) error {
	return f(ack)
}

// AckRing is an AckChannel backed by a second Ring. Each ack is stored as
// a stamped message whose id is the acknowledged id and whose single
// payload byte is the status.
type AckRing struct {
	ring     *Ring
	checksum Checksum
}

// NewAckRing creates an AckRing with the given capacity.
func NewAckRing(capacity int, checksum Checksum) (*AckRing, error) {
	if !checksum.IsValid() {
		return nil, &ConfigError{Field: "checksum", Value: int(checksum), Err: ErrUnknownChecksum}
	}
	ring, err := NewRing(capacity, 1)
	if err != nil {
		return nil, err
	}
	return &AckRing{ring: ring, checksum: checksum}, nil
}

// Ring gets the underlying ring.
func (r *AckRing) Ring() *Ring {
	return r.ring
}

// SendAck implements AckSender. It fails with ErrBufferFull when the
// sender hasn't drained earlier acks.
func (r *AckRing) SendAck(ack Ack) error {
	return r.ring.Push(r.checksum.Stamp(ack.MessageID, []byte{byte(ack.Status)}))
}

// ReceiveAck implements AckReceiver.
func (r *AckRing) ReceiveAck() (Ack, error) {
	msg, err := r.ring.Pop()
	if err != nil {
		return Ack{}, ErrNoAck
	}
	if !r.checksum.Verify(msg) || len(msg.Payload) != 1 || !AckStatus(msg.Payload[0]).IsValid() {
		return Ack{MessageID: msg.ID}, ErrCorruptAck
	}
	return Ack{MessageID: msg.ID, Status: AckStatus(msg.Payload[0])}, nil
}
