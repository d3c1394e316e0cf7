package ipc

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferFull indicates the ring has no free slot.
	ErrBufferFull = errors.New("buffer full")
	// ErrBufferEmpty indicates the ring has no message to pop.
	ErrBufferEmpty = errors.New("buffer empty")
	// ErrPayloadTooLarge indicates the payload exceeds the slot payload size.
	// Payloads are never truncated.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrInvalidCapacity indicates a ring is configured with capacity <= 0.
	ErrInvalidCapacity = errors.New("invalid capacity")
	// ErrInvalidPayloadSize indicates a ring is configured with payload size <= 0.
	ErrInvalidPayloadSize = errors.New("invalid payload size")
	// ErrUnknownChecksum indicates an unsupported checksum algorithm.
	ErrUnknownChecksum = errors.New("unknown checksum algorithm")

	// ErrFull is returned by Sender.Send when the ring is full.
	// The caller decides whether to retry, drop or back off.
	ErrFull = &wrapped{msg: "send: ring full", err: ErrBufferFull}
	// ErrNoMessage is returned by Receiver.Receive when there is nothing to
	// receive. It's the normal result of polling an idle ring.
	ErrNoMessage = &wrapped{msg: "receive: no message", err: ErrBufferEmpty}
	// ErrNoAck is returned by AckRing.ReceiveAck when no ack is pending.
	ErrNoAck = &wrapped{msg: "no ack", err: ErrBufferEmpty}
	// ErrCorruptAck indicates an ack failed its own checksum.
	ErrCorruptAck = errors.New("corrupted ack")
	// ErrUnknownMessage indicates the message id isn't tracked as in-flight.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrAckLost is matched by the error of Receiver.ReceiveAndAck when the
	// message was consumed but its ack couldn't be sent.
	ErrAckLost = errors.New("ack lost")
)

// wrapped is a sentinel error refining a lower level sentinel, so both
// errors.Is(err, ErrFull) and errors.Is(err, ErrBufferFull) hold.
type wrapped struct {
	msg string
	err error
}

func (e *wrapped) Error() string { return e.msg }
func (e *wrapped) Unwrap() error { return e.err }

// AckLostError is returned when a received message's ack couldn't be
// sent. It matches both ErrAckLost and the cause.
type AckLostError struct {
	Ack Ack
	Err error
}

// Error implements error.
func (e *AckLostError) Error() string {
	return fmt.Sprintf("ack #%d %s lost: %v", e.Ack.MessageID, e.Ack.Status, e.Err)
}

// Unwrap returns ErrAckLost and the cause.
func (e *AckLostError) Unwrap() []error {
	return []error{ErrAckLost, e.Err}
}

// ConfigError reports an invalid configuration value detected at
// construction time.
type ConfigError struct {
	Field string
	Value interface{}
	Err   error
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
