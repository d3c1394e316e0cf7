package wire

import (
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// UnknownKindError indicates a frame of unknown kind.
type UnknownKindError struct {
	Kind uint32
}

// Error implements error.
func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown frame kind: %d", e.Kind)
}

// InvalidFrameError indicates a decoded frame carries values out of range.
type InvalidFrameError struct {
	Kind   uint32
	Reason string
}

// Error implements error.
func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("invalid frame kind %d: %s", e.Kind, e.Reason)
}

// BodyTypes maps kinds to body factories.
var BodyTypes = map[uint32]func() Body{
	KindHello:    func() Body { return &Hello{} },
	KindHelloAck: func() Body { return &HelloAck{} },
	KindMessage:  func() Body { return &MessageFrame{} },
	KindAck:      func() Body { return &AckFrame{} },
}

// Encode encodes a body into a frame packet.
func Encode(body Body) []byte {
	frame := Frame{Kind: body.Kind(), Body: body.AppendWire(nil)}
	return frame.AppendWire(nil)
}

// DecodeFrame decodes the envelope only.
func DecodeFrame(pkt []byte) (*Frame, error) {
	var frame Frame
	if err := frame.UnmarshalWire(pkt); err != nil {
		return nil, errors.Wrap(err, "decode frame")
	}
	return &frame, nil
}

// Decode decodes the body of the frame.
func (m *Frame) Decode() (Body, error) {
	newBody, ok := BodyTypes[m.Kind]
	if !ok {
		return nil, &UnknownKindError{Kind: m.Kind}
	}
	body := newBody()
	if err := body.UnmarshalWire(m.Body); err != nil {
		return nil, errors.Wrapf(err, "decode frame kind %d", m.Kind)
	}
	return body, nil
}

// Decode decodes a packet into its body.
func Decode(pkt []byte) (Body, error) {
	frame, err := DecodeFrame(pkt)
	if err != nil {
		return nil, err
	}
	return frame.Decode()
}

// Zero values are omitted, as proto3 does.

func appendUint32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// fieldFunc decodes the value of a field starting at b and returns the
// number of bytes consumed, or a negative protowire error code. Returning
// 0 skips the field as unknown.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) int

func consumeFields(b []byte, field fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if n = field(num, typ, b); n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

// A field with an unexpected wire type is treated as unknown.

func consumeUint32(typ protowire.Type, b []byte, v *uint32) int {
	if typ != protowire.VarintType {
		return 0
	}
	val, n := protowire.ConsumeVarint(b)
	if n > 0 {
		*v = uint32(val)
	}
	return n
}

func consumeBytes(typ protowire.Type, b []byte, v *[]byte) int {
	if typ != protowire.BytesType {
		return 0
	}
	val, n := protowire.ConsumeBytes(b)
	if n > 0 {
		// packets may be reused by the transport.
		*v = append([]byte(nil), val...)
	}
	return n
}

func consumeString(typ protowire.Type, b []byte, v *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	val, n := protowire.ConsumeString(b)
	if n > 0 {
		*v = val
	}
	return n
}
