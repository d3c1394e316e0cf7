package link

import (
	"context"

	"github.com/robotalks/mcuipc/pkg/ipc/wire"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// FrameHandler handles decoded frames.
type FrameHandler interface {
	HandleFrame(context.Context, wire.Body) error
}

// HandleFrameFunc is func form of FrameHandler.
type HandleFrameFunc func(context.Context, wire.Body) error

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, body wire.Body) error {
	return f(ctx, body)
}
