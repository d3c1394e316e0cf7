package link

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/mcuipc/pkg/framework"
	"github.com/robotalks/mcuipc/pkg/ipc/wire"
)

// Pipe is a bi-directional pipe for frames.
type Pipe struct {
	ReadWriter PacketReadWriter
	Handler    FrameHandler

	sendLock sync.Mutex
}

// NewPipe creates a Pipe with given PacketReadWriter.
func NewPipe(rw PacketReadWriter) *Pipe {
	return &Pipe{ReadWriter: rw}
}

// Send encodes and writes a frame. It's safe for concurrent use.
func (p *Pipe) Send(body wire.Body) error {
	pkt := wire.Encode(body)
	p.sendLock.Lock()
	defer p.sendLock.Unlock()
	return p.ReadWriter.WritePacket(pkt)
}

// Run implements Runnable. Frames which can't be decoded are dropped,
// an error from the handler stops the pipe.
func (p *Pipe) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, p, func() error {
		for {
			pkt, err := p.ReadWriter.ReadPacket()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			body, err := wire.Decode(pkt)
			if err != nil {
				glog.Warningf("drop frame: %v", err)
				continue
			}
			glog.V(3).Infof("RECV %T %v", body, body)
			if h := p.Handler; h != nil {
				if err = h.HandleFrame(ctx, body); err != nil {
					return err
				}
			}
		}
	})
}

// Close implements Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// IsClosed tells whether err is the result of a closed transport.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
