// Package serial carries packets over a UART.
package serial

import (
	"bufio"
	"io"
	"os"
	"syscall"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// ErrFrameTooLarge indicates a packet can't be framed.
var ErrFrameTooLarge = errors.New("frame too large")

// ReadWriter implements link.PacketReadWriter over a serial line.
// If reads on the underlying device time out, the timeout drops a
// partial frame.
type ReadWriter struct {
	io.ReadWriter

	parser Parser
	reader *bufio.Reader
}

// New creates a ReadWriter with io.ReadWriter.
func New(rw io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: rw, reader: bufio.NewReader(rw)}
}

// Open opens a serial device. Line settings (baud rate, parity) are
// expected to be configured on the device already, e.g. with stty.
func Open(device string) (*ReadWriter, error) {
	f, err := os.OpenFile(device, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", device)
	}
	return New(f), nil
}

// WithMaxLen limits the size of frames accepted.
func (p *ReadWriter) WithMaxLen(n int) *ReadWriter {
	p.parser.MaxLen = n
	return p
}

// Parser exposes the parser for its counters.
func (p *ReadWriter) Parser() *Parser {
	return &p.parser
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	for {
		b, err := p.reader.ReadByte()
		if err != nil {
			if os.IsTimeout(err) {
				p.parser.Timeout()
				continue
			}
			return nil, err
		}
		resyncs := p.parser.Resyncs()
		data, ok := p.parser.Parse(b)
		if p.parser.Resyncs() != resyncs {
			glog.Warningf("serial: lost sync, %d resyncs", p.parser.Resyncs())
		}
		if ok {
			return data, nil
		}
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > p.parser.maxLen() {
		return errors.Wrapf(ErrFrameTooLarge, "length %d", len(pkt))
	}
	_, err := p.ReadWriter.Write(Encode(pkt))
	return err
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
