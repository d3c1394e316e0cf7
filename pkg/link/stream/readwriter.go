// Package stream carries packets over a byte stream like TCP.
package stream

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/pkg/errors"
)

// DefaultMaxPacketSize bounds a packet unless ReadWriter.MaxPacketSize is set.
const DefaultMaxPacketSize = 64 * 1024

// ErrPacketTooLarge indicates a length prefix over the limit, the stream
// is out of sync and can't be recovered.
var ErrPacketTooLarge = errors.New("packet too large")

// ReadWriter implements link.PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	io.ReadWriter
	MaxPacketSize int
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s}
}

// Dial connects to a TCP address.
func Dial(addr string) (*ReadWriter, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return New(conn), nil
}

// Accept listens on addr and waits for exactly one peer, a link is
// point-to-point.
func Accept(addr string) (*ReadWriter, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	defer ln.Close()
	conn, err := ln.Accept()
	if err != nil {
		return nil, errors.Wrapf(err, "accept %s", addr)
	}
	return New(conn), nil
}

func (p *ReadWriter) maxPacketSize() int {
	if p.MaxPacketSize > 0 {
		return p.MaxPacketSize
	}
	return DefaultMaxPacketSize
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p.ReadWriter, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if int64(size) > int64(p.maxPacketSize()) {
		return nil, errors.Wrapf(ErrPacketTooLarge, "length %d", size)
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(p.ReadWriter, pkt); err != nil {
		return nil, errors.Wrap(err, "read packet")
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > p.maxPacketSize() {
		return errors.Wrapf(ErrPacketTooLarge, "length %d", len(pkt))
	}
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := p.ReadWriter.Write(buf)
	return err
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
