// Package websocket carries packets as binary websocket messages.
package websocket

import (
	"context"
	"net/http"
	"net/url"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/net/websocket"
)

// ReadWriter implements link.PacketReadWriter.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	conn.PayloadType = websocket.BinaryFrame
	return (*ReadWriter)(conn)
}

// Dial connects to a ws:// or wss:// URL.
func Dial(rawURL string) (*ReadWriter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid websocket URL")
	}
	origin := "http://" + u.Host
	if u.Scheme == "wss" {
		origin = "https://" + u.Host
	}
	conn, err := websocket.Dial(rawURL, "", origin)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", rawURL)
	}
	return New(conn), nil
}

// Conn gets the underlying connection.
func (p *ReadWriter) Conn() *websocket.Conn {
	return (*websocket.Conn)(p)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive(p.Conn(), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send(p.Conn(), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return p.Conn().Close()
}

// ServeFunc runs one link over an accepted connection. The connection is
// closed when it returns.
type ServeFunc func(context.Context, *ReadWriter) error

// Handler accepts websocket connections and serves each with fn.
func Handler(ctx context.Context, fn ServeFunc) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		rw := New(conn)
		defer rw.Close()
		glog.Infof("websocket peer %s connected", conn.Request().RemoteAddr)
		if err := fn(ctx, rw); err != nil {
			glog.Errorf("websocket peer %s: %v", conn.Request().RemoteAddr, err)
		}
	})
}
