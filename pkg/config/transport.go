package config

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/mcuipc/pkg/ipc"
	"github.com/robotalks/mcuipc/pkg/link"
	"github.com/robotalks/mcuipc/pkg/link/mqtt"
	"github.com/robotalks/mcuipc/pkg/link/serial"
	"github.com/robotalks/mcuipc/pkg/link/stream"
	"github.com/robotalks/mcuipc/pkg/link/websocket"
)

// Transport is a parsed transport URL.
type Transport struct {
	Scheme string
	// Address is host:port for network transports and the device path
	// for serial.
	Address string
	URL     *url.URL
}

// ParseTransport parses and checks a transport URL.
func ParseTransport(raw string) (Transport, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Transport{}, errors.Wrap(err, "invalid transport URL")
	}
	t := Transport{Scheme: u.Scheme, Address: u.Host, URL: u}
	switch u.Scheme {
	case "tcp", "mqtt", "mqtts", "ws", "wss":
		if u.Host == "" {
			return t, errors.Errorf("transport %q: missing host", raw)
		}
	case "serial":
		t.Address = u.Path
		if t.Address == "" {
			return t, errors.Errorf("transport %q: missing device", raw)
		}
	default:
		return t, errors.Errorf("unknown transport scheme: %q", u.Scheme)
	}
	return t, nil
}

// connectTimeout bounds connecting to an MQTT broker.
const connectTimeout = 10 * time.Second

// OpenTransport connects the link transport of the node. It blocks until a
// peer is accepted when listening.
func (c *Config) OpenTransport(ctx context.Context, conf ipc.Config) (link.PacketReadWriter, error) {
	t, err := ParseTransport(c.Transport)
	if err != nil {
		return nil, err
	}
	switch t.Scheme {
	case "tcp":
		if c.Listen {
			glog.Infof("waiting for peer on %s", t.Address)
			return stream.Accept(t.Address)
		}
		return stream.Dial(t.Address)
	case "serial":
		return serial.Open(t.Address)
	case "mqtt", "mqtts":
		node, err := mqtt.NewNode(c.Transport, mqtt.NodeInfo{
			LinkID:      c.ResolveLinkID(),
			Role:        c.Role,
			Capacity:    conf.Capacity,
			PayloadSize: conf.PayloadSize,
			Checksum:    conf.Checksum.String(),
		})
		if err != nil {
			return nil, err
		}
		rw := node.ReadWriter()
		if err = node.Connect(connectTimeout); err != nil {
			return nil, err
		}
		return &nodeReadWriter{ReadWriter: rw, node: node}, nil
	case "ws", "wss":
		if c.Listen {
			return acceptWebsocket(ctx, t)
		}
		return websocket.Dial(c.Transport)
	}
	return nil, errors.Errorf("unsupported transport %q", t.Scheme)
}

// nodeReadWriter withdraws the announcement when the link closes.
type nodeReadWriter struct {
	*mqtt.ReadWriter
	node *mqtt.Node
}

func (rw *nodeReadWriter) Close() error {
	rw.ReadWriter.Close()
	return rw.node.Close()
}

func acceptWebsocket(ctx context.Context, t Transport) (link.PacketReadWriter, error) {
	connCh := make(chan *websocket.ReadWriter)
	mux := http.NewServeMux()
	path := t.URL.Path
	if path == "" {
		path = "/"
	}
	mux.Handle(path, websocket.Handler(ctx, func(ctx context.Context, rw *websocket.ReadWriter) error {
		select {
		case connCh <- rw:
		case <-ctx.Done():
			return ctx.Err()
		}
		// the link owns the connection until ctx is done.
		<-ctx.Done()
		return nil
	}))
	srv := &http.Server{Addr: t.Address, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	glog.Infof("waiting for peer on ws://%s%s", t.Address, path)
	select {
	case rw := <-connCh:
		return rw, nil
	case err := <-errCh:
		return nil, errors.Wrap(err, "websocket listen")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
