package mqtt

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
)

// Link topics relative to the queue prefix:
//
//	<link-id>/tx    frames from the sender side
//	<link-id>/rx    frames from the receiver side
//	<link-id>/<role>/meta  retained announcement of a node
const (
	TopicTx   = "tx"
	TopicRx   = "rx"
	TopicMeta = "meta"
)

// DefaultBacklog is the number of received packets buffered before the
// dispatching goroutine of the client blocks.
const DefaultBacklog = 64

// ReadWriter implements link.PacketReadWriter.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh  chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	sub       *Subscription
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, DefaultBacklog),
		closeCh:  make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForSender sets topics for the sender side of the link:
// SubTopic = link-id/rx
// PubTopic = link-id/tx
func (p *ReadWriter) ForSender(linkID string) *ReadWriter {
	return p.WithTopics(linkID+"/"+TopicRx, linkID+"/"+TopicTx)
}

// ForReceiver sets topics for the receiver side of the link:
// SubTopic = link-id/tx
// PubTopic = link-id/rx
func (p *ReadWriter) ForReceiver(linkID string) *ReadWriter {
	return p.WithTopics(linkID+"/"+TopicTx, linkID+"/"+TopicRx)
}

// Start subscribes SubTopic. Packets are buffered until read.
func (p *ReadWriter) Start() *ReadWriter {
	p.sub = p.Queue.Sub(p.SubTopic, Handler(p.handleMsg))
	return p
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.closeCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Run implements Runnable. It keeps the subscription until ctx is done.
func (p *ReadWriter) Run(ctx context.Context) error {
	if p.sub == nil {
		p.Start()
	}
	defer p.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closeCh:
		return nil
	}
}

// Close implements io.Closer. It unsubscribes and unblocks readers.
func (p *ReadWriter) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.closeCh)
		if p.sub != nil {
			err = p.sub.Close()
		}
	})
	return
}

func (p *ReadWriter) handleMsg(topic string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.closeCh:
		glog.V(2).Infof("drop packet on %q: closed", topic)
	}
}
