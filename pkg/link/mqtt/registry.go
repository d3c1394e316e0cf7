package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// NodeInfo is announced by a running node.
type NodeInfo struct {
	LinkID      string `json:"link_id"`
	Role        string `json:"role"`
	Capacity    int    `json:"capacity"`
	PayloadSize int    `json:"payload_size"`
	Checksum    string `json:"checksum"`
}

// Topic is the meta topic of the node.
func (n NodeInfo) Topic() string {
	return n.LinkID + "/" + n.Role + "/" + TopicMeta
}

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Node connects a link node to the broker. It announces the node with a
// retained meta message which the broker clears by will when the node
// disappears.
type Node struct {
	Queue *Queue
	Info  NodeInfo

	meta []byte
}

// NewNode creates a Node. Nothing is sent before Connect.
func NewNode(brokerURL string, info NodeInfo) (*Node, error) {
	meta, err := json.Marshal(&info)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, qos, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+info.Topic(), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("mcuipc:" + info.LinkID + ":" + info.Role)
	}
	n := &Node{Info: info, meta: meta}
	n.Queue = NewQueue(opts, topicPrefix)
	n.Queue.QoS = qos
	n.Queue.OnConnect = func(*Queue) { n.announce() }
	return n, nil
}

// ReadWriter creates the packet transport for the node's role.
func (n *Node) ReadWriter() *ReadWriter {
	rw := NewPacketReadWriter(n.Queue)
	if n.Info.Role == "receiver" {
		return rw.ForReceiver(n.Info.LinkID).Start()
	}
	return rw.ForSender(n.Info.LinkID).Start()
}

// Connect connects to the broker.
func (n *Node) Connect(timeout time.Duration) error {
	return n.Queue.Connect(timeout)
}

// Close withdraws the announcement and disconnects.
func (n *Node) Close() error {
	n.Queue.PubWith(n.Info.Topic(), nil, 1, true).WaitTimeout(time.Second)
	return n.Queue.Close()
}

func (n *Node) announce() {
	n.Queue.PubWith(n.Info.Topic(), n.meta, 1, true)
}

// Discover enumerates announced nodes until timeout or ctx is done.
func Discover(ctx context.Context, q *Queue, timeout time.Duration) ([]NodeInfo, error) {
	resCh := make(chan NodeInfo, 16)
	sub := q.Sub("+/+/"+TopicMeta, Handler(func(topic string, payload []byte) {
		info, ok := ParseMeta(topic, payload)
		if !ok {
			return
		}
		select {
		case resCh <- info:
		case <-time.After(time.Second):
		}
	}))
	defer sub.Close()
	if err := sub.Token.Error(); err != nil {
		return nil, errors.Wrap(err, "subscribe")
	}

	if timeout <= 0 {
		timeout = DefaultDiscoverTimeout
	}
	expire := time.After(timeout)
	var res []NodeInfo
	for {
		select {
		case info := <-resCh:
			res = append(res, info)
		case <-expire:
			return res, nil
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

// ParseMeta decodes an announcement. Cleared (empty) announcements and
// malformed topics are rejected.
func ParseMeta(topic string, payload []byte) (NodeInfo, bool) {
	items := strings.Split(topic, "/")
	if len(items) != 3 || items[2] != TopicMeta || len(payload) == 0 {
		return NodeInfo{}, false
	}
	var info NodeInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		glog.Warningf("invalid meta on %q: %v", topic, err)
		return NodeInfo{}, false
	}
	info.LinkID, info.Role = items[0], items[1]
	return info, true
}
