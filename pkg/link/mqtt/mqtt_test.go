package mqtt

import (
	"context"
	"io"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
)

func TestMatchTopic(t *testing.T) {
	testCases := []struct {
		topic, pattern string
		match          bool
	}{
		{"a/b/meta", "+/+/meta", true},
		{"a/b/tx", "+/+/meta", false},
		{"a/meta", "+/+/meta", false},
		{"a/b/c/meta", "+/+/meta", false},
		{"a/b/c", "a/#", true},
		{"a", "a/#", true},
		{"b/c", "a/#", false},
		{"a/tx", "a/tx", true},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.match, MatchTopic(tc.topic, tc.pattern), "%s ~ %s", tc.topic, tc.pattern)
	}
}

func TestClientOptionsFromURL(t *testing.T) {
	opts, prefix, qos, err := ClientOptionsFromURL("mqtt://u:p@broker:1883/ipc?client-id=n1&qos=1")
	require.NoError(t, err)
	require.Equal(t, "ipc/", prefix)
	require.Equal(t, byte(1), qos)
	require.Equal(t, "n1", opts.ClientID)
	require.Equal(t, "u", opts.Username)
	require.Equal(t, "p", opts.Password)
	require.Len(t, opts.Servers, 1)
	require.Equal(t, "tcp://broker:1883", opts.Servers[0].String())

	_, prefix, _, err = ClientOptionsFromURL("mqtts://broker:8883")
	require.NoError(t, err)
	require.Empty(t, prefix)

	_, _, _, err = ClientOptionsFromURL("mqtt://broker/?qos=3")
	require.Error(t, err)
}

func newTestQueue(prefix string) *Queue {
	return NewQueue(paho.NewClientOptions(), prefix)
}

func TestQueueDispatch(t *testing.T) {
	q := newTestQueue("ipc/")
	var got []string
	exact := q.Sub("l1/tx", func(topic string, payload []byte) {
		got = append(got, "exact:"+topic+":"+string(payload))
	})
	q.Sub("+/tx", func(topic string, payload []byte) {
		got = append(got, "wildcard:"+topic)
	})

	q.Dispatch("ipc/l1/tx", []byte("x"))
	q.Dispatch("other/l1/tx", []byte("y"))
	require.ElementsMatch(t, []string{"exact:l1/tx:x", "wildcard:l1/tx"}, got)

	got = nil
	require.NoError(t, exact.Close())
	q.Dispatch("ipc/l1/tx", []byte("x"))
	require.Equal(t, []string{"wildcard:l1/tx"}, got)
}

func TestReadWriter(t *testing.T) {
	q := newTestQueue("")
	rw := NewPacketReadWriter(q).ForReceiver("link1")
	require.Equal(t, "link1/tx", rw.SubTopic)
	require.Equal(t, "link1/rx", rw.PubTopic)
	rw.Start()

	q.Dispatch("link1/tx", []byte{1, 2})
	q.Dispatch("link1/rx", []byte{3})
	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, pkt)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rw.Run(ctx) }()
	cancel()
	require.Equal(t, context.Canceled, <-done)
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)
	// late messages are dropped without blocking.
	q.Dispatch("link1/tx", []byte{4})

	sender := NewPacketReadWriter(q).ForSender("link1")
	require.Equal(t, "link1/rx", sender.SubTopic)
	require.Equal(t, "link1/tx", sender.PubTopic)
}

func TestParseMeta(t *testing.T) {
	info, ok := ParseMeta("node1/sender/meta", []byte(`{"capacity":8,"payload_size":32,"checksum":"xor8"}`))
	require.True(t, ok)
	require.Equal(t, NodeInfo{LinkID: "node1", Role: "sender", Capacity: 8, PayloadSize: 32, Checksum: "xor8"}, info)
	require.Equal(t, "node1/sender/meta", info.Topic())

	_, ok = ParseMeta("node1/sender/meta", nil)
	require.False(t, ok)
	_, ok = ParseMeta("node1/meta", []byte(`{}`))
	require.False(t, ok)
	_, ok = ParseMeta("node1/sender/meta", []byte(`{`))
	require.False(t, ok)
}

func TestDiscover(t *testing.T) {
	q := newTestQueue("")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resCh := make(chan []NodeInfo, 1)
	go func() {
		res, _ := Discover(ctx, q, 200*time.Millisecond)
		resCh <- res
	}()
	// wait for the subscription to be registered.
	require.Eventually(t, func() bool {
		return q.filterCount() == 1
	}, time.Second, time.Millisecond)
	q.Dispatch("a/sender/meta", []byte(`{"capacity":2}`))
	q.Dispatch("a/receiver/meta", nil)
	res := <-resCh
	require.Equal(t, []NodeInfo{{LinkID: "a", Role: "sender", Capacity: 2}}, res)
}
