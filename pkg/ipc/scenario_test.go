package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newScenarioPair(t *testing.T) *Pair {
	conf := DefaultConfig()
	conf.Capacity = 2
	conf.PayloadSize = 4
	p, err := NewPair(conf)
	require.NoError(t, err)
	return p
}

func fillScenario(t *testing.T, p *Pair) {
	id, err := p.Send([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, MessageID(0), id)
	require.Equal(t, 1, p.Ring.Len())

	id, err = p.Send([]byte{5, 6, 7, 8})
	require.NoError(t, err)
	require.Equal(t, MessageID(1), id)
	require.Equal(t, 2, p.Ring.Len())
}

func TestScenarioBackpressure(t *testing.T) {
	p := newScenarioPair(t)
	fillScenario(t, p)

	_, err := p.Send([]byte{9, 9, 9, 9})
	require.Equal(t, ErrFull, err)
	require.Equal(t, 2, p.Ring.Len())
	require.Equal(t, MessageID(2), p.Sender.NextID())
}

func TestScenarioReceiveAll(t *testing.T) {
	p := newScenarioPair(t)
	fillScenario(t, p)

	msg, ack, err := p.Receiver.Receive()
	require.NoError(t, err)
	require.Equal(t, MessageID(0), msg.ID)
	require.Equal(t, Delivered, ack.Status)

	msg, ack, err = p.Receiver.Receive()
	require.NoError(t, err)
	require.Equal(t, MessageID(1), msg.ID)
	require.Equal(t, []byte{5, 6, 7, 8}, msg.Payload)
	require.Equal(t, Delivered, ack.Status)
	require.Equal(t, 0, p.Ring.Len())

	_, _, err = p.Receiver.Receive()
	require.Equal(t, ErrNoMessage, err)
}

func TestScenarioCorruptAfterPop(t *testing.T) {
	p := newScenarioPair(t)
	fillScenario(t, p)

	msg, err := p.Ring.Pop()
	require.NoError(t, err)
	msg.Payload[2] ^= 0x40

	ack := p.Receiver.Acknowledge(msg)
	require.Equal(t, Ack{MessageID: 0, Status: ChecksumFailed}, ack)
	// the pop isn't rolled back.
	require.Equal(t, 1, p.Ring.Len())
	next, err := p.Ring.Pop()
	require.NoError(t, err)
	require.Equal(t, MessageID(1), next.ID)
}
