package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageID(t *testing.T) {
	require.Equal(t, MessageID(1), MessageID(0).Next())
	require.Equal(t, MessageID(0x100), MessageID(0xff).Next())
	require.Equal(t, MessageID(0), MessageID(0xffff).Next())
	require.Equal(t, []byte{0x12, 0x34}, MessageID(0x1234).Bytes())
}

func TestMessageClone(t *testing.T) {
	m := Message{ID: 1, Payload: []byte{1, 2}, Checksum: 3}
	c := m.Clone()
	c.Payload[0] = 9
	require.Equal(t, []byte{1, 2}, m.Payload)
	require.Nil(t, Message{ID: 1}.Clone().Payload)
	require.Equal(t, "#1[01 02] sum=00000003", m.String())
}

func TestAckStatus(t *testing.T) {
	require.Equal(t, "Delivered", Delivered.String())
	require.Equal(t, "ChecksumFailed", ChecksumFailed.String())
	require.Equal(t, "AckStatus(0)", AckStatus(0).String())
	require.True(t, Delivered.IsValid())
	require.False(t, AckStatus(3).IsValid())
	require.Equal(t, "ack #5 ChecksumFailed", Ack{MessageID: 5, Status: ChecksumFailed}.String())
}
