package wire

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/robotalks/mcuipc/pkg/ipc"
)

func TestEncodeDecode(t *testing.T) {
	conf := ipc.DefaultConfig()
	conf.Checksum = ipc.ChecksumCRC32
	testCases := []struct {
		name string
		body Body
	}{
		{"hello", NewHello("s1", "node", conf)},
		{"hello ack", &HelloAck{Session: "s1", Free: 7}},
		{"hello reject", &HelloAck{Session: "s1", Error: "capacity mismatch"}},
		{"message", FromMessage(ipc.ChecksumCRC32.Stamp(0x1234, []byte{1, 2, 3}))},
		{"ack", FromAck(ipc.Ack{MessageID: 0xffff, Status: ipc.ChecksumFailed})},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body, err := Decode(Encode(tc.body))
			require.NoError(t, err)
			require.Equal(t, tc.body.Kind(), body.Kind())
			require.Equal(t, tc.body, body)
		})
	}
}

func TestHelloDescribesConfig(t *testing.T) {
	hello := NewHello("s", "id", ipc.DefaultConfig())
	require.Equal(t, uint32(ipc.DefaultCapacity), hello.Capacity)
	require.Equal(t, uint32(ipc.DefaultPayloadSize), hello.PayloadSize)
	require.Equal(t, "xor8", hello.Checksum)
}

func TestMessageFrame(t *testing.T) {
	msg := ipc.ChecksumXOR8.Stamp(9, []byte{4, 5})
	pkt := Encode(FromMessage(msg))
	body, err := Decode(pkt)
	require.NoError(t, err)
	got, err := body.(*MessageFrame).Message()
	require.NoError(t, err)
	require.Equal(t, msg, got)
	require.True(t, ipc.ChecksumXOR8.Verify(got))

	// empty payload survives as nil.
	msg = ipc.ChecksumXOR8.Stamp(1, nil)
	body, err = Decode(Encode(FromMessage(msg)))
	require.NoError(t, err)
	got, err = body.(*MessageFrame).Message()
	require.NoError(t, err)
	require.Equal(t, msg, got)

	_, err = (&MessageFrame{Id: 0x10000}).Message()
	var invalid *InvalidFrameError
	require.ErrorAs(t, err, &invalid)
}

func TestAckFrame(t *testing.T) {
	ack, err := FromAck(ipc.Ack{MessageID: 3, Status: ipc.Delivered}).Ack()
	require.NoError(t, err)
	require.Equal(t, ipc.Ack{MessageID: 3, Status: ipc.Delivered}, ack)

	var invalid *InvalidFrameError
	_, err = (&AckFrame{Id: 1, Status: 0}).Ack()
	require.ErrorAs(t, err, &invalid)
	_, err = (&AckFrame{Id: 1, Status: 0x101}).Ack()
	require.ErrorAs(t, err, &invalid)
	_, err = (&AckFrame{Id: 0x10000, Status: 1}).Ack()
	require.ErrorAs(t, err, &invalid)
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode((&Frame{Kind: 99}).AppendWire(nil))
	var unknown *UnknownKindError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, uint32(99), unknown.Kind)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	pkt := Encode(&Hello{Session: "session"})
	_, err := Decode(pkt[:len(pkt)-2])
	require.Error(t, err)

	// body declares more bytes than present.
	body := protowire.AppendTag(nil, 2, protowire.BytesType)
	body = protowire.AppendVarint(body, 10)
	_, err = Decode((&Frame{Kind: KindMessage, Body: append(body, 1, 2)}).AppendWire(nil))
	require.Error(t, err)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	body := FromAck(ipc.Ack{MessageID: 7, Status: ipc.Delivered}).AppendWire(nil)
	body = protowire.AppendTag(body, 9, protowire.BytesType)
	body = protowire.AppendString(body, "extension")
	body = protowire.AppendTag(body, 10, protowire.Fixed64Type)
	body = protowire.AppendFixed64(body, 42)
	// id with unexpected wire type is ignored.
	body = protowire.AppendTag(body, 1, protowire.BytesType)
	body = protowire.AppendBytes(body, []byte{1})
	pkt := (&Frame{Kind: KindAck, Body: body}).AppendWire(nil)
	pkt = protowire.AppendTag(pkt, 3, protowire.VarintType)
	pkt = protowire.AppendVarint(pkt, 1)

	decoded, err := Decode(pkt)
	require.NoError(t, err)
	require.Equal(t, &AckFrame{Id: 7, Status: uint32(ipc.Delivered)}, decoded)
}

func TestFrameFieldNumbers(t *testing.T) {
	// message AckFrame { uint32 id = 1; uint32 status = 2; } wrapped in
	// message Frame { uint32 kind = 1; bytes body = 2; }
	pkt := Encode(&AckFrame{Id: 1, Status: 2})
	require.Equal(t, []byte{0x08, 0x04, 0x12, 0x04, 0x08, 0x01, 0x10, 0x02}, pkt)
}

func TestDecodedPayloadOwnsMemory(t *testing.T) {
	pkt := Encode(FromMessage(ipc.ChecksumXOR8.Stamp(1, []byte{1, 2, 3})))
	body, err := Decode(pkt)
	require.NoError(t, err)
	for n := range pkt {
		pkt[n] = 0
	}
	require.Equal(t, []byte{1, 2, 3}, body.(*MessageFrame).Payload)
}

func TestEncodeDecodeConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	errCh := make(chan error, 16)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				bodies := []Body{
					NewHello(fmt.Sprintf("s%d", g), "node", ipc.DefaultConfig()),
					FromMessage(ipc.ChecksumSum16.Stamp(ipc.MessageID(n), []byte{byte(g), byte(n)})),
					FromAck(ipc.Ack{MessageID: ipc.MessageID(n), Status: ipc.Delivered}),
				}
				for _, body := range bodies {
					decoded, err := Decode(Encode(body))
					if err != nil {
						errCh <- err
						return
					}
					if decoded.String() != body.String() {
						errCh <- fmt.Errorf("%v != %v", decoded, body)
						return
					}
				}
			}
		}(g)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
}
