package ipc

import (
	"math/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustRing(t *testing.T, capacity, payloadSize int) *Ring {
	r, err := NewRing(capacity, payloadSize)
	require.NoError(t, err)
	return r
}

func msgOf(id MessageID, payload ...byte) Message {
	return ChecksumXOR8.Stamp(id, payload)
}

func TestNewRingInvalid(t *testing.T) {
	testCases := []struct {
		name        string
		capacity    int
		payloadSize int
		err         error
	}{
		{"zero capacity", 0, 4, ErrInvalidCapacity},
		{"negative capacity", -1, 4, ErrInvalidCapacity},
		{"zero payload size", 4, 0, ErrInvalidPayloadSize},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewRing(tc.capacity, tc.payloadSize)
			require.Nil(t, r)
			require.ErrorIs(t, err, tc.err)
			var confErr *ConfigError
			require.ErrorAs(t, err, &confErr)
		})
	}
}

func TestRingFIFO(t *testing.T) {
	r := mustRing(t, 4, 4)
	msgs := []Message{msgOf(1, 1), msgOf(2, 2, 2), msgOf(3, 3, 3, 3), msgOf(4)}
	for _, m := range msgs {
		require.NoError(t, r.Push(m))
	}
	for _, m := range msgs {
		got, err := r.Pop()
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
	require.True(t, r.IsEmpty())
}

func TestRingFullEmpty(t *testing.T) {
	r := mustRing(t, 2, 4)

	_, err := r.Pop()
	require.Equal(t, ErrBufferEmpty, err)
	require.Equal(t, Status{Len: 0, Capacity: 2, Empty: true}, r.Status())

	require.NoError(t, r.Push(msgOf(1, 1)))
	require.NoError(t, r.Push(msgOf(2, 2)))
	require.True(t, r.IsFull())
	require.Equal(t, 0, r.Free())

	before := r.Status()
	require.Equal(t, ErrBufferFull, r.Push(msgOf(3, 3)))
	require.Equal(t, before, r.Status())
	require.Equal(t, Status{Len: 2, Capacity: 2, Full: true}, before)

	got, err := r.Pop()
	require.NoError(t, err)
	require.Equal(t, MessageID(1), got.ID)

	require.Equal(t, RingStats{Pushed: 2, Popped: 1, RejectedFull: 1, RejectedEmpty: 1}, r.Stats())
}

func TestRingWraparound(t *testing.T) {
	r := mustRing(t, 4, 2)
	var next MessageID
	push := func() {
		require.NoError(t, r.Push(msgOf(next, byte(next))))
		next++
	}
	var expect MessageID
	pop := func() {
		m, err := r.Pop()
		require.NoError(t, err)
		require.Equal(t, expect, m.ID)
		require.Equal(t, []byte{byte(expect)}, m.Payload)
		expect++
	}

	push()
	push()
	push()
	pop()
	pop()
	push()
	push()
	push()
	require.Equal(t, 4, r.Len())
	require.True(t, r.IsFull())
	require.Equal(t, ErrBufferFull, r.Push(msgOf(99)))
	for i := 0; i < 4; i++ {
		pop()
	}
	require.True(t, r.IsEmpty())
	require.Equal(t, MessageID(6), expect)
}

func TestRingCapacityInvariant(t *testing.T) {
	const capacity = 5
	r := mustRing(t, capacity, 1)
	rnd := rand.New(rand.NewSource(1))
	var model []Message
	var id MessageID
	for i := 0; i < 10000; i++ {
		if rnd.Intn(2) == 0 {
			m := msgOf(id, byte(id))
			err := r.Push(m)
			if len(model) == capacity {
				require.Equal(t, ErrBufferFull, err)
			} else {
				require.NoError(t, err)
				model = append(model, m)
				id++
			}
		} else {
			m, err := r.Pop()
			if len(model) == 0 {
				require.Equal(t, ErrBufferEmpty, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, model[0], m)
				model = model[1:]
			}
		}
		require.True(t, r.Len() >= 0 && r.Len() <= capacity)
		require.Equal(t, len(model), r.Len())
	}
}

func TestRingCopiesPayload(t *testing.T) {
	r := mustRing(t, 2, 4)
	payload := []byte{1, 2, 3}
	require.NoError(t, r.Push(msgOf(1, payload...)))
	payload[0] = 9

	m, err := r.Pop()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, m.Payload)

	// the popped copy must survive reuse of the slot.
	require.NoError(t, r.Push(msgOf(2, 7, 7, 7, 7)))
	require.NoError(t, r.Push(msgOf(3, 8, 8, 8, 8)))
	require.Equal(t, []byte{1, 2, 3}, m.Payload)
}

func TestRingEmptyPayload(t *testing.T) {
	r := mustRing(t, 1, 4)
	require.NoError(t, r.Push(msgOf(1)))
	m, err := r.Pop()
	require.NoError(t, err)
	require.Nil(t, m.Payload)
	require.True(t, ChecksumXOR8.Verify(m))
}

func TestRingPayloadTooLarge(t *testing.T) {
	r := mustRing(t, 2, 2)
	require.Equal(t, ErrPayloadTooLarge, r.Push(msgOf(1, 1, 2, 3)))
	require.True(t, r.IsEmpty())
}

func TestRingTamper(t *testing.T) {
	r := mustRing(t, 4, 4)
	require.False(t, r.Tamper(0, 0, 1))
	require.NoError(t, r.Push(msgOf(0x0102, 1, 2)))
	require.NoError(t, r.Push(msgOf(3, 3)))

	require.True(t, r.Tamper(1, 2, 0xff))
	require.True(t, r.Tamper(0, 0, 0x01))
	require.False(t, r.Tamper(0, 4, 1))
	require.False(t, r.Tamper(2, 0, 1))

	m, err := r.Pop()
	require.NoError(t, err)
	require.Equal(t, MessageID(0x0002), m.ID)
	require.False(t, ChecksumXOR8.Verify(m))
	m, err = r.Pop()
	require.NoError(t, err)
	require.Equal(t, []byte{0xfc}, m.Payload)
	require.False(t, ChecksumXOR8.Verify(m))
}

func TestRingConcurrent(t *testing.T) {
	const count = 20000
	r := mustRing(t, 8, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for id := 0; id < count; {
			m := ChecksumCRC32.Stamp(MessageID(id), []byte{byte(id), byte(id >> 8)})
			if err := r.Push(m); err != nil {
				runtime.Gosched()
				continue
			}
			id++
		}
	}()
	received := make([]Message, 0, count)
	go func() {
		defer wg.Done()
		for len(received) < count {
			m, err := r.Pop()
			if err != nil {
				runtime.Gosched()
				continue
			}
			received = append(received, m)
		}
	}()
	wg.Wait()

	for n, m := range received {
		require.Equal(t, MessageID(n), m.ID)
		require.Equal(t, []byte{byte(n), byte(n >> 8)}, m.Payload)
		require.True(t, ChecksumCRC32.Verify(m))
	}
	require.True(t, r.IsEmpty())
	stats := r.Stats()
	require.Equal(t, uint64(count), stats.Pushed)
	require.Equal(t, uint64(count), stats.Popped)
}
