package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(Handler(ctx, func(ctx context.Context, rw *ReadWriter) error {
		// echo packets back reversed.
		for {
			pkt, err := rw.ReadPacket()
			if err != nil {
				return err
			}
			for i, j := 0, len(pkt)-1; i < j; i, j = i+1, j-1 {
				pkt[i], pkt[j] = pkt[j], pkt[i]
			}
			if err = rw.WritePacket(pkt); err != nil {
				return err
			}
		}
	}))
	defer srv.Close()

	rw, err := Dial("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer rw.Close()
	require.NoError(t, rw.WritePacket([]byte{1, 2, 3}))
	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{3, 2, 1}, pkt)
}

func TestDialInvalid(t *testing.T) {
	_, err := Dial("ws://127.0.0.1:1/none")
	require.Error(t, err)
}
