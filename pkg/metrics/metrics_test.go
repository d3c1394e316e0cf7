package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/mcuipc/pkg/ipc"
)

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if matchLabels(m, labels) {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, pair := range m.GetLabel() {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestCollector(t *testing.T) {
	p, err := ipc.NewPair(ipc.Config{Capacity: 2, PayloadSize: 4, Checksum: ipc.ChecksumXOR8})
	require.NoError(t, err)
	c := NewCollector().WithRing("tx", p.Ring).WithRing("acks", p.Acks.Ring())
	c.Sender, c.Receiver = p.Sender, p.Receiver

	_, err = p.Send([]byte{1})
	require.NoError(t, err)
	_, err = p.Send([]byte{2})
	require.NoError(t, err)
	_, err = p.Send([]byte{3})
	require.Equal(t, ipc.ErrFull, err)
	require.True(t, p.Ring.Tamper(1, 2, 0xff))
	for n := 0; n < 3; n++ {
		p.Receive()
	}
	_, err = p.CollectAcks()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	tx := map[string]string{"ring": "tx"}
	require.Equal(t, 0.0, metricValue(t, reg, "mcuipc_ring_length", tx))
	require.Equal(t, 2.0, metricValue(t, reg, "mcuipc_ring_capacity", tx))
	require.Equal(t, 2.0, metricValue(t, reg, "mcuipc_ring_pushed_total", tx))
	require.Equal(t, 1.0, metricValue(t, reg, "mcuipc_ring_rejected_total", map[string]string{"ring": "tx", "reason": "full"}))
	require.Equal(t, 1.0, metricValue(t, reg, "mcuipc_ring_rejected_total", map[string]string{"ring": "tx", "reason": "empty"}))
	require.Equal(t, 2.0, metricValue(t, reg, "mcuipc_sender_sent_total", nil))
	require.Equal(t, 1.0, metricValue(t, reg, "mcuipc_sender_full_total", nil))
	require.Equal(t, 1.0, metricValue(t, reg, "mcuipc_sender_acks_total", map[string]string{"status": "delivered"}))
	require.Equal(t, 1.0, metricValue(t, reg, "mcuipc_sender_acks_total", map[string]string{"status": "checksum_failed"}))
	require.Equal(t, 1.0, metricValue(t, reg, "mcuipc_sender_in_flight", nil))
	require.Equal(t, 1.0, metricValue(t, reg, "mcuipc_receiver_messages_total", map[string]string{"status": "checksum_failed"}))
	require.Equal(t, 1.0, metricValue(t, reg, "mcuipc_receiver_empty_polls_total", nil))

	require.Equal(t, 2, testutil.CollectAndCount(c, "mcuipc_ring_length"))
	require.Equal(t, 0, testutil.CollectAndCount(c, "mcuipc_link_credit"))
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP mcuipc_sender_sent_total Messages sent.
# TYPE mcuipc_sender_sent_total counter
mcuipc_sender_sent_total 2
`), "mcuipc_sender_sent_total"))
}

func TestServerHandler(t *testing.T) {
	ring, err := ipc.NewRing(4, 4)
	require.NoError(t, err)
	s := NewServer("127.0.0.1:0", NewCollector().WithRing("rx", ring))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `mcuipc_ring_capacity{ring="rx"} 4`)
	require.Contains(t, string(body), "go_goroutines")
}

func TestServerRegistersAllCollectors(t *testing.T) {
	tx, err := ipc.NewRing(2, 4)
	require.NoError(t, err)
	rx, err := ipc.NewRing(3, 4)
	require.NoError(t, err)
	s := NewServer("127.0.0.1:0",
		NewCollector().WithRing("tx", tx).WithRing("rx", rx),
		prometheus.NewCounter(prometheus.CounterOpts{Name: "mcuipc_test_total", Help: "Test."}))
	require.Equal(t, 2.0, metricValue(t, s.Registry, "mcuipc_ring_capacity", map[string]string{"ring": "tx"}))
	require.Equal(t, 3.0, metricValue(t, s.Registry, "mcuipc_ring_capacity", map[string]string{"ring": "rx"}))

	families, err := s.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, family := range families {
		names = append(names, family.GetName())
	}
	require.Contains(t, names, "go_goroutines")
	require.Contains(t, names, "mcuipc_test_total")
}

func TestServerRunStopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server not stopped")
	}
	require.Equal(t, http.StatusOK, httptestStatus(t, s.Handler(), "/metrics"))
}

func httptestStatus(t *testing.T, h http.Handler, path string) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}
