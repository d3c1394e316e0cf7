// Package metrics exports the counters of rings and protocol roles to
// Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/robotalks/mcuipc/pkg/ipc"
	"github.com/robotalks/mcuipc/pkg/link"
)

const namespace = "mcuipc"

var (
	ringLength        = newDesc("ring", "length", "Messages in the ring.", "ring")
	ringCapacity      = newDesc("ring", "capacity", "Slots of the ring.", "ring")
	ringPushed        = newDesc("ring", "pushed_total", "Messages pushed.", "ring")
	ringPopped        = newDesc("ring", "popped_total", "Messages popped.", "ring")
	ringRejected      = newDesc("ring", "rejected_total", "Rejected pushes and pops.", "ring", "reason")
	senderSent        = newDesc("sender", "sent_total", "Messages sent.")
	senderFull        = newDesc("sender", "full_total", "Sends rejected because the ring was full.")
	senderAcks        = newDesc("sender", "acks_total", "Acks handled by status.", "status")
	senderEvicted     = newDesc("sender", "evicted_total", "In-flight messages evicted without ack.")
	senderInFlight    = newDesc("sender", "in_flight", "Messages waiting for an ack.")
	receiverMessages  = newDesc("receiver", "messages_total", "Messages received by status.", "status")
	receiverEmpty     = newDesc("receiver", "empty_polls_total", "Receives on an empty ring.")
	linkForwarded     = newDesc("link", "forwarded_total", "Messages forwarded to the peer.")
	linkCredit        = newDesc("link", "credit", "Messages which can be forwarded now.")
	linkAcks          = newDesc("link", "acks_relayed_total", "Acks relayed from the peer by result.", "result")
	linkMirrored      = newDesc("link", "mirrored_total", "Messages received from the peer by result.", "result")
	linkMirrorAckSent = newDesc("link", "acks_sent_total", "Acks sent to the peer.")
)

func newDesc(subsystem, name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
}

// Collector implements prometheus.Collector. Any of the sources can be nil.
// All reads are atomic so collection can run on the HTTP goroutine while
// the roles run elsewhere.
type Collector struct {
	Rings     map[string]*ipc.Ring
	Sender    *ipc.Sender
	Receiver  *ipc.Receiver
	Forwarder *link.Forwarder
	Mirror    *link.Mirror
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{Rings: make(map[string]*ipc.Ring)}
}

// WithRing adds a ring labeled by name.
func (c *Collector) WithRing(name string, ring *ipc.Ring) *Collector {
	c.Rings[name] = ring
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range []*prometheus.Desc{
		ringLength, ringCapacity, ringPushed, ringPopped, ringRejected,
		senderSent, senderFull, senderAcks, senderEvicted, senderInFlight,
		receiverMessages, receiverEmpty,
		linkForwarded, linkCredit, linkAcks, linkMirrored, linkMirrorAckSent,
	} {
		ch <- desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(desc *prometheus.Desc, val uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(val), labels...)
	}
	gauge := func(desc *prometheus.Desc, val float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, val, labels...)
	}
	for name, ring := range c.Rings {
		stats := ring.Stats()
		gauge(ringLength, float64(ring.Len()), name)
		gauge(ringCapacity, float64(ring.Capacity()), name)
		counter(ringPushed, stats.Pushed, name)
		counter(ringPopped, stats.Popped, name)
		counter(ringRejected, stats.RejectedFull, name, "full")
		counter(ringRejected, stats.RejectedEmpty, name, "empty")
	}
	if s := c.Sender; s != nil {
		stats := s.Stats()
		counter(senderSent, stats.Sent)
		counter(senderFull, stats.RejectedFull)
		counter(senderAcks, stats.AckDelivered, "delivered")
		counter(senderAcks, stats.AckFailed, "checksum_failed")
		counter(senderAcks, stats.AckUnknown, "unknown")
		counter(senderEvicted, stats.Evicted)
		gauge(senderInFlight, float64(stats.InFlightCount))
	}
	if r := c.Receiver; r != nil {
		stats := r.Stats()
		counter(receiverMessages, stats.Delivered, "delivered")
		counter(receiverMessages, stats.ChecksumFailed, "checksum_failed")
		counter(receiverEmpty, stats.EmptyPolls)
	}
	if f := c.Forwarder; f != nil {
		stats := f.Stats()
		counter(linkForwarded, stats.Forwarded)
		gauge(linkCredit, float64(f.Credit()))
		counter(linkAcks, stats.AcksRelayed, "relayed")
		counter(linkAcks, stats.AcksDropped, "dropped")
	}
	if m := c.Mirror; m != nil {
		stats := m.Stats()
		counter(linkMirrored, stats.Received, "pushed")
		counter(linkMirrored, stats.Rejected, "rejected")
		counter(linkMirrorAckSent, stats.AcksSent)
	}
}
