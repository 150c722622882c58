// Package metrics exposes the noded daemon's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/tunnel"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const namespace = "noded"

// Label names.
const (
	labelMessageType = "type"
	labelOutcome     = "outcome"
	labelReason      = "reason"
)

// outcomeAccepted is the outcome label value for a message that reached
// its endpoint.
const outcomeAccepted = "accepted"

// -------------------------------------------------------------------------
// Collector — Prometheus noded metrics
// -------------------------------------------------------------------------

// Collector holds all noded Prometheus metrics. It satisfies both
// backend.Metrics and tunnel.Metrics, so a single Collector instance
// wires into both the message pipeline and the tunnel engine.
type Collector struct {
	// BackendMessages counts every decoded BackendMessage by type and
	// outcome ("accepted", or a drop reason such as "bad_envelope").
	BackendMessages *prometheus.CounterVec

	// ChunkGroupsActive tracks chunk reassembly groups currently waiting
	// on more fragments.
	ChunkGroupsActive prometheus.Gauge

	// TunnelsActive tracks currently open TCP tunnels.
	TunnelsActive prometheus.Gauge

	// TunnelDefeats counts tunnel teardowns by classified reason.
	TunnelDefeats *prometheus.CounterVec
}

// NewCollector creates a Collector with all noded metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.BackendMessages,
		c.ChunkGroupsActive,
		c.TunnelsActive,
		c.TunnelDefeats,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		BackendMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_messages_total",
			Help:      "Total BackendMessages decoded, labeled by message type and outcome.",
		}, []string{labelMessageType, labelOutcome}),

		ChunkGroupsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunk_groups_in_flight",
			Help:      "Number of chunk reassembly groups currently awaiting fragments.",
		}),

		TunnelsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tunnels_active",
			Help:      "Number of currently open TCP tunnels.",
		}),

		TunnelDefeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tunnel_defeats_total",
			Help:      "Total tunnel teardowns, labeled by classified reason.",
		}, []string{labelReason}),
	}
}

// -------------------------------------------------------------------------
// backend.Metrics
// -------------------------------------------------------------------------

// MessageAccepted records a successfully decoded message of type t.
func (c *Collector) MessageAccepted(t envelope.MessageType) {
	c.BackendMessages.WithLabelValues(t.String(), outcomeAccepted).Inc()
}

// MessageDropped records a message of type t dropped for reason.
func (c *Collector) MessageDropped(t envelope.MessageType, reason string) {
	c.BackendMessages.WithLabelValues(t.String(), reason).Inc()
}

// ChunkGroupsInFlight adjusts the in-flight chunk group gauge by delta.
func (c *Collector) ChunkGroupsInFlight(delta int) {
	c.ChunkGroupsActive.Add(float64(delta))
}

// -------------------------------------------------------------------------
// tunnel.Metrics
// -------------------------------------------------------------------------

// TunnelOpened records a newly opened tunnel.
func (c *Collector) TunnelOpened() {
	c.TunnelsActive.Inc()
}

// TunnelClosed records a tunnel teardown classified as reason.
func (c *Collector) TunnelClosed(reason tunnel.Defeat) {
	c.TunnelsActive.Dec()
	c.TunnelDefeats.WithLabelValues(reason.String()).Inc()
}
