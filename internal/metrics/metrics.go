// Package metrics exposes Prometheus instrumentation for the board server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event results recorded by EventHandled.
const (
	ResultApplied   = "applied"
	ResultNoop      = "noop"
	ResultMalformed = "malformed"
	ResultUnknown   = "unknown"
	ResultLimited   = "rate_limited"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	eventsTotal    *prometheus.CounterVec
	activeSessions prometheus.Gauge
	boards         prometheus.Gauge
	messagesSent   prometheus.Counter
	slowConsumers  prometheus.Counter
	mirrorDropped  prometheus.Counter
}

// New registers the collectors on a fresh registry under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound board events by type and result",
		}, []string{"type", "result"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of connected board sessions",
		}),
		boards: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boards",
			Help:      "Number of boards held in memory",
		}),
		messagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_queued_total",
			Help:      "Outbound messages queued to sessions",
		}),
		slowConsumers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_consumers_total",
			Help:      "Sessions closed because their send queue overflowed",
		}),
		mirrorDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_dropped_total",
			Help:      "Board events not mirrored because the mirror buffer was full",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) EventHandled(eventType, result string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) SetBoards(n int) {
	if m == nil {
		return
	}
	m.boards.Set(float64(n))
}

func (m *Metrics) MessagesQueued(n int) {
	if m == nil {
		return
	}
	m.messagesSent.Add(float64(n))
}

func (m *Metrics) SlowConsumer() {
	if m == nil {
		return
	}
	m.slowConsumers.Inc()
}

func (m *Metrics) MirrorDropped() {
	if m == nil {
		return
	}
	m.mirrorDropped.Inc()
}
