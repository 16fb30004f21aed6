// Package metrics exposes gateway counters in the Prometheus exposition
// format. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "j2me_gateway"

// Label values for client line results.
const (
	LineControl   = "control"
	LineForwarded = "forwarded"
	LineDropped   = "dropped"
	LineInvalid   = "invalid"
)

// Label values for typing request results.
const (
	TypingSent     = "sent"
	TypingFailed   = "failed"
	TypingRejected = "rejected"
	TypingSkipped  = "skipped"
)

// Metrics holds the gateway collectors in a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	clientLines    *prometheus.CounterVec
	upstreamEvents *prometheus.CounterVec
	typingRequests *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of client sessions currently open.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of client sessions accepted.",
		}),
		clientLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_lines_total",
			Help:      "Lines received from clients by result.",
		}, []string{"result"}),
		upstreamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_events_total",
			Help:      "Upstream messages by normalization action.",
		}, []string{"action"}),
		typingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "typing_requests_total",
			Help:      "Typing indicator requests by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.sessionsActive,
		m.sessionsTotal,
		m.clientLines,
		m.upstreamEvents,
		m.typingRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry. A nil receiver serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SessionOpened records an accepted client session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
	m.sessionsActive.Inc()
}

// SessionClosed records the end of a client session.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// ClientLine records one line received from a client.
func (m *Metrics) ClientLine(result string) {
	if m == nil {
		return
	}
	m.clientLines.WithLabelValues(result).Inc()
}

// UpstreamEvent records the normalization outcome of one upstream message.
func (m *Metrics) UpstreamEvent(action string) {
	if m == nil {
		return
	}
	m.upstreamEvents.WithLabelValues(action).Inc()
}

// TypingRequest records the result of one typing indicator request.
func (m *Metrics) TypingRequest(result string) {
	if m == nil {
		return
	}
	m.typingRequests.WithLabelValues(result).Inc()
}
