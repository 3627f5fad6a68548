// Package metrics exposes Prometheus counters for record and replay sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SmitUplenchwar2687/wsreplay/internal/recorder"
)

// Collector holds the session metrics. A nil *Collector is valid and
// records nothing, so callers never need to check whether metrics are on.
type Collector struct {
	registry *prometheus.Registry

	sessionsActive  *prometheus.GaugeVec
	sessionsTotal   *prometheus.CounterVec
	messagesTotal   *prometheus.CounterVec
	bytesTotal      *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	deliveryLag     prometheus.Histogram
	discardedTotal  prometheus.Counter
	sessionDuration *prometheus.HistogramVec
}

// New creates a Collector registered on its own registry.
func New() *Collector {
	m := &Collector{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wsreplay_sessions_active",
				Help: "Sessions currently open",
			},
			[]string{"mode"},
		),
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsreplay_sessions_total",
				Help: "Sessions accepted",
			},
			[]string{"mode"},
		),
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsreplay_messages_total",
				Help: "Messages observed, by mode and direction",
			},
			[]string{"mode", "direction"},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsreplay_message_bytes_total",
				Help: "Payload bytes observed, by mode and direction",
			},
			[]string{"mode", "direction"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsreplay_errors_total",
				Help: "Session errors by kind (transport, log_write, log_parse, log_open)",
			},
			[]string{"mode", "kind"},
		),
		deliveryLag: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wsreplay_replay_delivery_lag_seconds",
				Help:    "Time between a replayed message's scheduled time and its delivery",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		discardedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wsreplay_replay_discarded_total",
				Help: "Replayed messages still gated when the client disconnected",
			},
		),
		sessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wsreplay_session_duration_seconds",
				Help:    "Session lifetime",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
			},
			[]string{"mode"},
		),
	}

	m.registry.MustRegister(
		m.sessionsActive,
		m.sessionsTotal,
		m.messagesTotal,
		m.bytesTotal,
		m.errorsTotal,
		m.deliveryLag,
		m.discardedTotal,
		m.sessionDuration,
	)

	return m
}

// SessionStarted marks a session open and returns a func that marks it closed.
func (m *Collector) SessionStarted(mode string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.sessionsTotal.WithLabelValues(mode).Inc()
	m.sessionsActive.WithLabelValues(mode).Inc()
	return func() {
		m.sessionsActive.WithLabelValues(mode).Dec()
		m.sessionDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}
}

func (m *Collector) RecordMessage(mode string, dir recorder.Direction, size int) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(mode, string(dir)).Inc()
	m.bytesTotal.WithLabelValues(mode, string(dir)).Add(float64(size))
}

func (m *Collector) RecordError(mode, kind string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(mode, kind).Inc()
}

// ObserveDeliveryLag records how late a replayed message went out.
func (m *Collector) ObserveDeliveryLag(d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.deliveryLag.Observe(d.Seconds())
}

func (m *Collector) RecordDiscarded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.discardedTotal.Add(float64(n))
}

// Registry returns the registry the collectors are registered on.
func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
