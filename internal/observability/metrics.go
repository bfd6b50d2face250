package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors exported on /metrics.
type Metrics struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	passes        *prometheus.CounterVec
	messages      *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_errors_total",
			Help: "HTTP error responses by error code.",
		}, []string{"code"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_ingest_passes_total",
			Help: "Mailbox ingestion passes by result.",
		}, []string{"result"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_ingest_messages_total",
			Help: "Inbound messages by reconciliation outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_notifications_total",
			Help: "Outbound notifications by kind and result.",
		}, []string{"kind", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.errors, m.passes, m.messages, m.notifications)
	}
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(code).Inc()
}

// RecordPass counts an ingestion pass: ok, failed or skipped.
func (m *Metrics) RecordPass(result string) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(result).Inc()
}

// RecordMessage counts one inbound message outcome.
func (m *Metrics) RecordMessage(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
}

// RecordNotification counts one outbound notification attempt.
func (m *Metrics) RecordNotification(kind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}
