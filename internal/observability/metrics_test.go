package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordRequest("GET", 200, 10*time.Millisecond)
	m.RecordRequest("GET", 200, 20*time.Millisecond)
	m.RecordError("NOT_FOUND")
	m.RecordPass("ok")
	m.RecordMessage("created")
	m.RecordMessage("created")
	m.RecordNotification("new_ticket", "sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("NOT_FOUND")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("new_ticket", "sent")))

	count, err := testutil.GatherAndCount(reg, "helpdesk_http_requests_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("GET", 200, time.Second)
		m.RecordError("X")
		m.RecordPass("ok")
		m.RecordMessage("failed")
		m.RecordNotification("k", "r")
	})
}
