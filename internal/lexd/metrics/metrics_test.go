package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordBatch(t *testing.T) {
	m := New()

	m.RecordBatch(ResultAccepted, map[string]int{"events": 3, "errors": 1, "performance": 0})
	m.RecordBatch(ResultEmpty, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues(ResultAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues(ResultEmpty)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ingested.WithLabelValues("events")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingested.WithLabelValues("errors")))
}

func TestRecordGatewayRequest(t *testing.T) {
	m := New()
	m.RecordGatewayRequest("critical", "cache")
	m.RecordGatewayRequest("critical", "cache")
	m.SetGatewayClients(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gatewayRequests.WithLabelValues("critical", "cache")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.gatewayClients))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordBatch(ResultAccepted, map[string]int{"events": 1})
		m.RecordGatewayRequest("default", "network")
		m.SetGatewayClients(1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordGatewayRequest("static", "offline")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lexd_gateway_requests_total{source="offline",strategy="static"} 1`)
}
