// Package metrics exposes Prometheus counters for telemetry ingest and the
// offline cache gateway
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch results
const (
	ResultAccepted = "accepted"
	ResultEmpty    = "empty"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Metrics holds the server's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	ingested        *prometheus.CounterVec
	batches         *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
	gatewayClients  prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ingested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexd_telemetry_ingested_total",
				Help: "Telemetry records accepted, by category",
			},
			[]string{"category"},
		),
		batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexd_telemetry_batches_total",
				Help: "Telemetry batches received, by result",
			},
			[]string{"result"},
		),
		gatewayRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexd_gateway_requests_total",
				Help: "Requests answered by the cache gateway, by strategy and response source",
			},
			[]string{"strategy", "source"},
		),
		gatewayClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lexd_gateway_clients",
				Help: "Connected gateway websocket clients",
			},
		),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordBatch counts one batch and, when accepted, its records per category
func (m *Metrics) RecordBatch(result string, counts map[string]int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(result).Inc()
	for category, n := range counts {
		if n > 0 {
			m.ingested.WithLabelValues(category).Add(float64(n))
		}
	}
}

// RecordGatewayRequest counts one gateway response
func (m *Metrics) RecordGatewayRequest(strategy, source string) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(strategy, source).Inc()
}

// SetGatewayClients records the number of connected clients
func (m *Metrics) SetGatewayClients(n int) {
	if m == nil {
		return
	}
	m.gatewayClients.Set(float64(n))
}
