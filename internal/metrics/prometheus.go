// Package metrics defines the broker's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the broker.
type Metrics struct {
	SignedURLRequests prometheus.Counter
	SignedURLFailures prometheus.Counter
	AgentListRequests prometheus.Counter
	AgentListFailures prometheus.Counter
	UpstreamDuration  prometheus.Histogram

	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all broker metrics on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignedURLRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "wicara_signed_url_requests_total",
			Help: "Total number of signed URL requests",
		}),
		SignedURLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "wicara_signed_url_failures_total",
			Help: "Total number of failed signed URL requests",
		}),
		AgentListRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "wicara_agent_list_requests_total",
			Help: "Total number of agent list requests",
		}),
		AgentListFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "wicara_agent_list_failures_total",
			Help: "Total number of failed agent list requests",
		}),
		UpstreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wicara_upstream_request_duration_seconds",
			Help:    "Duration of upstream API requests",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wicara_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
	}
}

// RecordSignedURL records one signed URL request and its upstream latency.
func (m *Metrics) RecordSignedURL(ok bool, durationSeconds float64) {
	m.SignedURLRequests.Inc()
	if !ok {
		m.SignedURLFailures.Inc()
	}
	m.UpstreamDuration.Observe(durationSeconds)
}

// RecordAgentList records one agent list request and its upstream latency.
func (m *Metrics) RecordAgentList(ok bool, durationSeconds float64) {
	m.AgentListRequests.Inc()
	if !ok {
		m.AgentListFailures.Inc()
	}
	m.UpstreamDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request by endpoint and status code.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
}
