package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks inbound HTTP request latency.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "chatowl",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// MattermostRequestsTotal counts outbound Mattermost API calls by endpoint
// and outcome.
var MattermostRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "chatowl",
		Subsystem: "mattermost",
		Name:      "requests_total",
		Help:      "Outbound Mattermost API requests.",
	},
	[]string{"endpoint", "status"},
)

// WebhookDeliveriesTotal counts calendar webhook delivery attempts by result.
var WebhookDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "chatowl",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Calendar webhook delivery attempts.",
	},
	[]string{"result"},
)

// NewMetricsRegistry creates a Prometheus registry with default and custom collectors.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
		MattermostRequestsTotal,
		WebhookDeliveriesTotal,
	)
	return reg
}
