// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every collector in this package is registered with.
var Registry = prometheus.NewRegistry()

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route template and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route template.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	EmailsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Queued emails delivered successfully.",
	})

	EmailsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "emails_failed_total",
		Help: "Failed delivery attempts of queued emails.",
	})

	EmailsDeadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "emails_dead_lettered_total",
		Help: "Queued emails that exhausted their retries.",
	})

	JobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_transitions_total",
			Help: "Job status transitions by target status.",
		},
		[]string{"to"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestsTotal,
		HTTPRequestDuration,
		EmailsSent,
		EmailsFailed,
		EmailsDeadLettered,
		JobTransitions,
	)
}

// Handler exposes the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
