// Package metrics defines the Prometheus metrics exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xbrch"

var (
	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Oracle metrics. outcome is "ok" or "fallback".
	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Content oracle calls by operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Content oracle call latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "operation"},
	)

	// Broadcast metrics
	BroadcastsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_created_total",
			Help:      "Broadcasts created, by plan",
		},
		[]string{"plan"},
	)

	BroadcastOutputs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_outputs_total",
			Help:      "Platform outputs generated, by platform",
		},
		[]string{"platform"},
	)

	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Broadcast requests rejected for an exhausted monthly quota",
		},
		[]string{"plan"},
	)

	WebsitePostsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "website_posts_created_total",
			Help:      "Website posts generated, by type",
		},
		[]string{"type"},
	)

	EstimatedTokens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "estimated_tokens_total",
		Help:      "Estimated AI tokens charged to tenants",
	})

	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_panics_recovered_total",
			Help:      "Handler panics converted into 500 responses",
		},
		[]string{"route"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
