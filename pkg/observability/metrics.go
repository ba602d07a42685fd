// Package observability provides Prometheus metrics for monitoring the
// SDK's dispatch pipeline.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts dispatched calls by model type, model, and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qianfan_requests_total",
			Help: "Total dispatched requests",
		},
		[]string{"model_type", "model", "outcome"},
	)

	// RequestDuration records buffered call duration in seconds by model type and model.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qianfan_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"model_type", "model"},
	)

	// ActiveStreams tracks the number of open SSE streams.
	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qianfan_streams_active",
			Help: "Active SSE streams",
		},
	)

	// CredentialRefreshesTotal counts token refreshes by outcome.
	CredentialRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qianfan_credential_refreshes_total",
			Help: "Credential refreshes",
		},
		[]string{"outcome"},
	)

	// CredentialRetriesTotal counts transparent re-acquire-and-retry cycles
	// triggered by an expired credential mid-call.
	CredentialRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qianfan_credential_retries_total",
			Help: "Expired-credential call retries",
		},
	)

	// OverlayFetchesTotal counts dynamic endpoint overlay fetches by outcome.
	OverlayFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qianfan_endpoint_overlay_fetches_total",
			Help: "Dynamic endpoint overlay fetches",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ActiveStreams,
		CredentialRefreshesTotal,
		CredentialRetriesTotal,
		OverlayFetchesTotal,
	)
}
