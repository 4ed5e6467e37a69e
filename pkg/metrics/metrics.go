// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// LLMRequestDuration tracks how long the language model takes to answer.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM answer duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// QueriesRecorded counts query events appended to the analytics log.
	QueriesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_queries_recorded_total",
			Help: "Query events appended to the analytics log",
		},
	)

	// QueryResponseTime observes the latency stored on each query event.
	QueryResponseTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analytics_query_response_seconds",
			Help:    "Question to answer latency of recorded query events",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	// AnalyticsLogSize reports the number of events currently retained.
	AnalyticsLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_log_events",
			Help: "Events retained in the capped analytics log",
		},
	)

	// AnalyticsStoreErrors counts failed durable-store operations.
	AnalyticsStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_store_errors_total",
			Help: "Failed analytics store operations",
		},
		[]string{"operation"},
	)

	// DocumentsUploaded counts uploaded documents by extraction outcome.
	DocumentsUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_uploaded_total",
			Help: "Documents uploaded",
		},
		[]string{"extraction"},
	)

	// MessagesTotal tracks chat messages persisted.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total chat messages",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordLLM records metrics for one language model call.
func RecordLLM(provider, model, status string, seconds float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(provider, model, status).Observe(seconds)
	if tokensIn > 0 {
		LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
	}
}

// RecordQuery records a query event appended to the analytics log.
func RecordQuery(responseTimeMs int64, logSize int) {
	QueriesRecorded.Inc()
	QueryResponseTime.Observe(float64(responseTimeMs) / 1000)
	AnalyticsLogSize.Set(float64(logSize))
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
