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
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnDuration tracks full orchestrated turn duration, including
	// tool execution and follow-up turns.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_turn_duration_seconds",
			Help:    "Orchestrated turn duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// TurnsTotal counts model turns by outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_turns_total",
			Help: "Total model turns run by the orchestrator",
		},
		[]string{"outcome"},
	)

	// DeltasTotal counts streamed deltas applied to accumulators.
	DeltasTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_stream_deltas_total",
			Help: "Streamed deltas applied, by kind",
		},
		[]string{"kind"},
	)

	// ToolCallsTotal counts tool executions by outcome.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_tool_calls_total",
			Help: "Tool call executions",
		},
		[]string{"tool", "outcome"},
	)

	// RetryAttemptsTotal counts retry attempts scheduled by the
	// resilience coordinator.
	RetryAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_retry_attempts_total",
			Help: "Retry attempts for message sends",
		},
	)

	// SendsTotal counts message sends by terminal status.
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_sends_total",
			Help: "Message sends by terminal send status",
		},
		[]string{"status"},
	)

	// OfflineQueueDepth tracks messages waiting for connectivity.
	OfflineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_offline_queue_depth",
			Help: "Messages queued while offline",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// MessagesTotal tracks total messages appended to history.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_messages_total",
			Help: "Total messages appended to conversation history",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records metrics for one orchestrated turn.
func RecordTurn(model, status string, duration float64) {
	TurnDuration.WithLabelValues(model, status).Observe(duration)
	TurnsTotal.WithLabelValues(status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
