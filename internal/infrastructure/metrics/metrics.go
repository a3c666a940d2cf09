package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Orchestration Engine Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helper",
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "helper",
			Subsystem: "engine",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Model call counters
	ModelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helper",
			Subsystem: "engine",
			Name:      "model_calls_total",
			Help:      "Total chat completion calls",
		},
		[]string{"model", "status"},
	)

	// Model call duration histogram
	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "helper",
			Subsystem: "engine",
			Name:      "model_call_duration_seconds",
			Help:      "Chat completion duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	// Tool call counters
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helper",
			Subsystem: "engine",
			Name:      "tool_calls_total",
			Help:      "Total HTTP tool invocations",
		},
		[]string{"tool_name", "status"},
	)

	// Tool duration histogram
	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "helper",
			Subsystem: "engine",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool_name"},
	)

	// Embedding cache counters
	EmbeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helper",
			Subsystem: "engine",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// Escalation counter
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helper",
			Subsystem: "engine",
			Name:      "escalations_total",
			Help:      "Conversations escalated to human support",
		},
		[]string{"trigger"},
	)

	// Queue depth gauge
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "helper",
			Subsystem: "engine",
			Name:      "queue_depth",
			Help:      "Fanout job queue depth",
		},
	)

	// Fanout jobs counter
	FanoutJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helper",
			Subsystem: "engine",
			Name:      "fanout_jobs_total",
			Help:      "Total fanout jobs processed",
		},
		[]string{"job_type", "status"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordModelCall records a chat completion call
func RecordModelCall(model, status string, durationSec float64) {
	ModelCallsTotal.WithLabelValues(model, status).Inc()
	ModelCallDuration.WithLabelValues(model).Observe(durationSec)
}

// RecordToolCall records an HTTP tool invocation
func RecordToolCall(toolName, status string, durationSec float64) {
	ToolCallsTotal.WithLabelValues(toolName, status).Inc()
	ToolDuration.WithLabelValues(toolName).Observe(durationSec)
}

// RecordEmbeddingCacheLookup records a cache hit or miss
func RecordEmbeddingCacheLookup(outcome string) {
	EmbeddingCacheTotal.WithLabelValues(outcome).Inc()
}

// RecordEscalation records a handoff to human support
func RecordEscalation(trigger string) {
	EscalationsTotal.WithLabelValues(trigger).Inc()
}

// SetQueueDepth sets the current queue depth
func SetQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}

// RecordFanoutJob records a fanout job execution
func RecordFanoutJob(jobType, status string) {
	FanoutJobsTotal.WithLabelValues(jobType, status).Inc()
}
