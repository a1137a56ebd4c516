// internal/utils/metrics.go
package utils

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "cinema"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 30, 120, 600},
		},
		[]string{"method", "path"},
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of inference calls",
		},
		[]string{"provider", "model", "section", "status"},
	)

	llmCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Inference call duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "model", "section"},
	)

	llmOutputTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "output_tokens_total",
			Help:      "Tokens reported as generated by the backend",
		},
		[]string{"provider", "model"},
	)

	generationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "runs_total",
			Help:      "Generation runs by outcome",
		},
		[]string{"mode", "status"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full three-stage generation run",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 900},
		},
		[]string{"mode"},
	)

	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "export",
			Name:      "total",
			Help:      "Exports by format and outcome",
		},
		[]string{"format", "status"},
	)

	exportBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "export",
			Name:      "size_bytes",
			Help:      "Size of exported artifacts",
			Buckets:   prometheus.ExponentialBuckets(512, 4, 8),
		},
		[]string{"format"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently held in memory",
		},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Errors by type and component",
		},
		[]string{"type", "component"},
	)
)

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// APIMetrics records application metrics into the default prometheus registry.
type APIMetrics struct{}

// NewAPIMetrics creates a new API metrics collector
func NewAPIMetrics() *APIMetrics {
	return &APIMetrics{}
}

// RecordAPIRequest records an API request
func (am *APIMetrics) RecordAPIRequest(path, method string, statusCode int, duration time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLLMRequest records one inference call
func (am *APIMetrics) RecordLLMRequest(provider, model, section string, outputTokens int, duration time.Duration, err error) {
	llmCallsTotal.WithLabelValues(provider, model, section, statusLabel(err)).Inc()
	llmCallDuration.WithLabelValues(provider, model, section).Observe(duration.Seconds())
	if outputTokens > 0 {
		llmOutputTokens.WithLabelValues(provider, model).Add(float64(outputTokens))
	}
}

// RecordGeneration records a full generation run
func (am *APIMetrics) RecordGeneration(mode string, duration time.Duration, err error) {
	generationRunsTotal.WithLabelValues(mode, statusLabel(err)).Inc()
	generationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordExport records one export attempt
func (am *APIMetrics) RecordExport(format string, size int, err error) {
	exportsTotal.WithLabelValues(format, statusLabel(err)).Inc()
	if err == nil {
		exportBytes.WithLabelValues(format).Observe(float64(size))
	}
}

// SetActiveSessions updates the session gauge
func (am *APIMetrics) SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordError records an error occurrence
func (am *APIMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
