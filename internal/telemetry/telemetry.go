// Package telemetry exposes prometheus instrumentation for research runs and
// their collaborators. Collectors are package-level and registered once.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "research_runs_total",
		Help: "Research runs by skill and final status.",
	}, []string{"skill", "status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "research_run_duration_seconds",
		Help:    "End-to-end research run duration.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"skill"})

	llmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Gateway requests by kind (complete, stream) and status.",
	}, []string{"kind", "status"})

	llmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_request_duration_seconds",
		Help:    "Gateway request duration. For streams this is time to first byte.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"kind"})

	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_requests_total",
		Help: "Search provider requests by status.",
	}, []string{"status"})

	searchRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_request_duration_seconds",
		Help:    "Search provider request duration.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tool_calls_total",
		Help: "Tool invocations by tool name and status.",
	}, []string{"tool", "status"})

	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tool_call_duration_seconds",
		Help:    "Tool invocation duration.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"tool"})
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRun records one finished research run.
func ObserveRun(skill, runStatus string, d time.Duration) {
	runsTotal.WithLabelValues(skill, runStatus).Inc()
	runDuration.WithLabelValues(skill).Observe(d.Seconds())
}

// ObserveLLMRequest records one gateway call.
func ObserveLLMRequest(kind string, err error, d time.Duration) {
	llmRequestsTotal.WithLabelValues(kind, status(err)).Inc()
	llmRequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveSearch records one search provider call.
func ObserveSearch(err error, d time.Duration) {
	searchRequestsTotal.WithLabelValues(status(err)).Inc()
	searchRequestDuration.Observe(d.Seconds())
}

// ObserveToolCall records one tool invocation.
func ObserveToolCall(tool string, err error, d time.Duration) {
	toolCallsTotal.WithLabelValues(tool, status(err)).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}
