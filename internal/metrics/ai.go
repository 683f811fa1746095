package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(aiCalls, aiLatencySeconds, aiPromptTokens)
}

var (
	aiCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_ai_calls_total",
			Help: "AI adapter calls by operation, provider and outcome (succeeded/degraded).",
		},
		[]string{"operation", "provider", "outcome"},
	)

	aiLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stories_ai_call_duration_seconds",
			Help:    "AI provider call latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"operation", "provider"},
	)

	aiPromptTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_ai_prompt_tokens_total",
			Help: "Estimated prompt tokens sent per provider.",
		},
		[]string{"provider"},
	)
)

// ObserveAICall records one adapter call. outcome is "succeeded" or "degraded".
func ObserveAICall(operation, provider, outcome string, elapsed time.Duration) {
	aiCalls.WithLabelValues(norm(operation), norm(provider), norm(outcome)).Inc()
	aiLatencySeconds.WithLabelValues(norm(operation), norm(provider)).Observe(elapsed.Seconds())
}

// AddPromptTokens adds an estimated prompt token count for provider.
func AddPromptTokens(provider string, n int) {
	if n <= 0 {
		return
	}
	aiPromptTokens.WithLabelValues(norm(provider)).Add(float64(n))
}
