package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCallsLatencyMs,
		aiCallFailures,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of generated (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		},
		[]string{"provider", "model", "outcome"},
	)

	aiCallFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_call_failures_total",
			Help: "Failed AI calls per provider and failure kind.",
		},
		[]string{"provider", "kind"},
	)
)

// ObserveGeneration records one inference call. kind is empty on success.
func ObserveGeneration(provider, model, kind string, tokensIn, tokensOut int, latencyMs int64) {
	outcome := "ok"
	if kind != "" {
		outcome = "error"
		aiCallFailures.WithLabelValues(norm(provider), norm(kind)).Inc()
	}
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), outcome).Observe(float64(latencyMs))
}
