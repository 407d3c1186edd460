package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(aiCallsLatencyMs, transcriptTokens) }

var aiCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_calls_latency_ms",
		Help:    "ASR/LLM call latency distribution in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
	},
	[]string{"kind", "provider", "model", "success"},
)

var transcriptTokens = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "transcript_tokens",
		Help:    "Token count of transcripts submitted for analysis.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	},
)

func ObserveAICall(kind, provider, model string, latencyMs int, success bool) {
	aiCallsLatencyMs.WithLabelValues(norm(kind), norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func ObserveTranscriptTokens(n int) {
	transcriptTokens.Observe(float64(n))
}
