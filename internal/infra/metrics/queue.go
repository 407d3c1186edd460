package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(queueItemsTotal, queueDepth, stageDurationSeconds) }

var queueItemsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "processing_queue_items_total",
		Help: "Queue items by terminal/transition outcome (completed/failed/retried).",
	},
	[]string{"outcome"},
)

var queueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "processing_queue_depth",
		Help: "Items currently pending or awaiting retry in the processing queue.",
	},
)

var stageDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "processing_stage_duration_seconds",
		Help:    "Duration of each pipeline stage per call.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"stage"},
)

func IncQueueItem(outcome string) {
	queueItemsTotal.WithLabelValues(norm(outcome)).Inc()
}

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

func ObserveStage(stage string, seconds float64) {
	stageDurationSeconds.WithLabelValues(norm(stage)).Observe(seconds)
}
