package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerask_questions_total",
			Help: "Total number of answered questions by outcome.",
		},
		[]string{"outcome"},
	)
	generationLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgerask_generation_latency_ms",
			Help:    "Round-trip latency of the text-generation service in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 30000},
		},
	)
	queryLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgerask_query_latency_ms",
			Help:    "Execution latency of generated queries in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	resultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgerask_result_rows",
			Help:    "Number of rows returned per answered question.",
			Buckets: []float64{0, 1, 3, 5, 10, 50, 100, 1000, 10000},
		},
	)
	guardRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerask_guard_rejections_total",
			Help: "Total number of generated queries rejected before execution.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		generationLatencyMs,
		queryLatencyMs,
		resultRows,
		guardRejectionsTotal,
	)
}

// ObserveQuestion records the outcome of one pipeline run; outcome is "ok" or a
// failure kind.
func ObserveQuestion(outcome string) {
	questionsTotal.WithLabelValues(outcome).Inc()
	if outcome == "query_rejected" {
		guardRejectionsTotal.Inc()
	}
}

func ObserveGeneration(elapsed time.Duration) {
	generationLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveQuery(elapsed time.Duration, rows int) {
	queryLatencyMs.Observe(float64(elapsed.Milliseconds()))
	resultRows.Observe(float64(rows))
}
