package eval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prompttuner",
			Subsystem: "eval",
			Name:      "duration_seconds",
			Help:      "Duration of a full per-user evaluation in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	precisionScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prompttuner",
			Subsystem: "eval",
			Name:      "precision_at_10",
			Help:      "Precision@10 scores observed across evaluations",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	evaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prompttuner",
			Subsystem: "eval",
			Name:      "evaluations_total",
			Help:      "Total number of completed evaluations",
		},
	)
)

// RecordEvaluation records metrics for one completed evaluation.
func RecordEvaluation(durationSeconds, precision float64) {
	evaluationDuration.Observe(durationSeconds)
	precisionScore.Observe(precision)
	evaluationsTotal.Inc()
}
