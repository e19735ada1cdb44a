package loop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prompttuner",
			Subsystem: "loop",
			Name:      "runs_total",
			Help:      "Total optimization runs by stop reason",
		},
		[]string{"reason"},
	)

	runIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prompttuner",
			Subsystem: "loop",
			Name:      "run_iterations",
			Help:      "Iterations per optimization run",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	)

	runBestScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prompttuner",
			Subsystem: "loop",
			Name:      "run_best_score",
			Help:      "Best Precision@10 reached per run",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prompttuner",
			Subsystem: "loop",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration per optimization run",
			Buckets:   []float64{10, 30, 60, 120, 180, 300, 600},
		},
	)
)

// RecordRun records metrics for one finished optimization run.
func RecordRun(reason string, iterations int, bestScore, durationSeconds float64) {
	runsTotal.WithLabelValues(reason).Inc()
	runIterations.Observe(float64(iterations))
	runBestScore.Observe(bestScore)
	runDuration.Observe(durationSeconds)
}
