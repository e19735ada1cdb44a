package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prefilterDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prompttuner",
			Subsystem: "index",
			Name:      "prefilter_duration_seconds",
			Help:      "Duration of embedding prefilter operations in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	prefilterReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prompttuner",
			Subsystem: "index",
			Name:      "prefilter_returned_stories",
			Help:      "Number of stories returned by the prefilter",
			Buckets:   []float64{0, 10, 20, 40, 60, 80, 100},
		},
	)

	prefilterSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prompttuner",
			Subsystem: "index",
			Name:      "prefilter_skipped_total",
			Help:      "Stories skipped by the prefilter due to missing embeddings",
		},
	)
)

// RecordPrefilter records metrics for one prefilter call.
func RecordPrefilter(durationSeconds float64, returned, skipped int) {
	prefilterDuration.Observe(durationSeconds)
	prefilterReturned.Observe(float64(returned))
	if skipped > 0 {
		prefilterSkippedTotal.Add(float64(skipped))
	}
}
