package story

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "prompttuner",
			Subsystem: "pool",
			Name:      "size",
			Help:      "Number of stories in the candidate pool",
		},
	)

	poolFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prompttuner",
			Subsystem: "pool",
			Name:      "expansion_fallbacks_total",
			Help:      "Times pool expansion fell back to seed cloning",
		},
	)
)

// RecordPoolSize records the final candidate pool size.
func RecordPoolSize(size int) {
	poolSize.Set(float64(size))
}

// RecordPoolFallback records one clone-padding fallback.
func RecordPoolFallback() {
	poolFallbacksTotal.Inc()
}
