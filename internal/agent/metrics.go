package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	agentRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prompttuner",
			Subsystem: "agent",
			Name:      "request_duration_seconds",
			Help:      "Duration of agent LLM requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 7, 10, 15, 20, 30},
		},
		[]string{"agent", "status"},
	)

	agentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prompttuner",
			Subsystem: "agent",
			Name:      "requests_total",
			Help:      "Total number of agent LLM requests",
		},
		[]string{"agent", "status"},
	)
)

// RecordAgentRequest records metrics for one agent request.
func RecordAgentRequest(agent string, durationSeconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	agentRequestDuration.WithLabelValues(agent, status).Observe(durationSeconds)
	agentRequestsTotal.WithLabelValues(agent, status).Inc()
}
