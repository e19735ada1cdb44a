package openrouter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "prompttuner"

var (
	// llmRequestDuration measures the duration of LLM API requests.
	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Duration of LLM API requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 7, 10, 15, 20, 30, 45, 60},
		},
		[]string{"model", "status"},
	)

	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total number of LLM API requests",
		},
		[]string{"model", "status"},
	)

	// llmTokensTotal counts tokens by type (prompt, completion).
	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total number of tokens used for LLM requests",
		},
		[]string{"model", "type"},
	)

	llmCostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "cost_usd_total",
			Help:      "Total cost of LLM API requests in USD",
		},
		[]string{"model"},
	)

	llmRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "retries_total",
			Help:      "Total number of retry attempts for LLM requests",
		},
		[]string{"model"},
	)

	embeddingRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Duration of embedding API requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"model", "status"},
	)

	embeddingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Total number of embedding API requests",
		},
		[]string{"model", "status"},
	)

	embeddingTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Total number of tokens used for embeddings",
		},
		[]string{"model"},
	)

	embeddingCostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "embedding",
			Name:      "cost_usd_total",
			Help:      "Total cost of embedding API requests in USD",
		},
		[]string{"model"},
	)
)

const (
	statusSuccess   = "success"
	statusError     = "error"
	tokenTypePrompt = "prompt"
	tokenTypeCompl  = "completion"
)

// RecordLLMRequest records metrics for one chat completion request.
func RecordLLMRequest(model string, durationSeconds float64, success bool, promptTokens, completionTokens int, cost *float64) {
	status := statusSuccess
	if !success {
		status = statusError
	}

	llmRequestDuration.WithLabelValues(model, status).Observe(durationSeconds)
	llmRequestsTotal.WithLabelValues(model, status).Inc()

	if success {
		if promptTokens > 0 {
			llmTokensTotal.WithLabelValues(model, tokenTypePrompt).Add(float64(promptTokens))
		}
		if completionTokens > 0 {
			llmTokensTotal.WithLabelValues(model, tokenTypeCompl).Add(float64(completionTokens))
		}
		if cost != nil && *cost > 0 {
			llmCostTotal.WithLabelValues(model).Add(*cost)
		}
	}
}

// RecordLLMRetry records one retry attempt.
func RecordLLMRetry(model string) {
	llmRetriesTotal.WithLabelValues(model).Inc()
}

// RecordEmbeddingRequest records metrics for one embedding request.
func RecordEmbeddingRequest(model string, durationSeconds float64, success bool, totalTokens int, cost *float64) {
	status := statusSuccess
	if !success {
		status = statusError
	}

	embeddingRequestDuration.WithLabelValues(model, status).Observe(durationSeconds)
	embeddingRequestsTotal.WithLabelValues(model, status).Inc()

	if success {
		if totalTokens > 0 {
			embeddingTokensTotal.WithLabelValues(model).Add(float64(totalTokens))
		}
		if cost != nil && *cost > 0 {
			embeddingCostTotal.WithLabelValues(model).Add(*cost)
		}
	}
}
