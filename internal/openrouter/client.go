package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Retry configuration
const (
	maxRetries   = 3
	baseDelay    = 1 * time.Second
	maxDelay     = 30 * time.Second
	jitterFactor = 0.2 // 20% jitter
)

// Client is the interface to the OpenRouter completion and embedding APIs.
type Client interface {
	CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error)
}

// TransportError reports a network or API failure that survived all retries.
// The optimization loop surfaces it to the caller; no further retry happens
// inside the core.
type TransportError struct {
	Operation  string // "chat_completion" or "embeddings"
	StatusCode int    // 0 for network-level failures
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("openrouter %s failed with status %d: %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("openrouter %s failed: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type clientImpl struct {
	httpClient  *http.Client
	apiKey      string
	apiEndpoint string
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// isRetryableStatusCode returns true if the HTTP status code indicates a retryable error.
func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

// isRetryableError returns true if the error is a network/timeout error that should be retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// calculateBackoff returns the delay for the given attempt using exponential backoff with jitter.
func calculateBackoff(attempt int) time.Duration {
	// Limit attempt to avoid overflow (2^5 = 32 seconds is already > maxDelay)
	if attempt > 5 {
		attempt = 5
	}
	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}

	// Add jitter: ±20%
	jitter := time.Duration(float64(delay) * jitterFactor * (2*rand.Float64() - 1))
	return delay + jitter
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// UserID is used for metrics tracking only, not sent to API
	UserID int64 `json:"-"`
}

type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason,omitempty"`
		Index        int    `json:"index"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int      `json:"prompt_tokens"`
		CompletionTokens int      `json:"completion_tokens"`
		TotalTokens      int      `json:"total_tokens"`
		Cost             *float64 `json:"cost,omitempty"` // Cost in USD from OpenRouter
	} `json:"usage"`
}

type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type EmbeddingObject struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type EmbeddingResponse struct {
	Object string            `json:"object"`
	Data   []EmbeddingObject `json:"data"`
	Model  string            `json:"model"`
	Usage  struct {
		PromptTokens int      `json:"prompt_tokens"`
		TotalTokens  int      `json:"total_tokens"`
		Cost         *float64 `json:"cost,omitempty"` // Cost in USD from OpenRouter
	} `json:"usage"`
}

// NewClient creates a production client against the public OpenRouter endpoint.
// requestsPerSecond <= 0 disables client-side throttling.
func NewClient(logger *slog.Logger, apiKey, proxyURL string, requestsPerSecond float64, burst int) (Client, error) {
	return NewClientWithBaseURL(logger, apiKey, proxyURL, "https://openrouter.ai/api/v1", requestsPerSecond, burst)
}

func NewClientWithBaseURL(logger *slog.Logger, apiKey, proxyURL, baseURL string, requestsPerSecond float64, burst int) (Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   10,
	}

	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	clientLogger := logger.With("component", "openrouter_client")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}

	return &clientImpl{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   300 * time.Second, // Global timeout for requests (5 min for large pools)
		},
		apiKey:      apiKey,
		apiEndpoint: baseURL,
		limiter:     limiter,
		logger:      clientLogger,
	}, nil
}

func (c *clientImpl) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	startTime := time.Now()

	contextChars := 0
	for _, msg := range req.Messages {
		contextChars += len(msg.Content)
	}

	c.logger.Info("Sending request to OpenRouter",
		"model", req.Model,
		"message_count", len(req.Messages),
		"context_chars", contextChars,
	)

	body, err := json.Marshal(req)
	if err != nil {
		return ChatCompletionResponse{}, err
	}

	responseBody, err := c.doWithRetry(ctx, "chat/completions", "chat_completion", req.Model, body)
	if err != nil {
		RecordLLMRequest(req.Model, time.Since(startTime).Seconds(), false, 0, 0, nil)
		return ChatCompletionResponse{}, err
	}

	var completion ChatCompletionResponse
	if err := json.Unmarshal(responseBody, &completion); err != nil {
		RecordLLMRequest(req.Model, time.Since(startTime).Seconds(), false, 0, 0, nil)
		return ChatCompletionResponse{}, fmt.Errorf("decode chat completion response: %w", err)
	}

	RecordLLMRequest(req.Model, time.Since(startTime).Seconds(), true,
		completion.Usage.PromptTokens, completion.Usage.CompletionTokens, completion.Usage.Cost)

	c.logger.Debug("OpenRouter request complete",
		"model", completion.Model,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"duration", time.Since(startTime),
	)

	return completion, nil
}

func (c *clientImpl) CreateEmbeddings(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	startTime := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		return EmbeddingResponse{}, err
	}

	responseBody, err := c.doWithRetry(ctx, "embeddings", "embeddings", req.Model, body)
	if err != nil {
		RecordEmbeddingRequest(req.Model, time.Since(startTime).Seconds(), false, 0, nil)
		return EmbeddingResponse{}, err
	}

	var embeddings EmbeddingResponse
	if err := json.Unmarshal(responseBody, &embeddings); err != nil {
		RecordEmbeddingRequest(req.Model, time.Since(startTime).Seconds(), false, 0, nil)
		return EmbeddingResponse{}, fmt.Errorf("decode embedding response: %w", err)
	}

	RecordEmbeddingRequest(req.Model, time.Since(startTime).Seconds(), true,
		embeddings.Usage.TotalTokens, embeddings.Usage.Cost)

	c.logger.Debug("Embedding request complete",
		"model", embeddings.Model,
		"inputs", len(req.Input),
		"vectors", len(embeddings.Data),
		"duration", time.Since(startTime),
	)

	return embeddings, nil
}

// doWithRetry posts the body to the given API path, retrying transient
// failures with exponential backoff. Non-retryable failures and exhausted
// retries surface as *TransportError.
func (c *clientImpl) doWithRetry(ctx context.Context, path, operation, model string, body []byte) ([]byte, error) {
	endpoint, err := url.JoinPath(c.apiEndpoint, path)
	if err != nil {
		return nil, err
	}

	var lastErr error
	var lastStatus int

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			RecordLLMRetry(model)
			delay := calculateBackoff(attempt - 1)
			c.logger.Warn("Retrying OpenRouter request",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"delay", delay,
				"last_error", lastErr,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("User-Agent", "prompttuner/1.0")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if isRetryableError(err) && attempt < maxRetries {
				lastErr = err
				lastStatus = 0
				continue
			}
			return nil, &TransportError{Operation: operation, Err: err}
		}

		responseBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			if attempt < maxRetries {
				lastErr = err
				lastStatus = 0
				continue
			}
			return nil, &TransportError{Operation: operation, Err: err}
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateForLog(string(responseBody), 500))
			if isRetryableStatusCode(resp.StatusCode) && attempt < maxRetries {
				lastErr = apiErr
				lastStatus = resp.StatusCode
				continue
			}
			return nil, &TransportError{Operation: operation, StatusCode: resp.StatusCode, Err: apiErr}
		}

		return responseBody, nil
	}

	return nil, &TransportError{Operation: operation, StatusCode: lastStatus, Err: lastErr}
}

// truncateForLog truncates a string to maxLen characters for logging.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
