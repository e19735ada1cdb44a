package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkarpis/prompttuner/internal/openrouter"
)

// Type identifies which agent issued a request. Used for logging and metrics.
type Type string

const (
	TypeSimulator   Type = "simulator"
	TypeRecommender Type = "recommender"
	TypeOracle      Type = "oracle"
	TypeOptimizer   Type = "optimizer"
	TypeExpander    Type = "expander"
)

// SingleShotRequest describes one system+user prompt pair sent to an LLM.
type SingleShotRequest struct {
	AgentType    Type
	UserID       int64
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	JSONMode     bool
}

// Response holds the completion content and usage for one request.
type Response struct {
	Content  string
	Duration time.Duration
	Tokens   int
}

// Executor runs single-shot agent requests against the LLM client.
type Executor struct {
	client openrouter.Client
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger, client openrouter.Client) *Executor {
	return &Executor{
		client: client,
		logger: logger.With("component", "agent_executor"),
	}
}

// ExecuteSingleShot sends one request and returns the raw completion content.
func (e *Executor) ExecuteSingleShot(ctx context.Context, req SingleShotRequest) (Response, error) {
	startTime := time.Now()

	e.logger.Debug("executing agent request",
		"agent", req.AgentType,
		"user_id", req.UserID,
		"model", req.Model,
		"system_chars", len(req.SystemPrompt),
		"user_chars", len(req.UserPrompt),
	)

	chatReq := openrouter.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openrouter.Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: &req.Temperature,
		MaxTokens:   req.MaxTokens,
		UserID:      req.UserID,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openrouter.ResponseFormat{Type: "json_object"}
	}

	resp, err := e.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(startTime)
	if err != nil {
		RecordAgentRequest(string(req.AgentType), duration.Seconds(), false)
		return Response{}, fmt.Errorf("agent %s request: %w", req.AgentType, err)
	}

	if len(resp.Choices) == 0 {
		RecordAgentRequest(string(req.AgentType), duration.Seconds(), false)
		return Response{}, fmt.Errorf("agent %s: %w", req.AgentType, ErrEmptyCompletion)
	}

	RecordAgentRequest(string(req.AgentType), duration.Seconds(), true)

	e.logger.Debug("agent request complete",
		"agent", req.AgentType,
		"user_id", req.UserID,
		"duration", duration,
		"total_tokens", resp.Usage.TotalTokens,
	)

	return Response{
		Content:  resp.Choices[0].Message.Content,
		Duration: duration,
		Tokens:   resp.Usage.TotalTokens,
	}, nil
}

// ErrEmptyCompletion is returned when the API answers with no choices.
var ErrEmptyCompletion = errors.New("completion contained no choices")
