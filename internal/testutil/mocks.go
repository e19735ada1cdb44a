package testutil

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/mkarpis/prompttuner/internal/openrouter"
)

// Logger returns a logger that discards everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// MockClient is a testify mock for the OpenRouter client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateChatCompletion(ctx context.Context, req openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openrouter.ChatCompletionResponse), args.Error(1)
}

func (m *MockClient) CreateEmbeddings(ctx context.Context, req openrouter.EmbeddingRequest) (openrouter.EmbeddingResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openrouter.EmbeddingResponse), args.Error(1)
}

// ChatResponse builds a single-choice completion response with the given content.
func ChatResponse(content string) openrouter.ChatCompletionResponse {
	var resp openrouter.ChatCompletionResponse
	resp.ID = "gen-test"
	resp.Choices = make([]struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason,omitempty"`
		Index        int    `json:"index"`
	}, 1)
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = content
	resp.Usage.TotalTokens = 10
	return resp
}

// EmbeddingResponseFor builds an embedding response with one vector per input.
func EmbeddingResponseFor(vectors ...[]float32) openrouter.EmbeddingResponse {
	var resp openrouter.EmbeddingResponse
	resp.Object = "list"
	for i, v := range vectors {
		resp.Data = append(resp.Data, openrouter.EmbeddingObject{
			Object:    "embedding",
			Embedding: v,
			Index:     i,
		})
	}
	return resp
}

// MemoryPromptRepo is an in-memory prompt repository for tests.
type MemoryPromptRepo struct {
	mu      sync.Mutex
	prompts map[int64]string
}

func NewMemoryPromptRepo() *MemoryPromptRepo {
	return &MemoryPromptRepo{prompts: make(map[int64]string)}
}

func (r *MemoryPromptRepo) GetPrompt(_ context.Context, userID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompts[userID], nil
}

func (r *MemoryPromptRepo) SetPrompt(_ context.Context, userID int64, prompt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[userID] = prompt
	return nil
}

// MemoryEmbeddingRepo is an in-memory embedding repository for tests. One
// vector per story, tagged with the model that produced it; reads under a
// different model are misses.
type MemoryEmbeddingRepo struct {
	mu      sync.Mutex
	vectors map[int64]memoryEmbedding
}

type memoryEmbedding struct {
	model  string
	vector []float32
}

func NewMemoryEmbeddingRepo() *MemoryEmbeddingRepo {
	return &MemoryEmbeddingRepo{vectors: make(map[int64]memoryEmbedding)}
}

func (r *MemoryEmbeddingRepo) GetEmbeddings(_ context.Context, model string, storyIDs []int64) (map[int64][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[int64][]float32, len(storyIDs))
	for _, id := range storyIDs {
		if e, ok := r.vectors[id]; ok && e.model == model {
			result[id] = e.vector
		}
	}
	return result, nil
}

func (r *MemoryEmbeddingRepo) PutEmbeddings(_ context.Context, model string, embeddings map[int64][]float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range embeddings {
		r.vectors[id] = memoryEmbedding{model: model, vector: v}
	}
	return nil
}
