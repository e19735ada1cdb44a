package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mkarpis/prompttuner/internal/openrouter"
	"github.com/mkarpis/prompttuner/internal/storage"
	"github.com/mkarpis/prompttuner/internal/story"
)

// ErrDimensionMismatch means two vectors being compared have different
// lengths. This signals mixed embedding models in the cache and is fatal.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// embeddingBatchSize bounds one embedding API request.
const embeddingBatchSize = 64

// Index narrows a story pool to its most similar entries by cosine
// similarity over cached embeddings.
type Index struct {
	client openrouter.Client
	repo   storage.EmbeddingRepository
	model  string
	logger *slog.Logger
}

func New(logger *slog.Logger, client openrouter.Client, repo storage.EmbeddingRepository, model string) *Index {
	return &Index{
		client: client,
		repo:   repo,
		model:  model,
		logger: logger.With("component", "embedding_index"),
	}
}

// Cosine returns the cosine similarity of two vectors. Zero-norm vectors
// yield 0 similarity.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// EnsureEmbeddings embeds every story in the pool that has no cached vector
// and persists the results. Called once after pool expansion.
func (ix *Index) EnsureEmbeddings(ctx context.Context, pool []story.Story) error {
	cached, err := ix.repo.GetEmbeddings(ctx, ix.model, story.PoolIDs(pool))
	if err != nil {
		return fmt.Errorf("load cached embeddings: %w", err)
	}

	var missing []story.Story
	for _, s := range pool {
		if _, ok := cached[s.ID]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		ix.logger.Debug("all pool embeddings cached", "pool_size", len(pool))
		return nil
	}

	ix.logger.Info("embedding pool stories", "missing", len(missing), "pool_size", len(pool))

	for start := 0; start < len(missing); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		inputs := make([]string, len(batch))
		for i, s := range batch {
			inputs[i] = s.EmbeddingText()
		}

		resp, err := ix.client.CreateEmbeddings(ctx, openrouter.EmbeddingRequest{
			Model: ix.model,
			Input: inputs,
		})
		if err != nil {
			return fmt.Errorf("embed story batch: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return fmt.Errorf("embedding count mismatch: sent %d inputs, got %d vectors", len(batch), len(resp.Data))
		}

		vectors := make(map[int64][]float32, len(batch))
		for _, obj := range resp.Data {
			if obj.Index < 0 || obj.Index >= len(batch) {
				return fmt.Errorf("embedding response index %d out of range", obj.Index)
			}
			vectors[batch[obj.Index].ID] = obj.Embedding
		}

		if err := ix.repo.PutEmbeddings(ctx, ix.model, vectors); err != nil {
			return fmt.Errorf("persist embeddings: %w", err)
		}
	}

	return nil
}

// Prefilter returns the topK pool stories most similar to the query text.
// Stories without a cached embedding are skipped. Ties break on ascending
// story ID so results are deterministic.
func (ix *Index) Prefilter(ctx context.Context, query string, pool []story.Story, topK int) ([]story.Story, error) {
	startTime := time.Now()

	if topK <= 0 || len(pool) == 0 {
		return nil, nil
	}

	queryResp, err := ix.client.CreateEmbeddings(ctx, openrouter.EmbeddingRequest{
		Model: ix.model,
		Input: []string{query},
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryResp.Data) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d", len(queryResp.Data))
	}
	queryVec := queryResp.Data[0].Embedding

	cached, err := ix.repo.GetEmbeddings(ctx, ix.model, story.PoolIDs(pool))
	if err != nil {
		return nil, fmt.Errorf("load cached embeddings: %w", err)
	}

	type scored struct {
		story story.Story
		score float64
	}

	candidates := make([]scored, 0, len(pool))
	skipped := 0
	for _, s := range pool {
		vec, ok := cached[s.ID]
		if !ok {
			skipped++
			continue
		}
		score, err := Cosine(queryVec, vec)
		if err != nil {
			return nil, fmt.Errorf("score story %d: %w", s.ID, err)
		}
		candidates = append(candidates, scored{story: s, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].story.ID < candidates[j].story.ID
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}

	result := make([]story.Story, topK)
	for i := 0; i < topK; i++ {
		result[i] = candidates[i].story
	}

	RecordPrefilter(time.Since(startTime).Seconds(), len(result), skipped)

	ix.logger.Debug("prefilter complete",
		"query_chars", len(query),
		"pool_size", len(pool),
		"returned", len(result),
		"skipped_no_embedding", skipped,
	)

	return result, nil
}

// QueryFromTags joins tags into the text embedded for a prefilter query.
func QueryFromTags(tags []string) string {
	return strings.Join(tags, " ")
}
