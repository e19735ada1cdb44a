package storage

import "context"

// PromptRepository persists the best prompt found for each user.
type PromptRepository interface {
	// GetPrompt returns the stored prompt for the user, or "" if none exists.
	GetPrompt(ctx context.Context, userID int64) (string, error)
	// SetPrompt stores the prompt for the user, replacing any previous value.
	SetPrompt(ctx context.Context, userID int64, prompt string) error
}

// EmbeddingRepository caches story embedding vectors by story ID and model.
type EmbeddingRepository interface {
	// GetEmbeddings returns cached vectors for the given IDs that were
	// produced by the given model. IDs cached under a different model count
	// as misses and are simply absent from the result map.
	GetEmbeddings(ctx context.Context, model string, storyIDs []int64) (map[int64][]float32, error)
	// PutEmbeddings stores vectors for the given stories, replacing existing ones.
	PutEmbeddings(ctx context.Context, model string, embeddings map[int64][]float32) error
}
