package oracle_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mkarpis/prompttuner/internal/agent"
	"github.com/mkarpis/prompttuner/internal/agent/oracle"
	"github.com/mkarpis/prompttuner/internal/config"
	"github.com/mkarpis/prompttuner/internal/index"
	"github.com/mkarpis/prompttuner/internal/openrouter"
	"github.com/mkarpis/prompttuner/internal/story"
	"github.com/mkarpis/prompttuner/internal/testutil"
)

func poolWithEmbeddings(t *testing.T, n int) ([]story.Story, *testutil.MemoryEmbeddingRepo) {
	t.Helper()
	pool := make([]story.Story, n)
	vectors := make(map[int64][]float32, n)
	for i := range pool {
		id := int64(i + 1)
		pool[i] = story.Story{
			ID:    id,
			Title: fmt.Sprintf("Story %d", id),
			Intro: "intro",
			Tags:  []string{"tag"},
		}
		vectors[id] = []float32{1, float32(i) * 0.01}
	}
	repo := testutil.NewMemoryEmbeddingRepo()
	require.NoError(t, repo.PutEmbeddings(context.Background(), "test-model", vectors))
	return pool, repo
}

func newOracle(client *testutil.MockClient, repo *testutil.MemoryEmbeddingRepo, topK int) *oracle.Oracle {
	executor := agent.NewExecutor(testutil.Logger(), client)
	ix := index.New(testutil.Logger(), client, repo, "test-model")
	return oracle.New(testutil.Logger(), executor, ix,
		config.AgentConfig{Temperature: 0, MaxTokens: 200},
		"openai/gpt-4o-mini",
		config.OracleConfig{PrefilterTopK: topK})
}

func TestGroundTruth_ReturnsExactlyTen(t *testing.T) {
	pool, repo := poolWithEmbeddings(t, 20)
	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(testutil.EmbeddingResponseFor([]float32{1, 0}), nil)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse(`[2, 4, 6, 8, 10, 12, 14, 1, 3, 5]`), nil)

	profile := story.UserProfile{UserID: 7, Tags: []string{"tag", "other"}}

	ids, err := newOracle(client, repo, 15).GroundTruth(context.Background(), profile, pool)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 6, 8, 10, 12, 14, 1, 3, 5}, ids)
}

func TestGroundTruth_SeesFullProfileNotPrompt(t *testing.T) {
	pool, repo := poolWithEmbeddings(t, 20)
	profile := story.UserProfile{UserID: 7, Tags: []string{"fantasy", "dragons", "school"}}

	var captured openrouter.ChatCompletionRequest
	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(testutil.EmbeddingResponseFor([]float32{1, 0}), nil)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(openrouter.ChatCompletionRequest)
		}).
		Return(testutil.ChatResponse(`[1, 2, 3, 4, 5, 6, 7, 8, 9, 10]`), nil)

	_, err := newOracle(client, repo, 15).GroundTruth(context.Background(), profile, pool)
	require.NoError(t, err)

	// The full profile goes into the request verbatim
	profileJSON, err := json.Marshal(profile)
	require.NoError(t, err)
	assert.Contains(t, captured.Messages[1].Content, string(profileJSON))
}

func TestGroundTruth_PadsShortList(t *testing.T) {
	pool, repo := poolWithEmbeddings(t, 20)
	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(testutil.EmbeddingResponseFor([]float32{1, 0}), nil)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse(`[5]`), nil)

	profile := story.UserProfile{UserID: 7, Tags: []string{"tag"}}

	ids, err := newOracle(client, repo, 15).GroundTruth(context.Background(), profile, pool)
	require.NoError(t, err)
	require.Len(t, ids, 10)
	assert.Equal(t, int64(5), ids[0])
}

func TestGroundTruth_SeedPoolSingleStrongMatch(t *testing.T) {
	// Seed stories plus clone padding, the way a bootstrap pool is grown
	seeds := story.SeedStories()
	pool := make([]story.Story, 0, 2*len(seeds))
	pool = append(pool, seeds...)
	nextID := seeds[len(seeds)-1].ID
	for _, s := range seeds {
		nextID++
		clone := s
		clone.ID = nextID
		clone.Title = s.Title + " (Clone)"
		pool = append(pool, clone)
	}

	vectors := make(map[int64][]float32, len(pool))
	for i, s := range pool {
		vectors[s.ID] = []float32{1, float32(i) * 0.01}
	}
	repo := testutil.NewMemoryEmbeddingRepo()
	require.NoError(t, repo.PutEmbeddings(context.Background(), "test-model", vectors))

	// Profile matches exactly one seed's tags
	match := seeds[3]
	profile := story.UserProfile{UserID: 7, Tags: match.Tags}

	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(testutil.EmbeddingResponseFor([]float32{1, 0}), nil)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse(fmt.Sprintf(`[%d]`, match.ID)), nil)

	ids, err := newOracle(client, repo, 60).GroundTruth(context.Background(), profile, pool)
	require.NoError(t, err)

	// The matching seed leads, the rest is padding drawn from the pool
	require.Len(t, ids, 10)
	assert.Equal(t, match.ID, ids[0])

	poolIDs := story.PoolIDSet(pool)
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		assert.Contains(t, poolIDs, id)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}
