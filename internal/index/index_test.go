package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mkarpis/prompttuner/internal/index"
	"github.com/mkarpis/prompttuner/internal/openrouter"
	"github.com/mkarpis/prompttuner/internal/story"
	"github.com/mkarpis/prompttuner/internal/testutil"
)

func TestCosine(t *testing.T) {
	a := []float32{1, 2, 3}

	// Self-similarity is 1
	got, err := index.Cosine(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-9)

	// Symmetric
	b := []float32{3, 2, 1}
	ab, err := index.Cosine(a, b)
	require.NoError(t, err)
	ba, err := index.Cosine(b, a)
	require.NoError(t, err)
	assert.InDelta(t, ab, ba, 1e-12)

	// Orthogonal vectors score 0
	got, err = index.Cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got, 1e-9)

	// Zero norm scores 0 without error
	got, err = index.Cosine([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestCosine_DimensionMismatch(t *testing.T) {
	_, err := index.Cosine([]float32{1, 2}, []float32{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func seedRepo(t *testing.T, vectors map[int64][]float32) *testutil.MemoryEmbeddingRepo {
	t.Helper()
	repo := testutil.NewMemoryEmbeddingRepo()
	require.NoError(t, repo.PutEmbeddings(context.Background(), "test-model", vectors))
	return repo
}

func TestPrefilter_RanksBySimilarity(t *testing.T) {
	pool := []story.Story{
		{ID: 1, Title: "A", Intro: "a", Tags: []string{"x"}},
		{ID: 2, Title: "B", Intro: "b", Tags: []string{"y"}},
		{ID: 3, Title: "C", Intro: "c", Tags: []string{"z"}},
	}
	repo := seedRepo(t, map[int64][]float32{
		1: {0, 1},   // orthogonal to query
		2: {1, 0},   // identical direction
		3: {1, 0.2}, // close to query
	})

	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.MatchedBy(func(req openrouter.EmbeddingRequest) bool {
		return len(req.Input) == 1
	})).Return(testutil.EmbeddingResponseFor([]float32{1, 0}), nil)

	ix := index.New(testutil.Logger(), client, repo, "test-model")

	got, err := ix.Prefilter(context.Background(), "query", pool, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
}

func TestPrefilter_Deterministic(t *testing.T) {
	pool := []story.Story{{ID: 5}, {ID: 2}, {ID: 9}}
	// All identical vectors: ties must break on ascending ID
	repo := seedRepo(t, map[int64][]float32{
		5: {1, 1},
		2: {1, 1},
		9: {1, 1},
	})

	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(testutil.EmbeddingResponseFor([]float32{1, 1}), nil)

	ix := index.New(testutil.Logger(), client, repo, "test-model")

	first, err := ix.Prefilter(context.Background(), "q", pool, 3)
	require.NoError(t, err)
	second, err := ix.Prefilter(context.Background(), "q", pool, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), first[0].ID)
	assert.Equal(t, int64(5), first[1].ID)
	assert.Equal(t, int64(9), first[2].ID)
}

func TestPrefilter_SkipsMissingEmbeddings(t *testing.T) {
	pool := []story.Story{{ID: 1}, {ID: 2}, {ID: 3}}
	repo := seedRepo(t, map[int64][]float32{1: {1, 0}})

	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(testutil.EmbeddingResponseFor([]float32{1, 0}), nil)

	ix := index.New(testutil.Logger(), client, repo, "test-model")

	got, err := ix.Prefilter(context.Background(), "q", pool, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestPrefilter_DimensionMismatchIsFatal(t *testing.T) {
	pool := []story.Story{{ID: 1}}
	repo := seedRepo(t, map[int64][]float32{1: {1, 0, 0}})

	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(testutil.EmbeddingResponseFor([]float32{1, 0}), nil)

	ix := index.New(testutil.Logger(), client, repo, "test-model")

	_, err := ix.Prefilter(context.Background(), "q", pool, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func TestEnsureEmbeddings_EmbedsOnlyMissing(t *testing.T) {
	pool := []story.Story{
		{ID: 1, Title: "Cached", Intro: "c", Tags: []string{"x"}},
		{ID: 2, Title: "Fresh", Intro: "f", Tags: []string{"y"}},
	}
	repo := seedRepo(t, map[int64][]float32{1: {1, 0}})

	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.MatchedBy(func(req openrouter.EmbeddingRequest) bool {
		return len(req.Input) == 1
	})).Return(testutil.EmbeddingResponseFor([]float32{0, 1}), nil).Once()

	ix := index.New(testutil.Logger(), client, repo, "test-model")
	require.NoError(t, ix.EnsureEmbeddings(context.Background(), pool))

	cached, err := repo.GetEmbeddings(context.Background(), "test-model", []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, cached[1])
	assert.Equal(t, []float32{0, 1}, cached[2])
	client.AssertExpectations(t)
}

func TestEnsureEmbeddings_ReembedsAfterModelChange(t *testing.T) {
	pool := []story.Story{{ID: 1, Title: "A", Intro: "a", Tags: []string{"x"}}}
	// Cached under the previous embedding model
	repo := seedRepo(t, map[int64][]float32{1: {1, 0}})

	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.MatchedBy(func(req openrouter.EmbeddingRequest) bool {
		return req.Model == "next-model"
	})).Return(testutil.EmbeddingResponseFor([]float32{0, 1}), nil).Once()

	ix := index.New(testutil.Logger(), client, repo, "next-model")
	require.NoError(t, ix.EnsureEmbeddings(context.Background(), pool))
	client.AssertExpectations(t)

	cached, err := repo.GetEmbeddings(context.Background(), "next-model", []int64{1})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, cached[1])
}

func TestPrefilter_IgnoresOtherModelVectors(t *testing.T) {
	pool := []story.Story{{ID: 1}}
	repo := seedRepo(t, map[int64][]float32{1: {1, 0}})

	client := new(testutil.MockClient)
	client.On("CreateEmbeddings", mock.Anything, mock.Anything).
		Return(testutil.EmbeddingResponseFor([]float32{1, 0}), nil)

	// The stale test-model vector must read as a miss, not get reused
	ix := index.New(testutil.Logger(), client, repo, "next-model")

	got, err := ix.Prefilter(context.Background(), "q", pool, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEnsureEmbeddings_NoopWhenAllCached(t *testing.T) {
	pool := []story.Story{{ID: 1}}
	repo := seedRepo(t, map[int64][]float32{1: {1, 0}})

	client := new(testutil.MockClient)

	ix := index.New(testutil.Logger(), client, repo, "test-model")
	require.NoError(t, ix.EnsureEmbeddings(context.Background(), pool))
	client.AssertNotCalled(t, "CreateEmbeddings")
}

func TestQueryFromTags(t *testing.T) {
	assert.Equal(t, "fantasy dragons school", index.QueryFromTags([]string{"fantasy", "dragons", "school"}))
}
