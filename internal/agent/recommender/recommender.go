// Package recommender ranks pool stories for a user under the prompt being
// tuned. It sees only the simulated first-screen tags, never the full
// profile.
package recommender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkarpis/prompttuner/internal/agent"
	"github.com/mkarpis/prompttuner/internal/config"
	"github.com/mkarpis/prompttuner/internal/index"
	"github.com/mkarpis/prompttuner/internal/story"
)

type Recommender struct {
	executor     *agent.Executor
	index        *index.Index
	cfg          config.AgentConfig
	defaultModel string
	topK         int
	logger       *slog.Logger
}

func New(logger *slog.Logger, executor *agent.Executor, ix *index.Index, cfg config.AgentConfig, defaultModel string, recCfg config.RecommendConfig) *Recommender {
	return &Recommender{
		executor:     executor,
		index:        ix,
		cfg:          cfg,
		defaultModel: defaultModel,
		topK:         recCfg.PrefilterTopK,
		logger:       logger.With("component", "recommender"),
	}
}

func (r *Recommender) Type() agent.Type { return agent.TypeRecommender }

const recommendSystemPrompt = "You are a lightning-fast recommendation engine. " +
	"you must return exactly 10 story IDs—no more, no fewer—as a JSON array. " +
	"Even if fewer than 10 stories strongly match, still provide 10 unique IDs by including the best possible alternatives. " +
	"Do NOT include any additional commentary—only output the JSON array."

// Recommend returns exactly 10 pool story IDs for the user's simulated tags,
// ranked under the given prompt. The pool is first narrowed by embedding
// similarity; model output is deduped, filtered to the pool, and padded from
// the prefiltered ranking if short.
func (r *Recommender) Recommend(ctx context.Context, userID int64, prompt string, userTags []string, pool []story.Story) ([]int64, error) {
	filtered, err := r.index.Prefilter(ctx, index.QueryFromTags(userTags), pool, r.topK)
	if err != nil {
		return nil, fmt.Errorf("prefilter for user %d: %w", userID, err)
	}
	if len(filtered) == 0 {
		filtered = pool
	}

	tagsJSON, err := json.Marshal(userTags)
	if err != nil {
		return nil, fmt.Errorf("marshal user tags: %w", err)
	}

	var storiesText strings.Builder
	for _, s := range filtered {
		storiesText.WriteString(s.PromptText())
		storiesText.WriteString("\n")
	}

	userPrompt := fmt.Sprintf("Prompt Instructions:\n%s\n\nUser Tags: %s\n\nStories:\n%s",
		prompt, tagsJSON, storiesText.String())

	resp, err := r.executor.ExecuteSingleShot(ctx, agent.SingleShotRequest{
		AgentType:    agent.TypeRecommender,
		UserID:       userID,
		Model:        r.cfg.GetModel(r.defaultModel),
		SystemPrompt: recommendSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  r.cfg.Temperature,
		MaxTokens:    r.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend for user %d: %w", userID, err)
	}

	ids, err := agent.ParseIDList(agent.TypeRecommender, resp.Content)
	if err != nil {
		return nil, fmt.Errorf("recommend for user %d: %w", userID, err)
	}

	final, err := FinalizeList(agent.TypeRecommender, ids, filtered, pool)
	if err != nil {
		return nil, fmt.Errorf("recommend for user %d: %w", userID, err)
	}

	r.logger.Debug("recommendation complete",
		"user_id", userID,
		"prefiltered", len(filtered),
		"model_ids", len(ids),
	)

	return final, nil
}

// FinalizeList turns raw model IDs into exactly RecommendationCount unique
// pool IDs. Out-of-pool IDs and duplicates are dropped; shortfalls are padded
// first from the prefiltered ranking, then from pool order. A pool smaller
// than RecommendationCount yields a ValidationError.
func FinalizeList(agentType agent.Type, ids []int64, prefiltered, pool []story.Story) ([]int64, error) {
	poolSet := story.PoolIDSet(pool)

	final := make([]int64, 0, agent.RecommendationCount)
	used := make(map[int64]struct{}, agent.RecommendationCount)
	for _, id := range agent.DedupeIDs(ids) {
		if _, ok := poolSet[id]; !ok {
			continue
		}
		final = append(final, id)
		used[id] = struct{}{}
		if len(final) == agent.RecommendationCount {
			return final, nil
		}
	}

	for _, source := range [][]story.Story{prefiltered, pool} {
		for _, s := range source {
			if len(final) == agent.RecommendationCount {
				return final, nil
			}
			if _, dup := used[s.ID]; dup {
				continue
			}
			final = append(final, s.ID)
			used[s.ID] = struct{}{}
		}
	}

	if len(final) != agent.RecommendationCount {
		return nil, &agent.ValidationError{
			AgentType: agentType,
			Got:       len(final),
			Want:      agent.RecommendationCount,
		}
	}
	return final, nil
}
