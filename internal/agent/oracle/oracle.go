// Package oracle computes the ground-truth top 10 for a user from their
// full profile. It never sees the prompt being tuned, so its output is a
// fixed target the recommender is scored against.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkarpis/prompttuner/internal/agent"
	"github.com/mkarpis/prompttuner/internal/agent/recommender"
	"github.com/mkarpis/prompttuner/internal/config"
	"github.com/mkarpis/prompttuner/internal/index"
	"github.com/mkarpis/prompttuner/internal/story"
)

type Oracle struct {
	executor     *agent.Executor
	index        *index.Index
	cfg          config.AgentConfig
	defaultModel string
	topK         int
	logger       *slog.Logger
}

func New(logger *slog.Logger, executor *agent.Executor, ix *index.Index, cfg config.AgentConfig, defaultModel string, oracleCfg config.OracleConfig) *Oracle {
	return &Oracle{
		executor:     executor,
		index:        ix,
		cfg:          cfg,
		defaultModel: defaultModel,
		topK:         oracleCfg.PrefilterTopK,
		logger:       logger.With("component", "ground_truth_oracle"),
	}
}

func (o *Oracle) Type() agent.Type { return agent.TypeOracle }

const oracleSystemPrompt = "You are an expert story recommender. Given a user's full profile and a list of Sekai stories " +
	"(each has ID, title, tags, and intro), return EXACTLY a JSON array of the 10 story IDs " +
	"that best match this user's preferences. Do NOT include any additional commentary. " +
	"you must return exactly 10 story IDs—no more, no fewer—as a JSON array. " +
	"Under no circumstances should you return fewer or more than 10 IDs."

// GroundTruth returns the 10 pool story IDs that best match the full
// profile. The pool is narrowed by embedding similarity against all profile
// tags before ranking.
func (o *Oracle) GroundTruth(ctx context.Context, profile story.UserProfile, pool []story.Story) ([]int64, error) {
	filtered, err := o.index.Prefilter(ctx, index.QueryFromTags(profile.Tags), pool, o.topK)
	if err != nil {
		return nil, fmt.Errorf("oracle prefilter for user %d: %w", profile.UserID, err)
	}
	if len(filtered) == 0 {
		filtered = pool
	}

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}

	var storiesText strings.Builder
	for _, s := range filtered {
		storiesText.WriteString(s.PromptText())
		storiesText.WriteString("\n")
	}

	resp, err := o.executor.ExecuteSingleShot(ctx, agent.SingleShotRequest{
		AgentType:    agent.TypeOracle,
		UserID:       profile.UserID,
		Model:        o.cfg.GetModel(o.defaultModel),
		SystemPrompt: oracleSystemPrompt,
		UserPrompt:   fmt.Sprintf("User Profile:\n%s\n\nStories:\n%s", profileJSON, storiesText.String()),
		Temperature:  o.cfg.Temperature,
		MaxTokens:    o.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("ground truth for user %d: %w", profile.UserID, err)
	}

	ids, err := agent.ParseIDList(agent.TypeOracle, resp.Content)
	if err != nil {
		return nil, fmt.Errorf("ground truth for user %d: %w", profile.UserID, err)
	}

	final, err := recommender.FinalizeList(agent.TypeOracle, ids, filtered, pool)
	if err != nil {
		return nil, fmt.Errorf("ground truth for user %d: %w", profile.UserID, err)
	}

	o.logger.Debug("ground truth complete",
		"user_id", profile.UserID,
		"prefiltered", len(filtered),
		"model_ids", len(ids),
	)

	return final, nil
}
