// Package simulator predicts which of a user's preference tags they would
// actually pick on the first screen. The recommendation side of an
// evaluation only ever sees this partial view; the full profile stays with
// the ground-truth oracle.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkarpis/prompttuner/internal/agent"
	"github.com/mkarpis/prompttuner/internal/config"
	"github.com/mkarpis/prompttuner/internal/story"
)

type Simulator struct {
	executor     *agent.Executor
	cfg          config.AgentConfig
	defaultModel string
	minTags      int
	maxTags      int
	logger       *slog.Logger
}

func New(logger *slog.Logger, executor *agent.Executor, cfg config.AgentConfig, defaultModel string, simCfg config.SimulateConfig) *Simulator {
	return &Simulator{
		executor:     executor,
		cfg:          cfg,
		defaultModel: defaultModel,
		minTags:      simCfg.MinTags,
		maxTags:      simCfg.MaxTags,
		logger:       logger.With("component", "user_simulator"),
	}
}

func (s *Simulator) Type() agent.Type { return agent.TypeSimulator }

const simulateSystemPromptFmt = "You are a tag prediction assistant. Given a list of available preference tags for a user, " +
	"select between %d and %d tags that best represent what this user would choose on Sekai's first screen. " +
	"Return EXACTLY a JSON array of strings (e.g., [\"tag1\", \"tag2\", ...]). " +
	"Do NOT include any extra commentary, explanation, or Python/JSON syntax—only the JSON array itself."

// Simulate returns the subset of the profile's tags the user would pick.
// The result only ever contains tags present in the profile, and its size is
// clamped to the configured range (bounded by the profile size).
func (s *Simulator) Simulate(ctx context.Context, profile story.UserProfile) ([]string, error) {
	tagsJSON, err := json.Marshal(profile.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal profile tags: %w", err)
	}

	resp, err := s.executor.ExecuteSingleShot(ctx, agent.SingleShotRequest{
		AgentType:    agent.TypeSimulator,
		UserID:       profile.UserID,
		Model:        s.cfg.GetModel(s.defaultModel),
		SystemPrompt: fmt.Sprintf(simulateSystemPromptFmt, s.minTags, s.maxTags),
		UserPrompt:   fmt.Sprintf("Available Tags:\n%s", tagsJSON),
		Temperature:  s.cfg.Temperature,
		MaxTokens:    s.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("simulate tags for user %d: %w", profile.UserID, err)
	}

	raw, err := agent.ParseStringList(agent.TypeSimulator, resp.Content)
	if err != nil {
		return nil, fmt.Errorf("simulate tags for user %d: %w", profile.UserID, err)
	}

	selected, matched := s.clampToProfile(raw, profile.Tags)
	if matched == 0 {
		// A completion with no genuine profile tag is a parse failure,
		// never a base to top up from
		return nil, fmt.Errorf("simulate tags for user %d: %w", profile.UserID, &agent.MalformedResponseError{
			AgentType: agent.TypeSimulator,
			Reason:    "no profile tags recovered from completion",
			Raw:       resp.Content,
		})
	}

	s.logger.Debug("simulated first-screen tags",
		"user_id", profile.UserID,
		"profile_tags", len(profile.Tags),
		"returned", len(raw),
		"selected", len(selected),
	)

	return selected, nil
}

// clampToProfile drops hallucinated tags, dedupes, and forces the count into
// [minTags, maxTags]. Too few survivors are topped up from unused profile
// tags in profile order; profiles smaller than minTags yield the whole
// profile. matched reports how many of the model's tags survived the profile
// filter before any top-up.
func (s *Simulator) clampToProfile(raw, profileTags []string) (selected []string, matched int) {
	allowed := make(map[string]string, len(profileTags))
	for _, tag := range profileTags {
		allowed[strings.ToLower(tag)] = tag
	}

	seen := make(map[string]struct{}, len(raw))
	selected = make([]string, 0, len(raw))
	for _, tag := range raw {
		key := strings.ToLower(strings.TrimSpace(tag))
		canonical, ok := allowed[key]
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		selected = append(selected, canonical)
	}
	matched = len(selected)

	if len(selected) > s.maxTags {
		selected = selected[:s.maxTags]
	}

	for _, tag := range profileTags {
		if len(selected) >= s.minTags {
			break
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		selected = append(selected, tag)
	}

	return selected, matched
}
