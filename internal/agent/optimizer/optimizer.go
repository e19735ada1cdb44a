// Package optimizer rewrites the recommendation prompt from evaluation
// feedback. The failure records act as a textual gradient: the model sees
// what was recommended versus what the user actually wanted and proposes a
// prompt more likely to close the gap.
package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkarpis/prompttuner/internal/agent"
	"github.com/mkarpis/prompttuner/internal/config"
	"github.com/mkarpis/prompttuner/internal/eval"
)

type Optimizer struct {
	executor     *agent.Executor
	cfg          config.AgentConfig
	defaultModel string
	logger       *slog.Logger
}

func New(logger *slog.Logger, executor *agent.Executor, cfg config.AgentConfig, defaultModel string) *Optimizer {
	return &Optimizer{
		executor:     executor,
		cfg:          cfg,
		defaultModel: defaultModel,
		logger:       logger.With("component", "prompt_optimizer"),
	}
}

func (o *Optimizer) Type() agent.Type { return agent.TypeOptimizer }

const optimizeSystemPrompt = "You are a prompt optimization assistant whose job is to iteratively refine " +
	"recommendation prompts so that a downstream recommendation agent can achieve " +
	"higher Precision@10 for a group of users. " +
	"You will be given:\n" +
	"1) The prompt used in the last iteration.\n" +
	"2) The last Precision@10 score achieved by that prompt.\n" +
	"3) A list of failure examples, where each example includes:\n" +
	"   - user: the user identifier\n" +
	"   - rec_ids: the 10 story IDs recommended by the recommendation agent\n" +
	"   - gt_ids: the 10 ground-truth story IDs for that user\n\n" +
	"Your task: Analyze why the previous prompt underperformed (based on the average score " +
	"and failure examples), and propose a new prompt that will guide the recommendation agent " +
	"to select 10 story IDs more likely to match each user's ground-truth preferences. " +
	"Return ONLY the revised prompt string—do not include any explanation or commentary.\n"

// Optimize proposes a replacement prompt from the last prompt, its score,
// and the failure records behind that score. An empty rewrite is rejected.
func (o *Optimizer) Optimize(ctx context.Context, lastPrompt string, lastScore float64, failures []eval.FailureRecord) (string, error) {
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return "", fmt.Errorf("marshal failure records: %w", err)
	}

	userPrompt := fmt.Sprintf(
		"Last Prompt:\n%s\n\nLast Precision@10: %.4f\n\nFailure Examples:\n%s\n\nPlease produce a new prompt that will improve Precision@10.\n",
		lastPrompt, lastScore, failuresJSON)

	resp, err := o.executor.ExecuteSingleShot(ctx, agent.SingleShotRequest{
		AgentType:    agent.TypeOptimizer,
		Model:        o.cfg.GetModel(o.defaultModel),
		SystemPrompt: optimizeSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  o.cfg.Temperature,
		MaxTokens:    o.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("optimize prompt: %w", err)
	}

	newPrompt := strings.TrimSpace(resp.Content)
	if newPrompt == "" {
		return "", &agent.MalformedResponseError{
			AgentType: agent.TypeOptimizer,
			Reason:    "empty prompt rewrite",
			Raw:       resp.Content,
		}
	}

	o.logger.Info("prompt rewritten",
		"old_chars", len(lastPrompt),
		"new_chars", len(newPrompt),
		"last_score", lastScore,
	)

	return newPrompt, nil
}
