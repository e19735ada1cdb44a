// Package loop drives the optimization state machine for one user:
// evaluate the current prompt, stop if good enough, otherwise rewrite the
// prompt and go again.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkarpis/prompttuner/internal/config"
	"github.com/mkarpis/prompttuner/internal/eval"
	"github.com/mkarpis/prompttuner/internal/storage"
	"github.com/mkarpis/prompttuner/internal/story"
)

// Evaluator scores one prompt for one user.
type Evaluator interface {
	Evaluate(ctx context.Context, profile story.UserProfile, prompt string, pool []story.Story) (eval.Result, error)
}

// Optimizer rewrites a prompt from evaluation feedback.
type Optimizer interface {
	Optimize(ctx context.Context, lastPrompt string, lastScore float64, failures []eval.FailureRecord) (string, error)
}

// StopReason says why a run terminated.
type StopReason string

const (
	StopConverged     StopReason = "converged"      // target score reached
	StopPlateau       StopReason = "plateau"        // improvement below epsilon
	StopMaxIterations StopReason = "max_iterations" // iteration cap hit
	StopTimeBudget    StopReason = "time_budget"    // wall-clock budget exhausted
)

// Result summarizes one completed optimization run.
type Result struct {
	RunID       string
	UserID      int64
	FinalPrompt string
	BestScore   float64
	Scores      []float64
	Iterations  int
	Reason      StopReason
	Elapsed     time.Duration
}

type Loop struct {
	evaluator Evaluator
	optimizer Optimizer
	prompts   storage.PromptRepository
	cfg       config.OptimizeConfig
	logger    *slog.Logger
}

func New(logger *slog.Logger, evaluator Evaluator, opt Optimizer, prompts storage.PromptRepository, cfg config.OptimizeConfig) *Loop {
	return &Loop{
		evaluator: evaluator,
		optimizer: opt,
		prompts:   prompts,
		cfg:       cfg,
		logger:    logger.With("component", "optimization_loop"),
	}
}

// Run optimizes the prompt for one user. The run starts from the user's
// stored prompt when one exists, otherwise the configured default. The
// best-scoring prompt is persisted on every termination path.
func (l *Loop) Run(ctx context.Context, profile story.UserProfile, pool []story.Story) (Result, error) {
	runID := uuid.NewString()
	startTime := time.Now()
	budget := l.cfg.GetTimeBudget()
	deadline := startTime.Add(budget)

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	prompt, err := l.prompts.GetPrompt(ctx, profile.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("load stored prompt for user %d: %w", profile.UserID, err)
	}
	if prompt == "" {
		prompt = l.cfg.DefaultPrompt
	}

	l.logger.Info("optimization run starting",
		"run_id", runID,
		"user_id", profile.UserID,
		"budget", budget,
		"max_iterations", l.cfg.MaxIterations,
		"prompt_chars", len(prompt),
	)

	result := Result{
		RunID:       runID,
		UserID:      profile.UserID,
		FinalPrompt: prompt,
		BestScore:   -1,
	}
	prevScore := 0.0

	for iteration := 1; iteration <= l.cfg.MaxIterations; iteration++ {
		if time.Now().After(deadline) {
			result.Reason = StopTimeBudget
			break
		}

		evalResult, err := l.evaluator.Evaluate(ctx, profile, prompt, pool)
		if err != nil {
			// A budget that expires mid-evaluation is still a budget stop
			if ctx.Err() == context.DeadlineExceeded {
				result.Reason = StopTimeBudget
				break
			}
			return Result{}, fmt.Errorf("run %s iteration %d: %w", runID, iteration, err)
		}

		result.Iterations = iteration
		result.Scores = append(result.Scores, evalResult.Score)
		if evalResult.Score > result.BestScore {
			result.BestScore = evalResult.Score
			result.FinalPrompt = prompt
		}

		l.logger.Info("iteration complete",
			"run_id", runID,
			"user_id", profile.UserID,
			"iteration", iteration,
			"precision", evalResult.Score,
			"best", result.BestScore,
		)

		if evalResult.Score >= l.cfg.TargetScore {
			result.Reason = StopConverged
			break
		}
		if iteration > 1 && evalResult.Score-prevScore < l.cfg.PlateauEpsilon {
			result.Reason = StopPlateau
			break
		}
		if iteration == l.cfg.MaxIterations {
			result.Reason = StopMaxIterations
			break
		}

		newPrompt, err := l.optimizer.Optimize(ctx, prompt, evalResult.Score, []eval.FailureRecord{evalResult.Failure})
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				result.Reason = StopTimeBudget
				break
			}
			return Result{}, fmt.Errorf("run %s iteration %d: %w", runID, iteration, err)
		}

		prevScore = evalResult.Score
		prompt = newPrompt
	}

	if result.BestScore < 0 {
		result.BestScore = 0
	}
	result.Elapsed = time.Since(startTime)

	// Persistence must survive the expired run context
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer saveCancel()
	if err := l.prompts.SetPrompt(saveCtx, profile.UserID, result.FinalPrompt); err != nil {
		return Result{}, fmt.Errorf("persist prompt for user %d: %w", profile.UserID, err)
	}

	RecordRun(string(result.Reason), result.Iterations, result.BestScore, result.Elapsed.Seconds())

	l.logger.Info("optimization run finished",
		"run_id", runID,
		"user_id", profile.UserID,
		"reason", result.Reason,
		"iterations", result.Iterations,
		"best_score", result.BestScore,
		"elapsed", result.Elapsed,
	)

	return result, nil
}
