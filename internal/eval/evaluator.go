// Package eval scores one prompt for one user. An evaluation simulates the
// user's first-screen tags, produces a recommendation under the prompt and a
// prompt-independent ground truth, and reports Precision@10 between the two.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkarpis/prompttuner/internal/agent"
	"github.com/mkarpis/prompttuner/internal/agent/oracle"
	"github.com/mkarpis/prompttuner/internal/agent/recommender"
	"github.com/mkarpis/prompttuner/internal/agent/simulator"
	"github.com/mkarpis/prompttuner/internal/story"
)

// FailureRecord captures everything the optimizer needs to reason about one
// evaluation: what the user appeared to want, what was recommended, and what
// they actually wanted.
type FailureRecord struct {
	UserID         int64    `json:"user"`
	SimulatedTags  []string `json:"simulated_tags"`
	RecommendedIDs []int64  `json:"rec_ids"`
	GroundTruthIDs []int64  `json:"gt_ids"`
}

// Result is the outcome of evaluating one prompt for one user.
type Result struct {
	Score   float64
	Failure FailureRecord
}

type Evaluator struct {
	simulator   *simulator.Simulator
	recommender *recommender.Recommender
	oracle      *oracle.Oracle
	logger      *slog.Logger
}

func New(logger *slog.Logger, sim *simulator.Simulator, rec *recommender.Recommender, orc *oracle.Oracle) *Evaluator {
	return &Evaluator{
		simulator:   sim,
		recommender: rec,
		oracle:      orc,
		logger:      logger.With("component", "evaluator"),
	}
}

// Evaluate scores the prompt for one user. The recommendation and the ground
// truth run concurrently once the tags are simulated; either failing fails
// the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, profile story.UserProfile, prompt string, pool []story.Story) (Result, error) {
	startTime := time.Now()

	userTags, err := e.simulator.Simulate(ctx, profile)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate user %d: %w", profile.UserID, err)
	}

	var recIDs, gtIDs []int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recIDs, err = e.recommender.Recommend(gctx, profile.UserID, prompt, userTags, pool)
		return err
	})
	g.Go(func() error {
		var err error
		gtIDs, err = e.oracle.GroundTruth(gctx, profile, pool)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("evaluate user %d: %w", profile.UserID, err)
	}

	score := Precision(recIDs, gtIDs)
	RecordEvaluation(time.Since(startTime).Seconds(), score)

	e.logger.Info("evaluation complete",
		"user_id", profile.UserID,
		"precision", score,
		"simulated_tags", len(userTags),
		"duration", time.Since(startTime),
	)

	return Result{
		Score: score,
		Failure: FailureRecord{
			UserID:         profile.UserID,
			SimulatedTags:  userTags,
			RecommendedIDs: recIDs,
			GroundTruthIDs: gtIDs,
		},
	}, nil
}

// Precision returns |recommended ∩ groundTruth| / RecommendationCount.
// Order within either list does not matter.
func Precision(recommended, groundTruth []int64) float64 {
	truth := make(map[int64]struct{}, len(groundTruth))
	for _, id := range groundTruth {
		truth[id] = struct{}{}
	}

	hits := 0
	seen := make(map[int64]struct{}, len(recommended))
	for _, id := range recommended {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := truth[id]; ok {
			hits++
		}
	}

	return float64(hits) / float64(agent.RecommendationCount)
}
