package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/mkarpis/prompttuner/internal/agent"
	"github.com/mkarpis/prompttuner/internal/config"
)

// Expander grows the seed list into a full candidate pool via the LLM,
// falling back to clone padding when the model output is unusable.
type Expander struct {
	executor     *agent.Executor
	cfg          config.AgentConfig
	defaultModel string
	validate     *validator.Validate
	logger       *slog.Logger
}

func NewExpander(logger *slog.Logger, executor *agent.Executor, cfg config.AgentConfig, defaultModel string) *Expander {
	return &Expander{
		executor:     executor,
		cfg:          cfg,
		defaultModel: defaultModel,
		validate:     validator.New(),
		logger:       logger.With("component", "pool_expander"),
	}
}

const expandSystemPromptFmt = "You are a story generator assistant. Given a small list of Sekai-style stories " +
	"(each with id, title, intro, tags), expand this list so that the total number " +
	"of stories is %d. Return EXACTLY a JSON array of story objects, " +
	"where each object has the fields: id (integer), title (string), intro (string), " +
	"and tags (array of strings). Ensure new IDs start higher than existing seed IDs."

// Expand returns a pool of exactly targetSize stories grown from the seeds.
// The result always has targetSize entries and unique IDs, whatever the
// model returns.
func (e *Expander) Expand(ctx context.Context, seeds []Story, targetSize int) ([]Story, error) {
	if len(seeds) == 0 {
		return nil, errors.New("expand: no seed stories")
	}
	if targetSize <= len(seeds) {
		return seeds[:targetSize], nil
	}

	seedsJSON, err := json.Marshal(seeds)
	if err != nil {
		return nil, fmt.Errorf("marshal seeds: %w", err)
	}

	resp, err := e.executor.ExecuteSingleShot(ctx, agent.SingleShotRequest{
		AgentType:    agent.TypeExpander,
		Model:        e.cfg.GetModel(e.defaultModel),
		SystemPrompt: fmt.Sprintf(expandSystemPromptFmt, targetSize),
		UserPrompt:   fmt.Sprintf("Seed Stories:\n%s", seedsJSON),
		Temperature:  e.cfg.Temperature,
		MaxTokens:    e.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("expand pool: %w", err)
	}

	pool := e.parseExpanded(seeds, resp.Content)

	if len(pool) < targetSize {
		e.logger.Warn("expansion output unusable, padding with seed clones",
			"parsed", len(pool), "target", targetSize)
		RecordPoolFallback()
		pool = padWithClones(seeds, targetSize)
	}

	pool = pool[:targetSize]
	RecordPoolSize(len(pool))

	e.logger.Info("candidate pool ready", "size", len(pool), "seeds", len(seeds))
	return pool, nil
}

// parseExpanded extracts and validates the model's story array. Any parse or
// validation failure returns nil so the caller falls back to clone padding.
func (e *Expander) parseExpanded(seeds []Story, content string) []Story {
	raw, err := agent.ExtractJSONArray(agent.TypeExpander, content)
	if err != nil {
		e.logger.Warn("expansion response had no JSON array", "error", err)
		return nil
	}

	var stories []Story
	if err := json.Unmarshal(raw, &stories); err != nil {
		e.logger.Warn("expansion array did not decode into stories", "error", err)
		return nil
	}

	seen := make(map[int64]struct{}, len(stories))
	valid := make([]Story, 0, len(stories))
	for _, s := range stories {
		if err := e.validate.Struct(s); err != nil {
			e.logger.Debug("dropping invalid expanded story", "story_id", s.ID, "error", err)
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		valid = append(valid, s)
	}

	// The seeds must survive expansion. Re-add any the model dropped.
	for _, seed := range seeds {
		if _, ok := seen[seed.ID]; !ok {
			seen[seed.ID] = struct{}{}
			valid = append(valid, seed)
		}
	}

	return valid
}

// padWithClones rebuilds the pool from seeds plus cloned copies, cycling
// through the seed list with fresh IDs until targetSize is reached.
func padWithClones(seeds []Story, targetSize int) []Story {
	pool := make([]Story, 0, targetSize)
	pool = append(pool, seeds...)

	nextID := int64(0)
	for _, s := range seeds {
		if s.ID > nextID {
			nextID = s.ID
		}
	}
	nextID++

	for len(pool) < targetSize {
		template := seeds[(len(pool)-len(seeds))%len(seeds)]
		clone := Story{
			ID:    nextID,
			Title: template.Title + " (Clone)",
			Intro: template.Intro,
			Tags:  template.Tags,
		}
		pool = append(pool, clone)
		nextID++
	}

	return pool
}
