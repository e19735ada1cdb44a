package story

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Story is one item in the candidate pool.
type Story struct {
	ID    int64    `json:"id" validate:"required,gt=0"`
	Title string   `json:"title" validate:"required"`
	Intro string   `json:"intro" validate:"required"`
	Tags  []string `json:"tags" validate:"required,min=1,dive,required"`
}

// PromptText renders the story the way it appears in agent prompts.
func (s Story) PromptText() string {
	return fmt.Sprintf("ID: %d\nTitle: %s\nIntro: %s\nTags: %s\n",
		s.ID, s.Title, s.Intro, strings.Join(s.Tags, ", "))
}

// EmbeddingText renders the story for embedding generation.
func (s Story) EmbeddingText() string {
	return fmt.Sprintf("%s %s %s", s.Title, s.Intro, strings.Join(s.Tags, " "))
}

// UserProfile is a test user: an identifier plus the full set of
// preference tags known about them.
type UserProfile struct {
	UserID int64    `json:"user_id"`
	Tags   []string `json:"tags"`
}

// LoadProfiles reads user profiles from a JSON file.
func LoadProfiles(path string) ([]UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var profiles []UserProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse profiles file %s: %w", path, err)
	}

	for i, p := range profiles {
		if p.UserID == 0 {
			return nil, fmt.Errorf("profile %d has no user_id", i)
		}
		if len(p.Tags) == 0 {
			return nil, fmt.Errorf("profile for user %d has no tags", p.UserID)
		}
	}

	return profiles, nil
}

// PoolIDs returns the IDs of all stories in the pool, in pool order.
func PoolIDs(pool []Story) []int64 {
	ids := make([]int64, len(pool))
	for i, s := range pool {
		ids[i] = s.ID
	}
	return ids
}

// PoolIDSet returns the set of IDs present in the pool.
func PoolIDSet(pool []Story) map[int64]struct{} {
	set := make(map[int64]struct{}, len(pool))
	for _, s := range pool {
		set[s.ID] = struct{}{}
	}
	return set
}
