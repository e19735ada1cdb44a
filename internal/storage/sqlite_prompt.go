package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetPrompt returns the stored prompt for the user, or "" if none exists.
func (s *SQLiteStore) GetPrompt(ctx context.Context, userID int64) (string, error) {
	var prompt string
	err := s.db.QueryRowContext(ctx,
		`SELECT prompt FROM prompts WHERE user_id = ?`, userID).Scan(&prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get prompt for user %d: %w", userID, err)
	}
	return prompt, nil
}

// SetPrompt stores the prompt for the user, replacing any previous value.
func (s *SQLiteStore) SetPrompt(ctx context.Context, userID int64, prompt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompts (user_id, prompt, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			prompt = excluded.prompt,
			updated_at = CURRENT_TIMESTAMP`,
		userID, prompt)
	if err != nil {
		return fmt.Errorf("set prompt for user %d: %w", userID, err)
	}

	s.logger.Debug("prompt saved", "user_id", userID, "prompt_chars", len(prompt))
	return nil
}
