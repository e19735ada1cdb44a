package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// GetEmbeddings returns cached vectors for the given story IDs under the
// given model. Stories without a vector for that model are absent from the
// result map.
func (s *SQLiteStore) GetEmbeddings(ctx context.Context, model string, storyIDs []int64) (map[int64][]float32, error) {
	result := make(map[int64][]float32, len(storyIDs))
	if len(storyIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(storyIDs))
	args := make([]any, 0, len(storyIDs)+1)
	args = append(args, model)
	for i, id := range storyIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT story_id, embedding FROM story_embeddings WHERE model = ? AND story_id IN (%s)`,
		strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var storyID int64
		var blob []byte
		if err := rows.Scan(&storyID, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}

		var vector []float32
		if err := json.Unmarshal(blob, &vector); err != nil {
			return nil, fmt.Errorf("unmarshal embedding for story %d: %w", storyID, err)
		}
		result[storyID] = vector
	}

	return result, rows.Err()
}

// PutEmbeddings stores vectors for the given stories, replacing existing ones.
func (s *SQLiteStore) PutEmbeddings(ctx context.Context, model string, embeddings map[int64][]float32) error {
	if len(embeddings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO story_embeddings (story_id, model, embedding)
		VALUES (?, ?, ?)
		ON CONFLICT(story_id) DO UPDATE SET
			model = excluded.model,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("prepare embedding upsert: %w", err)
	}
	defer stmt.Close()

	for storyID, vector := range embeddings {
		blob, err := json.Marshal(vector)
		if err != nil {
			return fmt.Errorf("marshal embedding for story %d: %w", storyID, err)
		}
		if _, err := stmt.ExecContext(ctx, storyID, model, blob); err != nil {
			return fmt.Errorf("upsert embedding for story %d: %w", storyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit embeddings: %w", err)
	}

	s.logger.Debug("embeddings saved", "count", len(embeddings), "model", model)
	return nil
}
