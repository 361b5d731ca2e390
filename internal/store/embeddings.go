// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertEmbedding persists one chunk vector and returns its id.
func (s *Store) InsertEmbedding(ctx context.Context, e *Embedding) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (screenshot_id, vector, model, dimensions, text_hash)
		VALUES (?, ?, ?, ?, ?)`,
		e.ScreenshotID, e.Vector, e.Model, e.Dimensions, e.TextHash)
	if err != nil {
		return 0, fmt.Errorf("insert embedding: %w", err)
	}
	return res.LastInsertId()
}

// HasEmbedding reports whether a (screenshot, text hash) pair was embedded
// already, used to skip re-embedding identical text.
func (s *Store) HasEmbedding(ctx context.Context, screenshotID int64, textHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM embeddings WHERE screenshot_id = ? AND text_hash = ?`,
		screenshotID, textHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StoredVector is one (screenshot, raw vector) pair for semantic scoring.
type StoredVector struct {
	ScreenshotID int64
	Vector       []byte
}

// AllEmbeddings loads every stored vector.
func (s *Store) AllEmbeddings(ctx context.Context) ([]StoredVector, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT screenshot_id, vector FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []StoredVector
	for rows.Next() {
		var v StoredVector
		if err := rows.Scan(&v.ScreenshotID, &v.Vector); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
