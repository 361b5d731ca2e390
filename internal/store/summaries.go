// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DaySummary returns the cached AI narrative for a date, or nil.
func (s *Store) DaySummary(ctx context.Context, date string) (*DaySummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT date, summary_text, session_labels, model, created_at, event_count
		FROM activity_day_summaries WHERE date = ?`, date)

	var (
		d       DaySummary
		created string
	)
	err := row.Scan(&d.Date, &d.SummaryText, &d.SessionLabels, &d.Model, &created, &d.EventCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if d.CreatedAt, err = ParseTimestamp(created); err != nil {
		return nil, fmt.Errorf("day summary created_at: %w", err)
	}
	return &d, nil
}

// SaveDaySummary overwrites the AI narrative cache for a date.
func (s *Store) SaveDaySummary(ctx context.Context, d *DaySummary) error {
	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO activity_day_summaries
		    (date, summary_text, session_labels, model, created_at, event_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.Date, d.SummaryText, d.SessionLabels, d.Model,
		FormatTimestamp(created), d.EventCount)
	return err
}

// MOTD returns the cached motivational line for a date, or "".
func (s *Store) MOTD(ctx context.Context, date string) (string, error) {
	return s.Meta("motd_" + date)
}

// SaveMOTD caches the motivational line for a date.
func (s *Store) SaveMOTD(ctx context.Context, date, motd string) error {
	return s.SetMeta("motd_"+date, motd)
}

// Stats aggregates catalog counters for the status command.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	queries := []struct {
		sql  string
		dest *int64
	}{
		{`SELECT COUNT(*) FROM screenshots`, &st.TotalScreenshots},
		{`SELECT COUNT(*) FROM screenshots WHERE storage_type = 'live'`, &st.LiveScreenshots},
		{`SELECT COUNT(*) FROM screenshots WHERE storage_type = 'archived'`, &st.ArchivedScreenshots},
		{`SELECT COUNT(*) FROM ocr_results`, &st.OCRResults},
		{`SELECT COUNT(*) FROM embeddings`, &st.Embeddings},
		{`SELECT COUNT(*) FROM video_segments`, &st.VideoSegments},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	total, err := s.TotalStorageBytes(ctx)
	if err != nil {
		return nil, err
	}
	st.StorageBytes = total
	return &st, nil
}
