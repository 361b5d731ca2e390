// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// InsertOCRResult persists one monitor's extracted text and returns its id.
func (s *Store) InsertOCRResult(ctx context.Context, r *OCRResult) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ocr_results (screenshot_id, monitor_capture_id, text, language, confidence)
		VALUES (?, ?, ?, ?, ?)`,
		r.ScreenshotID, r.MonitorCaptureID, r.Text, r.Language, r.Confidence)
	if err != nil {
		return 0, fmt.Errorf("insert ocr result: %w", err)
	}
	return res.LastInsertId()
}

// InsertOCRWords bulk-inserts word boxes inside one transaction.
func (s *Store) InsertOCRWords(ctx context.Context, words []*OCRWord) error {
	if len(words) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ocr_words
		    (ocr_result_id, monitor_capture_id, word, left_x, top_y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, w := range words {
		if _, err := stmt.ExecContext(ctx, w.OCRResultID, w.MonitorCaptureID,
			w.Word, w.Left, w.Top, w.Width, w.Height, w.Confidence); err != nil {
			return fmt.Errorf("insert ocr word: %w", err)
		}
	}
	return tx.Commit()
}

// OCRText concatenates all monitor texts of a screenshot.
func (s *Store) OCRText(ctx context.Context, screenshotID int64) (string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text FROM ocr_results WHERE screenshot_id = ? ORDER BY monitor_capture_id`,
		screenshotID)
	if err != nil {
		return "", err
	}
	defer func() { _ = rows.Close() }()

	var parts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return "", err
		}
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), rows.Err()
}

// OCRTextForMonitor returns the text of one monitor capture, or "".
func (s *Store) OCRTextForMonitor(ctx context.Context, monitorCaptureID int64) (string, error) {
	var t string
	err := s.db.QueryRowContext(ctx,
		`SELECT text FROM ocr_results WHERE monitor_capture_id = ?`, monitorCaptureID).Scan(&t)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return t, err
}

// OCRWordsForScreenshot returns all word boxes grouped by monitor capture.
func (s *Store) OCRWordsForScreenshot(ctx context.Context, screenshotID int64) (map[int64][]*OCRWord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ow.id, ow.ocr_result_id, ow.monitor_capture_id, ow.word,
		       ow.left_x, ow.top_y, ow.width, ow.height, ow.confidence
		FROM ocr_words ow
		JOIN monitor_captures mc ON mc.id = ow.monitor_capture_id
		WHERE mc.screenshot_id = ?
		ORDER BY ow.monitor_capture_id, ow.id`, screenshotID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	grouped := make(map[int64][]*OCRWord)
	for rows.Next() {
		var w OCRWord
		if err := rows.Scan(&w.ID, &w.OCRResultID, &w.MonitorCaptureID, &w.Word,
			&w.Left, &w.Top, &w.Width, &w.Height, &w.Confidence); err != nil {
			return nil, err
		}
		grouped[w.MonitorCaptureID] = append(grouped[w.MonitorCaptureID], &w)
	}
	return grouped, rows.Err()
}

// SearchFTS runs a raw FTS5 match ordered by bm25 ascending (smaller is
// better), with <mark> snippet markup and a 32-token window.
func (s *Store) SearchFTS(ctx context.Context, query string, limit int) ([]FTSRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ocr_results.screenshot_id, ocr_results.text,
		       bm25(ocr_fts) AS rank,
		       snippet(ocr_fts, 0, '<mark>', '</mark>', '...', 32) AS snippet
		FROM ocr_fts
		JOIN ocr_results ON ocr_results.id = ocr_fts.rowid
		WHERE ocr_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []FTSRow
	for rows.Next() {
		var r FTSRow
		if err := rows.Scan(&r.ScreenshotID, &r.Text, &r.Rank, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
