// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertScreenshot persists a new screenshot row and returns its id.
func (s *Store) InsertScreenshot(ctx context.Context, sc *Screenshot) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO screenshots
		    (timestamp, date, width, height, file_size, similarity,
		     storage_type, segment_path, segment_offset_ms, filepath_thumb)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		FormatTimestamp(sc.Timestamp), sc.Date, sc.Width, sc.Height,
		sc.FileSize, sc.Similarity, sc.StorageType,
		nullStr(sc.SegmentPath), nullableOffset(sc.SegmentPath, sc.SegmentOffsetMS),
		nullStr(sc.ThumbPath),
	)
	if err != nil {
		return 0, fmt.Errorf("insert screenshot: %w", err)
	}
	return res.LastInsertId()
}

// InsertMonitorCapture persists one monitor's frame row and returns its id.
func (s *Store) InsertMonitorCapture(ctx context.Context, mc *MonitorCapture) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO monitor_captures
		    (screenshot_id, monitor_name, monitor_index, filepath,
		     segment_path, segment_offset_ms, x, y, w, h)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mc.ScreenshotID, mc.MonitorName, mc.MonitorIndex, nullStr(mc.Filepath),
		nullStr(mc.SegmentPath), nullableOffset(mc.SegmentPath, mc.SegmentOffsetMS),
		mc.X, mc.Y, mc.Width, mc.Height,
	)
	if err != nil {
		return 0, fmt.Errorf("insert monitor capture: %w", err)
	}
	return res.LastInsertId()
}

// UpdateScreenshotFileSize sets the aggregate on-disk size of a tick.
func (s *Store) UpdateScreenshotFileSize(ctx context.Context, id, size int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE screenshots SET file_size = ? WHERE id = ?`, size, id)
	return err
}

// Screenshot fetches one row by id, or nil when absent.
func (s *Store) Screenshot(ctx context.Context, id int64) (*Screenshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+screenshotCols+` FROM screenshots WHERE id = ?`, id)
	sc, err := scanScreenshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sc, err
}

// Screenshots pages through rows, newest first, optionally for one date.
func (s *Store) Screenshots(ctx context.Context, date string, offset, limit int) ([]*Screenshot, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if date != "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+screenshotCols+` FROM screenshots
			WHERE date = ? ORDER BY timestamp DESC LIMIT ? OFFSET ?`, date, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+screenshotCols+` FROM screenshots
			ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectScreenshots(rows)
}

// ScreenshotCount counts rows, optionally for one date.
func (s *Store) ScreenshotCount(ctx context.Context, date string) (int64, error) {
	var n int64
	var err error
	if date != "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM screenshots WHERE date = ?`, date).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM screenshots`).Scan(&n)
	}
	return n, err
}

// DateCount is the number of screenshots captured on one date.
type DateCount struct {
	Date  string
	Count int64
}

// Dates lists all capture dates with counts, newest first.
func (s *Store) Dates(ctx context.Context) ([]DateCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, COUNT(*) FROM screenshots GROUP BY date ORDER BY date DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []DateCount
	for rows.Next() {
		var dc DateCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// TimelineEntry is one chronological screenshot reference for a day.
type TimelineEntry struct {
	ID        int64
	Timestamp time.Time
}

// Timeline lists all screenshots of a date in chronological order.
func (s *Store) Timeline(ctx context.Context, date string) ([]TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp FROM screenshots WHERE date = ? ORDER BY timestamp ASC`, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []TimelineEntry
	for rows.Next() {
		var (
			e  TimelineEntry
			ts string
		)
		if err := rows.Scan(&e.ID, &ts); err != nil {
			return nil, err
		}
		if e.Timestamp, err = ParseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("timeline timestamp: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MonitorCaptures returns a screenshot's monitor rows ordered by index.
func (s *Store) MonitorCaptures(ctx context.Context, screenshotID int64) ([]*MonitorCapture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, screenshot_id, monitor_name, monitor_index, filepath,
		       segment_path, segment_offset_ms, x, y, w, h
		FROM monitor_captures WHERE screenshot_id = ? ORDER BY monitor_index`,
		screenshotID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*MonitorCapture
	for rows.Next() {
		mc, err := scanMonitorCapture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// LiveScreenshotsBefore returns live screenshots with timestamp strictly
// before t, ascending. This is the archiver's selection query.
func (s *Store) LiveScreenshotsBefore(ctx context.Context, t time.Time) ([]*Screenshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+screenshotCols+` FROM screenshots
		WHERE storage_type = 'live' AND timestamp < ?
		ORDER BY timestamp ASC`, FormatTimestamp(t))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectScreenshots(rows)
}

// MarkScreenshotArchived flips a screenshot to the archived tier with its
// segment reference.
func (s *Store) MarkScreenshotArchived(ctx context.Context, id int64, segmentPath string, offsetMS int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE screenshots
		SET storage_type = 'archived', segment_path = ?, segment_offset_ms = ?
		WHERE id = ?`, segmentPath, offsetMS, id)
	return err
}

// MarkMonitorCaptureArchived re-points a monitor capture into a segment and
// clears its live filepath in the same statement.
func (s *Store) MarkMonitorCaptureArchived(ctx context.Context, id int64, segmentPath string, offsetMS int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE monitor_captures
		SET filepath = NULL, segment_path = ?, segment_offset_ms = ?
		WHERE id = ?`, segmentPath, offsetMS, id)
	return err
}

// TotalStorageBytes sums segment sizes plus live screenshot sizes.
func (s *Store) TotalStorageBytes(ctx context.Context) (int64, error) {
	var archive, live int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(file_size), 0) FROM video_segments`).Scan(&archive); err != nil {
		return 0, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(file_size), 0) FROM screenshots WHERE storage_type = 'live'`).Scan(&live); err != nil {
		return 0, err
	}
	return archive + live, nil
}

const screenshotCols = `id, timestamp, date, width, height, file_size, similarity,
	storage_type, segment_path, segment_offset_ms, filepath_thumb`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScreenshot(r rowScanner) (*Screenshot, error) {
	var (
		sc     Screenshot
		ts     string
		seg    sql.NullString
		offset sql.NullInt64
		thumb  sql.NullString
	)
	if err := r.Scan(&sc.ID, &ts, &sc.Date, &sc.Width, &sc.Height, &sc.FileSize,
		&sc.Similarity, &sc.StorageType, &seg, &offset, &thumb); err != nil {
		return nil, err
	}
	t, err := ParseTimestamp(ts)
	if err != nil {
		return nil, fmt.Errorf("screenshot timestamp: %w", err)
	}
	sc.Timestamp = t
	sc.SegmentPath = seg.String
	sc.SegmentOffsetMS = offset.Int64
	sc.ThumbPath = thumb.String
	return &sc, nil
}

func scanMonitorCapture(r rowScanner) (*MonitorCapture, error) {
	var (
		mc     MonitorCapture
		fp     sql.NullString
		seg    sql.NullString
		offset sql.NullInt64
	)
	if err := r.Scan(&mc.ID, &mc.ScreenshotID, &mc.MonitorName, &mc.MonitorIndex,
		&fp, &seg, &offset, &mc.X, &mc.Y, &mc.Width, &mc.Height); err != nil {
		return nil, err
	}
	mc.Filepath = fp.String
	mc.SegmentPath = seg.String
	mc.SegmentOffsetMS = offset.Int64
	return &mc, nil
}

func collectScreenshots(rows *sql.Rows) ([]*Screenshot, error) {
	var out []*Screenshot
	for rows.Next() {
		sc, err := scanScreenshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableOffset stores the offset only alongside a segment path so a live
// row never carries a half-filled segment reference.
func nullableOffset(segmentPath string, offset int64) any {
	if segmentPath == "" {
		return nil
	}
	return offset
}
