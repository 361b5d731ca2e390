// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"fmt"
)

// InsertVideoSegment persists an encoded segment row and returns its id. The
// archiver inserts this row before re-pointing any child capture.
func (s *Store) InsertVideoSegment(ctx context.Context, seg *VideoSegment) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO video_segments
		    (date, monitor_index, filepath, start_time, end_time, frame_count, file_size)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seg.Date, seg.MonitorIndex, seg.Filepath,
		FormatTimestamp(seg.StartTime), FormatTimestamp(seg.EndTime),
		seg.FrameCount, seg.FileSize)
	if err != nil {
		return 0, fmt.Errorf("insert video segment: %w", err)
	}
	return res.LastInsertId()
}

// OldestVideoSegments returns up to limit segments ordered by start time.
func (s *Store) OldestVideoSegments(ctx context.Context, limit int) ([]*VideoSegment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, monitor_index, filepath, start_time, end_time, frame_count, file_size
		FROM video_segments ORDER BY start_time ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*VideoSegment
	for rows.Next() {
		var (
			seg        VideoSegment
			start, end string
		)
		if err := rows.Scan(&seg.ID, &seg.Date, &seg.MonitorIndex, &seg.Filepath,
			&start, &end, &seg.FrameCount, &seg.FileSize); err != nil {
			return nil, err
		}
		if seg.StartTime, err = ParseTimestamp(start); err != nil {
			return nil, fmt.Errorf("segment start_time: %w", err)
		}
		if seg.EndTime, err = ParseTimestamp(end); err != nil {
			return nil, fmt.Errorf("segment end_time: %w", err)
		}
		out = append(out, &seg)
	}
	return out, rows.Err()
}

// DeleteVideoSegment removes a segment row. Screenshot and monitor-capture
// rows referencing it keep their pointers; see the prune policy.
func (s *Store) DeleteVideoSegment(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM video_segments WHERE id = ?`, id)
	return err
}

// SegmentExists reports whether a segment row with this filepath exists.
func (s *Store) SegmentExists(ctx context.Context, filepath string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM video_segments WHERE filepath = ?`, filepath).Scan(&n)
	return n > 0, err
}
