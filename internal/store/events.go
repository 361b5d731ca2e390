// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"fmt"
)

// InsertWindowEvent persists the active-window identity of a tick.
func (s *Store) InsertWindowEvent(ctx context.Context, e *WindowEvent) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO window_events
		    (screenshot_id, timestamp, app_class, app_name,
		     window_title, desktop_file, pid, browser_domain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ScreenshotID, FormatTimestamp(e.Timestamp), e.AppClass, e.AppName,
		e.WindowTitle, e.DesktopFile, e.PID, e.BrowserDomain)
	if err != nil {
		return 0, fmt.Errorf("insert window event: %w", err)
	}
	return res.LastInsertId()
}

// WindowEventsForDay returns all events of a date sorted ascending. This is
// the activity deriver's input.
func (s *Store) WindowEventsForDay(ctx context.Context, date string) ([]*WindowEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, screenshot_id, timestamp, app_class, app_name,
		       window_title, desktop_file, pid, browser_domain
		FROM window_events
		WHERE timestamp LIKE ? || '%'
		ORDER BY timestamp ASC`, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*WindowEvent
	for rows.Next() {
		var (
			e  WindowEvent
			ts string
		)
		if err := rows.Scan(&e.ID, &e.ScreenshotID, &ts, &e.AppClass, &e.AppName,
			&e.WindowTitle, &e.DesktopFile, &e.PID, &e.BrowserDomain); err != nil {
			return nil, err
		}
		if e.Timestamp, err = ParseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("window event timestamp: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// WindowEventCount counts a date's events.
func (s *Store) WindowEventCount(ctx context.Context, date string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM window_events WHERE timestamp LIKE ? || '%'`, date).Scan(&n)
	return n, err
}

// AppCount aggregates usage of one app class on a date.
type AppCount struct {
	AppClass string
	AppName  string
	Count    int64
}

// TopApps lists the most frequent app classes of a date.
func (s *Store) TopApps(ctx context.Context, date string, limit int) ([]AppCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT app_class, app_name, COUNT(*) AS count
		FROM window_events
		WHERE timestamp LIKE ? || '%' AND app_class != ''
		GROUP BY app_class
		ORDER BY count DESC LIMIT ?`, date, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []AppCount
	for rows.Next() {
		var a AppCount
		if err := rows.Scan(&a.AppClass, &a.AppName, &a.Count); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TitleCount aggregates one window title on a date.
type TitleCount struct {
	WindowTitle string
	AppClass    string
	Count       int64
}

// TopWindowTitles lists the most frequent window titles of a date.
func (s *Store) TopWindowTitles(ctx context.Context, date string, limit int) ([]TitleCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT window_title, app_class, COUNT(*) AS count
		FROM window_events
		WHERE timestamp LIKE ? || '%' AND window_title != ''
		GROUP BY window_title
		ORDER BY count DESC LIMIT ?`, date, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []TitleCount
	for rows.Next() {
		var t TitleCount
		if err := rows.Scan(&t.WindowTitle, &t.AppClass, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DomainCount aggregates one browser domain on a date.
type DomainCount struct {
	BrowserDomain string
	Count         int64
}

// TopBrowserDomains lists the most visited domains of a date.
func (s *Store) TopBrowserDomains(ctx context.Context, date string, limit int) ([]DomainCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT browser_domain, COUNT(*) AS count
		FROM window_events
		WHERE timestamp LIKE ? || '%' AND browser_domain != ''
		GROUP BY browser_domain
		ORDER BY count DESC LIMIT ?`, date, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []DomainCount
	for rows.Next() {
		var d DomainCount
		if err := rows.Scan(&d.BrowserDomain, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
