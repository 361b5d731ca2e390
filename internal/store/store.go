// SPDX-License-Identifier: MIT

// Package store is the durable catalog: frames, monitors, OCR text and
// word geometry, window events, embeddings, video segments and day
// summaries, backed by SQLite in WAL mode with an FTS5 index over OCR text.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure Go driver

	xlog "github.com/screendiary/screendiary/internal/log"
)

// SchemaVersion gates idempotent forward migrations. A database reporting a
// newer version than this refuses to open.
const SchemaVersion = 4

const schemaSQL = `
CREATE TABLE IF NOT EXISTS app_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS screenshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    date TEXT NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    file_size INTEGER NOT NULL DEFAULT 0,
    similarity REAL NOT NULL DEFAULT 0.0,
    storage_type TEXT NOT NULL DEFAULT 'live',
    segment_path TEXT,
    segment_offset_ms INTEGER,
    filepath_thumb TEXT
);

CREATE TABLE IF NOT EXISTS monitor_captures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    screenshot_id INTEGER NOT NULL REFERENCES screenshots(id) ON DELETE CASCADE,
    monitor_name TEXT NOT NULL,
    monitor_index INTEGER NOT NULL,
    filepath TEXT,
    segment_path TEXT,
    segment_offset_ms INTEGER,
    x INTEGER NOT NULL DEFAULT 0,
    y INTEGER NOT NULL DEFAULT 0,
    w INTEGER NOT NULL DEFAULT 0,
    h INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ocr_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    screenshot_id INTEGER NOT NULL REFERENCES screenshots(id) ON DELETE CASCADE,
    monitor_capture_id INTEGER REFERENCES monitor_captures(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    language TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0.0
);

CREATE TABLE IF NOT EXISTS ocr_words (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ocr_result_id INTEGER NOT NULL REFERENCES ocr_results(id) ON DELETE CASCADE,
    monitor_capture_id INTEGER NOT NULL REFERENCES monitor_captures(id) ON DELETE CASCADE,
    word TEXT NOT NULL,
    left_x INTEGER NOT NULL DEFAULT 0,
    top_y INTEGER NOT NULL DEFAULT 0,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    confidence REAL NOT NULL DEFAULT 0.0
);

CREATE TABLE IF NOT EXISTS embeddings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    screenshot_id INTEGER NOT NULL REFERENCES screenshots(id) ON DELETE CASCADE,
    vector BLOB NOT NULL,
    model TEXT NOT NULL,
    dimensions INTEGER NOT NULL DEFAULT 0,
    text_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS video_segments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,
    monitor_index INTEGER NOT NULL,
    filepath TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT NOT NULL,
    frame_count INTEGER NOT NULL DEFAULT 0,
    file_size INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS window_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    screenshot_id INTEGER NOT NULL REFERENCES screenshots(id) ON DELETE CASCADE,
    timestamp TEXT NOT NULL,
    app_class TEXT NOT NULL DEFAULT '',
    app_name TEXT NOT NULL DEFAULT '',
    window_title TEXT NOT NULL DEFAULT '',
    desktop_file TEXT NOT NULL DEFAULT '',
    pid INTEGER NOT NULL DEFAULT 0,
    browser_domain TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS activity_day_summaries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL UNIQUE,
    summary_text TEXT NOT NULL,
    session_labels TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    event_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_screenshots_timestamp ON screenshots(timestamp);
CREATE INDEX IF NOT EXISTS idx_screenshots_date ON screenshots(date);
CREATE INDEX IF NOT EXISTS idx_screenshots_storage ON screenshots(storage_type);
CREATE INDEX IF NOT EXISTS idx_monitor_captures_screenshot ON monitor_captures(screenshot_id);
CREATE INDEX IF NOT EXISTS idx_ocr_results_screenshot ON ocr_results(screenshot_id);
CREATE INDEX IF NOT EXISTS idx_ocr_words_monitor_capture ON ocr_words(monitor_capture_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_screenshot ON embeddings(screenshot_id);
CREATE INDEX IF NOT EXISTS idx_video_segments_date ON video_segments(date);
CREATE INDEX IF NOT EXISTS idx_window_events_screenshot ON window_events(screenshot_id);
CREATE INDEX IF NOT EXISTS idx_window_events_date ON window_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_window_events_app ON window_events(app_class);
`

const ftsSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS ocr_fts USING fts5(
    text,
    content='ocr_results',
    content_rowid='id',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS ocr_fts_insert AFTER INSERT ON ocr_results BEGIN
    INSERT INTO ocr_fts(rowid, text) VALUES (new.id, new.text);
END;

CREATE TRIGGER IF NOT EXISTS ocr_fts_delete AFTER DELETE ON ocr_results BEGIN
    INSERT INTO ocr_fts(ocr_fts, rowid, text) VALUES('delete', old.id, old.text);
END;

CREATE TRIGGER IF NOT EXISTS ocr_fts_update AFTER UPDATE ON ocr_results BEGIN
    INSERT INTO ocr_fts(ocr_fts, rowid, text) VALUES('delete', old.id, old.text);
    INSERT INTO ocr_fts(rowid, text) VALUES (new.id, new.text);
END;
`

// Store owns the process-wide database handle. Readers share it freely under
// WAL; writes serialize through SQLite's single-writer model.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open initialises the catalog at dbPath, creating parent directories,
// applying pragmas, the schema and forward migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// _pragma in the DSN applies to every pooled connection.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)",
		dbPath,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, log: xlog.WithComponent("store")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info().Str("event", "store.opened").Str("path", dbPath).Msg("database initialized")
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := s.db.Exec(ftsSQL); err != nil {
		return fmt.Errorf("apply fts schema: %w", err)
	}

	var raw sql.NullString
	err := s.db.QueryRow(`SELECT value FROM app_meta WHERE key = 'schema_version'`).Scan(&raw)
	current := 1
	if err == nil && raw.Valid {
		if v, perr := strconv.Atoi(raw.String); perr == nil {
			current = v
		}
	} else if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read schema version: %w", err)
	}

	if current > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d; refusing to start", current, SchemaVersion)
	}

	// v2 ocr_words, v3 window_events, v4 activity_day_summaries: all created
	// above via CREATE IF NOT EXISTS, so the steps are logging markers.
	for v := current + 1; v <= SchemaVersion; v++ {
		s.log.Info().Str("event", "store.migrated").Int("version", v).Msg("schema migration applied")
	}

	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO app_meta (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// Meta returns an app_meta value, or "" when absent.
func (s *Store) Meta(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM app_meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// SetMeta upserts an app_meta value.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO app_meta (key, value) VALUES (?, ?)`, key, value)
	return err
}
