// SPDX-License-Identifier: MIT

// Package config loads the TOML configuration with precedence
// defaults -> file, and validates it before the daemon starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

// Capture controls the screenshot loop.
type Capture struct {
	Interval            int     `toml:"interval"`             // seconds, 1-30
	SimilarityThreshold float64 `toml:"similarity_threshold"` // 0.0-1.0
	Tool                string  `toml:"tool"`
}

// Storage controls on-disk layout and the archive tier.
type Storage struct {
	DataDir                string `toml:"data_dir"`
	Format                 string `toml:"format"`
	Quality                int    `toml:"quality"`
	ThumbnailWidth         int    `toml:"thumbnail_width"`
	MaxStorageGB           int    `toml:"max_storage_gb"`
	ArchiveAfterMinutes    int    `toml:"archive_after_minutes"`
	SegmentDurationMinutes int    `toml:"segment_duration_minutes"`
	H265CRF                int    `toml:"h265_crf"`
	H265Preset             string `toml:"h265_preset"`
	FrameCacheSize         int    `toml:"frame_cache_size"`
}

// OCR controls the text-extraction pipeline.
type OCR struct {
	Languages     string `toml:"languages"`
	PSM           int    `toml:"psm"`
	MinTextLength int    `toml:"min_text_length"`
	Workers       int    `toml:"workers"`
}

// AI configures the OpenAI-compatible endpoints.
type AI struct {
	APIBase        string `toml:"api_base"`
	APIKey         string `toml:"api_key"`
	EmbeddingModel string `toml:"embedding_model"`
	ChatModel      string `toml:"chat_model"`
	ChunkMaxTokens int    `toml:"chunk_max_tokens"`
	Enabled        bool   `toml:"enabled"`
}

// Logging configures the zerolog level.
type Logging struct {
	Level string `toml:"level"`
}

// Metrics configures the optional Prometheus listener.
type Metrics struct {
	Listen string `toml:"listen"` // e.g. "127.0.0.1:18788"; empty disables
}

// Config is the full configuration tree.
type Config struct {
	Capture Capture `toml:"capture"`
	Storage Storage `toml:"storage"`
	OCR     OCR     `toml:"ocr"`
	AI      AI      `toml:"ai"`
	Logging Logging `toml:"logging"`
	Metrics Metrics `toml:"metrics"`

	// Source is the path the config was loaded from, empty for defaults.
	Source string `toml:"-"`
}

// Default returns the configuration with all documented defaults applied.
func Default() Config {
	return Config{
		Capture: Capture{
			Interval:            2,
			SimilarityThreshold: 0.98,
			Tool:                "spectacle",
		},
		Storage: Storage{
			DataDir:                "data",
			Format:                 "webp",
			Quality:                80,
			ThumbnailWidth:         320,
			MaxStorageGB:           200,
			ArchiveAfterMinutes:    10,
			SegmentDurationMinutes: 5,
			H265CRF:                28,
			H265Preset:             "medium",
			FrameCacheSize:         100,
		},
		OCR: OCR{
			Languages:     "deu+eng",
			PSM:           3,
			MinTextLength: 10,
			Workers:       2,
		},
		AI: AI{
			APIBase:        "http://localhost:8000/v1",
			EmbeddingModel: "text-embedding-3-small",
			ChatModel:      "gpt-4",
			ChunkMaxTokens: 512,
			Enabled:        true,
		},
		Logging: Logging{Level: "info"},
	}
}

// findConfig walks the documented search order and returns the first
// existing file, or "" when none is present.
func findConfig() string {
	candidates := []string{os.Getenv("SCREENDIARY_CONFIG"), "config.toml"}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "screendiary", "config.toml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "screendiary", "config.toml"))
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// Load reads the configuration from path, or from the search order when path
// is empty. Missing file in the search order yields pure defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfig()
	} else if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config file: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Source = path
	}

	if abs, err := filepath.Abs(cfg.Storage.DataDir); err == nil {
		cfg.Storage.DataDir = abs
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate enforces the documented option ranges.
func (c *Config) Validate() error {
	if c.Capture.Interval < 1 || c.Capture.Interval > 30 {
		return fmt.Errorf("capture.interval must be 1-30, got %d", c.Capture.Interval)
	}
	if c.Capture.SimilarityThreshold < 0.0 || c.Capture.SimilarityThreshold > 1.0 {
		return fmt.Errorf("capture.similarity_threshold must be 0.0-1.0, got %g", c.Capture.SimilarityThreshold)
	}
	if c.Storage.Format != "webp" && c.Storage.Format != "png" {
		return fmt.Errorf("storage.format must be webp or png, got %q", c.Storage.Format)
	}
	if c.Storage.Quality < 1 || c.Storage.Quality > 100 {
		return fmt.Errorf("storage.quality must be 1-100, got %d", c.Storage.Quality)
	}
	if c.Storage.SegmentDurationMinutes < 1 {
		return fmt.Errorf("storage.segment_duration_minutes must be >= 1, got %d", c.Storage.SegmentDurationMinutes)
	}
	if c.OCR.Workers < 1 {
		return fmt.Errorf("ocr.workers must be >= 1, got %d", c.OCR.Workers)
	}
	// Embedding chunks share 50 overlapping words; a smaller window cannot
	// make progress.
	if c.AI.ChunkMaxTokens <= 50 {
		return fmt.Errorf("ai.chunk_max_tokens must be > 50, got %d", c.AI.ChunkMaxTokens)
	}
	return nil
}

// Derived filesystem layout.

func (s Storage) ScreenshotsDir() string { return filepath.Join(s.DataDir, "screenshots") }
func (s Storage) ArchiveDir() string     { return filepath.Join(s.DataDir, "archive") }
func (s Storage) FrameCacheDir() string  { return filepath.Join(s.DataDir, "frame_cache") }
func (s Storage) DBPath() string         { return filepath.Join(s.DataDir, "screendiary.db") }

// MaxStorageBytes returns the prune budget in bytes.
func (s Storage) MaxStorageBytes() int64 {
	return int64(s.MaxStorageGB) * 1024 * 1024 * 1024
}
