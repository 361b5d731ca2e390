// SPDX-License-Identifier: MIT
package archive

import (
	"context"
	"crypto/md5" // #nosec G501 -- cache file naming, not security
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/screendiary/screendiary/internal/config"
	xlog "github.com/screendiary/screendiary/internal/log"
	"github.com/screendiary/screendiary/internal/metrics"
	"github.com/screendiary/screendiary/internal/store"
)

// ErrFrameMissing marks a frame whose bytes are gone: its live file was
// removed, or its segment was pruned under storage pressure.
var ErrFrameMissing = errors.New("frame no longer available")

// Manager serves frame bytes regardless of tier. Archived frames are pulled
// through a memory LRU backed by an on-disk extraction cache, so browsing a
// segment does not re-run ffmpeg per view.
type Manager struct {
	cfg       config.Config
	st        *store.Store
	extractor FrameExtractor
	memory    *lru.Cache[string, []byte]
	diskDir   string
	log       zerolog.Logger
}

// NewManager builds the tiered frame reader.
func NewManager(cfg config.Config, st *store.Store, extractor FrameExtractor) (*Manager, error) {
	size := cfg.Storage.FrameCacheSize
	if size < 1 {
		size = 1
	}
	memory, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	diskDir := cfg.Storage.FrameCacheDir()
	if err := os.MkdirAll(diskDir, 0o750); err != nil {
		return nil, fmt.Errorf("frame cache dir: %w", err)
	}
	return &Manager{
		cfg:       cfg,
		st:        st,
		extractor: extractor,
		memory:    memory,
		diskDir:   diskDir,
		log:       xlog.WithComponent("frames"),
	}, nil
}

// Frame returns the bytes of one monitor capture from whichever tier holds
// it.
func (m *Manager) Frame(ctx context.Context, mc *store.MonitorCapture) ([]byte, error) {
	if mc.Filepath != "" {
		data, err := os.ReadFile(mc.Filepath) // #nosec G304
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFrameMissing, mc.Filepath)
		}
		return data, err
	}
	if mc.SegmentPath == "" {
		return nil, fmt.Errorf("%w: capture %d has no storage reference", ErrFrameMissing, mc.ID)
	}
	return m.archivedFrame(ctx, mc.SegmentPath, mc.SegmentOffsetMS)
}

// FrameByScreenshot resolves (screenshot, monitor index) to frame bytes.
func (m *Manager) FrameByScreenshot(ctx context.Context, screenshotID int64, monitorIndex int) ([]byte, error) {
	captures, err := m.st.MonitorCaptures(ctx, screenshotID)
	if err != nil {
		return nil, err
	}
	for _, mc := range captures {
		if mc.MonitorIndex == monitorIndex {
			return m.Frame(ctx, mc)
		}
	}
	return nil, fmt.Errorf("%w: screenshot %d has no monitor %d", ErrFrameMissing, screenshotID, monitorIndex)
}

// Thumbnail reads a screenshot's thumbnail. Thumbnails always stay live.
func (m *Manager) Thumbnail(sc *store.Screenshot) ([]byte, error) {
	if sc.ThumbPath == "" {
		return nil, fmt.Errorf("%w: screenshot %d has no thumbnail", ErrFrameMissing, sc.ID)
	}
	data, err := os.ReadFile(sc.ThumbPath) // #nosec G304
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFrameMissing, sc.ThumbPath)
	}
	return data, err
}

// archivedFrame checks memory, then disk, then extracts. Disk writes are
// best-effort; a failed cache write never fails the read.
func (m *Manager) archivedFrame(ctx context.Context, segmentPath string, offsetMS int64) ([]byte, error) {
	key := fmt.Sprintf("%s:%d", segmentPath, offsetMS)

	if data, ok := m.memory.Get(key); ok {
		metrics.FrameCacheHits.WithLabelValues("memory").Inc()
		return data, nil
	}

	diskPath := filepath.Join(m.diskDir, cacheFileName(key))
	if data, err := os.ReadFile(diskPath); err == nil { // #nosec G304
		metrics.FrameCacheHits.WithLabelValues("disk").Inc()
		m.memory.Add(key, data)
		return data, nil
	}

	if _, err := os.Stat(segmentPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: segment %s", ErrFrameMissing, segmentPath)
	}

	data, err := m.extractor.ExtractFrame(ctx, segmentPath, offsetMS)
	if err != nil {
		return nil, err
	}
	metrics.FrameExtractionsTotal.Inc()

	m.memory.Add(key, data)
	if err := os.WriteFile(diskPath, data, 0o600); err != nil {
		m.log.Debug().Err(err).Str("event", "frames.disk_cache_write_failed").Str("path", diskPath).Msg("disk cache write failed")
	}
	return data, nil
}

func cacheFileName(key string) string {
	sum := md5.Sum([]byte(key)) // #nosec G401
	return hex.EncodeToString(sum[:]) + ".webp"
}
