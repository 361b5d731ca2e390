// SPDX-License-Identifier: MIT
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/screendiary/screendiary/internal/config"
	xlog "github.com/screendiary/screendiary/internal/log"
	"github.com/screendiary/screendiary/internal/metrics"
	"github.com/screendiary/screendiary/internal/store"
)

// sweepInterval is how often the archiver looks for cold frames.
const sweepInterval = 60 * time.Second

// Archiver groups cold live frames into per-monitor H.265 segments and
// enforces the storage budget.
type Archiver struct {
	cfg     config.Config
	st      *store.Store
	encoder SegmentEncoder
	log     zerolog.Logger
}

// NewArchiver wires the archiver with its segment encoder.
func NewArchiver(cfg config.Config, st *store.Store, encoder SegmentEncoder) *Archiver {
	return &Archiver{cfg: cfg, st: st, encoder: encoder, log: xlog.WithComponent("archiver")}
}

// Run sweeps on a fixed cadence until ctx is cancelled. A sweep in progress
// always completes.
func (a *Archiver) Run(ctx context.Context) error {
	a.log.Info().
		Str("event", "archiver.started").
		Int("archive_after_minutes", a.cfg.Storage.ArchiveAfterMinutes).
		Int("segment_minutes", a.cfg.Storage.SegmentDurationMinutes).
		Msg("archiver started")

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.log.Info().Str("event", "archiver.stopped").Msg("archiver stopped")
			return nil
		case <-ticker.C:
			if err := a.ArchiveOnce(ctx, time.Now()); err != nil {
				a.log.Error().Err(err).Str("event", "archiver.sweep_failed").Msg("sweep failed")
			}
			if err := a.Prune(ctx); err != nil {
				a.log.Error().Err(err).Str("event", "archiver.prune_failed").Msg("prune failed")
			}
		}
	}
}

// frameRef is one live monitor frame waiting to be folded into a segment.
type frameRef struct {
	monitorCaptureID int64
	screenshotID     int64
	path             string
	timestamp        time.Time
}

// segmentKey identifies one segment: a monitor's slice of a wall-clock
// window on a given date.
type segmentKey struct {
	date         string
	segStart     time.Time
	monitorIndex int
}

// ArchiveOnce runs a single sweep at the given wall-clock time. Frames are
// grouped by (date, segment window, monitor); a group is encoded only when
// its whole window lies strictly before the cold cutoff, so a window still
// accepting captures is never encoded half-full.
func (a *Archiver) ArchiveOnce(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-time.Duration(a.cfg.Storage.ArchiveAfterMinutes) * time.Minute)
	segDur := time.Duration(a.cfg.Storage.SegmentDurationMinutes) * time.Minute

	shots, err := a.st.LiveScreenshotsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("select cold screenshots: %w", err)
	}
	if len(shots) == 0 {
		return nil
	}

	groups := make(map[segmentKey][]frameRef)
	for _, sc := range shots {
		segStart := floorToSegment(sc.Timestamp, a.cfg.Storage.SegmentDurationMinutes)
		if !segStart.Add(segDur).Before(cutoff) {
			continue // window not fully cold yet
		}
		captures, err := a.st.MonitorCaptures(ctx, sc.ID)
		if err != nil {
			return fmt.Errorf("monitor captures for %d: %w", sc.ID, err)
		}
		for _, mc := range captures {
			if mc.Filepath == "" {
				continue
			}
			key := segmentKey{date: sc.Date, segStart: segStart, monitorIndex: mc.MonitorIndex}
			groups[key] = append(groups[key], frameRef{
				monitorCaptureID: mc.ID,
				screenshotID:     sc.ID,
				path:             mc.Filepath,
				timestamp:        sc.Timestamp,
			})
		}
	}

	for key, frames := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.encodeGroup(ctx, key, frames, segDur); err != nil {
			metrics.EncodeFailuresTotal.Inc()
			a.log.Error().Err(err).
				Str("event", "archiver.segment_failed").
				Str("date", key.date).
				Int("monitor", key.monitorIndex).
				Time("segment_start", key.segStart).
				Msg("segment encode failed")
		}
	}
	return nil
}

// encodeGroup encodes one segment, inserts its row, re-points every frame
// and only then deletes the live files. Thumbnails are never touched.
func (a *Archiver) encodeGroup(ctx context.Context, key segmentKey, frames []frameRef, segDur time.Duration) error {
	sort.Slice(frames, func(i, j int) bool { return frames[i].timestamp.Before(frames[j].timestamp) })

	segEnd := key.segStart.Add(segDur)
	outDir := filepath.Join(a.cfg.Storage.ArchiveDir(), key.segStart.Format("2006/01/02"))
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("archive dir: %w", err)
	}
	outPath := filepath.Join(outDir, fmt.Sprintf("monitor%d_%s-%s.mp4",
		key.monitorIndex, key.segStart.Format("1504"), segEnd.Format("1504")))

	if exists, err := a.st.SegmentExists(ctx, outPath); err != nil {
		return err
	} else if exists {
		a.log.Warn().Str("event", "archiver.segment_exists").Str("path", outPath).Msg("segment already recorded, skipping")
		return nil
	}

	scratch, err := os.MkdirTemp("", "sd_segment_*")
	if err != nil {
		return fmt.Errorf("scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	for i, frame := range frames {
		link := filepath.Join(scratch, fmt.Sprintf("frame_%04d.webp", i))
		if err := os.Symlink(frame.path, link); err != nil {
			return fmt.Errorf("stage frame %d: %w", i, err)
		}
	}

	if err := a.encoder.EncodeSegment(ctx, scratch, outPath, a.cfg.Capture.Interval); err != nil {
		return err
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("stat segment: %w", err)
	}

	// The segment row lands before any capture is re-pointed, so a crash in
	// between leaves re-pointed rows with a valid referent.
	if _, err := a.st.InsertVideoSegment(ctx, &store.VideoSegment{
		Date:         key.date,
		MonitorIndex: key.monitorIndex,
		Filepath:     outPath,
		StartTime:    key.segStart,
		EndTime:      segEnd,
		FrameCount:   len(frames),
		FileSize:     info.Size(),
	}); err != nil {
		return err
	}

	// The screenshot row is flipped from every monitor's group, so it reaches
	// the archived tier even when one monitor's frames could not be encoded.
	// The last group to encode wins the screenshot-level segment pointer.
	intervalMS := int64(a.cfg.Capture.Interval) * 1000
	for i, frame := range frames {
		offset := int64(i) * intervalMS
		if err := a.st.MarkMonitorCaptureArchived(ctx, frame.monitorCaptureID, outPath, offset); err != nil {
			return err
		}
		if err := a.st.MarkScreenshotArchived(ctx, frame.screenshotID, outPath, offset); err != nil {
			return err
		}
	}

	for _, frame := range frames {
		if err := os.Remove(frame.path); err != nil && !os.IsNotExist(err) {
			a.log.Warn().Err(err).Str("event", "archiver.frame_remove_failed").Str("path", frame.path).Msg("live frame removal failed")
		}
	}

	metrics.SegmentsCreatedTotal.Inc()
	a.log.Info().
		Str("event", "archiver.segment_created").
		Str("path", outPath).
		Int("frames", len(frames)).
		Int64("bytes", info.Size()).
		Msg("segment created")
	return nil
}

// floorToSegment snaps t down to its segment window start.
func floorToSegment(t time.Time, segmentMinutes int) time.Time {
	minute := (t.Minute() / segmentMinutes) * segmentMinutes
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}
