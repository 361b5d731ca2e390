// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/screendiary/screendiary/internal/config"
	"github.com/screendiary/screendiary/internal/imaging"
	xlog "github.com/screendiary/screendiary/internal/log"
	"github.com/screendiary/screendiary/internal/metrics"
	"github.com/screendiary/screendiary/internal/pipeline"
	"github.com/screendiary/screendiary/internal/store"
)

// monitorCheckInterval is the number of ticks between topology re-detections.
const monitorCheckInterval = 30

const thumbQuality = 75

// Loop is the capture daemon: tick -> capture -> crop -> dedup -> persist ->
// enqueue. Per-tick failures are logged and swallowed; the loop never stops
// on its own.
type Loop struct {
	cfg     config.Config
	st      *store.Store
	shooter Screenshotter
	topo    TopologyDetector
	window  WindowProber
	domains DomainResolver
	encoder imaging.FrameEncoder
	sink    pipeline.Enqueuer

	paused   atomic.Bool
	monitors []store.Monitor
	prev     map[int]image.Image

	cyclesSinceCheck int
	captureCount     int64
	skipCount        int64

	log zerolog.Logger
}

// NewLoop wires the capture loop with its adapters.
func NewLoop(cfg config.Config, st *store.Store, shooter Screenshotter, topo TopologyDetector,
	window WindowProber, domains DomainResolver, encoder imaging.FrameEncoder, sink pipeline.Enqueuer) *Loop {
	return &Loop{
		cfg:     cfg,
		st:      st,
		shooter: shooter,
		topo:    topo,
		window:  window,
		domains: domains,
		encoder: encoder,
		sink:    sink,
		prev:    make(map[int]image.Image),
		log:     xlog.WithComponent("capture"),
	}
}

// Pause suspends capturing; the loop idles until Resume.
func (l *Loop) Pause() {
	l.paused.Store(true)
	l.log.Info().Str("event", "capture.paused").Msg("capture paused")
}

// Resume clears the paused flag.
func (l *Loop) Resume() {
	l.paused.Store(false)
	l.log.Info().Str("event", "capture.resumed").Msg("capture resumed")
}

// Counts returns (captured, skipped) tick totals.
func (l *Loop) Counts() (int64, int64) {
	return atomic.LoadInt64(&l.captureCount), atomic.LoadInt64(&l.skipCount)
}

// Run drives the loop until ctx is cancelled. The current tick always
// completes before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	monitors, err := l.topo.Monitors(ctx)
	if err != nil {
		return fmt.Errorf("initial monitor detection: %w", err)
	}
	if len(monitors) == 0 {
		return fmt.Errorf("no monitors detected")
	}
	l.monitors = monitors

	interval := time.Duration(l.cfg.Capture.Interval) * time.Second
	l.log.Info().
		Str("event", "capture.started").
		Dur("interval", interval).
		Int("monitors", len(monitors)).
		Msg("capture loop started")

	for {
		if ctx.Err() != nil {
			break
		}
		if l.paused.Load() {
			if !sleepCtx(ctx, time.Second) {
				break
			}
			continue
		}

		start := time.Now()
		l.refreshMonitors(ctx)
		l.tick(ctx)

		elapsed := time.Since(start)
		if !sleepCtx(ctx, interval-elapsed) {
			break
		}
	}

	captured, skipped := l.Counts()
	l.log.Info().
		Str("event", "capture.stopped").
		Int64("captured", captured).
		Int64("skipped", skipped).
		Msg("capture loop stopped")
	return nil
}

// refreshMonitors re-detects the topology every monitorCheckInterval ticks.
// On any change the cached topology is replaced and all previous-image slots
// are cleared, so the next tick is always accepted.
func (l *Loop) refreshMonitors(ctx context.Context) {
	l.cyclesSinceCheck++
	if l.cyclesSinceCheck < monitorCheckInterval {
		return
	}
	l.cyclesSinceCheck = 0

	next, err := l.topo.Monitors(ctx)
	if err != nil {
		l.log.Warn().Err(err).Str("event", "capture.topology_refresh_failed").Msg("monitor refresh failed")
		return
	}
	if len(next) == 0 {
		l.log.Warn().Str("event", "capture.topology_empty").Msg("monitor refresh returned nothing")
		return
	}
	if !TopologyChanged(l.monitors, next) {
		return
	}

	l.log.Info().
		Str("event", "capture.topology_changed").
		Int("old", len(l.monitors)).
		Int("new", len(next)).
		Msg("monitor topology changed")
	l.monitors = next
	l.prev = make(map[int]image.Image)
	metrics.TopologyChangesTotal.Inc()
}

// tick runs one capture cycle. All failures are logged and swallowed.
func (l *Loop) tick(ctx context.Context) {
	monitors := l.monitors

	// Screenshot and window probe run concurrently.
	type shotResult struct {
		img image.Image
		err error
	}
	shotCh := make(chan shotResult, 1)
	winCh := make(chan *WindowInfo, 1)

	go func() {
		img, err := l.shooter.Capture(ctx)
		shotCh <- shotResult{img, err}
	}()
	go func() {
		info, err := l.window.ActiveWindow(ctx)
		if err != nil {
			l.log.Debug().Err(err).Str("event", "capture.window_probe_failed").Msg("window probe failed")
			metrics.TickFailuresTotal.WithLabelValues("window").Inc()
			info = nil
		}
		winCh <- info
	}()

	shot := <-shotCh
	winInfo := <-winCh

	if shot.err != nil {
		l.log.Error().Err(shot.err).Str("event", "capture.screenshot_failed").Msg("screenshot failed")
		metrics.TickFailuresTotal.WithLabelValues("screenshot").Inc()
		return
	}
	if shot.img == nil {
		return // deliberately skipped
	}

	crops := make([]*image.RGBA, len(monitors))
	for i, mon := range monitors {
		crops[i] = imaging.Crop(shot.img, mon.X, mon.Y, mon.Width, mon.Height)
	}

	changed, minSim := l.dedupDecision(crops)
	if !changed {
		atomic.AddInt64(&l.skipCount, 1)
		metrics.SkipsTotal.Inc()
		l.log.Debug().Str("event", "capture.tick_skipped").Float64("similarity", minSim).Msg("tick deduplicated")
		return
	}

	if err := l.persist(ctx, shot.img, crops, monitors, winInfo, minSim); err != nil {
		l.log.Error().Err(err).Str("event", "capture.persist_failed").Msg("tick persist failed")
		metrics.TickFailuresTotal.WithLabelValues("persist").Inc()
		return
	}
	atomic.AddInt64(&l.captureCount, 1)
	metrics.CapturesTotal.Inc()
}

// dedupDecision compares every monitor's crop with its previous image. The
// tick is "changed" as soon as any monitor falls below the threshold or has
// no previous image; only when all monitors are above it the tick is skipped.
func (l *Loop) dedupDecision(crops []*image.RGBA) (changed bool, minSim float64) {
	minSim = 1.0
	for i, img := range crops {
		prev, ok := l.prev[i]
		if !ok {
			return true, 0.0
		}
		dup, sim := imaging.IsDuplicate(img, prev, l.cfg.Capture.SimilarityThreshold)
		if sim < minSim {
			minSim = sim
		}
		if !dup {
			return true, minSim
		}
	}
	return false, minSim
}

func (l *Loop) persist(ctx context.Context, full image.Image, crops []*image.RGBA,
	monitors []store.Monitor, winInfo *WindowInfo, similarity float64) error {

	now := time.Now()
	dateStr := now.Format(store.DateLayout)
	datePath := now.Format("2006/01/02")
	timeKey := fmt.Sprintf("%s_%06d", now.Format("150405"), now.Nanosecond()/1000)
	ext := "." + l.cfg.Storage.Format

	dir := filepath.Join(l.cfg.Storage.ScreenshotsDir(), datePath)

	// Thumbnail from the first monitor.
	thumbPath := filepath.Join(dir, "thumb_"+timeKey+ext)
	thumb := imaging.ScaleToWidth(crops[0], l.cfg.Storage.ThumbnailWidth)
	if _, err := l.encoder.Encode(ctx, thumb, thumbPath, thumbQuality); err != nil {
		l.log.Warn().Err(err).Str("event", "capture.thumbnail_failed").Msg("thumbnail write failed")
		thumbPath = ""
	}

	b := full.Bounds()
	screenshotID, err := l.st.InsertScreenshot(ctx, &store.Screenshot{
		Timestamp:   now,
		Date:        dateStr,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Similarity:  similarity,
		StorageType: store.StorageLive,
		ThumbPath:   thumbPath,
	})
	if err != nil {
		return err
	}

	if winInfo != nil {
		domain := ""
		if l.domains.IsBrowser(winInfo.ResourceClass) {
			domain = l.domains.Domain(winInfo.ResourceClass)
		}
		if _, err := l.st.InsertWindowEvent(ctx, &store.WindowEvent{
			ScreenshotID:  screenshotID,
			Timestamp:     now,
			AppClass:      winInfo.ResourceClass,
			AppName:       winInfo.ResourceName,
			WindowTitle:   winInfo.Caption,
			DesktopFile:   winInfo.DesktopFile,
			PID:           winInfo.PID,
			BrowserDomain: domain,
		}); err != nil {
			l.log.Warn().Err(err).Str("event", "capture.window_event_failed").Msg("window event insert failed")
		}
	}

	var totalSize int64
	frames := make([]pipeline.Frame, 0, len(crops))
	for i, img := range crops {
		mon := monitors[i]
		framePath := filepath.Join(dir, fmt.Sprintf("monitor%d_%s%s", i, timeKey, ext))
		size, err := l.encoder.Encode(ctx, img, framePath, l.cfg.Storage.Quality)
		if err != nil {
			return fmt.Errorf("write monitor %d frame: %w", i, err)
		}
		totalSize += size

		mcID, err := l.st.InsertMonitorCapture(ctx, &store.MonitorCapture{
			ScreenshotID: screenshotID,
			MonitorName:  mon.Name,
			MonitorIndex: i,
			Filepath:     framePath,
			X:            mon.X,
			Y:            mon.Y,
			Width:        mon.Width,
			Height:       mon.Height,
		})
		if err != nil {
			return err
		}
		frames = append(frames, pipeline.Frame{MonitorCaptureID: mcID, Image: img})
		l.prev[i] = img
	}

	if err := l.st.UpdateScreenshotFileSize(ctx, screenshotID, totalSize); err != nil {
		return err
	}

	// Images are handed over in memory; workers never re-read them from disk.
	if err := l.sink.Enqueue(ctx, pipeline.Task{ScreenshotID: screenshotID, Frames: frames}); err != nil {
		metrics.TickFailuresTotal.WithLabelValues("enqueue").Inc()
		l.log.Warn().Err(err).Str("event", "capture.enqueue_failed").Int64("screenshot_id", screenshotID).Msg("pipeline enqueue failed")
	}

	l.log.Debug().
		Str("event", "capture.tick_persisted").
		Int64("screenshot_id", screenshotID).
		Int("monitors", len(crops)).
		Int64("bytes", totalSize).
		Msg("tick persisted")
	return nil
}

// sleepCtx sleeps for d (no-op when d <= 0) and reports false when ctx was
// cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		// Still yield a cancellation check between back-to-back ticks.
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
