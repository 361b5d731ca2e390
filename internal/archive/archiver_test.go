// SPDX-License-Identifier: MIT
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screendiary/screendiary/internal/config"
	"github.com/screendiary/screendiary/internal/store"
)

// fakeEncoder writes a fixed-size file so the archiver can stat it.
type fakeEncoder struct {
	size  int
	fail  bool
	calls int
}

func (f *fakeEncoder) EncodeSegment(_ context.Context, _, outPath string, _ int) error {
	f.calls++
	if f.fail {
		return fmt.Errorf("encode blew up")
	}
	return os.WriteFile(outPath, make([]byte, f.size), 0o600)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	return cfg
}

func testStore(t *testing.T, cfg config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(cfg.Storage.DBPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// seedTick inserts one screenshot with a single live monitor frame and
// returns both ids.
func seedTick(t *testing.T, st *store.Store, cfg config.Config, ts time.Time) (int64, int64) {
	t.Helper()
	ctx := context.Background()

	framePath := filepath.Join(cfg.Storage.ScreenshotsDir(), ts.Format("150405.000000")+".webp")
	require.NoError(t, os.MkdirAll(filepath.Dir(framePath), 0o750))
	require.NoError(t, os.WriteFile(framePath, []byte("webp"), 0o600))

	scID, err := st.InsertScreenshot(ctx, &store.Screenshot{
		Timestamp:   ts,
		Date:        ts.Format(store.DateLayout),
		Width:       1920,
		Height:      1080,
		FileSize:    100,
		StorageType: store.StorageLive,
	})
	require.NoError(t, err)
	mcID, err := st.InsertMonitorCapture(ctx, &store.MonitorCapture{
		ScreenshotID: scID, MonitorName: "DP-1", MonitorIndex: 0, Filepath: framePath,
		Width: 1920, Height: 1080,
	})
	require.NoError(t, err)
	return scID, mcID
}

func TestFloorToSegment(t *testing.T) {
	ts := time.Date(2026, 8, 25, 9, 13, 42, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 25, 9, 10, 0, 0, time.UTC), floorToSegment(ts, 5))
	assert.Equal(t, time.Date(2026, 8, 25, 9, 13, 0, 0, time.UTC), floorToSegment(ts, 1))
	assert.Equal(t, time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC), floorToSegment(ts, 15))
}

func TestArchiveOnceEncodesColdWindow(t *testing.T) {
	cfg := testConfig(t)
	st := testStore(t, cfg)
	enc := &fakeEncoder{size: 2048}
	a := NewArchiver(cfg, st, enc)
	ctx := context.Background()

	// Three frames inside the 09:00 window, one recent frame.
	segStart := time.Date(2026, 8, 25, 9, 0, 0, 0, time.Local)
	var scIDs, mcIDs []int64
	for i := 0; i < 3; i++ {
		sc, mc := seedTick(t, st, cfg, segStart.Add(time.Duration(i*2)*time.Second))
		scIDs = append(scIDs, sc)
		mcIDs = append(mcIDs, mc)
	}
	recentSC, _ := seedTick(t, st, cfg, segStart.Add(30*time.Minute))

	now := segStart.Add(30 * time.Minute) // cutoff 09:20, window end 09:05 < cutoff
	require.NoError(t, a.ArchiveOnce(ctx, now))
	assert.Equal(t, 1, enc.calls)

	segments, err := st.OldestVideoSegments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	seg := segments[0]
	assert.Equal(t, 3, seg.FrameCount)
	assert.EqualValues(t, 2048, seg.FileSize)
	assert.Contains(t, seg.Filepath, "monitor0_0900-0905.mp4")

	// Frames re-pointed with interval-spaced offsets, live files deleted.
	for i, mcID := range mcIDs {
		captures, err := st.MonitorCaptures(ctx, scIDs[i])
		require.NoError(t, err)
		require.Len(t, captures, 1)
		mc := captures[0]
		assert.Equal(t, mcID, mc.ID)
		assert.Empty(t, mc.Filepath)
		assert.Equal(t, seg.Filepath, mc.SegmentPath)
		assert.EqualValues(t, int64(i)*int64(cfg.Capture.Interval)*1000, mc.SegmentOffsetMS)

		sc, err := st.Screenshot(ctx, scIDs[i])
		require.NoError(t, err)
		assert.Equal(t, store.StorageArchived, sc.StorageType)
	}

	recent, err := st.Screenshot(ctx, recentSC)
	require.NoError(t, err)
	assert.Equal(t, store.StorageLive, recent.StorageType)
}

func TestArchiveOnceSkipsOpenWindow(t *testing.T) {
	cfg := testConfig(t)
	st := testStore(t, cfg)
	enc := &fakeEncoder{size: 1024}
	a := NewArchiver(cfg, st, enc)

	segStart := time.Date(2026, 8, 25, 9, 0, 0, 0, time.Local)
	seedTick(t, st, cfg, segStart.Add(time.Second))

	// Cutoff lands exactly on the window end: still not eligible.
	now := segStart.Add(5 * time.Minute).Add(time.Duration(cfg.Storage.ArchiveAfterMinutes) * time.Minute)
	require.NoError(t, a.ArchiveOnce(context.Background(), now))
	assert.Zero(t, enc.calls)

	// One second past the window end makes it cold.
	require.NoError(t, a.ArchiveOnce(context.Background(), now.Add(time.Second)))
	assert.Equal(t, 1, enc.calls)
}

func TestArchiveOnceFlipsScreenshotWithoutPrimaryFrame(t *testing.T) {
	cfg := testConfig(t)
	st := testStore(t, cfg)
	enc := &fakeEncoder{size: 512}
	a := NewArchiver(cfg, st, enc)
	ctx := context.Background()

	segStart := time.Date(2026, 8, 25, 9, 0, 0, 0, time.Local)
	ts := segStart.Add(2 * time.Second)

	framePath := filepath.Join(cfg.Storage.ScreenshotsDir(), "monitor1.webp")
	require.NoError(t, os.MkdirAll(filepath.Dir(framePath), 0o750))
	require.NoError(t, os.WriteFile(framePath, []byte("webp"), 0o600))

	scID, err := st.InsertScreenshot(ctx, &store.Screenshot{
		Timestamp: ts, Date: ts.Format(store.DateLayout),
		Width: 3840, Height: 1080, StorageType: store.StorageLive,
	})
	require.NoError(t, err)
	// Monitor 0 lost its live file; only monitor 1 can be encoded.
	_, err = st.InsertMonitorCapture(ctx, &store.MonitorCapture{
		ScreenshotID: scID, MonitorName: "DP-1", MonitorIndex: 0,
		Width: 1920, Height: 1080,
	})
	require.NoError(t, err)
	_, err = st.InsertMonitorCapture(ctx, &store.MonitorCapture{
		ScreenshotID: scID, MonitorName: "HDMI-1", MonitorIndex: 1, Filepath: framePath,
		X: 1920, Width: 1920, Height: 1080,
	})
	require.NoError(t, err)

	require.NoError(t, a.ArchiveOnce(ctx, segStart.Add(time.Hour)))
	require.Equal(t, 1, enc.calls)

	// The screenshot still reaches the archived tier and stops being
	// rescanned by later sweeps.
	sc, err := st.Screenshot(ctx, scID)
	require.NoError(t, err)
	assert.Equal(t, store.StorageArchived, sc.StorageType)
	assert.Contains(t, sc.SegmentPath, "monitor1_0900-0905.mp4")

	shots, err := st.LiveScreenshotsBefore(ctx, segStart.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, shots)
}

func TestArchiveOnceEncodeFailureKeepsLiveFrames(t *testing.T) {
	cfg := testConfig(t)
	st := testStore(t, cfg)
	a := NewArchiver(cfg, st, &fakeEncoder{fail: true})

	segStart := time.Date(2026, 8, 25, 9, 0, 0, 0, time.Local)
	scID, _ := seedTick(t, st, cfg, segStart)

	require.NoError(t, a.ArchiveOnce(context.Background(), segStart.Add(time.Hour)))

	segments, err := st.OldestVideoSegments(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, segments)

	sc, err := st.Screenshot(context.Background(), scID)
	require.NoError(t, err)
	assert.Equal(t, store.StorageLive, sc.StorageType)
	captures, err := st.MonitorCaptures(context.Background(), scID)
	require.NoError(t, err)
	assert.NotEmpty(t, captures[0].Filepath)
}

func TestPruneDeletesOldestUntilUnderBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.MaxStorageGB = 1
	st := testStore(t, cfg)
	a := NewArchiver(cfg, st, &fakeEncoder{})
	ctx := context.Background()

	gib := int64(1) << 30
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	var paths []string
	for i := 0; i < 3; i++ {
		p := filepath.Join(cfg.Storage.ArchiveDir(), fmt.Sprintf("seg%d.mp4", i))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("mp4"), 0o600))
		paths = append(paths, p)
		_, err := st.InsertVideoSegment(ctx, &store.VideoSegment{
			Date: "2026-08-20", MonitorIndex: 0, Filepath: p,
			StartTime:  base.Add(time.Duration(i) * 5 * time.Minute),
			EndTime:    base.Add(time.Duration(i+1) * 5 * time.Minute),
			FrameCount: 10, FileSize: gib / 2,
		})
		require.NoError(t, err)
	}

	// 1.5 GiB stored against a 1 GiB budget: exactly one segment must go.
	require.NoError(t, a.Prune(ctx))

	segments, err := st.OldestVideoSegments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.NoFileExists(t, paths[0])
	assert.FileExists(t, paths[1])

	total, err := st.TotalStorageBytes(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, total, cfg.Storage.MaxStorageBytes())
}

func TestPruneNoopUnderBudget(t *testing.T) {
	cfg := testConfig(t)
	st := testStore(t, cfg)
	a := NewArchiver(cfg, st, &fakeEncoder{})
	require.NoError(t, a.Prune(context.Background()))
}
