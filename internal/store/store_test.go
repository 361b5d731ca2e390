// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "diary.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func insertShot(t *testing.T, st *Store, ts time.Time) int64 {
	t.Helper()
	id, err := st.InsertScreenshot(context.Background(), &Screenshot{
		Timestamp:   ts,
		Date:        ts.Format(DateLayout),
		Width:       1920,
		Height:      1080,
		FileSize:    1000,
		StorageType: StorageLive,
	})
	require.NoError(t, err)
	return id
}

func TestOpenAppliesSchema(t *testing.T) {
	st := openTestStore(t)

	v, err := st.Meta("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "4", v)
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2026, 8, 25, 9, 41, 7, 123456000, time.UTC)
	formatted := FormatTimestamp(ts)
	assert.Equal(t, "2026-08-25T09:41:07.123456", formatted)

	parsed, err := ParseTimestamp(formatted)
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
}

func TestTimestampLexicographicOrder(t *testing.T) {
	// Fixed-width fractions keep string order equal to time order, which the
	// archiver's timestamp range queries rely on.
	a := FormatTimestamp(time.Date(2026, 8, 25, 9, 0, 0, 5000, time.UTC))
	b := FormatTimestamp(time.Date(2026, 8, 25, 9, 0, 0, 50000000, time.UTC))
	assert.Less(t, a, b)
}

func TestScreenshotLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	id := insertShot(t, st, now)
	mcID, err := st.InsertMonitorCapture(ctx, &MonitorCapture{
		ScreenshotID: id, MonitorName: "DP-1", MonitorIndex: 0,
		Filepath: "/data/screenshots/monitor0_100000_000000.webp",
		Width:    1920, Height: 1080,
	})
	require.NoError(t, err)

	sc, err := st.Screenshot(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, StorageLive, sc.StorageType)
	assert.True(t, now.Equal(sc.Timestamp))

	// Archive transition clears the live path and sets the segment pointer.
	require.NoError(t, st.MarkMonitorCaptureArchived(ctx, mcID, "/data/archive/seg.mp4", 4000))
	require.NoError(t, st.MarkScreenshotArchived(ctx, id, "/data/archive/seg.mp4", 4000))

	captures, err := st.MonitorCaptures(ctx, id)
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Empty(t, captures[0].Filepath)
	assert.Equal(t, "/data/archive/seg.mp4", captures[0].SegmentPath)
	assert.EqualValues(t, 4000, captures[0].SegmentOffsetMS)
	assert.True(t, captures[0].Archived())

	sc, err = st.Screenshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StorageArchived, sc.StorageType)
}

func TestLiveScreenshotsBeforeIsStrict(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	before := insertShot(t, st, cutoff.Add(-time.Second))
	insertShot(t, st, cutoff) // equal, excluded
	insertShot(t, st, cutoff.Add(time.Second))

	shots, err := st.LiveScreenshotsBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	assert.Equal(t, before, shots[0].ID)
}

func TestFTSSearch(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	id := insertShot(t, st, now)
	mcID, err := st.InsertMonitorCapture(ctx, &MonitorCapture{ScreenshotID: id, MonitorName: "DP-1"})
	require.NoError(t, err)

	_, err = st.InsertOCRResult(ctx, &OCRResult{
		ScreenshotID:     id,
		MonitorCaptureID: mcID,
		Text:             "remember to rotate the api key before friday",
		Language:         "deu+eng",
		Confidence:       92.5,
	})
	require.NoError(t, err)

	rows, err := st.SearchFTS(ctx, "api key", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ScreenshotID)
	assert.Contains(t, rows[0].Snippet, "<mark>api</mark>")
	assert.Contains(t, rows[0].Snippet, "<mark>key</mark>")

	rows, err = st.SearchFTS(ctx, "nonexistent", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFTSDeleteTrigger(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id := insertShot(t, st, time.Now())
	mcID, err := st.InsertMonitorCapture(ctx, &MonitorCapture{ScreenshotID: id, MonitorName: "DP-1"})
	require.NoError(t, err)
	resultID, err := st.InsertOCRResult(ctx, &OCRResult{
		ScreenshotID: id, MonitorCaptureID: mcID, Text: "ephemeral banana note",
	})
	require.NoError(t, err)

	_, err = st.db.ExecContext(ctx, `DELETE FROM ocr_results WHERE id = ?`, resultID)
	require.NoError(t, err)

	rows, err := st.SearchFTS(ctx, "banana", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmbeddingsDedup(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	id := insertShot(t, st, time.Now())

	has, err := st.HasEmbedding(ctx, id, "abcdef0123456789")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = st.InsertEmbedding(ctx, &Embedding{
		ScreenshotID: id, Vector: []byte{1, 2, 3, 4}, Model: "test", Dimensions: 1,
		TextHash: "abcdef0123456789",
	})
	require.NoError(t, err)

	has, err = st.HasEmbedding(ctx, id, "abcdef0123456789")
	require.NoError(t, err)
	assert.True(t, has)

	all, err := st.AllEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, id, all[0].ScreenshotID)
}

func TestVideoSegments(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := st.InsertVideoSegment(ctx, &VideoSegment{
			Date:         "2026-08-25",
			MonitorIndex: 0,
			Filepath:     fmt.Sprintf("/archive/seg%d.mp4", i),
			StartTime:    base.Add(time.Duration(i) * 5 * time.Minute),
			EndTime:      base.Add(time.Duration(i+1) * 5 * time.Minute),
			FrameCount:   20,
			FileSize:     1 << 20,
		})
		require.NoError(t, err)
	}

	oldest, err := st.OldestVideoSegments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, oldest, 2)
	assert.True(t, oldest[0].StartTime.Before(oldest[1].StartTime))

	require.NoError(t, st.DeleteVideoSegment(ctx, oldest[0].ID))
	remaining, err := st.OldestVideoSegments(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestTotalStorageBytes(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	insertShot(t, st, time.Now()) // live, 1000 bytes
	_, err := st.InsertVideoSegment(ctx, &VideoSegment{
		Date: "2026-08-25", Filepath: "/archive/a.mp4",
		StartTime: time.Now(), EndTime: time.Now().Add(5 * time.Minute),
		FrameCount: 20, FileSize: 5000,
	})
	require.NoError(t, err)

	total, err := st.TotalStorageBytes(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6000, total)
}

func TestWindowEventsAndTopQueries(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		id := insertShot(t, st, base.Add(time.Duration(i)*time.Second))
		app := "firefox"
		domain := "github.com"
		if i == 2 {
			app, domain = "konsole", ""
		}
		_, err := st.InsertWindowEvent(ctx, &WindowEvent{
			ScreenshotID:  id,
			Timestamp:     base.Add(time.Duration(i) * time.Second),
			AppClass:      app,
			WindowTitle:   "title",
			BrowserDomain: domain,
		})
		require.NoError(t, err)
	}

	events, err := st.WindowEventsForDay(ctx, "2026-08-25")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[0].Timestamp.Before(events[2].Timestamp))

	count, err := st.WindowEventCount(ctx, "2026-08-25")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	apps, err := st.TopApps(ctx, "2026-08-25", 10)
	require.NoError(t, err)
	require.NotEmpty(t, apps)
	assert.Equal(t, "firefox", apps[0].AppClass)
	assert.EqualValues(t, 2, apps[0].Count)

	domains, err := st.TopBrowserDomains(ctx, "2026-08-25", 10)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "github.com", domains[0].BrowserDomain)
}

func TestBrowseQueries(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	day1 := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	insertShot(t, st, day1)
	var day2IDs []int64
	for i := 0; i < 3; i++ {
		day2IDs = append(day2IDs, insertShot(t, st, day2.Add(time.Duration(i)*time.Minute)))
	}

	dates, err := st.Dates(ctx)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "2026-08-25", dates[0].Date)
	assert.EqualValues(t, 3, dates[0].Count)
	assert.Equal(t, "2026-08-24", dates[1].Date)

	count, err := st.ScreenshotCount(ctx, "2026-08-25")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
	count, err = st.ScreenshotCount(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	entries, err := st.Timeline(ctx, "2026-08-25")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, day2IDs[0], entries[0].ID)
	assert.True(t, entries[0].Timestamp.Before(entries[2].Timestamp))

	// Paging runs newest first.
	page, err := st.Screenshots(ctx, "2026-08-25", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, day2IDs[2], page[0].ID)
	page, err = st.Screenshots(ctx, "2026-08-25", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, day2IDs[0], page[0].ID)
}

func TestTopWindowTitles(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	titles := []string{"vim notes.md", "vim notes.md", "zoom call"}
	for i, title := range titles {
		id := insertShot(t, st, base.Add(time.Duration(i)*time.Second))
		_, err := st.InsertWindowEvent(ctx, &WindowEvent{
			ScreenshotID: id,
			Timestamp:    base.Add(time.Duration(i) * time.Second),
			AppClass:     "konsole",
			WindowTitle:  title,
		})
		require.NoError(t, err)
	}

	top, err := st.TopWindowTitles(ctx, "2026-08-25", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "vim notes.md", top[0].WindowTitle)
	assert.EqualValues(t, 2, top[0].Count)
}

func TestOCRTextForMonitor(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id := insertShot(t, st, time.Now())
	mc1, err := st.InsertMonitorCapture(ctx, &MonitorCapture{ScreenshotID: id, MonitorName: "DP-1"})
	require.NoError(t, err)
	mc2, err := st.InsertMonitorCapture(ctx, &MonitorCapture{ScreenshotID: id, MonitorName: "HDMI-1", MonitorIndex: 1})
	require.NoError(t, err)

	_, err = st.InsertOCRResult(ctx, &OCRResult{ScreenshotID: id, MonitorCaptureID: mc1, Text: "left screen"})
	require.NoError(t, err)
	_, err = st.InsertOCRResult(ctx, &OCRResult{ScreenshotID: id, MonitorCaptureID: mc2, Text: "right screen"})
	require.NoError(t, err)

	text, err := st.OCRTextForMonitor(ctx, mc2)
	require.NoError(t, err)
	assert.Equal(t, "right screen", text)

	text, err = st.OCRText(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, text, "left screen")
	assert.Contains(t, text, "right screen")
}

func TestDaySummaryAndMOTD(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	got, err := st.DaySummary(ctx, "2026-08-25")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, st.SaveDaySummary(ctx, &DaySummary{
		Date:        "2026-08-25",
		SummaryText: `{"summary":"Viel Code geschrieben."}`,
		Model:       "gpt-4",
		EventCount:  1234,
	}))
	// Overwrite is allowed.
	require.NoError(t, st.SaveDaySummary(ctx, &DaySummary{
		Date:        "2026-08-25",
		SummaryText: `{"summary":"Aktualisiert."}`,
		Model:       "gpt-4",
		EventCount:  1300,
	}))

	got, err = st.DaySummary(ctx, "2026-08-25")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `{"summary":"Aktualisiert."}`, got.SummaryText)
	assert.Equal(t, 1300, got.EventCount)

	motd, err := st.MOTD(ctx, "2026-08-25")
	require.NoError(t, err)
	assert.Empty(t, motd)

	require.NoError(t, st.SaveMOTD(ctx, "2026-08-25", "Guten Morgen! Weiter so."))
	motd, err = st.MOTD(ctx, "2026-08-25")
	require.NoError(t, err)
	assert.Equal(t, "Guten Morgen! Weiter so.", motd)
}

func TestStats(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id := insertShot(t, st, time.Now())
	require.NoError(t, st.MarkScreenshotArchived(ctx, id, "/archive/a.mp4", 0))
	insertShot(t, st, time.Now().Add(time.Second))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalScreenshots)
	assert.EqualValues(t, 1, stats.LiveScreenshots)
	assert.EqualValues(t, 1, stats.ArchivedScreenshots)
}
