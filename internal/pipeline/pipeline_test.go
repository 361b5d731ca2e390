// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screendiary/screendiary/internal/config"
	"github.com/screendiary/screendiary/internal/store"
)

type fakeEngine struct {
	result *Recognition
	err    error
	calls  int
}

func (f *fakeEngine) Recognize(_ context.Context, _ image.Image) (*Recognition, error) {
	f.calls++
	return f.result, f.err
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedCapture(t *testing.T, st *store.Store) (screenshotID, captureID int64) {
	t.Helper()
	ctx := context.Background()
	screenshotID, err := st.InsertScreenshot(ctx, &store.Screenshot{
		Timestamp:   time.Now(),
		Date:        time.Now().Format(store.DateLayout),
		Width:       1920,
		Height:      1080,
		StorageType: store.StorageLive,
	})
	require.NoError(t, err)
	captureID, err = st.InsertMonitorCapture(ctx, &store.MonitorCapture{
		ScreenshotID: screenshotID,
		MonitorName:  "DP-1",
		Filepath:     "/tmp/frame.webp",
		Width:        1920,
		Height:       1080,
	})
	require.NoError(t, err)
	return screenshotID, captureID
}

func TestProcessPersistsOCR(t *testing.T) {
	st := testStore(t)
	screenshotID, captureID := seedCapture(t, st)

	engine := &fakeEngine{result: &Recognition{
		Text:       "terminal session with long output",
		Confidence: 91.0,
		Words: []RecognizedWord{
			{Text: "terminal", Left: 10, Top: 10, Width: 100, Height: 20, Confidence: 95},
			{Text: "session", Left: 120, Top: 10, Width: 90, Height: 20, Confidence: 87},
		},
	}}

	cfg := config.Default()
	p := New(cfg, st, engine, nil)
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	err := p.process(context.Background(), Task{
		ScreenshotID: screenshotID,
		Frames:       []Frame{{MonitorCaptureID: captureID, Image: img}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.calls)

	text, err := st.OCRText(context.Background(), screenshotID)
	require.NoError(t, err)
	assert.Equal(t, "terminal session with long output", text)

	words, err := st.OCRWordsForScreenshot(context.Background(), screenshotID)
	require.NoError(t, err)
	require.Len(t, words[captureID], 2)
	assert.Equal(t, "terminal", words[captureID][0].Word)
}

func TestProcessSkipsShortText(t *testing.T) {
	st := testStore(t)
	screenshotID, captureID := seedCapture(t, st)

	engine := &fakeEngine{result: &Recognition{Text: "ok", Confidence: 99}}
	p := New(config.Default(), st, engine, nil)

	err := p.process(context.Background(), Task{
		ScreenshotID: screenshotID,
		Frames:       []Frame{{MonitorCaptureID: captureID, Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}},
	})
	require.NoError(t, err)

	text, err := st.OCRText(context.Background(), screenshotID)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestProcessSurvivesEngineError(t *testing.T) {
	st := testStore(t)
	screenshotID, captureID := seedCapture(t, st)

	engine := &fakeEngine{err: errors.New("tesseract crashed")}
	p := New(config.Default(), st, engine, nil)

	err := p.process(context.Background(), Task{
		ScreenshotID: screenshotID,
		Frames:       []Frame{{MonitorCaptureID: captureID, Image: image.NewRGBA(image.Rect(0, 0, 4, 4))}},
	})
	assert.NoError(t, err)
}

func TestEnqueueHonorsCancellation(t *testing.T) {
	p := New(config.Default(), testStore(t), &fakeEngine{}, nil)
	for i := 0; i < queueCapacity; i++ {
		require.NoError(t, p.Enqueue(context.Background(), Task{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Enqueue(ctx, Task{})
	assert.ErrorIs(t, err, context.Canceled)
}
