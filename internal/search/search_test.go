// SPDX-License-Identifier: MIT
package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screendiary/screendiary/internal/pipeline"
	"github.com/screendiary/screendiary/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedOCR(t *testing.T, st *store.Store, ts time.Time, text string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := st.InsertScreenshot(ctx, &store.Screenshot{
		Timestamp: ts, Date: ts.Format(store.DateLayout),
		Width: 1920, Height: 1080, StorageType: store.StorageLive,
	})
	require.NoError(t, err)
	mcID, err := st.InsertMonitorCapture(ctx, &store.MonitorCapture{ScreenshotID: id, MonitorName: "DP-1"})
	require.NoError(t, err)
	_, err = st.InsertOCRResult(ctx, &store.OCRResult{
		ScreenshotID: id, MonitorCaptureID: mcID, Text: text,
	})
	require.NoError(t, err)
	return id
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Zero norm and mismatched lengths degrade to 0 instead of NaN.
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, CosineSimilarity([]float32{1, 1}, []float32{0, 0}))
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity(nil, nil))
}

func TestTextSearchRanksAndDeduplicates(t *testing.T) {
	st := testStore(t)
	e := NewEngine(st, nil)
	ctx := context.Background()
	now := time.Now()

	// Two monitors of the same screenshot both match; one other screenshot
	// matches weakly.
	strong := seedOCR(t, st, now, "kubernetes cluster upgrade plan for the kubernetes nodes")
	mcID, err := st.InsertMonitorCapture(ctx, &store.MonitorCapture{ScreenshotID: strong, MonitorName: "HDMI-1", MonitorIndex: 1})
	require.NoError(t, err)
	_, err = st.InsertOCRResult(ctx, &store.OCRResult{
		ScreenshotID: strong, MonitorCaptureID: mcID, Text: "kubernetes dashboard",
	})
	require.NoError(t, err)

	weak := seedOCR(t, st, now.Add(time.Second),
		"meeting notes mention kubernetes once among many other unrelated words today")

	results, err := e.Text(ctx, "kubernetes", 50)
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := []int64{results[0].Screenshot.ID, results[1].Screenshot.ID}
	assert.ElementsMatch(t, []int64{strong, weak}, ids)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	require.NotEmpty(t, results[0].Highlights)
	assert.Contains(t, results[0].Highlights[0], "<mark>kubernetes</mark>")
}

func TestTextSearchEmptyQuery(t *testing.T) {
	e := NewEngine(testStore(t), nil)
	results, err := e.Text(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Nil(t, results)
}

type fakeEmbedder struct {
	vec []float32
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return f.vec, nil
}

func TestSemanticSearchRanksByBestChunk(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now()

	near := seedOCR(t, st, now, "text about databases")
	far := seedOCR(t, st, now.Add(time.Second), "text about gardening")

	// near has two chunks; its best one wins.
	for _, vec := range [][]float32{{1, 0, 0}, {0.9, 0.1, 0}} {
		_, err := st.InsertEmbedding(ctx, &store.Embedding{
			ScreenshotID: near, Vector: pipeline.VectorToBlob(vec), Model: "m", Dimensions: 3,
		})
		require.NoError(t, err)
	}
	_, err := st.InsertEmbedding(ctx, &store.Embedding{
		ScreenshotID: far, Vector: pipeline.VectorToBlob([]float32{0, 1, 0}), Model: "m", Dimensions: 3,
	})
	require.NoError(t, err)

	e := NewEngine(st, &fakeEmbedder{vec: []float32{1, 0, 0}})
	results, err := e.Semantic(ctx, "databases", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, near, results[0].Screenshot.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "text about databases", results[0].OCRText)
	assert.Equal(t, far, results[1].Screenshot.ID)

	// Limit is honored.
	results, err = e.Semantic(ctx, "databases", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, near, results[0].Screenshot.ID)
}

func TestSemanticSearchWithoutEmbedder(t *testing.T) {
	e := NewEngine(testStore(t), nil)
	results, err := e.Semantic(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Nil(t, results)
}
