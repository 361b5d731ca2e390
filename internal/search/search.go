// SPDX-License-Identifier: MIT

// Package search serves lexical (FTS5/BM25) and semantic (embedding cosine)
// search over the OCR corpus.
package search

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	xlog "github.com/screendiary/screendiary/internal/log"
	"github.com/screendiary/screendiary/internal/pipeline"
	"github.com/screendiary/screendiary/internal/store"
)

// Result is one scored screenshot hit. For lexical hits the score is the
// negated BM25 rank; for semantic hits it is the cosine similarity. Higher
// is better in both modes.
type Result struct {
	Screenshot *store.Screenshot
	OCRText    string
	Score      float64
	Highlights []string
}

// QueryEmbedder is the slice of the embedding client the engine needs.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Engine answers search queries against the store.
type Engine struct {
	st       *store.Store
	embedder QueryEmbedder // nil disables semantic search
	log      zerolog.Logger
}

// NewEngine builds the engine. embedder may be nil.
func NewEngine(st *store.Store, embedder QueryEmbedder) *Engine {
	return &Engine{st: st, embedder: embedder, log: xlog.WithComponent("search")}
}

// Text runs a full-text query. Hits are deduplicated per screenshot keeping
// the best rank, then ordered by descending score.
func (e *Engine) Text(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	rows, err := e.st.SearchFTS(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	best := make(map[int64]store.FTSRow)
	for _, r := range rows {
		if prev, ok := best[r.ScreenshotID]; !ok || r.Rank < prev.Rank {
			best[r.ScreenshotID] = r
		}
	}

	results := make([]Result, 0, len(best))
	for sid, r := range best {
		sc, err := e.st.Screenshot(ctx, sid)
		if err != nil {
			return nil, err
		}
		if sc == nil {
			continue
		}
		res := Result{Screenshot: sc, OCRText: r.Text, Score: -r.Rank}
		if r.Snippet != "" {
			res.Highlights = []string{r.Snippet}
		}
		results = append(results, res)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// Semantic embeds the query and ranks screenshots by their best chunk's
// cosine similarity. Returns nil when no embedder is configured.
func (e *Engine) Semantic(ctx context.Context, query string, limit int) ([]Result, error) {
	if e.embedder == nil {
		return nil, nil
	}
	queryVec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	stored, err := e.st.AllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}

	scores := make(map[int64]float64)
	for _, sv := range stored {
		sim := CosineSimilarity(queryVec, pipeline.BlobToVector(sv.Vector))
		if prev, ok := scores[sv.ScreenshotID]; !ok || sim > prev {
			scores[sv.ScreenshotID] = sim
		}
	}

	type scored struct {
		id    int64
		score float64
	}
	ranked := make([]scored, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, scored{id, score})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		sc, err := e.st.Screenshot(ctx, r.id)
		if err != nil {
			return nil, err
		}
		if sc == nil {
			continue
		}
		text, err := e.st.OCRText(ctx, r.id)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Screenshot: sc, OCRText: text, Score: r.score})
	}
	return results, nil
}

// CosineSimilarity returns the cosine of two vectors, 0 when either has
// zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
