// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	xlog "github.com/screendiary/screendiary/internal/log"
)

// ChunkOverlap is the number of words shared between consecutive chunks so
// sentences straddling a boundary stay searchable.
const ChunkOverlap = 50

const embedTimeout = 30 * time.Second

// Embedder turns text chunks into vectors via an OpenAI-compatible endpoint.
// After a request the endpoint rejects as malformed (unknown model, bad
// input shape) the embedder disables itself for the rest of the process so a
// misconfigured endpoint is not hammered once per screenshot.
type Embedder struct {
	client   *openai.Client
	model    string
	disabled atomic.Bool
	log      zerolog.Logger
}

// NewEmbedder builds a client against an OpenAI-compatible API base.
func NewEmbedder(apiBase, apiKey, model string) *Embedder {
	cfg := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		cfg.BaseURL = apiBase
	}
	return &Embedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    xlog.WithComponent("embedder"),
	}
}

// Disabled reports whether the embedder shut itself off.
func (e *Embedder) Disabled() bool { return e.disabled.Load() }

// EmbedBatch embeds all chunks in one request. The returned slice is
// parallel to chunks; nil means the whole batch failed softly (embedder
// disabled).
func (e *Embedder) EmbedBatch(ctx context.Context, chunks []string) ([][]float32, error) {
	if e.disabled.Load() || len(chunks) == 0 {
		return nil, nil
	}

	cctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	var resp openai.EmbeddingResponse
	err := retry.Do(
		func() error {
			var rerr error
			resp, rerr = e.client.CreateEmbeddings(cctx, openai.EmbeddingRequest{
				Input: chunks,
				Model: openai.EmbeddingModel(e.model),
			})
			return rerr
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(cctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !isRequestRejected(err) }),
	)
	if err != nil {
		if isRequestRejected(err) {
			e.disabled.Store(true)
			e.log.Warn().Err(err).
				Str("event", "embedder.disabled").
				Str("model", e.model).
				Msg("endpoint rejected request, embeddings disabled for this run")
			return nil, nil
		}
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	out := make([][]float32, len(chunks))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// EmbedQuery embeds a single search query.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, errors.New("no embedding returned")
	}
	return vectors[0], nil
}

// isRequestRejected classifies errors that retrying cannot fix.
func isRequestRejected(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 400, 401, 403, 404, 422:
			return true
		}
	}
	return false
}

// ChunkText splits text into word windows of at most maxWords with overlap
// words shared between neighbors. A final window shorter than the overlap is
// covered by its predecessor and not emitted again.
func ChunkText(text string, maxWords, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWords < 1 {
		maxWords = 1
	}
	if len(words) <= maxWords {
		return []string{strings.Join(words, " ")}
	}
	// The window must outsize the overlap or start never advances.
	if overlap >= maxWords {
		overlap = maxWords / 2
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		start = end - overlap
		if start >= len(words)-overlap {
			break
		}
	}
	return chunks
}

// TextHash returns the first 16 hex characters of the SHA-256 of text,
// enough to detect identical OCR output across consecutive frames.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// VectorToBlob serializes a vector as packed little-endian float32.
func VectorToBlob(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// BlobToVector is the inverse of VectorToBlob. Trailing partial floats are
// ignored.
func BlobToVector(blob []byte) []float32 {
	n := len(blob) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
