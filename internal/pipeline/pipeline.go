// SPDX-License-Identifier: MIT

// Package pipeline runs OCR and embedding over freshly captured frames via a
// bounded queue and a small worker pool. Errors never reach the capture
// loop; they are logged and counted here.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/screendiary/screendiary/internal/config"
	xlog "github.com/screendiary/screendiary/internal/log"
	"github.com/screendiary/screendiary/internal/metrics"
	"github.com/screendiary/screendiary/internal/store"
)

// queueCapacity bounds in-flight screenshots so a stalled OCR engine applies
// backpressure instead of growing memory.
const queueCapacity = 64

// Frame pairs a monitor-capture row with its in-memory image.
type Frame struct {
	MonitorCaptureID int64
	Image            image.Image
}

// Task is one screenshot's worth of work.
type Task struct {
	ScreenshotID int64
	Frames       []Frame
}

// Enqueuer accepts capture work. Implemented by Pipeline, fakeable in tests.
type Enqueuer interface {
	Enqueue(ctx context.Context, t Task) error
}

// Pipeline owns the queue and workers.
type Pipeline struct {
	cfg      config.Config
	st       *store.Store
	engine   OCREngine
	embedder *Embedder // nil when AI is disabled

	queue chan Task
	wg    sync.WaitGroup
	log   zerolog.Logger
}

// New builds a pipeline. embedder may be nil.
func New(cfg config.Config, st *store.Store, engine OCREngine, embedder *Embedder) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		st:       st,
		engine:   engine,
		embedder: embedder,
		queue:    make(chan Task, queueCapacity),
		log:      xlog.WithComponent("pipeline"),
	}
}

// Enqueue hands a task to the workers, honoring cancellation while blocked
// on a full queue.
func (p *Pipeline) Enqueue(ctx context.Context, t Task) error {
	select {
	case p.queue <- t:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts ocr.workers workers and blocks until ctx is cancelled and all
// workers have drained their current task.
func (p *Pipeline) Run(ctx context.Context) error {
	workers := p.cfg.OCR.Workers
	p.log.Info().Str("event", "pipeline.started").Int("workers", workers).Msg("pipeline started")

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.wg.Wait()
	p.log.Info().Str("event", "pipeline.stopped").Msg("pipeline stopped")
	return nil
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()
	log.Debug().Str("event", "pipeline.worker_started").Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.queue:
			metrics.QueueDepth.Set(float64(len(p.queue)))
			if err := p.process(ctx, task); err != nil {
				log.Error().Err(err).
					Str("event", "pipeline.process_failed").
					Int64("screenshot_id", task.ScreenshotID).
					Msg("processing failed")
			}
		}
	}
}

// process OCRs every monitor frame, persists text plus word geometry, then
// embeds the concatenated text unless an identical hash is already stored.
func (p *Pipeline) process(ctx context.Context, task Task) error {
	var textParts []string

	for _, frame := range task.Frames {
		result, err := p.engine.Recognize(ctx, frame.Image)
		if err != nil {
			metrics.OCRFailuresTotal.Inc()
			p.log.Error().Err(err).
				Str("event", "pipeline.ocr_failed").
				Int64("monitor_capture_id", frame.MonitorCaptureID).
				Msg("ocr failed")
			continue
		}
		if len(result.Text) < p.cfg.OCR.MinTextLength {
			continue
		}

		ocrID, err := p.st.InsertOCRResult(ctx, &store.OCRResult{
			ScreenshotID:     task.ScreenshotID,
			MonitorCaptureID: frame.MonitorCaptureID,
			Text:             result.Text,
			Language:         p.cfg.OCR.Languages,
			Confidence:       result.Confidence,
		})
		if err != nil {
			return fmt.Errorf("persist ocr result: %w", err)
		}
		metrics.OCRResultsTotal.Inc()

		if len(result.Words) > 0 {
			words := make([]*store.OCRWord, 0, len(result.Words))
			for _, w := range result.Words {
				words = append(words, &store.OCRWord{
					OCRResultID:      ocrID,
					MonitorCaptureID: frame.MonitorCaptureID,
					Word:             w.Text,
					Left:             w.Left,
					Top:              w.Top,
					Width:            w.Width,
					Height:           w.Height,
					Confidence:       w.Confidence,
				})
			}
			if err := p.st.InsertOCRWords(ctx, words); err != nil {
				return fmt.Errorf("persist ocr words: %w", err)
			}
		}

		textParts = append(textParts, result.Text)
	}

	if len(textParts) > 0 && p.embedder != nil {
		if err := p.embed(ctx, task.ScreenshotID, strings.Join(textParts, "\n\n")); err != nil {
			p.log.Error().Err(err).
				Str("event", "pipeline.embed_failed").
				Int64("screenshot_id", task.ScreenshotID).
				Msg("embedding failed")
		}
	}

	p.log.Debug().
		Str("event", "pipeline.screenshot_processed").
		Int64("screenshot_id", task.ScreenshotID).
		Int("text_parts", len(textParts)).
		Msg("screenshot processed")
	return nil
}

func (p *Pipeline) embed(ctx context.Context, screenshotID int64, combined string) error {
	hash := TextHash(combined)
	exists, err := p.st.HasEmbedding(ctx, screenshotID, hash)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	chunks := ChunkText(combined, p.cfg.AI.ChunkMaxTokens, ChunkOverlap)
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return err
	}
	for _, vec := range vectors {
		if vec == nil {
			continue
		}
		if _, err := p.st.InsertEmbedding(ctx, &store.Embedding{
			ScreenshotID: screenshotID,
			Vector:       VectorToBlob(vec),
			Model:        p.cfg.AI.EmbeddingModel,
			Dimensions:   len(vec),
			TextHash:     hash,
		}); err != nil {
			return fmt.Errorf("persist embedding: %w", err)
		}
		metrics.EmbeddingsTotal.Inc()
	}
	return nil
}
