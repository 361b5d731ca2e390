// SPDX-License-Identifier: MIT

// Package metrics registers the daemon's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture loop
	CapturesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screendiary_captures_total",
		Help: "Accepted capture ticks persisted to the catalog",
	})
	SkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screendiary_capture_skips_total",
		Help: "Ticks skipped because every monitor was above the similarity threshold",
	})
	TickFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screendiary_tick_failures_total",
		Help: "Per-tick failures by stage",
	}, []string{"stage"}) // stage=screenshot|window|persist|enqueue
	TopologyChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screendiary_topology_changes_total",
		Help: "Monitor topology swaps observed by the capture loop",
	})

	// Processing pipeline
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "screendiary_pipeline_queue_depth",
		Help: "Screenshots waiting for OCR",
	})
	OCRResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screendiary_ocr_results_total",
		Help: "OCR results persisted",
	})
	OCRFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screendiary_ocr_failures_total",
		Help: "OCR invocations that returned an error",
	})
	EmbeddingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screendiary_embeddings_total",
		Help: "Embedding vectors persisted",
	})

	// Archiver
	SegmentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screendiary_segments_created_total",
		Help: "H.265 segments encoded and registered",
	})
	EncodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screendiary_encode_failures_total",
		Help: "Segment encodes that exited non-zero",
	})
	PrunedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screendiary_pruned_bytes_total",
		Help: "Bytes reclaimed by pruning oldest segments",
	})

	// Frame cache
	FrameCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screendiary_frame_cache_hits_total",
		Help: "Frame cache hits by tier",
	}, []string{"tier"}) // tier=memory|disk
	FrameExtractionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screendiary_frame_extractions_total",
		Help: "Frames decoded out of archived segments",
	})
)
