package rag

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// engineMetrics tracks retrieval engine usage. Instruments are registered on
// the global meter provider; with no SDK installed they are no-ops.
type engineMetrics struct {
	searches      metric.Int64Counter
	answers       metric.Int64Counter
	indexedChunks metric.Int64Counter
	searchSeconds metric.Float64Histogram
}

func newEngineMetrics() *engineMetrics {
	meter := otel.Meter("github.com/hearsay-ai/hearsay/internal/rag")

	searches, _ := meter.Int64Counter("rag.searches",
		metric.WithDescription("Similarity searches served"))
	answers, _ := meter.Int64Counter("rag.answers",
		metric.WithDescription("Answer syntheses attempted"))
	indexedChunks, _ := meter.Int64Counter("rag.indexed_chunks",
		metric.WithDescription("Chunks embedded and appended to the store"))
	searchSeconds, _ := meter.Float64Histogram("rag.search.duration",
		metric.WithDescription("Similarity search latency"),
		metric.WithUnit("s"))

	return &engineMetrics{
		searches:      searches,
		answers:       answers,
		indexedChunks: indexedChunks,
		searchSeconds: searchSeconds,
	}
}

func (m *engineMetrics) recordSearch(ctx context.Context, start time.Time) {
	m.searches.Add(ctx, 1)
	m.searchSeconds.Record(ctx, time.Since(start).Seconds())
}
