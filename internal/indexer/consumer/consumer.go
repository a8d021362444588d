// Package consumer indexes documents arriving on the ingest topic and
// through the HTTP API, then invalidates cached search results.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/stopmark/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/metrics"
)

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Tracker receives analytics events.
type Tracker interface {
	Track(event any)
}

// IndexConsumer writes documents into the engine. cache, tracker and
// metrics are optional.
type IndexConsumer struct {
	engine  *indexer.Engine
	cache   Invalidator
	tracker Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(engine *indexer.Engine, cache Invalidator, tracker Tracker, m *metrics.Metrics) *IndexConsumer {
	return &IndexConsumer{
		engine:  engine,
		cache:   cache,
		tracker: tracker,
		metrics: m,
		logger:  slog.Default().With("component", "index-consumer"),
	}
}

// Index validates and stores one document.
func (ic *IndexConsumer) Index(ctx context.Context, doc indexer.Document) error {
	if doc.ID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document id is required")
	}
	if doc.Title == "" && doc.Body == "" {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "document %s has no text", doc.ID)
	}

	start := time.Now()
	if err := ic.engine.IndexDocument(doc); err != nil {
		ic.recordBatch("error")
		return fmt.Errorf("indexing document %s: %w", doc.ID, err)
	}
	ic.recordBatch("ok")
	ic.afterWrite(ctx, 1)

	if ic.tracker != nil {
		ic.tracker.Track(analytics.IndexEvent{
			Type:       analytics.EventIndexDoc,
			DocumentID: doc.ID,
			SizeBytes:  len(doc.Title) + len(doc.Body),
			LatencyMs:  time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	}
	ic.logger.Info("document indexed", "doc_id", doc.ID)
	return nil
}

// IndexBatch stores docs in engine-sized batches and invalidates the cache
// once at the end.
func (ic *IndexConsumer) IndexBatch(ctx context.Context, docs []indexer.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := ic.engine.IndexBatch(ctx, docs); err != nil {
		ic.recordBatch("error")
		return err
	}
	ic.recordBatch("ok")
	ic.afterWrite(ctx, len(docs))
	return nil
}

// HandleMessage is the kafka.MessageHandler for the ingest topic.
// Undecodable or invalid documents are logged and committed so they do not
// block the partition.
func (ic *IndexConsumer) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		doc, err := kafka.DecodeJSON[indexer.Document](value)
		if err != nil {
			ic.logger.Error("failed to decode ingest event", "error", err, "key", string(key))
			return nil
		}
		if err := ic.Index(ctx, doc); err != nil {
			if errors.Is(err, apperrors.ErrInvalidInput) {
				ic.logger.Warn("rejected ingest event", "key", string(key), "error", err)
				return nil
			}
			return err
		}
		return nil
	}
}

// Delete removes a document from the index.
func (ic *IndexConsumer) Delete(ctx context.Context, id string) error {
	if err := ic.engine.Delete(id); err != nil {
		return err
	}
	ic.afterWrite(ctx, 0)
	return nil
}

func (ic *IndexConsumer) afterWrite(ctx context.Context, indexed int) {
	if ic.metrics != nil {
		ic.metrics.DocsIndexedTotal.Add(float64(indexed))
		if n, err := ic.engine.DocCount(); err == nil {
			ic.metrics.IndexDocCount.Set(float64(n))
		}
	}
	if ic.cache != nil {
		if err := ic.cache.Invalidate(ctx); err != nil {
			ic.logger.Error("cache invalidation after index write failed", "error", err)
		}
	}
}

func (ic *IndexConsumer) recordBatch(status string) {
	if ic.metrics != nil {
		ic.metrics.IndexBatchesTotal.WithLabelValues(status).Inc()
	}
}
