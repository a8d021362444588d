// Package handler serves the search HTTP API: search, rewrite preview,
// document writes and cache administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/stopmark/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/middleware"
)

const maxDocumentBytes = 10 << 20

type SearchExecutor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
	Rewrite(q string) (*executor.Rewriting, error)
}

// DocumentWriter stores and removes documents.
type DocumentWriter interface {
	Index(ctx context.Context, doc indexer.Document) error
	Delete(ctx context.Context, id string) error
}

// Tracker receives analytics events.
type Tracker interface {
	Track(event any)
}

type Handler struct {
	executor  SearchExecutor
	documents DocumentWriter
	cache     *cache.QueryCache
	tracker   Tracker
	metrics   *metrics.Metrics
	search    config.SearchConfig
	logger    *slog.Logger
}

// New builds a Handler. queryCache, tracker and m may be nil.
func New(exec SearchExecutor, docs DocumentWriter, queryCache *cache.QueryCache, tracker Tracker, m *metrics.Metrics, search config.SearchConfig) *Handler {
	return &Handler{
		executor:  exec,
		documents: docs,
		cache:     queryCache,
		tracker:   tracker,
		metrics:   m,
		search:    search,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/rewrite", h.Rewrite)
	mux.HandleFunc("POST /api/v1/documents", h.IndexDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.DeleteDocument)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	req, err := h.page(r, q)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if h.search.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.search.Timeout)
		defer cancel()
	}

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, req, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, req)
		})
	} else {
		result, err = h.executor.Execute(ctx, req)
	}
	latency := time.Since(start)

	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status == http.StatusBadRequest {
			h.observe("invalid", "", latency, 0)
			h.writeError(w, status, err.Error())
			return
		}
		log.Error("search execution failed", "query", q, "error", err)
		h.observe("error", "", latency, 0)
		h.writeError(w, status, "search failed")
		return
	}

	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	}
	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.observe(resultType, cacheStatus, latency, len(result.Hits))

	snippets := 0
	for _, hit := range result.Hits {
		snippets += len(hit.Snippets)
	}
	log.Info("search completed",
		"query", q,
		"rewritten", result.Rewritten,
		"total_hits", result.TotalHits,
		"returned", len(result.Hits),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:      analytics.EventSearch,
			Query:     q,
			Rewritten: result.Rewritten,
			Ignored:   result.Ignored,
			TotalHits: result.TotalHits,
			Returned:  len(result.Hits),
			Snippets:  snippets,
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(r.Context()),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

// Rewrite previews the rewritten query without searching.
func (h *Handler) Rewrite(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	rw, err := h.executor.Rewrite(q)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, rw)
}

// IndexDocument stores one JSON document. A missing id is generated.
func (h *Handler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	var doc indexer.Document
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid document: %v", err))
		return
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if err := h.documents.Index(r.Context(), doc); err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("indexing document failed", "doc_id", doc.ID, "error", err)
			h.writeError(w, status, "indexing failed")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": doc.ID, "status": "indexed"})
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.documents.Delete(r.Context(), id); err != nil {
		logger.FromContext(r.Context()).Error("deleting document failed", "doc_id", id, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "delete failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// page reads limit and offset. Limits above MaxResults are clamped.
func (h *Handler) page(r *http.Request, q string) (executor.Request, error) {
	req := executor.Request{Query: q, Limit: h.search.DefaultLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, errors.New("limit must be a positive integer")
		}
		req.Limit = min(n, h.search.MaxResults)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, errors.New("offset must be a non-negative integer")
		}
		req.Offset = n
	}
	return req, nil
}

func (h *Handler) observe(resultType, cacheStatus string, latency time.Duration, returned int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if cacheStatus == "" {
		return
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(returned))
	switch cacheStatus {
	case "hit":
		h.metrics.CacheHitsTotal.Inc()
	case "miss":
		h.metrics.CacheMissesTotal.Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
