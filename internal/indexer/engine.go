// Package indexer stores documents in a bleve index analysed with the
// stop-word bigram convention, and runs translated queries against it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/stopwords"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/config"
)

const (
	analyzerName = "stopmark"
	filterName   = "stopmark_bigram"
)

// Document is the unit of indexing.
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Location is one matched term occurrence. Offsets are bytes into the
// stored field text.
type Location struct {
	Term  string
	Start int
	End   int
}

// Hit is one matching document.
type Hit struct {
	ID        string
	Score     float64
	Fields    map[string]string
	Locations map[string][]Location
}

// Result is the outcome of a search.
type Result struct {
	Total uint64
	Hits  []Hit
}

// Engine wraps the bleve index.
type Engine struct {
	index     bleve.Index
	fields    []string
	batchSize int
	logger    *slog.Logger
}

// NewEngine opens the index in cfg.DataDir, creating it when absent, or an
// in-memory index when DataDir is empty. fields are the searchable text
// fields, all analysed with stops.
func NewEngine(cfg config.IndexerConfig, fields []string, stops stopwords.Set) (*Engine, error) {
	logger := slog.Default().With("component", "indexer")
	for _, f := range fields {
		if f != "title" && f != "body" {
			return nil, fmt.Errorf("unknown document field %q", f)
		}
	}
	m, err := buildMapping(fields, stops)
	if err != nil {
		return nil, fmt.Errorf("building index mapping: %w", err)
	}

	var idx bleve.Index
	switch {
	case cfg.DataDir == "":
		idx, err = bleve.NewMemOnly(m)
	default:
		idx, err = bleve.Open(cfg.DataDir)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(cfg.DataDir, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening index %q: %w", cfg.DataDir, err)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	logger.Info("index ready", "data_dir", cfg.DataDir, "fields", fields, "stop_words", stops.Len())
	return &Engine{index: idx, fields: fields, batchSize: batch, logger: logger}, nil
}

func buildMapping(fields []string, stops stopwords.Set) (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	words := make([]interface{}, 0, stops.Len())
	for _, w := range stops.Words() {
		words = append(words, w)
	}
	if err := im.AddCustomTokenFilter(filterName, map[string]interface{}{
		"type":       BigramFilterName,
		"stop_words": words,
	}); err != nil {
		return nil, err
	}
	if err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, filterName},
	}); err != nil {
		return nil, err
	}

	doc := bleve.NewDocumentStaticMapping()
	for _, f := range fields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzerName
		fm.Store = true
		fm.IncludeTermVectors = true
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(f, fm)
	}
	im.DefaultMapping = doc
	im.DefaultAnalyzer = analyzerName
	return im, nil
}

// Fields returns the searchable field names.
func (e *Engine) Fields() []string { return e.fields }

// IndexDocument adds or replaces one document.
func (e *Engine) IndexDocument(doc Document) error {
	if err := e.index.Index(doc.ID, doc.fieldMap()); err != nil {
		return fmt.Errorf("indexing document %s: %w", doc.ID, err)
	}
	e.logger.Debug("document indexed", "doc_id", doc.ID)
	return nil
}

// IndexBatch indexes docs in batches of the configured size.
func (e *Engine) IndexBatch(ctx context.Context, docs []Document) error {
	for start := 0; start < len(docs); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+e.batchSize, len(docs))
		b := e.index.NewBatch()
		for _, d := range docs[start:end] {
			if err := b.Index(d.ID, d.fieldMap()); err != nil {
				return fmt.Errorf("batching document %s: %w", d.ID, err)
			}
		}
		if err := e.index.Batch(b); err != nil {
			return fmt.Errorf("writing batch of %d documents: %w", end-start, err)
		}
	}
	e.logger.Info("batch indexed", "documents", len(docs))
	return nil
}

// Delete removes a document.
func (e *Engine) Delete(id string) error {
	if err := e.index.Delete(id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return nil
}

// DocCount returns the number of indexed documents.
func (e *Engine) DocCount() (uint64, error) {
	return e.index.DocCount()
}

// Search runs q, returning stored field text and term locations for every
// hit.
func (e *Engine) Search(ctx context.Context, q bleveq.Query, limit, offset int) (*Result, error) {
	req := bleve.NewSearchRequestOptions(q, limit, offset, false)
	req.IncludeLocations = true
	req.Fields = e.fields

	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	out := &Result{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		hit := Hit{
			ID:        h.ID,
			Score:     h.Score,
			Fields:    make(map[string]string, len(e.fields)),
			Locations: make(map[string][]Location),
		}
		for _, f := range e.fields {
			if s, ok := h.Fields[f].(string); ok {
				hit.Fields[f] = s
			}
		}
		for field, terms := range h.Locations {
			for term, locs := range terms {
				for _, l := range locs {
					hit.Locations[field] = append(hit.Locations[field], Location{
						Term:  term,
						Start: int(l.Start),
						End:   int(l.End),
					})
				}
			}
			sort.Slice(hit.Locations[field], func(i, j int) bool {
				a, b := hit.Locations[field][i], hit.Locations[field][j]
				if a.Start != b.Start {
					return a.Start < b.Start
				}
				return a.End < b.End
			})
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// Close closes the index.
func (e *Engine) Close() error {
	if err := e.index.Close(); err != nil {
		return fmt.Errorf("closing index: %w", err)
	}
	return nil
}

func (d Document) fieldMap() map[string]interface{} {
	return map[string]interface{}{"title": d.Title, "body": d.Body}
}
