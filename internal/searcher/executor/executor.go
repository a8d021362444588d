package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query/bigram"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query/parser"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/searcher/translate"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/marker"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/snippet"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/stopwords"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/wordcursor"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/metrics"
)

// Request is one search.
type Request struct {
	Query  string
	Limit  int
	Offset int
}

// Rewriting describes how a query was parsed and rewritten.
type Rewriting struct {
	Query     string   `json:"query"`
	Parsed    string   `json:"parsed"`
	Rewritten string   `json:"rewritten"`
	Ignored   []string `json:"ignored"`

	tree *query.Node
}

// Hit is one matching document with its snippets.
type Hit struct {
	ID       string                         `json:"id"`
	Score    float64                        `json:"score"`
	Title    string                         `json:"title,omitempty"`
	Snippets []snippet.Snippet              `json:"snippets"`
	Terms    map[string][]snippet.Highlight `json:"terms,omitempty"`
}

// SearchResult is the response to a Request.
type SearchResult struct {
	Rewriting
	TotalHits uint64 `json:"total_hits"`
	Hits      []Hit  `json:"hits"`
}

// Executor runs queries end to end: parse, bigram rewrite, translate,
// search, then mark snippets in every hit.
type Executor struct {
	engine     *indexer.Engine
	parser     *parser.Parser
	rewriter   *bigram.Rewriter
	translator *translate.Translator
	stops      stopwords.Set
	mode       marker.Mode
	marking    config.MarkingConfig
	rewrites   *lru.Cache[string, rewriteEntry]
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// rewriteEntry is a cached rewrite. Entries are shared between callers and
// must not be modified.
type rewriteEntry struct {
	rw      *Rewriting
	outcome string
}

// New returns an Executor over engine. m may be nil.
func New(engine *indexer.Engine, stops stopwords.Set, rw config.RewriteConfig, mk config.MarkingConfig, m *metrics.Metrics) (*Executor, error) {
	mode, err := marker.ParseMode(mk.TermMode)
	if err != nil {
		return nil, err
	}
	e := &Executor{
		engine:     engine,
		parser:     parser.New(rw.MaxSlop, engine.Fields()...),
		rewriter:   bigram.New(stops, rw.MaxSlop),
		translator: translate.New(engine.Fields()),
		stops:      stops,
		mode:       mode,
		marking:    mk,
		metrics:    m,
		logger:     slog.Default().With("component", "query-executor"),
	}
	if rw.CacheSize > 0 {
		if e.rewrites, err = lru.New[string, rewriteEntry](rw.CacheSize); err != nil {
			return nil, fmt.Errorf("creating rewrite cache: %w", err)
		}
	}
	return e, nil
}

// Rewrite parses q and removes its stop words. When nothing searchable is
// left after the rewrite, the parsed query is searched as is. The returned
// Rewriting may be shared with other callers.
func (e *Executor) Rewrite(q string) (*Rewriting, error) {
	entry, ok := e.cachedRewrite(q)
	if !ok {
		var err error
		if entry, err = e.rewrite(q); err != nil {
			return nil, err
		}
		if e.rewrites != nil {
			e.rewrites.Add(q, entry)
		}
	}
	if e.metrics != nil {
		e.metrics.RewritesTotal.WithLabelValues(entry.outcome).Inc()
		for _, w := range entry.rw.Ignored {
			e.metrics.StopWordsIgnored.WithLabelValues(w).Inc()
		}
	}
	return entry.rw, nil
}

func (e *Executor) cachedRewrite(q string) (rewriteEntry, bool) {
	if e.rewrites == nil {
		return rewriteEntry{}, false
	}
	return e.rewrites.Get(q)
}

func (e *Executor) rewrite(q string) (rewriteEntry, error) {
	parsed, err := e.parser.Parse(q)
	if err != nil {
		return rewriteEntry{}, err
	}
	out := e.rewriter.Rewrite(parsed)

	tree, ignored, outcome := out.Query, out.Removed, "changed"
	switch {
	case tree == nil:
		tree, ignored, outcome = parsed, []string{}, "emptied"
	case !out.Changed:
		outcome = "unchanged"
	}
	return rewriteEntry{
		rw: &Rewriting{
			Query:     q,
			Parsed:    parsed.String(),
			Rewritten: tree.String(),
			Ignored:   ignored,
			tree:      tree,
		},
		outcome: outcome,
	}, nil
}

// Execute runs req.
func (e *Executor) Execute(ctx context.Context, req Request) (*SearchResult, error) {
	rw, err := e.Rewrite(req.Query)
	if err != nil {
		return nil, err
	}

	res, err := e.engine.Search(ctx, e.translator.Translate(rw.tree), req.Limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("executing %q: %w", rw.Rewritten, err)
	}

	terms := query.Terms(rw.tree)
	result := &SearchResult{
		Rewriting: *rw,
		TotalHits: res.Total,
		Hits:      make([]Hit, len(res.Hits)),
	}
	for i, h := range res.Hits {
		hit, err := e.markHit(ctx, h, terms)
		if err != nil {
			return nil, err
		}
		result.Hits[i] = hit
	}

	e.logger.Info("query executed",
		"query", req.Query,
		"rewritten", rw.Rewritten,
		"ignored", rw.Ignored,
		"total_hits", res.Total,
		"returned", len(result.Hits),
	)
	return result, nil
}

// markHit builds the snippets of every field of h. Fields are marked
// concurrently, each with its own Marker.
func (e *Executor) markHit(ctx context.Context, h indexer.Hit, queryTerms []string) (Hit, error) {
	start := time.Now()
	fields := e.engine.Fields()
	collected := make([]*snippet.Collector, len(fields))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range fields {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text := h.Fields[name]
			locs := h.Locations[name]
			if text == "" || len(locs) == 0 {
				return nil
			}
			field := wordcursor.NewField(name, text)
			m := marker.New(field, marker.Options{
				Terms:     hitTerms(queryTerms, locs),
				StopWords: e.stops,
				Mode:      e.mode,
			})
			c := snippet.NewCollector(name)
			m.Mark(Spans(field, locs, e.marking.MaxSnippets), e.marking.MaxContextChars, c)
			collected[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Hit{}, fmt.Errorf("marking document %s: %w", h.ID, err)
	}

	hit := Hit{ID: h.ID, Score: h.Score, Title: h.Fields["title"], Snippets: []snippet.Snippet{}}
	for i, c := range collected {
		if c == nil {
			continue
		}
		hit.Snippets = append(hit.Snippets, c.Snippets()...)
		if loose := c.Loose(); len(loose) > 0 {
			if hit.Terms == nil {
				hit.Terms = make(map[string][]snippet.Highlight)
			}
			hit.Terms[fields[i]] = loose
		}
	}
	if e.metrics != nil {
		e.metrics.MarkingDuration.Observe(time.Since(start).Seconds())
		e.metrics.SnippetsTotal.Add(float64(len(hit.Snippets)))
	}
	return hit, nil
}

// hitTerms adds the words of the terms that matched in a field to the
// query's own terms.
func hitTerms(queryTerms []string, locs []indexer.Location) []string {
	out := make([]string, 0, len(queryTerms)+len(locs))
	out = append(out, queryTerms...)
	for _, l := range locs {
		out = append(out, strings.Split(l.Term, query.BigramSeparator)...)
	}
	return out
}
