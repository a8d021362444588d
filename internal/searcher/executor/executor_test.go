package executor

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/marker"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/stopwords"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/wordcursor"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/stopmark/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/metrics"
)

var testStops = stopwords.New("the", "of", "a", "and", "was", "they")

var corpus = []indexer.Document{
	{ID: "1", Title: "Travels", Body: "He was a man of the world, they said."},
	{ID: "2", Title: "Other", Body: "A man of a world apart."},
	{ID: "3", Title: "Cats", Body: "The cat sat. The dog did not."},
}

func newExecutor(t *testing.T, mk config.MarkingConfig, m *metrics.Metrics) *Executor {
	t.Helper()
	engine, err := indexer.NewEngine(config.IndexerConfig{}, []string{"title", "body"}, testStops)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	require.NoError(t, engine.IndexBatch(context.Background(), corpus))

	e, err := New(engine, testStops, config.RewriteConfig{MaxSlop: 10, CacheSize: 16}, mk, m)
	require.NoError(t, err)
	return e
}

func spanOnly() config.MarkingConfig {
	return config.MarkingConfig{MaxContextChars: 0, TermMode: "span", MaxSnippets: 3}
}

// ---------------------------------------------------------------------------
// Rewrite
// ---------------------------------------------------------------------------

func TestRewrite(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, spanOnly(), nil)
	tests := []struct {
		in        string
		rewritten string
		ignored   []string
	}{
		{`"man of the world"`, "NEAR/0(man~of, of~the, the~world)", []string{"of", "the"}},
		{"the cat", "cat", []string{"the"}},
		{"cat dog", "AND(cat, dog)", []string{}},
		{"the of", "AND(the, of)", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			rw, err := e.Rewrite(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.rewritten, rw.Rewritten)
			assert.Equal(t, tt.ignored, rw.Ignored)
		})
	}
}

func TestRewrite_InvalidQuery(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, spanOnly(), nil)
	_, err := e.Rewrite(`"unterminated`)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)

	_, err = e.Execute(context.Background(), Request{Query: "summary:cat", Limit: 10})
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)
}

func TestRewrite_CachedResultStillCounted(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	e := newExecutor(t, spanOnly(), m)

	first, err := e.Rewrite("the cat")
	require.NoError(t, err)
	second, err := e.Rewrite("the cat")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, e.rewrites.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RewritesTotal.WithLabelValues("changed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StopWordsIgnored.WithLabelValues("the")))

	_, err = e.Rewrite(`"unterminated`)
	require.Error(t, err)
	assert.Equal(t, 1, e.rewrites.Len())
}

func TestRewrite_CacheDisabled(t *testing.T) {
	t.Parallel()

	engine, err := indexer.NewEngine(config.IndexerConfig{}, []string{"body"}, testStops)
	require.NoError(t, err)
	defer engine.Close()

	e, err := New(engine, testStops, config.RewriteConfig{MaxSlop: 10}, spanOnly(), nil)
	require.NoError(t, err)
	assert.Nil(t, e.rewrites)

	first, err := e.Rewrite("the cat")
	require.NoError(t, err)
	second, err := e.Rewrite("the cat")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Rewritten, second.Rewritten)
}

// ---------------------------------------------------------------------------
// Execute
// ---------------------------------------------------------------------------

func TestExecute_PhraseThroughStopWords(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, spanOnly(), nil)
	res, err := e.Execute(context.Background(), Request{Query: `"man of the world"`, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.TotalHits)
	require.Len(t, res.Hits, 1)
	hit := res.Hits[0]
	assert.Equal(t, "1", hit.ID)
	assert.Equal(t, "Travels", hit.Title)

	require.Len(t, hit.Snippets, 1)
	s := hit.Snippets[0]
	assert.Equal(t, "body", s.Field)
	assert.Equal(t, "man of the world", s.Text)
	assert.Equal(t, 1, s.Rank)
	assert.Equal(t, 1.0, s.Score)
	assert.Equal(t, "<b>man</b> <b>of</b> <b>the</b> <b>world</b>", s.Marked("<b>", "</b>"))
}

func TestExecute_PhraseWithStopWordsOnBothSides(t *testing.T) {
	t.Parallel()

	engine, err := indexer.NewEngine(config.IndexerConfig{}, []string{"body"}, testStops)
	require.NoError(t, err)
	defer engine.Close()
	require.NoError(t, engine.IndexBatch(context.Background(), []indexer.Document{
		{ID: "days", Body: "It was the end of days for them."},
		{ID: "cat", Body: "Grab the cat of mine."},
	}))
	e, err := New(engine, testStops, config.RewriteConfig{MaxSlop: 10}, spanOnly(), nil)
	require.NoError(t, err)

	tests := []struct {
		q         string
		rewritten string
		id        string
	}{
		{`"the end of days"`, "NEAR/0(the~end, end~of, of~days)", "days"},
		{`"the cat of mine"`, "NEAR/0(the~cat, cat~of, of~mine)", "cat"},
	}
	for _, tt := range tests {
		res, err := e.Execute(context.Background(), Request{Query: tt.q, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, tt.rewritten, res.Rewritten)
		require.Len(t, res.Hits, 1, tt.q)
		assert.Equal(t, tt.id, res.Hits[0].ID)
		require.NotEmpty(t, res.Hits[0].Snippets)
		assert.Equal(t, tt.q[1:len(tt.q)-1], res.Hits[0].Snippets[0].Text)
	}
}

func TestExecute_ContextAroundSpan(t *testing.T) {
	t.Parallel()

	mk := config.MarkingConfig{MaxContextChars: 40, TermMode: "context", MaxSnippets: 3}
	e := newExecutor(t, mk, nil)
	res, err := e.Execute(context.Background(), Request{Query: `"man of the world"`, Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	require.Len(t, res.Hits[0].Snippets, 1)

	s := res.Hits[0].Snippets[0]
	assert.Equal(t, "man of the world", s.Text[s.SpanStart:s.SpanEnd])
	assert.Greater(t, len(s.Text), len("man of the world"))
	assert.Contains(t, "He was a man of the world, they said.", s.Text)
}

func TestExecute_StopWordOnlyMarkedInsideSpan(t *testing.T) {
	t.Parallel()

	mk := config.MarkingConfig{MaxContextChars: 80, TermMode: "context", MaxSnippets: 3}
	e := newExecutor(t, mk, nil)
	res, err := e.Execute(context.Background(), Request{Query: "the cat", Limit: 10})
	require.NoError(t, err)

	require.Len(t, res.Hits, 1)
	assert.Equal(t, "3", res.Hits[0].ID)
	require.NotEmpty(t, res.Hits[0].Snippets)
	for _, s := range res.Hits[0].Snippets {
		for _, h := range s.Highlights {
			assert.NotEqual(t, "the", h.Term, "stop word outside a span was marked in %q", s.Text)
		}
	}
}

func TestExecute_NoMatch(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, spanOnly(), nil)
	res, err := e.Execute(context.Background(), Request{Query: "unicorn", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, res.TotalHits)
	assert.Empty(t, res.Hits)
}

func TestExecute_CanceledContext(t *testing.T) {
	t.Parallel()

	e := newExecutor(t, spanOnly(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Execute(ctx, Request{Query: "cat", Limit: 10})
	assert.Error(t, err)
}

func TestExecute_Metrics(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	e := newExecutor(t, spanOnly(), m)
	_, err := e.Execute(context.Background(), Request{Query: `"man of the world"`, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RewritesTotal.WithLabelValues("changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StopWordsIgnored.WithLabelValues("the")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnippetsTotal))
}

func TestNew_BadTermMode(t *testing.T) {
	t.Parallel()

	engine, err := indexer.NewEngine(config.IndexerConfig{}, []string{"body"}, testStops)
	require.NoError(t, err)
	defer engine.Close()

	_, err = New(engine, testStops, config.RewriteConfig{}, config.MarkingConfig{TermMode: "loud"}, nil)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Spans
// ---------------------------------------------------------------------------

func TestSpans_MergeAndRank(t *testing.T) {
	t.Parallel()

	text := "cat sat on a mat and the cat ran"
	f := wordcursor.NewField("body", text)
	locs := []indexer.Location{
		{Term: "cat", Start: 0, End: 3},
		{Term: "cat~sat", Start: 0, End: 7},
		{Term: "mat", Start: 13, End: 16},
		{Term: "the~cat", Start: 21, End: 28},
		{Term: "cat", Start: 25, End: 28},
		{Term: "cat", Start: 25, End: 28},
	}

	got := Spans(f, locs, 0)
	assert.Equal(t, []marker.Span{
		{Start: 6, End: 8, Score: 3, Rank: 1},
		{Start: 0, End: 2, Score: 2, Rank: 2},
		{Start: 4, End: 5, Score: 1, Rank: 3},
	}, got)

	assert.Equal(t, []marker.Span{{Start: 6, End: 8, Score: 3, Rank: 1}}, Spans(f, locs, 1))
}

func TestSpans_AdjacentLocationsMerge(t *testing.T) {
	t.Parallel()

	f := wordcursor.NewField("body", "man of war")
	locs := []indexer.Location{
		{Term: "man", Start: 0, End: 3},
		{Term: "of", Start: 4, End: 6},
	}
	assert.Equal(t, []marker.Span{{Start: 0, End: 2, Score: 2, Rank: 1}}, Spans(f, locs, 3))
}

func TestSpans_LocationOutsideTokens(t *testing.T) {
	t.Parallel()

	f := wordcursor.NewField("body", "cat")
	assert.Empty(t, Spans(f, []indexer.Location{{Term: "x", Start: 10, End: 12}}, 3))
}
