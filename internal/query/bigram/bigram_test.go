package bigram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/stopwords"
)

func newRewriter() *Rewriter {
	return New(stopwords.New("the", "of", "and", "a", "to", "in"), 10)
}

func word(s string) *query.Node { return query.NewTerm("", s) }

func phrase(slop int, words ...string) *query.Node {
	kids := make([]*query.Node, len(words))
	for i, w := range words {
		kids[i] = word(w)
	}
	return query.NewNear(slop, true, kids...)
}

// ============================================================================
// Identity
// ============================================================================

func TestRewrite_NoStopWordsReturnsInput(t *testing.T) {
	t.Parallel()

	q := query.NewAnd(
		query.Should(phrase(0, "quick", "brown", "fox")),
		query.Should(query.NewOr(word("cat"), word("dog"))),
		query.MustNot(word("wolf")),
	)

	out := newRewriter().Rewrite(q)

	assert.Same(t, q, out.Query)
	assert.False(t, out.Changed)
	assert.Empty(t, out.Removed)
}

// ============================================================================
// Elision
// ============================================================================

func TestRewrite_OnlyStopWordsVanishes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		node *query.Node
	}{
		{"phrase", phrase(0, "the", "of", "a")},
		{"or", query.NewOr(word("the"), word("and"))},
		{"and", query.NewAnd(query.Should(word("the")), query.Should(word("of")))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := newRewriter().Rewrite(tt.node)
			assert.Nil(t, out.Query)
			assert.True(t, out.Changed)
			assert.NotEmpty(t, out.Removed)
		})
	}
}

func TestRewrite_DropsStopWordsOutsidePhrases(t *testing.T) {
	t.Parallel()

	q := query.NewAnd(query.Should(word("the")), query.Should(word("cat")), query.Should(word("dog")))

	out := newRewriter().Rewrite(q)

	require.NotNil(t, out.Query)
	assert.Equal(t, "AND(cat, dog)", out.Query.String())
	assert.Equal(t, []string{"the"}, out.Removed)
}

func TestRewrite_RequiredStopWordSurvives(t *testing.T) {
	t.Parallel()

	q := query.NewAnd(query.Must(word("the")), query.Should(word("cat")))

	out := newRewriter().Rewrite(q)

	assert.Same(t, q, out.Query)
	assert.Empty(t, out.Removed)
}

func TestRewrite_UnorderedNearDropsStopWords(t *testing.T) {
	t.Parallel()

	q := query.NewNear(5, false, word("cat"), word("the"), word("dog"))

	out := newRewriter().Rewrite(q)

	assert.Equal(t, "NEAR/5u(cat, dog)", out.Query.String())
	assert.Equal(t, []string{"the"}, out.Removed)
}

func TestRewrite_BoostCarriesThroughCollapse(t *testing.T) {
	t.Parallel()

	q := query.NewAnd(query.Should(word("the")), query.Should(word("cat").WithBoost(1.5))).WithBoost(2)

	out := newRewriter().Rewrite(q)

	require.Equal(t, query.KindTerm, out.Query.Kind())
	assert.Equal(t, "cat", out.Query.Text())
	assert.InDelta(t, 3.0, out.Query.Boost(), 1e-9)
}

// ============================================================================
// Exact phrases
// ============================================================================

func TestRewrite_ExactPhrase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		words    []string
		expected string
		removed  []string
	}{
		{"middle stop word", []string{"man", "of", "world"}, "NEAR/0(man~of, of~world)", []string{"of"}},
		{"leading stop word", []string{"the", "cat"}, "the~cat", []string{"the"}},
		{"trailing stop word", []string{"cat", "of"}, "cat~of", []string{"of"}},
		{"real word between", []string{"cat", "dog", "of", "war"}, "NEAR/0(cat, dog~of, of~war)", []string{"of"}},
		{
			"stop word run",
			[]string{"end", "of", "the", "road"},
			"NEAR/0(end~of, of~the, the~road)",
			[]string{"of", "the"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := newRewriter().Rewrite(phrase(0, tt.words...))
			require.NotNil(t, out.Query)
			assert.Equal(t, tt.expected, out.Query.String())
			assert.Equal(t, tt.removed, out.Removed)
			assert.True(t, out.Changed)
		})
	}
}

func TestRewrite_ExactPhraseKeepsBoostAndField(t *testing.T) {
	t.Parallel()

	q := query.NewNear(0, true, query.NewTerm("title", "man").WithBoost(2), query.NewTerm("title", "of"))

	out := newRewriter().Rewrite(q)

	require.Equal(t, query.KindTerm, out.Query.Kind())
	assert.True(t, out.Query.IsBigram())
	assert.Equal(t, "title:man~of^2", out.Query.String())
}

func TestRewrite_FusesIntoDisjunction(t *testing.T) {
	t.Parallel()

	q := query.NewNear(0, true, word("the"), query.NewOr(word("cat"), word("dog")))

	out := newRewriter().Rewrite(q)

	assert.Equal(t, "OR(the~cat, the~dog)", out.Query.String())
}

func TestRewrite_FusesIntoNotInclude(t *testing.T) {
	t.Parallel()

	q := query.NewNear(0, true, query.NewNot(0, word("cat"), word("dog")), word("of"))

	out := newRewriter().Rewrite(q)

	assert.Equal(t, "NOT(cat~of, dog)", out.Query.String())
}

func TestRewrite_NestedPhraseIsNotFused(t *testing.T) {
	t.Parallel()

	inner := phrase(0, "quick", "fox")
	q := query.NewNear(0, true, word("the"), inner)

	out := newRewriter().Rewrite(q)

	assert.Same(t, inner, out.Query)
}

// ============================================================================
// Sloppy phrases
// ============================================================================

func TestRewrite_InexactPhraseKeepsAlternatives(t *testing.T) {
	t.Parallel()

	out := newRewriter().Rewrite(phrase(2, "cat", "the", "dog"))

	assert.Equal(t, "NEAR/2(OR(cat, cat~the), OR(the~dog, dog))", out.Query.String())
	assert.Equal(t, []string{"the"}, out.Removed)
}

func TestRewrite_TripleStopRunMatchesEitherPolicy(t *testing.T) {
	t.Parallel()

	out := newRewriter().Rewrite(phrase(2, "cat", "of", "the", "and", "dog"))

	require.Equal(t, query.KindOr, out.Query.Kind())
	require.Len(t, out.Query.Children(), 2)
	assert.Equal(t,
		"OR(NEAR/2(cat~of, of~the, the~and, and~dog), NEAR/2(OR(cat, cat~of), OR(and~dog, dog)))",
		out.Query.String())
	assert.Equal(t, []string{"and", "of", "the"}, out.Removed)
}

func TestRewrite_InputNotModified(t *testing.T) {
	t.Parallel()

	q := phrase(0, "man", "of", "world")
	before := q.String()

	_ = newRewriter().Rewrite(q)

	assert.Equal(t, before, q.String())
}

func TestRewrite_ConcurrentUse(t *testing.T) {
	t.Parallel()

	rw := newRewriter()
	done := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- rw.Rewrite(phrase(0, "man", "of", "world")).Query.String()
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, "NEAR/0(man~of, of~world)", <-done)
	}
}

func TestCheckTerms_PanicsOnUnfusedStopWord(t *testing.T) {
	t.Parallel()

	s := &state{stops: stopwords.New("the"), removed: map[string]struct{}{}}

	assert.NotPanics(t, func() {
		s.checkTerms([]*query.Node{query.NewBigram("", "the", "cat"), word("cat")})
	})
	assert.Panics(t, func() {
		s.checkTerms([]*query.Node{word("cat"), word("the")})
	})
	assert.Panics(t, func() {
		s.checkTerms([]*query.Node{query.NewOr(word("dog"), word("the"))})
	})
}
