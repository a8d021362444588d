package translate

import (
	"testing"

	bleveq "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query"
)

func TestTranslate_Term(t *testing.T) {
	t.Parallel()

	q := New([]string{"body"}).Translate(query.NewTerm("", "fox").WithBoost(2))

	tq, ok := q.(*bleveq.TermQuery)
	require.True(t, ok, "got %T", q)
	assert.Equal(t, "fox", tq.Term)
	assert.Equal(t, "body", tq.Field())
	assert.Equal(t, 2.0, tq.Boost())
}

func TestTranslate_FieldedTermIgnoresDefaults(t *testing.T) {
	t.Parallel()

	q := New([]string{"title", "body"}).Translate(query.NewTerm("title", "fox"))

	tq, ok := q.(*bleveq.TermQuery)
	require.True(t, ok, "got %T", q)
	assert.Equal(t, "title", tq.Field())
}

func TestTranslate_UnfieldedFansOutPerField(t *testing.T) {
	t.Parallel()

	q := New([]string{"title", "body"}).Translate(query.NewTerm("", "fox"))

	dq, ok := q.(*bleveq.DisjunctionQuery)
	require.True(t, ok, "got %T", q)
	require.Len(t, dq.Disjuncts, 2)
	assert.Equal(t, "title", dq.Disjuncts[0].(*bleveq.TermQuery).Field())
	assert.Equal(t, "body", dq.Disjuncts[1].(*bleveq.TermQuery).Field())
}

func TestTranslate_ExactPhraseWithBigrams(t *testing.T) {
	t.Parallel()

	n := query.NewNear(0, true, query.NewBigram("", "man", "of"), query.NewBigram("", "of", "world"))

	q := New([]string{"body"}).Translate(n)

	pq, ok := q.(*bleveq.MultiPhraseQuery)
	require.True(t, ok, "got %T", q)
	assert.Equal(t, [][]string{{"man~of"}, {"of~world"}}, pq.Terms)
	assert.Equal(t, "body", pq.Field())
}

func TestTranslate_PhraseWithAlternatives(t *testing.T) {
	t.Parallel()

	n := query.NewNear(0, true,
		query.NewOr(query.NewBigram("", "the", "cat"), query.NewBigram("", "the", "dog")),
		query.NewTerm("", "sat"))

	pq, ok := New([]string{"body"}).Translate(n).(*bleveq.MultiPhraseQuery)
	require.True(t, ok)
	assert.Equal(t, [][]string{{"the~cat", "the~dog"}, {"sat"}}, pq.Terms)
}

func TestTranslate_SloppyNearIsConjunction(t *testing.T) {
	t.Parallel()

	n := query.NewNear(3, true, query.NewTerm("", "cat"), query.NewTerm("", "dog"))

	cq, ok := New([]string{"body"}).Translate(n).(*bleveq.ConjunctionQuery)
	require.True(t, ok)
	assert.Len(t, cq.Conjuncts, 2)
}

func TestTranslate_AndAndNot(t *testing.T) {
	t.Parallel()

	n := query.NewAnd(
		query.Must(query.NewTerm("", "cat")),
		query.Should(query.NewTerm("", "hat")),
		query.MustNot(query.NewTerm("", "dog")),
	)

	bq, ok := New([]string{"body"}).Translate(n).(*bleveq.BooleanQuery)
	require.True(t, ok)
	assert.NotNil(t, bq.Must)
	assert.NotNil(t, bq.MustNot)
	assert.Nil(t, bq.Should)

	notQ, ok := New([]string{"body"}).Translate(query.NewNot(0, query.NewTerm("", "a"), query.NewTerm("", "b"))).(*bleveq.BooleanQuery)
	require.True(t, ok)
	assert.NotNil(t, notQ.MustNot)
}

func TestTranslate_WildcardAndRange(t *testing.T) {
	t.Parallel()

	tr := New([]string{"body"})

	wq, ok := tr.Translate(query.NewWildcard("", "fo*")).(*bleveq.WildcardQuery)
	require.True(t, ok)
	assert.Equal(t, "fo*", wq.Wildcard)

	rq, ok := tr.Translate(query.NewRange("title", "a", "m", false)).(*bleveq.TermRangeQuery)
	require.True(t, ok)
	assert.Equal(t, "a", rq.Min)
	assert.Equal(t, "m", rq.Max)
	require.NotNil(t, rq.InclusiveMin)
	assert.False(t, *rq.InclusiveMin)
}
