// Package bigram rewrites queries for an index that stores stop words only
// as bigrams: each stop word is fused with its neighbour ("man of" becomes
// "man~of") instead of simply being thrown away, so phrases containing
// common words stay precise.
//
// Fusion only makes sense where adjacency is known, which is inside ordered
// Near sequences. Elsewhere stop words are dropped. Every stop word touched
// is reported so the caller can tell the user which words were ignored.
package bigram

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query/rewrite"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/stopwords"
)

// Rewriter holds the stop-word configuration. It keeps no per-query state
// and is safe for concurrent use.
type Rewriter struct {
	stops   stopwords.Set
	maxSlop int
}

// New returns a Rewriter for the given stop words. maxSlop is advisory: it
// is exposed for callers that clamp user-supplied proximity, and is not
// enforced here.
func New(stops stopwords.Set, maxSlop int) *Rewriter {
	return &Rewriter{stops: stops, maxSlop: maxSlop}
}

// MaxSlop returns the configured proximity ceiling.
func (b *Rewriter) MaxSlop() int { return b.maxSlop }

// StopWords returns the configured stop-word set.
func (b *Rewriter) StopWords() stopwords.Set { return b.stops }

// Outcome is the result of rewriting one query.
type Outcome struct {
	// Query is the rewritten tree, or nil when nothing searchable is left.
	Query *query.Node
	// Removed lists the stop words that were dropped or fused, sorted.
	Removed []string
	// Changed is false when Query is the very tree that was passed in.
	Changed bool
}

// Rewrite applies stop-word elision to q.
func (b *Rewriter) Rewrite(q *query.Node) Outcome {
	st := &state{stops: b.stops, removed: make(map[string]struct{})}
	rw := rewrite.New(rewrite.Rules{
		And:  st.and,
		Or:   st.or,
		Near: st.near,
	})
	res := rw.Rewrite(q)
	removed := make([]string, 0, len(st.removed))
	for w := range st.removed {
		removed = append(removed, w)
	}
	sort.Strings(removed)
	return Outcome{Query: res.Node(), Removed: removed, Changed: res.Changed()}
}

type state struct {
	stops   stopwords.Set
	removed map[string]struct{}
}

func (s *state) isStop(n *query.Node) bool {
	return n.Kind() == query.KindTerm && !n.IsBigram() && s.stops.Contains(n.Text())
}

func (s *state) remove(n *query.Node) {
	s.removed[n.Text()] = struct{}{}
}

// and drops stop-word clauses unless the user required them. Required
// clauses carry no ordering and may target different fields, so they are
// never fused.
func (s *state) and(rw *rewrite.Rewriter, n *query.Node) rewrite.Result {
	clauses := n.Clauses()
	out := make([]query.Clause, 0, len(clauses))
	dirty := false
	for _, c := range clauses {
		if !c.Required && s.isStop(c.Query) {
			s.remove(c.Query)
			dirty = true
			continue
		}
		res := rw.Rewrite(c.Query)
		if res.Changed() {
			dirty = true
		}
		if res.Empty() {
			continue
		}
		out = append(out, query.Clause{Query: res.Node(), Required: c.Required, Prohibited: c.Prohibited})
	}
	if !dirty {
		return rewrite.Unchanged(n)
	}
	return rw.RebuildAnd(n, out)
}

// or drops stop-word alternatives; a disjunction has no adjacency to fuse
// across.
func (s *state) or(rw *rewrite.Rewriter, n *query.Node) rewrite.Result {
	kept, dirty := s.dropStops(n.Children())
	children, childDirty := rw.RewriteAll(kept)
	if !dirty && !childDirty {
		return rewrite.Unchanged(n)
	}
	return rw.RebuildList(n, children)
}

func (s *state) dropStops(list []*query.Node) ([]*query.Node, bool) {
	out := make([]*query.Node, 0, len(list))
	for _, c := range list {
		if s.isStop(c) {
			s.remove(c)
			continue
		}
		out = append(out, c)
	}
	return out, len(out) != len(list)
}

// near fuses stop words into their neighbours. Unordered proximity has no
// reliable neighbour, so it is treated like a disjunction.
func (s *state) near(rw *rewrite.Rewriter, n *query.Node) rewrite.Result {
	if !n.InOrder() {
		return s.or(rw, n)
	}
	children, dirty := rw.RewriteAll(n.Children())
	seq, fused := s.sequence(children, n.Slop())
	if !dirty && !fused {
		return rewrite.Unchanged(n)
	}
	return rw.RebuildList(n, seq)
}

// sequence bigrams an ordered run of clauses. The second result is false
// when the run contains no stop words and is returned as is.
func (s *state) sequence(kids []*query.Node, slop int) ([]*query.Node, bool) {
	stop := make([]bool, len(kids))
	nStops, run, longest := 0, 0, 0
	for i, k := range kids {
		if s.isStop(k) {
			stop[i] = true
			nStops++
			run++
			longest = max(longest, run)
			s.remove(k)
		} else {
			run = 0
		}
	}
	switch {
	case nStops == 0:
		return kids, false
	case nStops == len(kids):
		return nil, true
	}

	var out []*query.Node
	switch {
	case slop == 0:
		out = s.exact(kids, stop)
	case longest <= 2:
		out = s.inexact(kids, stop)
	default:
		// Three or more stop words in a row with slop: neither policy is
		// right on its own, so accept a match by either.
		exact := s.group(s.exact(kids, stop), slop)
		inexact := s.group(s.inexact(kids, stop), slop)
		out = []*query.Node{query.NewOr(exact, inexact)}
	}
	s.checkTerms(out)
	return out, true
}

func (s *state) group(list []*query.Node, slop int) *query.Node {
	if len(list) == 1 {
		return list[0]
	}
	return query.NewNear(slop, true, list...)
}

// exact fuses every adjacent pair that contains a stop word. A real word
// stands alone only when neither neighbour is a stop word; otherwise the
// pairs around it already cover it.
func (s *state) exact(kids []*query.Node, stop []bool) []*query.Node {
	out := make([]*query.Node, 0, len(kids))
	for i, k := range kids {
		if i+1 < len(kids) && (stop[i] || stop[i+1]) {
			out = s.appendDistinct(out, s.fuse(k, kids[i+1]))
			continue
		}
		if !stop[i] && (i == 0 || !stop[i-1]) {
			out = append(out, k)
		}
	}
	return out
}

// inexact keeps both the lone word and its bigram wherever a real word
// touches a stop word, since with slop the stop word may not be adjacent
// in the document. Consecutive stop words add nothing of their own.
func (s *state) inexact(kids []*query.Node, stop []bool) []*query.Node {
	out := make([]*query.Node, 0, len(kids))
	for i, k := range kids {
		hasNext := i+1 < len(kids)
		switch {
		case stop[i]:
			if hasNext && !stop[i+1] {
				out = append(out, alternatives(s.fuse(k, kids[i+1]), kids[i+1]))
			}
		case hasNext && stop[i+1]:
			out = append(out, alternatives(k, s.fuse(k, kids[i+1])))
		case i == 0 || !stop[i-1]:
			out = append(out, k)
		}
	}
	return out
}

// appendDistinct skips a node identical to the previous one, which happens
// when a fusion is a no-op on both sides of a real clause.
func (s *state) appendDistinct(out []*query.Node, n *query.Node) []*query.Node {
	if len(out) > 0 && out[len(out)-1] == n {
		return out
	}
	return append(out, n)
}

func alternatives(a, b *query.Node) *query.Node {
	if a == b {
		return a
	}
	return query.NewOr(a, b)
}

// fuse joins two adjacent clauses into the bigram form.
func (s *state) fuse(a, b *query.Node) *query.Node {
	ak, bk := a.Kind(), b.Kind()
	switch {
	case ak == query.KindTerm && bk == query.KindTerm:
		if a.IsBigram() || b.IsBigram() {
			return s.survivor(a, b)
		}
		return s.newBigram(a, b)
	case bk == query.KindOr:
		fused := make([]*query.Node, 0, len(b.Children()))
		for _, c := range b.Children() {
			fused = append(fused, s.fuse(a, c))
		}
		return b.WithChildren(fused)
	case ak == query.KindOr:
		fused := make([]*query.Node, 0, len(a.Children()))
		for _, c := range a.Children() {
			fused = append(fused, s.fuse(c, b))
		}
		return a.WithChildren(fused)
	case bk == query.KindNot:
		return b.WithNot(s.fuse(a, b.Include()), b.Exclude())
	case ak == query.KindNot:
		return a.WithNot(s.fuse(a.Include(), b), a.Exclude())
	default:
		// Near inside Near, and anything else without a single word to
		// join, is left alone.
		return s.survivor(a, b)
	}
}

// survivor returns the clause of a pair that is not a plain stop word.
func (s *state) survivor(a, b *query.Node) *query.Node {
	if s.isStop(a) {
		return b
	}
	return a
}

func (s *state) newBigram(a, b *query.Node) *query.Node {
	t := query.NewBigram(a.Field(), a.Text(), b.Text()).WithBoost(rewrite.MaxBoost(a, b))
	if lvl := max(a.SpanRecording(), b.SpanRecording()); lvl > 0 {
		t = t.WithSpanRecording(lvl)
	}
	return t
}

// checkTerms panics if a plain stop word is left in a fused sequence. Every
// stop word of a sequence must end up inside a bigram or be dropped.
func (s *state) checkTerms(list []*query.Node) {
	for _, n := range list {
		switch {
		case n.Kind() == query.KindOr:
			s.checkTerms(n.Children())
		case s.isStop(n):
			panic(fmt.Sprintf("bigram: stop word %q left unfused in a sequence", n.Text()))
		}
	}
}
