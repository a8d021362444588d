// Package rewrite is a bottom-up query tree rewriter. It dispatches on the
// node kind, rewrites children first, rebuilds a parent only when one of its
// children changed, and simplifies containers left empty or with a single
// child. Specialised rewriters override the per-kind rules they care about
// and fall back to the defaults for the rest.
package rewrite

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query"
)

// Result is the outcome of rewriting one node: the input itself when
// nothing changed, a replacement node, or nothing at all.
type Result struct {
	node    *query.Node
	changed bool
}

// Unchanged reports that n was left as it is.
func Unchanged(n *query.Node) Result { return Result{node: n} }

// Changed reports that the input was replaced by n.
func Changed(n *query.Node) Result { return Result{node: n, changed: true} }

// Removed reports that the input rewrote to nothing.
func Removed() Result { return Result{changed: true} }

// Node returns the rewritten node, or nil when the input was removed.
func (r Result) Node() *query.Node { return r.node }

// Changed reports whether the rewrite produced something other than its
// input.
func (r Result) Changed() bool { return r.changed }

// Empty reports whether the input rewrote to nothing.
func (r Result) Empty() bool { return r.node == nil }

// Rule rewrites a single node of the kind it is registered for. It may call
// back into rw to rewrite children.
type Rule func(rw *Rewriter, n *query.Node) Result

// Rules holds per-kind overrides. A nil rule selects the default behaviour.
type Rules struct {
	Term     Rule
	Wildcard Rule
	Range    Rule
	And      Rule
	Or       Rule
	Near     Rule
	Not      Rule
}

// Rewriter walks a tree applying Rules.
type Rewriter struct {
	rules Rules
	force bool
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// Force makes every node count as changed, so the whole tree is copied
// even when no rule alters it.
func Force() Option {
	return func(r *Rewriter) { r.force = true }
}

// New returns a Rewriter applying rules.
func New(rules Rules, opts ...Option) *Rewriter {
	r := &Rewriter{rules: rules}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite dispatches n to the rule for its kind.
func (r *Rewriter) Rewrite(n *query.Node) Result {
	switch n.Kind() {
	case query.KindTerm:
		return r.apply(r.rules.Term, r.Leaf, n)
	case query.KindWildcard:
		return r.apply(r.rules.Wildcard, r.Leaf, n)
	case query.KindRange:
		return r.apply(r.rules.Range, r.Leaf, n)
	case query.KindAnd:
		return r.apply(r.rules.And, r.DefaultAnd, n)
	case query.KindOr:
		return r.apply(r.rules.Or, r.DefaultOr, n)
	case query.KindNear:
		return r.apply(r.rules.Near, r.DefaultNear, n)
	case query.KindNot:
		return r.apply(r.rules.Not, r.DefaultNot, n)
	default:
		panic("rewrite: unhandled node kind " + n.Kind().String())
	}
}

func (r *Rewriter) apply(rule Rule, fallback func(*query.Node) Result, n *query.Node) Result {
	if rule != nil {
		return rule(r, n)
	}
	return fallback(n)
}

// Leaf is the default for terms, wildcards and ranges: identity, or a copy
// when forced.
func (r *Rewriter) Leaf(n *query.Node) Result {
	if r.force {
		return Changed(n.WithBoost(n.Boost()))
	}
	return Unchanged(n)
}

// DefaultAnd rewrites every clause, keeping each clause's flags.
func (r *Rewriter) DefaultAnd(n *query.Node) Result {
	clauses := n.Clauses()
	out := make([]query.Clause, 0, len(clauses))
	dirty := r.force
	for _, c := range clauses {
		res := r.Rewrite(c.Query)
		if res.Changed() {
			dirty = true
		}
		if res.Empty() {
			continue
		}
		out = append(out, query.Clause{Query: res.Node(), Required: c.Required, Prohibited: c.Prohibited})
	}
	if !dirty {
		return Unchanged(n)
	}
	return r.RebuildAnd(n, out)
}

// RebuildAnd replaces the clauses of n. An And left with no positive clause
// disappears; one left with a single positive clause collapses into it.
func (r *Rewriter) RebuildAnd(n *query.Node, clauses []query.Clause) Result {
	positive := 0
	for _, c := range clauses {
		if !c.Prohibited {
			positive++
		}
	}
	if positive == 0 {
		return Removed()
	}
	if len(clauses) == 1 {
		return Changed(Collapse(n, clauses[0].Query))
	}
	return Changed(n.WithClauses(clauses))
}

// DefaultOr rewrites every child.
func (r *Rewriter) DefaultOr(n *query.Node) Result {
	return r.rewriteChildren(n)
}

// DefaultNear rewrites every child.
func (r *Rewriter) DefaultNear(n *query.Node) Result {
	return r.rewriteChildren(n)
}

func (r *Rewriter) rewriteChildren(n *query.Node) Result {
	children, dirty := r.RewriteAll(n.Children())
	if !dirty {
		return Unchanged(n)
	}
	return r.RebuildList(n, children)
}

// RewriteAll rewrites each node of list, dropping the ones that vanish. The
// second result reports whether anything changed.
func (r *Rewriter) RewriteAll(list []*query.Node) ([]*query.Node, bool) {
	out := make([]*query.Node, 0, len(list))
	dirty := r.force
	for _, c := range list {
		res := r.Rewrite(c)
		if res.Changed() {
			dirty = true
		}
		if !res.Empty() {
			out = append(out, res.Node())
		}
	}
	return out, dirty
}

// RebuildList replaces the children of an Or or Near node, removing it when
// nothing is left and collapsing it into a lone survivor.
func (r *Rewriter) RebuildList(n *query.Node, children []*query.Node) Result {
	switch len(children) {
	case 0:
		return Removed()
	case 1:
		return Changed(Collapse(n, children[0]))
	default:
		return Changed(n.WithChildren(children))
	}
}

// DefaultNot rewrites include and exclude. A Not whose include vanishes is
// removed; one whose exclude vanishes reduces to its include.
func (r *Rewriter) DefaultNot(n *query.Node) Result {
	inc := r.Rewrite(n.Include())
	if inc.Empty() {
		return Removed()
	}
	exc := r.Rewrite(n.Exclude())
	if exc.Empty() {
		return Changed(Collapse(n, inc.Node()))
	}
	if !r.force && !inc.Changed() && !exc.Changed() {
		return Unchanged(n)
	}
	return Changed(n.WithNot(inc.Node(), exc.Node()))
}

// Collapse replaces parent by child: the child's boost is multiplied by the
// parent's and it records spans at the higher of the two levels.
func Collapse(parent, child *query.Node) *query.Node {
	level := max(parent.SpanRecording(), child.SpanRecording())
	if parent.Boost() == 1 && level == child.SpanRecording() {
		return child
	}
	out := child.WithBoost(child.Boost() * parent.Boost())
	if level != out.SpanRecording() {
		out = out.WithSpanRecording(level)
	}
	return out
}

// MaxBoost returns the larger boost of a and b.
func MaxBoost(a, b *query.Node) float64 {
	return math.Max(a.Boost(), b.Boost())
}
