package query

import "sort"

// Walk calls fn for n and each of its descendants in depth-first order,
// skipping the subtree below any node for which fn returns false.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n.kind {
	case KindTerm, KindWildcard, KindRange:
	case KindAnd:
		for _, c := range n.clauses {
			Walk(c.Query, fn)
		}
	case KindOr, KindNear:
		for _, c := range n.children {
			Walk(c, fn)
		}
	case KindNot:
		Walk(n.include, fn)
		Walk(n.exclude, fn)
	default:
		panic("query: unknown node kind " + n.kind.String())
	}
}

// Terms returns the distinct words a match of n can highlight, sorted.
// Bigram terms contribute both of their words. Prohibited clauses and Not
// exclusions never produce matches and are skipped, as are wildcard and
// range patterns.
func Terms(n *Node) []string {
	set := make(map[string]struct{})
	collectTerms(n, set)
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func collectTerms(n *Node, set map[string]struct{}) {
	if n == nil {
		return
	}
	switch n.kind {
	case KindTerm:
		first, second := n.Components()
		set[first] = struct{}{}
		if second != "" {
			set[second] = struct{}{}
		}
	case KindWildcard, KindRange:
	case KindAnd:
		for _, c := range n.clauses {
			if !c.Prohibited {
				collectTerms(c.Query, set)
			}
		}
	case KindOr, KindNear:
		for _, c := range n.children {
			collectTerms(c, set)
		}
	case KindNot:
		collectTerms(n.include, set)
	default:
		panic("query: unknown node kind " + n.kind.String())
	}
}
