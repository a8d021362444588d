// Package query defines the immutable query tree handed from the parser to
// the rewriters and, finally, to the search engine. A tree is built once per
// request and never modified afterwards: every transformation produces new
// nodes and shares the subtrees it did not touch.
package query

import (
	"fmt"
	"strings"
)

// Kind identifies the variant of a Node.
type Kind int

const (
	KindTerm Kind = iota
	KindAnd
	KindOr
	KindNear
	KindNot
	KindWildcard
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindTerm:
		return "term"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNear:
		return "near"
	case KindNot:
		return "not"
	case KindWildcard:
		return "wildcard"
	case KindRange:
		return "range"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// BigramSeparator joins the two words of a bigram term. The field tokenizer
// never produces it inside a word.
const BigramSeparator = "~"

// Bigram returns the indexed text for the word pair (first, second).
func Bigram(first, second string) string {
	return first + BigramSeparator + second
}

// Node is one vertex of a query tree. Use the New* constructors; the zero
// value is not a valid node.
type Node struct {
	kind  Kind
	boost float64
	spans int

	// term, wildcard, range
	field  string
	text   string
	bigram bool
	lower  string
	upper  string
	incl   bool

	// and
	clauses []Clause

	// or, near
	children []*Node
	slop     int
	inOrder  bool

	// not
	include *Node
	exclude *Node
}

// Clause is one member of an And node.
type Clause struct {
	Query      *Node
	Required   bool
	Prohibited bool
}

// Must returns a required clause.
func Must(n *Node) Clause { return Clause{Query: n, Required: true} }

// MustNot returns a prohibited clause.
func MustNot(n *Node) Clause { return Clause{Query: n, Prohibited: true} }

// Should returns a plain clause.
func Should(n *Node) Clause { return Clause{Query: n} }

// NewTerm returns a single-word term query.
func NewTerm(field, text string) *Node {
	if text == "" {
		panic("query: empty term text")
	}
	return &Node{kind: KindTerm, boost: 1, field: field, text: text}
}

// NewBigram returns a term matching the indexed pair (first, second). It
// spans two word positions.
func NewBigram(field, first, second string) *Node {
	if first == "" || second == "" {
		panic("query: bigram with empty component")
	}
	if strings.HasPrefix(first, BigramSeparator) || strings.HasSuffix(second, BigramSeparator) {
		panic(fmt.Sprintf("query: bigram %q/%q starts or ends with separator", first, second))
	}
	return &Node{kind: KindTerm, boost: 1, field: field, text: Bigram(first, second), bigram: true}
}

// NewWildcard returns a pattern query; '*' and '?' are the wildcards.
func NewWildcard(field, pattern string) *Node {
	if pattern == "" {
		panic("query: empty wildcard pattern")
	}
	return &Node{kind: KindWildcard, boost: 1, field: field, text: pattern}
}

// NewRange returns a term range query. Either bound may be empty (open).
func NewRange(field, lower, upper string, inclusive bool) *Node {
	return &Node{kind: KindRange, boost: 1, field: field, lower: lower, upper: upper, incl: inclusive}
}

// NewAnd returns a boolean combination of clauses.
func NewAnd(clauses ...Clause) *Node {
	if len(clauses) == 0 {
		panic("query: and without clauses")
	}
	for _, c := range clauses {
		if c.Query == nil {
			panic("query: and clause without query")
		}
		if c.Required && c.Prohibited {
			panic(fmt.Sprintf("query: clause %s is both required and prohibited", c.Query))
		}
	}
	return &Node{kind: KindAnd, boost: 1, clauses: clauses}
}

// NewOr returns a disjunction.
func NewOr(children ...*Node) *Node {
	checkChildren("or", children)
	return &Node{kind: KindOr, boost: 1, children: children}
}

// NewNear returns a proximity query: children must occur within slop words
// of each other, in the given order when inOrder is set. Slop 0 with order
// is an exact phrase.
func NewNear(slop int, inOrder bool, children ...*Node) *Node {
	checkChildren("near", children)
	if slop < 0 {
		panic(fmt.Sprintf("query: negative slop %d", slop))
	}
	return &Node{kind: KindNear, boost: 1, children: children, slop: slop, inOrder: inOrder}
}

// NewNot returns include minus any match within slop words of exclude.
func NewNot(slop int, include, exclude *Node) *Node {
	if include == nil || exclude == nil {
		panic("query: not requires include and exclude")
	}
	return &Node{kind: KindNot, boost: 1, include: include, exclude: exclude, slop: slop}
}

func checkChildren(kind string, children []*Node) {
	if len(children) == 0 {
		panic("query: " + kind + " without children")
	}
	for _, c := range children {
		if c == nil {
			panic("query: nil child in " + kind)
		}
	}
}

func (n *Node) Kind() Kind { return n.kind }
func (n *Node) Boost() float64 { return n.boost }
func (n *Node) SpanRecording() int { return n.spans }
func (n *Node) Field() string { return n.field }
func (n *Node) Text() string { return n.text }
func (n *Node) IsBigram() bool { return n.bigram }
func (n *Node) Lower() string { return n.lower }
func (n *Node) Upper() string { return n.upper }
func (n *Node) Inclusive() bool { return n.incl }
func (n *Node) Slop() int { return n.slop }
func (n *Node) InOrder() bool { return n.inOrder }
func (n *Node) Include() *Node { return n.include }
func (n *Node) Exclude() *Node { return n.exclude }
func (n *Node) Clauses() []Clause { return n.clauses }
func (n *Node) Children() []*Node { return n.children }
func (n *Node) IsLeaf() bool { return n.kind == KindTerm || n.kind == KindWildcard || n.kind == KindRange }
func (n *Node) IsContainer() bool { return !n.IsLeaf() }

// MatchLength is the number of word positions a term covers.
func (n *Node) MatchLength() int {
	if n.bigram {
		return 2
	}
	return 1
}

// Components splits a bigram term into its two words. For other terms the
// second value is empty.
func (n *Node) Components() (string, string) {
	if !n.bigram {
		return n.text, ""
	}
	first, second, _ := strings.Cut(n.text, BigramSeparator)
	return first, second
}

func (n *Node) clone() *Node {
	c := *n
	return &c
}

// WithBoost returns a copy of n with the given boost.
func (n *Node) WithBoost(boost float64) *Node {
	c := n.clone()
	c.boost = boost
	return c
}

// WithSpanRecording returns a copy of n with the given span recording level.
func (n *Node) WithSpanRecording(level int) *Node {
	c := n.clone()
	c.spans = level
	return c
}

// WithClauses returns a copy of an And node with new clauses.
func (n *Node) WithClauses(clauses []Clause) *Node {
	if n.kind != KindAnd {
		panic("query: WithClauses on " + n.kind.String())
	}
	c := NewAnd(clauses...)
	c.boost, c.spans = n.boost, n.spans
	return c
}

// WithChildren returns a copy of an Or or Near node with new children.
func (n *Node) WithChildren(children []*Node) *Node {
	if n.kind != KindOr && n.kind != KindNear {
		panic("query: WithChildren on " + n.kind.String())
	}
	checkChildren(n.kind.String(), children)
	c := n.clone()
	c.children = children
	return c
}

// WithNot returns a copy of a Not node with new include/exclude clauses.
func (n *Node) WithNot(include, exclude *Node) *Node {
	if n.kind != KindNot {
		panic("query: WithNot on " + n.kind.String())
	}
	c := NewNot(n.slop, include, exclude)
	c.boost, c.spans = n.boost, n.spans
	return c
}

// String renders the tree in a compact, deterministic form used in logs,
// API responses and tests.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	switch n.kind {
	case KindTerm, KindWildcard:
		writeField(b, n.field)
		b.WriteString(n.text)
	case KindRange:
		writeField(b, n.field)
		lo, hi := "{", "}"
		if n.incl {
			lo, hi = "[", "]"
		}
		fmt.Fprintf(b, "%s%s TO %s%s", lo, n.lower, n.upper, hi)
	case KindAnd:
		b.WriteString("AND(")
		for i, c := range n.clauses {
			if i > 0 {
				b.WriteString(", ")
			}
			switch {
			case c.Required:
				b.WriteByte('+')
			case c.Prohibited:
				b.WriteByte('-')
			}
			c.Query.write(b)
		}
		b.WriteByte(')')
	case KindOr:
		b.WriteString("OR")
		writeList(b, n.children)
	case KindNear:
		fmt.Fprintf(b, "NEAR/%d", n.slop)
		if !n.inOrder {
			b.WriteByte('u')
		}
		writeList(b, n.children)
	case KindNot:
		b.WriteString("NOT")
		if n.slop > 0 {
			fmt.Fprintf(b, "/%d", n.slop)
		}
		writeList(b, []*Node{n.include, n.exclude})
	default:
		panic("query: unknown node kind " + n.kind.String())
	}
	if n.boost != 1 {
		fmt.Fprintf(b, "^%g", n.boost)
	}
}

func writeField(b *strings.Builder, field string) {
	if field != "" {
		b.WriteString(field)
		b.WriteByte(':')
	}
}

func writeList(b *strings.Builder, nodes []*Node) {
	b.WriteByte('(')
	for i, c := range nodes {
		if i > 0 {
			b.WriteString(", ")
		}
		c.write(b)
	}
	b.WriteByte(')')
}
