// Package translate turns a rewritten query tree into a bleve query.
//
// Terms without a field are searched in every configured field: the whole
// tree is translated once per field and the results are OR'ed, so a phrase
// or a conjunction must match within a single field.
package translate

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	bleveq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query"
)

// Translator converts query trees for a fixed set of default fields.
type Translator struct {
	fields []string
}

// New returns a Translator searching unfielded terms in fields.
func New(fields []string) *Translator {
	if len(fields) == 0 {
		panic("translate: no default fields")
	}
	return &Translator{fields: fields}
}

// Translate converts n.
func (t *Translator) Translate(n *query.Node) bleveq.Query {
	if !unfielded(n) || len(t.fields) == 1 {
		return node(n, t.fields[0])
	}
	perField := make([]bleveq.Query, len(t.fields))
	for i, f := range t.fields {
		perField[i] = node(n, f)
	}
	return bleve.NewDisjunctionQuery(perField...)
}

func unfielded(n *query.Node) bool {
	found := false
	query.Walk(n, func(c *query.Node) bool {
		if c.IsLeaf() && c.Field() == "" {
			found = true
		}
		return !found
	})
	return found
}

func fieldOf(n *query.Node, def string) string {
	if n.Field() != "" {
		return n.Field()
	}
	return def
}

func node(n *query.Node, field string) bleveq.Query {
	switch n.Kind() {
	case query.KindTerm:
		q := bleve.NewTermQuery(n.Text())
		q.SetField(fieldOf(n, field))
		q.SetBoost(n.Boost())
		return q
	case query.KindWildcard:
		q := bleve.NewWildcardQuery(n.Text())
		q.SetField(fieldOf(n, field))
		q.SetBoost(n.Boost())
		return q
	case query.KindRange:
		incl := n.Inclusive()
		q := bleve.NewTermRangeInclusiveQuery(n.Lower(), n.Upper(), &incl, &incl)
		q.SetField(fieldOf(n, field))
		q.SetBoost(n.Boost())
		return q
	case query.KindAnd:
		q := bleve.NewBooleanQuery()
		for _, c := range n.Clauses() {
			if c.Prohibited {
				q.AddMustNot(node(c.Query, field))
			} else {
				q.AddMust(node(c.Query, field))
			}
		}
		q.SetBoost(n.Boost())
		return q
	case query.KindOr:
		q := bleve.NewDisjunctionQuery(list(n.Children(), field)...)
		q.SetBoost(n.Boost())
		return q
	case query.KindNear:
		return near(n, field)
	case query.KindNot:
		q := bleve.NewBooleanQuery()
		q.AddMust(node(n.Include(), field))
		q.AddMustNot(node(n.Exclude(), field))
		q.SetBoost(n.Boost())
		return q
	default:
		panic(fmt.Sprintf("translate: unhandled node kind %s", n.Kind()))
	}
}

func list(nodes []*query.Node, field string) []bleveq.Query {
	out := make([]bleveq.Query, len(nodes))
	for i, c := range nodes {
		out[i] = node(c, field)
	}
	return out
}

// near becomes a phrase when it is exact and every position is a term or a
// disjunction of terms in one field. bleve has no sloppy or unordered
// proximity, so anything else degrades to a conjunction.
func near(n *query.Node, field string) bleveq.Query {
	if n.Slop() == 0 && n.InOrder() {
		if terms, f, ok := phraseTerms(n.Children(), field); ok {
			q := bleveq.NewMultiPhraseQuery(terms, f)
			q.SetBoost(n.Boost())
			return q
		}
	}
	q := bleve.NewConjunctionQuery(list(n.Children(), field)...)
	q.SetBoost(n.Boost())
	return q
}

func phraseTerms(children []*query.Node, def string) ([][]string, string, bool) {
	terms := make([][]string, 0, len(children))
	field := ""
	same := func(n *query.Node) bool {
		f := fieldOf(n, def)
		if field == "" {
			field = f
		}
		return f == field
	}
	for _, c := range children {
		switch c.Kind() {
		case query.KindTerm:
			if !same(c) {
				return nil, "", false
			}
			terms = append(terms, []string{c.Text()})
		case query.KindOr:
			alts := make([]string, 0, len(c.Children()))
			for _, a := range c.Children() {
				if a.Kind() != query.KindTerm || !same(a) {
					return nil, "", false
				}
				alts = append(alts, a.Text())
			}
			terms = append(terms, alts)
		default:
			return nil, "", false
		}
	}
	return terms, field, true
}
