// Package parser turns the text query syntax into a query tree.
//
// Syntax, whitespace separated:
//
//	cat dog            both words (AND is the default combinator)
//	cat OR dog         either word; OR/AND switch the combinator of a group
//	+cat -dog NOT dog  required, prohibited, prohibited
//	"man of war"       exact phrase
//	"cat dog"~3        words within 3 positions, in order
//	cat^2.5            boost
//	title:cat          field
//	ca* c?t            wildcards
//	[a TO m] {a TO m}  inclusive and exclusive term ranges; * is open
//	(cat OR dog) bird  grouping
//
// Words are lower-cased and split the way field text is, so a query word
// like "e-mail" becomes the phrase "e mail".
package parser

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/stopmark/pkg/errors"
)

// Parser holds the limits applied while parsing. It is safe for concurrent
// use.
type Parser struct {
	maxSlop int
	fields  map[string]bool
}

// New returns a parser clamping phrase slop to maxSlop. When fields are
// given, field prefixes naming any other field are rejected.
func New(maxSlop int, fields ...string) *Parser {
	p := &Parser{maxSlop: maxSlop}
	if len(fields) > 0 {
		p.fields = make(map[string]bool, len(fields))
		for _, f := range fields {
			p.fields[f] = true
		}
	}
	return p
}

// Parse parses input. Errors wrap apperrors.ErrInvalidQuery.
func (p *Parser) Parse(input string) (*query.Node, error) {
	s := &scanner{p: p, src: input}
	n, err := s.group("", false)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, invalid("query %q has no searchable terms", input)
	}
	return n, nil
}

func invalid(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest, format, args...)
}

type scanner struct {
	p   *Parser
	src string
	pos int
}

type item struct {
	node       *query.Node
	required   bool
	prohibited bool
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) skipSpace() {
	for !s.eof() && isSpace(s.src[s.pos]) {
		s.pos++
	}
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

// bareEnd returns the end of the bare word starting at from.
func (s *scanner) bareEnd(from int) int {
	i := from
	for i < len(s.src) {
		switch c := s.src[i]; {
		case isSpace(c), c == '(', c == ')', c == '"', c == '^':
			return i
		}
		i++
	}
	return i
}

// keyword consumes an operator word and returns it, or returns "".
func (s *scanner) keyword() string {
	end := s.bareEnd(s.pos)
	switch w := s.src[s.pos:end]; w {
	case "AND", "OR", "NOT":
		s.pos = end
		return w
	}
	return ""
}

// group parses items up to the end of input, or up to ')' when nested.
func (s *scanner) group(field string, nested bool) (*query.Node, error) {
	var (
		items  []item
		anyOr  bool
		negate bool
	)
	for {
		s.skipSpace()
		if s.eof() {
			if nested {
				return nil, invalid("missing ')' at end of query")
			}
			break
		}
		if s.peek() == ')' {
			if !nested {
				return nil, invalid("unexpected ')' at offset %d", s.pos)
			}
			s.pos++
			break
		}
		switch s.keyword() {
		case "AND":
			continue
		case "OR":
			anyOr = true
			continue
		case "NOT":
			negate = true
			continue
		}

		it := item{prohibited: negate}
		negate = false
		switch s.peek() {
		case '+':
			it.required = !it.prohibited
			s.pos++
		case '-':
			it.prohibited, it.required = true, false
			s.pos++
		}
		n, err := s.primary(field)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		if n, err = s.boost(n); err != nil {
			return nil, err
		}
		it.node = n
		items = append(items, it)
	}
	if negate {
		return nil, invalid("NOT without an operand")
	}
	return combine(items, anyOr)
}

// combine builds the node for one group. In an OR group the plain items
// form a disjunction that sits beside the required and prohibited ones.
func combine(items []item, or bool) (*query.Node, error) {
	var (
		clauses  []query.Clause
		plain    []*query.Node
		positive bool
	)
	for _, it := range items {
		switch {
		case it.prohibited:
			clauses = append(clauses, query.MustNot(it.node))
		case it.required:
			positive = true
			clauses = append(clauses, query.Must(it.node))
		case or:
			positive = true
			plain = append(plain, it.node)
		default:
			positive = true
			clauses = append(clauses, query.Should(it.node))
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	if !positive {
		return nil, invalid("query has only prohibited terms")
	}
	switch len(plain) {
	case 0:
	case 1:
		clauses = append(clauses, query.Should(plain[0]))
	default:
		clauses = append(clauses, query.Should(query.NewOr(plain...)))
	}
	if len(clauses) == 1 {
		return clauses[0].Query, nil
	}
	return query.NewAnd(clauses...), nil
}

func (s *scanner) primary(field string) (*query.Node, error) {
	if field == "" {
		if f, ok := s.fieldPrefix(); ok {
			if s.p.fields != nil && !s.p.fields[f] {
				return nil, invalid("unknown field %q", f)
			}
			return s.primary(f)
		}
	}
	switch s.peek() {
	case 0:
		return nil, invalid("missing operand at end of query")
	case '(':
		s.pos++
		return s.group(field, true)
	case '"':
		return s.phrase(field)
	case '[', '{':
		return s.termRange(field)
	}
	end := s.bareEnd(s.pos)
	if end == s.pos {
		return nil, invalid("unexpected %q at offset %d", s.src[s.pos], s.pos)
	}
	word := s.src[s.pos:end]
	s.pos = end
	return words(field, word), nil
}

// fieldPrefix consumes "name:" when the input continues with one.
func (s *scanner) fieldPrefix() (string, bool) {
	i := s.pos
	for i < len(s.src) && isNameByte(s.src[i]) {
		i++
	}
	if i == s.pos || i+1 >= len(s.src) || s.src[i] != ':' {
		return "", false
	}
	name := s.src[s.pos:i]
	s.pos = i + 1
	return name, true
}

func isNameByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func words(field, word string) *query.Node {
	if strings.ContainsAny(word, "*?") {
		return query.NewWildcard(field, strings.ToLower(word))
	}
	return sequence(field, tokenizer.Terms(word), 0)
}

func sequence(field string, terms []string, slop int) *query.Node {
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return query.NewTerm(field, terms[0])
	}
	nodes := make([]*query.Node, len(terms))
	for i, t := range terms {
		nodes[i] = query.NewTerm(field, t)
	}
	return query.NewNear(slop, true, nodes...)
}

func (s *scanner) phrase(field string) (*query.Node, error) {
	start := s.pos
	end := strings.IndexByte(s.src[start+1:], '"')
	if end < 0 {
		return nil, invalid("unterminated phrase at offset %d", start)
	}
	text := s.src[start+1 : start+1+end]
	s.pos = start + end + 2

	slop := 0
	if s.peek() == '~' {
		s.pos++
		digits := s.pos
		for !s.eof() && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
			s.pos++
		}
		n, err := strconv.Atoi(s.src[digits:s.pos])
		if err != nil {
			return nil, invalid("bad slop after phrase at offset %d", digits)
		}
		slop = min(n, s.p.maxSlop)
	}
	return sequence(field, tokenizer.Terms(text), slop), nil
}

func (s *scanner) termRange(field string) (*query.Node, error) {
	open := s.src[s.pos]
	closer, inclusive := byte('}'), false
	if open == '[' {
		closer, inclusive = ']', true
	}
	end := strings.IndexByte(s.src[s.pos:], closer)
	if end < 0 {
		return nil, invalid("unterminated range at offset %d", s.pos)
	}
	parts := strings.Fields(s.src[s.pos+1 : s.pos+end])
	if len(parts) != 3 || parts[1] != "TO" {
		return nil, invalid("range at offset %d must be %cLOW TO HIGH%c", s.pos, open, closer)
	}
	s.pos += end + 1
	bound := func(b string) string {
		if b == "*" {
			return ""
		}
		return strings.ToLower(b)
	}
	return query.NewRange(field, bound(parts[0]), bound(parts[2]), inclusive), nil
}

func (s *scanner) boost(n *query.Node) (*query.Node, error) {
	if s.peek() != '^' {
		return n, nil
	}
	s.pos++
	end := s.bareEnd(s.pos)
	b, err := strconv.ParseFloat(s.src[s.pos:end], 64)
	if err != nil || b <= 0 {
		return nil, invalid("bad boost %q at offset %d", s.src[s.pos:end], s.pos)
	}
	s.pos = end
	return n.WithBoost(b), nil
}
