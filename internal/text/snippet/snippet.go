// Package snippet collects marker events into result snippets: the text of
// each context window with the offsets of its span and highlighted terms.
package snippet

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/marker"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/wordcursor"
)

// Highlight is a marked term. Offsets are bytes into the snippet text, or
// into the field text for terms outside any snippet.
type Highlight struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Term  string `json:"term"`
}

// Snippet is one context window around a hit.
type Snippet struct {
	Field      string      `json:"field"`
	Text       string      `json:"text"`
	Offset     int         `json:"offset"`
	SpanStart  int         `json:"spanStart"`
	SpanEnd    int         `json:"spanEnd"`
	Score      float64     `json:"score"`
	Rank       int         `json:"rank"`
	Highlights []Highlight `json:"highlights,omitempty"`
}

// Marked returns the snippet text with every highlight wrapped in open and
// close.
func (s Snippet) Marked(open, close string) string {
	var b strings.Builder
	last := 0
	for _, h := range s.Highlights {
		b.WriteString(s.Text[last:h.Start])
		b.WriteString(open)
		b.WriteString(s.Text[h.Start:h.End])
		b.WriteString(close)
		last = h.End
	}
	b.WriteString(s.Text[last:])
	return b.String()
}

// Collector is a marker.Sink building snippets for one field.
type Collector struct {
	field string

	snippets []Snippet
	// Loose holds terms marked outside every snippet.
	loose []Highlight

	open    bool
	context bool
	start   wordcursor.Pos
	cur     Snippet
}

var _ marker.Sink = (*Collector)(nil)

// NewCollector returns a Collector for the named field.
func NewCollector(field string) *Collector {
	return &Collector{field: field}
}

// Snippets returns the snippets collected so far, in field order.
func (c *Collector) Snippets() []Snippet { return c.snippets }

// Loose returns terms marked outside any snippet, with field offsets.
func (c *Collector) Loose() []Highlight { return c.loose }

func (c *Collector) BeginField(wordcursor.Pos) {}

func (c *Collector) EndField(wordcursor.Pos) {}

func (c *Collector) BeginContext(pos wordcursor.Pos, span marker.Span) {
	c.begin(pos, span)
	c.context = true
}

func (c *Collector) BeginSpan(pos wordcursor.Pos, span marker.Span) {
	if !c.open {
		c.begin(pos, span)
	}
	c.cur.SpanStart = pos.Offset - c.start.Offset
}

func (c *Collector) Term(start, end wordcursor.Pos, term string) {
	if !c.open {
		c.loose = append(c.loose, Highlight{Start: start.Offset, End: end.Offset, Term: term})
		return
	}
	c.cur.Highlights = append(c.cur.Highlights, Highlight{
		Start: start.Offset - c.start.Offset,
		End:   end.Offset - c.start.Offset,
		Term:  term,
	})
}

func (c *Collector) EndSpan(pos wordcursor.Pos) {
	c.cur.SpanEnd = pos.Offset - c.start.Offset
	if !c.context {
		c.end(pos)
	}
}

func (c *Collector) EndContext(pos wordcursor.Pos) {
	c.end(pos)
}

func (c *Collector) begin(pos wordcursor.Pos, span marker.Span) {
	c.open = true
	c.start = pos
	c.cur = Snippet{Field: c.field, Offset: pos.Offset, Score: span.Score, Rank: span.Rank}
}

func (c *Collector) end(pos wordcursor.Pos) {
	c.cur.Text = strings.TrimRightFunc(c.start.TextTo(pos), unicode.IsSpace)
	c.snippets = append(c.snippets, c.cur)
	c.open, c.context = false, false
	c.cur = Snippet{}
}
