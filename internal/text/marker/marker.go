// Package marker turns the scored hit spans of one field into a stream of
// marking events: where the field, each context window, each span and each
// highlighted term begin and end. A Sink receives the events in document
// order and renders them however it likes.
//
// Context windows grow around each span, alternately backward and forward,
// until a character budget is used up. Windows of neighbouring spans never
// overlap: each one stops at the midpoint between the two spans.
package marker

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/stopwords"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/wordcursor"
)

// Mode controls which terms are marked. Each mode includes the ones before
// it.
type Mode int

const (
	NoTerms Mode = iota
	SpanTermsOnly
	ContextAndSpanTerms
	AllTermsInField
)

// ParseMode reads the configuration spelling of a mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "none":
		return NoTerms, nil
	case "span", "":
		return SpanTermsOnly, nil
	case "context":
		return ContextAndSpanTerms, nil
	case "all":
		return AllTermsInField, nil
	default:
		return NoTerms, fmt.Errorf("unknown term marking mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case NoTerms:
		return "none"
	case SpanTermsOnly:
		return "span"
	case ContextAndSpanTerms:
		return "context"
	case AllTermsInField:
		return "all"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Span is a matched run of words [Start, End).
type Span struct {
	Start int
	End   int
	Score float64
	Rank  int
}

// Sink receives marking events.
type Sink interface {
	BeginField(pos wordcursor.Pos)
	BeginContext(pos wordcursor.Pos, span Span)
	BeginSpan(pos wordcursor.Pos, span Span)
	Term(start, end wordcursor.Pos, term string)
	EndSpan(pos wordcursor.Pos)
	EndContext(pos wordcursor.Pos)
	EndField(pos wordcursor.Pos)
}

// Options configure a Marker.
type Options struct {
	// Terms are the search terms to highlight.
	Terms []string
	// StopWords are only highlighted inside a span.
	StopWords stopwords.Set
	Mode      Mode
}

// Marker marks one field. It is single-use per field and not safe for
// concurrent use.
type Marker struct {
	field *wordcursor.Field
	terms map[string]struct{}
	stops stopwords.Set
	mode  Mode

	sink Sink
	// prevEnd is the first word a context may claim.
	prevEnd int
	// termsDone is the first word not yet scanned for terms.
	termsDone int
}

// New returns a Marker over field.
func New(field *wordcursor.Field, opts Options) *Marker {
	terms := make(map[string]struct{}, len(opts.Terms))
	for _, t := range opts.Terms {
		terms[t] = struct{}{}
	}
	return &Marker{field: field, terms: terms, stops: opts.StopWords, mode: opts.Mode}
}

// Mark emits the events for spans to sink. Spans may come in any order and
// must not overlap. Context is marked around each span when maxContextChars
// is positive.
func (m *Marker) Mark(spans []Span, maxContextChars int, sink Sink) {
	m.sink = sink
	m.prevEnd, m.termsDone = 0, 0

	spans = m.prepare(spans)
	checkSpans(m.field, spans, m.terms)

	sink.BeginField(m.field.At(0, wordcursor.FieldStart))
	var prev *Span
	for i := range spans {
		sp := spans[i]
		var next *Span
		if i+1 < len(spans) {
			next = &spans[i+1]
		}
		first, last := sp.Start, sp.End-1
		withContext := maxContextChars > 0
		if withContext {
			first, last = m.findContext(sp, prev, next, maxContextChars)
		}
		m.emitMarks(sp, first, last, withContext)
		m.prevEnd = last + 1
		prev = &spans[i]
	}
	if m.mode >= AllTermsInField && len(spans) > 0 {
		m.markTerms(m.termsDone, m.field.Len(), false)
	}
	sink.EndField(m.field.At(0, wordcursor.FieldEnd))
}

// prepare validates spans, scales scores to [0,1] and sorts by start.
func (m *Marker) prepare(in []Span) []Span {
	spans := make([]Span, len(in))
	copy(spans, in)
	maxScore := 0.0
	for _, sp := range spans {
		if sp.Start >= sp.End {
			panic(fmt.Sprintf("marker: empty span [%d,%d) in field %q", sp.Start, sp.End, m.field.Name()))
		}
		if sp.Start < 0 || sp.End > m.field.Len() {
			panic(fmt.Sprintf("marker: span [%d,%d) outside field %q of %d words",
				sp.Start, sp.End, m.field.Name(), m.field.Len()))
		}
		maxScore = max(maxScore, sp.Score)
	}
	if maxScore > 0 {
		for i := range spans {
			spans[i].Score /= maxScore
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans
}

// findContext grows a window of words around sp and returns its first and
// last word. The side with fewer added characters grows next, backward on a
// tie. A side stops at the field edge, at a soft boundary, when the next
// word would exceed the budget, backward at the previous context or the
// midpoint with the previous span, and forward at the midpoint with the
// next span.
func (m *Marker) findContext(sp Span, prev, next *Span, budget int) (int, int) {
	low := m.prevEnd
	if prev != nil {
		low = max(low, midpoint(prev, &sp))
	}
	high := m.field.Len() - 1
	if next != nil {
		high = min(high, midpoint(&sp, next)-1)
	}

	startCur := m.field.Cursor()
	startCur.SeekFirst(sp.Start, true)
	endCur := startCur.Clone()
	endCur.SeekLast(sp.End-1, true)

	used := m.field.At(sp.Start, wordcursor.WordStart).DistanceTo(m.field.At(sp.End-1, wordcursor.WordEnd))
	addedStart, addedEnd := 0, 0
	canBack, canFwd := true, true
	for canBack || canFwd {
		if canBack && (!canFwd || addedStart <= addedEnd) {
			canBack = m.growBack(startCur, low, budget, used+addedStart+addedEnd, &addedStart)
		} else {
			canFwd = m.growForward(endCur, high, budget, used+addedStart+addedEnd, &addedEnd)
		}
	}
	return startCur.WordPos(), endCur.WordPos()
}

func (m *Marker) growBack(c *wordcursor.Cursor, low, budget, used int, added *int) bool {
	w := c.WordPos()
	if w-1 < low {
		return false
	}
	cost := m.field.At(w-1, wordcursor.WordStart).DistanceTo(m.field.At(w, wordcursor.WordStart))
	if used+cost > budget || !c.Prev(false) {
		return false
	}
	*added += cost
	return true
}

func (m *Marker) growForward(c *wordcursor.Cursor, high, budget, used int, added *int) bool {
	w := c.WordPos()
	if w+1 > high {
		return false
	}
	cost := m.field.At(w, wordcursor.WordEnd).DistanceTo(m.field.At(w+1, wordcursor.WordEnd))
	if used+cost > budget || !c.Next(false) {
		return false
	}
	*added += cost
	return true
}

// midpoint is the first word that belongs to b rather than a.
func midpoint(a, b *Span) int {
	return (a.End + b.Start + 1) / 2
}

// emitMarks writes the events for one span whose context covers words
// first..last.
func (m *Marker) emitMarks(sp Span, first, last int, withContext bool) {
	f := m.field
	if m.mode >= AllTermsInField {
		m.markTerms(m.termsDone, first, false)
	}
	if withContext {
		m.sink.BeginContext(f.At(first, wordcursor.WordStart), sp)
	}
	if m.mode >= ContextAndSpanTerms {
		m.markTerms(first, sp.Start, false)
	}
	m.sink.BeginSpan(f.At(sp.Start, wordcursor.WordStart), sp)
	if m.mode >= SpanTermsOnly {
		m.markTerms(sp.Start, sp.End, true)
	}
	m.sink.EndSpan(f.At(sp.End-1, wordcursor.WordEnd))
	if m.mode >= ContextAndSpanTerms {
		m.markTerms(sp.End, last+1, false)
	}
	if withContext {
		m.sink.EndContext(f.At(last, wordcursor.WordEndPlus))
	}
	m.termsDone = max(m.termsDone, last+1)
}

// markTerms emits a Term for each search term in words [from, to) not
// already scanned. Stop words are skipped unless withStops is set.
func (m *Marker) markTerms(from, to int, withStops bool) {
	from = max(from, m.termsDone)
	for w := from; w < to; w++ {
		term := m.field.Token(w).Term
		if _, ok := m.terms[term]; !ok {
			continue
		}
		if !withStops && m.stops.Contains(term) {
			continue
		}
		m.sink.Term(m.field.At(w, wordcursor.WordStart), m.field.At(w, wordcursor.WordEnd), term)
	}
	m.termsDone = max(m.termsDone, to)
}
