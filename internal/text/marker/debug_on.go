//go:build markdebug

package marker

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/wordcursor"
)

// checkSpans looks for the symptoms of an analyzer mismatch between the
// index and the marker: overlapping spans, and spans whose edge words are
// not search terms.
func checkSpans(f *wordcursor.Field, spans []Span, terms map[string]struct{}) {
	for i, sp := range spans {
		if i > 0 && spans[i-1].End > sp.Start {
			panic(fmt.Sprintf("marker: spans [%d,%d) and [%d,%d) overlap in field %q",
				spans[i-1].Start, spans[i-1].End, sp.Start, sp.End, f.Name()))
		}
		for _, w := range []int{sp.Start, sp.End - 1} {
			if _, ok := terms[f.Token(w).Term]; !ok {
				panic(fmt.Sprintf("marker: span [%d,%d) edge word %q is not a search term in field %q",
					sp.Start, sp.End, f.Token(w).Term, f.Name()))
			}
		}
	}
}
