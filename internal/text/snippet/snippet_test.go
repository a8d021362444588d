package snippet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/marker"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/stopwords"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/wordcursor"
)

func collect(text string, spans []marker.Span, budget int, opts marker.Options) *Collector {
	c := NewCollector("body")
	marker.New(wordcursor.NewField("body", text), opts).Mark(spans, budget, c)
	return c
}

func TestCollector_ContextSnippet(t *testing.T) {
	t.Parallel()

	c := collect("A tale of the man of the world, told twice.", []marker.Span{{Start: 4, End: 8, Score: 4, Rank: 0}}, 40,
		marker.Options{
			Terms:     []string{"man", "of", "world"},
			StopWords: stopwords.New("a", "of", "the"),
			Mode:      marker.ContextAndSpanTerms,
		})

	snips := c.Snippets()
	require.Len(t, snips, 1)
	s := snips[0]
	assert.Equal(t, "body", s.Field)
	assert.Equal(t, "tale of the man of the world, told twice.", s.Text)
	assert.Equal(t, "man of the world", s.Text[s.SpanStart:s.SpanEnd])
	assert.InDelta(t, 1.0, s.Score, 1e-9)
	assert.Equal(t, "tale of the [man] [of] the [world], told twice.", s.Marked("[", "]"))
}

func TestCollector_NoContextUsesSpan(t *testing.T) {
	t.Parallel()

	c := collect("alpha beta gamma delta", []marker.Span{{Start: 1, End: 3, Score: 1}}, 0,
		marker.Options{Terms: []string{"beta", "gamma"}, Mode: marker.SpanTermsOnly})

	require.Len(t, c.Snippets(), 1)
	s := c.Snippets()[0]
	assert.Equal(t, "beta gamma", s.Text)
	assert.Equal(t, 6, s.Offset)
	assert.Equal(t, 0, s.SpanStart)
	assert.Equal(t, len("beta gamma"), s.SpanEnd)
	assert.Equal(t, "<b>beta</b> <b>gamma</b>", s.Marked("<b>", "</b>"))
}

func TestCollector_LooseTermsOutsideSnippets(t *testing.T) {
	t.Parallel()

	c := collect("fox one two three four five six fox", []marker.Span{{Start: 3, End: 4, Score: 1}}, 5,
		marker.Options{Terms: []string{"fox", "three"}, Mode: marker.AllTermsInField})

	require.Len(t, c.Snippets(), 1)
	loose := c.Loose()
	require.Len(t, loose, 2)
	assert.Equal(t, Highlight{Start: 0, End: 3, Term: "fox"}, loose[0])
	assert.Equal(t, "fox", loose[1].Term)
}

func TestSnippet_JSON(t *testing.T) {
	t.Parallel()

	s := Snippet{Field: "title", Text: "man of war", SpanEnd: 6, Highlights: []Highlight{{Start: 0, End: 3, Term: "man"}}}
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"highlights":[{"start":0,"end":3,"term":"man"}]`)
}
