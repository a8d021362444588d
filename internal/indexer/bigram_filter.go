package indexer

import (
	"fmt"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/stopwords"
)

// BigramFilterName is the registry name of the stop-word bigram filter.
const BigramFilterName = "stop_bigram"

func init() {
	registry.RegisterTokenFilter(BigramFilterName, NewBigramFilterConstructor)
}

// BigramFilter indexes every stop word both alone and fused with each
// neighbour ("man of war" adds "man~of" and "of~war"), and lays out
// positions so that an exact phrase rewritten into bigrams is consecutive.
//
// The field is read as the rewriter reads a phrase: every adjacent pair
// holding a stop word is one bigram, and a real word with no stop word on
// either side stands alone. Each of these takes the next position. Single
// words then borrow a position from the bigrams around them:
//
//   - a real word takes its bigram with the next word, else the one with
//     the previous word, so adjacent real words stay consecutive.
//   - a stop word takes its bigram with the previous word; a leading stop
//     word sits one before its bigram with the next word.
type BigramFilter struct {
	stops stopwords.Set
}

// NewBigramFilter returns a filter for the given stop words.
func NewBigramFilter(stops stopwords.Set) *BigramFilter {
	return &BigramFilter{stops: stops}
}

// NewBigramFilterConstructor builds the filter from an index mapping's
// custom filter config. The "stop_words" key lists the stop words; without
// it the default list is used.
func NewBigramFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	raw, ok := config["stop_words"]
	if !ok {
		return NewBigramFilter(stopwords.Default()), nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: stop_words must be a list, got %T", BigramFilterName, raw)
	}
	words := make([]string, 0, len(list))
	for _, w := range list {
		s, ok := w.(string)
		if !ok {
			return nil, fmt.Errorf("%s: stop word %v is not a string", BigramFilterName, w)
		}
		words = append(words, s)
	}
	return NewBigramFilter(stopwords.New(words...)), nil
}

// Filter rewrites positions and appends the bigram tokens.
func (f *BigramFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	if len(input) == 0 {
		return input
	}
	n := len(input)
	stop := make([]bool, n)
	for i, tok := range input {
		stop[i] = f.stops.Contains(string(tok.Term))
	}

	// pair[i] is the position of the bigram of words i and i+1, 0 if none.
	// Positions start at 2 so a leading stop word can sit before its bigram.
	pair := make([]int, n)
	alone := make([]int, n)
	next := 1
	for i := range input {
		left := i > 0 && (stop[i-1] || stop[i])
		right := i+1 < n && (stop[i] || stop[i+1])
		if !left && !right {
			next++
			alone[i] = next
		}
		if right {
			next++
			pair[i] = next
		}
	}

	for i, tok := range input {
		switch {
		case alone[i] > 0:
			tok.Position = alone[i]
		case stop[i] && i > 0:
			tok.Position = pair[i-1]
		case stop[i]:
			tok.Position = pair[i] - 1
		case pair[i] > 0:
			tok.Position = pair[i]
		default:
			tok.Position = pair[i-1]
		}
	}

	out := make(analysis.TokenStream, 0, n*2)
	for i, tok := range input {
		out = append(out, tok)
		if pair[i] == 0 {
			continue
		}
		following := input[i+1]
		out = append(out, &analysis.Token{
			Term:     []byte(query.Bigram(string(tok.Term), string(following.Term))),
			Start:    tok.Start,
			End:      following.End,
			Position: pair[i],
			Type:     analysis.Shingle,
		})
	}
	return out
}
