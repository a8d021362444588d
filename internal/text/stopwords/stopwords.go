// Package stopwords holds the immutable stop-word set shared by the
// tokenizer, the index-side bigram filter, the query rewriter and the
// snippet marker. Lookups are case-sensitive; callers lowercase first.
package stopwords

import "sort"

var defaultWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// Set is a read-only collection of stop words. The zero value is an empty
// set.
type Set struct {
	words map[string]struct{}
}

// New builds a Set from the given words. Empty strings are ignored.
func New(words ...string) Set {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		m[w] = struct{}{}
	}
	return Set{words: m}
}

// Default returns the English stop list used when no list is configured.
func Default() Set {
	return New(defaultWords...)
}

// Contains reports whether word is a stop word.
func (s Set) Contains(word string) bool {
	_, ok := s.words[word]
	return ok
}

// Len returns the number of words in the set.
func (s Set) Len() int {
	return len(s.words)
}

// Words returns the set's members in sorted order.
func (s Set) Words() []string {
	out := make([]string, 0, len(s.words))
	for w := range s.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
