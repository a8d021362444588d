// Package tokenizer splits field text into lower-cased words with their byte
// offsets. It is the single source of truth for what a "word" is: the index
// analyzer, the query parser and the snippet marker all tokenize through it,
// so positions computed in one place line up with the others.
//
// Stop words are kept. Whether a word is a stop word is a decision made by
// the callers that care.
package tokenizer

import (
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// Token is one word of a field.
type Token struct {
	Term  string
	Start int // byte offset of the first character
	End   int // byte offset just past the last character
	// Boundary is set when a sentence end or a blank line separates this
	// token from the previous one.
	Boundary bool
}

var (
	words = unicode.NewUnicodeTokenizer()
	lower = lowercase.NewLowerCaseFilter()
)

// Tokenize breaks text into lower-cased word tokens.
func Tokenize(text string) []Token {
	stream := Analyze([]byte(text))
	tokens := make([]Token, 0, len(stream))
	prevEnd := 0
	for i, tok := range stream {
		tokens = append(tokens, Token{
			Term:     string(tok.Term),
			Start:    tok.Start,
			End:      tok.End,
			Boundary: i > 0 && isBoundary(text[prevEnd:tok.Start]),
		})
		prevEnd = tok.End
	}
	return tokens
}

// Analyze runs the word tokenizer and lower-case filter, returning bleve
// tokens. Positions are 1-based and consecutive.
func Analyze(input []byte) analysis.TokenStream {
	return lower.Filter(words.Tokenize(input))
}

// Terms returns just the words of text.
func Terms(text string) []string {
	stream := Analyze([]byte(text))
	out := make([]string, len(stream))
	for i, tok := range stream {
		out[i] = string(tok.Term)
	}
	return out
}

// isBoundary reports whether the gap between two words ends a sentence or
// a paragraph.
func isBoundary(gap string) bool {
	newlines := 0
	for _, r := range gap {
		switch r {
		case '.', '!', '?':
			return true
		case '\n':
			newlines++
			if newlines > 1 {
				return true
			}
		case ' ', '\t', '\r':
		default:
			newlines = 0
		}
	}
	return false
}
