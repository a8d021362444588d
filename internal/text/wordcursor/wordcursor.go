// Package wordcursor provides a bidirectional cursor over the words of one
// text field, and position values captured from it.
//
// A Cursor is not safe for concurrent use. Clone it to scan from two places
// at once. Pos values are immutable and can be kept and compared freely.
package wordcursor

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/tokenizer"
)

// Field is the tokenized text of one document field.
type Field struct {
	name   string
	text   string
	tokens []tokenizer.Token
}

// NewField tokenizes text.
func NewField(name, text string) *Field {
	return &Field{name: name, text: text, tokens: tokenizer.Tokenize(text)}
}

// FromTokens wraps text that has already been tokenized. Token offsets must
// index text.
func FromTokens(name, text string, tokens []tokenizer.Token) *Field {
	return &Field{name: name, text: text, tokens: tokens}
}

func (f *Field) Name() string { return f.name }
func (f *Field) Text() string { return f.text }
func (f *Field) Len() int     { return len(f.tokens) }

// Token returns the word at position i.
func (f *Field) Token(i int) tokenizer.Token { return f.tokens[i] }

// Cursor returns a cursor on the first word of the field.
func (f *Field) Cursor() *Cursor { return &Cursor{f: f} }

// Kind selects which point of the current word a Pos captures.
type Kind int

const (
	FieldStart Kind = iota
	WordStart
	WordEnd
	// WordEndPlus is the end of the word plus any punctuation and space
	// that follow it, up to the next word.
	WordEndPlus
	FieldEnd
)

// Cursor walks the words of a field.
type Cursor struct {
	f   *Field
	pos int
}

// Field returns the field the cursor walks.
func (c *Cursor) Field() *Field { return c.f }

// WordPos returns the current word position.
func (c *Cursor) WordPos() int { return c.pos }

// Term returns the current word.
func (c *Cursor) Term() string { return c.f.tokens[c.pos].Term }

// Clone returns an independent cursor at the same position.
func (c *Cursor) Clone() *Cursor {
	cp := *c
	return &cp
}

// Next moves one word forward. It fails at the last word and, unless force
// is set, in front of a soft boundary.
func (c *Cursor) Next(force bool) bool {
	if c.pos+1 >= len(c.f.tokens) {
		return false
	}
	if !force && c.f.tokens[c.pos+1].Boundary {
		return false
	}
	c.pos++
	return true
}

// Prev moves one word back. It fails at the first word and, unless force is
// set, behind a soft boundary.
func (c *Cursor) Prev(force bool) bool {
	if c.pos == 0 {
		return false
	}
	if !force && c.f.tokens[c.pos].Boundary {
		return false
	}
	c.pos--
	return true
}

// SeekFirst moves to the first word at or after target, in either
// direction. It reports false when the field or a soft boundary stopped it
// short.
func (c *Cursor) SeekFirst(target int, force bool) bool {
	target = max(target, 0)
	return c.seek(target, force) && c.pos >= target
}

// SeekLast moves to the last word at or before target, in either direction.
func (c *Cursor) SeekLast(target int, force bool) bool {
	target = min(target, len(c.f.tokens)-1)
	return c.seek(target, force) && c.pos <= target
}

func (c *Cursor) seek(target int, force bool) bool {
	for c.pos < target {
		if !c.Next(force) {
			return false
		}
	}
	for c.pos > target {
		if !c.Prev(force) {
			return false
		}
	}
	return true
}

// Mark captures the current position.
func (c *Cursor) Mark(kind Kind) Pos {
	return c.f.pos(c.pos, kind)
}

// At returns the position of word w without moving any cursor.
func (f *Field) At(w int, kind Kind) Pos {
	return f.pos(w, kind)
}

func (f *Field) pos(w int, kind Kind) Pos {
	switch kind {
	case FieldStart:
		return Pos{f: f, Word: 0, Offset: 0}
	case FieldEnd:
		return Pos{f: f, Word: len(f.tokens), Offset: len(f.text)}
	}
	if w < 0 || w >= len(f.tokens) {
		panic(fmt.Sprintf("wordcursor: word %d outside field %q of %d words", w, f.name, len(f.tokens)))
	}
	tok := f.tokens[w]
	switch kind {
	case WordStart:
		return Pos{f: f, Word: w, Offset: tok.Start}
	case WordEnd:
		return Pos{f: f, Word: w, Offset: tok.End}
	case WordEndPlus:
		limit := len(f.text)
		if w+1 < len(f.tokens) {
			limit = f.tokens[w+1].Start
		}
		return Pos{f: f, Word: w, Offset: trailing(f.text, tok.End, limit)}
	default:
		panic(fmt.Sprintf("wordcursor: unknown position kind %d", kind))
	}
}

// trailing skips the punctuation and then the space after offset i, never
// going past limit.
func trailing(text string, i, limit int) int {
	sawSpace := false
	for i < limit {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			sawSpace = true
		} else if sawSpace {
			break
		}
		i += size
	}
	return i
}

// Pos is a captured position. Ordering is by word.
type Pos struct {
	f      *Field
	Word   int
	Offset int
}

// Before reports whether p is at an earlier word than o.
func (p Pos) Before(o Pos) bool { return p.Word < o.Word }

// DistanceTo returns the number of characters between p and o.
func (p Pos) DistanceTo(o Pos) int {
	lo, hi := p.Offset, o.Offset
	if lo > hi {
		lo, hi = hi, lo
	}
	return utf8.RuneCountInString(p.f.text[lo:hi])
}

// TextTo returns the field text from p up to o, or "" when o is not after p.
func (p Pos) TextTo(o Pos) string {
	if o.Offset <= p.Offset {
		return ""
	}
	return p.f.text[p.Offset:o.Offset]
}
