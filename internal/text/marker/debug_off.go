//go:build !markdebug

package marker

import "github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/wordcursor"

func checkSpans(*wordcursor.Field, []Span, map[string]struct{}) {}
