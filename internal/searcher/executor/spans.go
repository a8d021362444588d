package executor

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/marker"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/wordcursor"
)

// Spans turns the match locations of one field into word spans. Locations
// that overlap or touch merge into one span scored by the number of
// locations it holds. Only the limit best spans are kept, ranked from 1;
// limit <= 0 keeps all. locs must be sorted by start offset.
func Spans(f *wordcursor.Field, locs []indexer.Location, limit int) []marker.Span {
	var out []marker.Span
	for _, l := range locs {
		start := sort.Search(f.Len(), func(i int) bool { return f.Token(i).End > l.Start })
		end := sort.Search(f.Len(), func(i int) bool { return f.Token(i).Start >= l.End })
		if start >= end {
			continue
		}
		if n := len(out); n > 0 && start <= out[n-1].End {
			out[n-1].End = max(out[n-1].End, end)
			out[n-1].Score++
			continue
		}
		out = append(out, marker.Span{Start: start, End: end, Score: 1})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
