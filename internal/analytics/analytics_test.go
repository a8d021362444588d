package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/kafka"
)

func encode(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// ---------------------------------------------------------------------------
// Aggregator
// ---------------------------------------------------------------------------

func TestAggregator_RecordsSearchAndIndexEvents(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	handle := agg.Handler()
	ctx := context.Background()

	events := []any{
		SearchEvent{Type: EventSearch, Query: "the cat", Ignored: []string{"the"}, TotalHits: 3, LatencyMs: 10},
		SearchEvent{Type: EventSearch, Query: "the cat", Ignored: []string{"the"}, TotalHits: 3, LatencyMs: 20, CacheHit: true},
		SearchEvent{Type: EventSearch, Query: "unicorn of doom", Ignored: []string{"of"}, TotalHits: 0, LatencyMs: 30},
		SearchEvent{Type: EventSearch, Query: "dog", TotalHits: 1, LatencyMs: 40},
		IndexEvent{Type: EventIndexDoc, DocumentID: "1"},
	}
	for _, e := range events {
		require.NoError(t, handle(ctx, nil, encode(t, e)))
	}

	s := agg.Stats()
	assert.Equal(t, int64(4), s.TotalSearches)
	assert.Equal(t, int64(1), s.TotalDocIndexed)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(3), s.CacheMisses)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, int64(3), s.RewrittenCount)
	assert.Equal(t, 25.0, s.AvgLatencyMs)
	assert.Equal(t, int64(30), s.P50LatencyMs)
	assert.Equal(t, []QueryCount{{"the cat", 2}, {"dog", 1}, {"unicorn of doom", 1}}, s.TopQueries)
	assert.Equal(t, []QueryCount{{"unicorn of doom", 1}}, s.ZeroResultQueries)
	assert.Equal(t, []QueryCount{{"the", 2}, {"of", 1}}, s.TopIgnoredWords)
}

func TestAggregator_BadMessagesAreSkipped(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	handle := agg.Handler()

	assert.NoError(t, handle(context.Background(), nil, []byte("not json")))
	assert.NoError(t, handle(context.Background(), nil, []byte(`{"type":"mystery"}`)))
	assert.Zero(t, agg.Stats().TotalSearches)
}

func TestAggregator_Restore(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.Restore(AggregatedStats{
		TotalSearches:   10,
		TopIgnoredWords: []QueryCount{{"the", 7}},
	})
	require.NoError(t, agg.Handler()(context.Background(), nil,
		encode(t, SearchEvent{Type: EventSearch, Query: "the end", Ignored: []string{"the"}, TotalHits: 1})))

	s := agg.Stats()
	assert.Equal(t, int64(11), s.TotalSearches)
	assert.Equal(t, []QueryCount{{"the", 8}}, s.TopIgnoredWords)
}

func TestTopN(t *testing.T) {
	t.Parallel()

	got := topN(map[string]int64{"b": 2, "a": 2, "c": 5, "d": 1}, 3)
	assert.Equal(t, []QueryCount{{"c", 5}, {"a", 2}, {"b", 2}}, got)
}

// ---------------------------------------------------------------------------
// Collector
// ---------------------------------------------------------------------------

type recordingPublisher struct {
	mu      sync.Mutex
	events  []kafka.Event
	batches int
	err     error
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	p.batches++
	return p.err
}

func TestCollector_PublishesTrackedEvents(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	c := NewCollector(pub, 10)
	c.Start(context.Background())

	c.Track(SearchEvent{Type: EventSearch, Query: "cat", Timestamp: time.Now()})
	c.Track(IndexEvent{Type: EventIndexDoc, DocumentID: "42"})
	c.Close()

	require.Len(t, pub.events, 2)
	assert.Equal(t, "search:cat", pub.events[0].Key)
	assert.Equal(t, "index:42", pub.events[1].Key)
}

func TestCollector_BatchesQueuedEvents(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	c := NewCollector(pub, 500)
	for i := range 250 {
		c.Track(IndexEvent{Type: EventIndexDoc, DocumentID: string(rune('a' + i%26))})
	}
	c.Start(context.Background())
	c.Close()

	assert.Len(t, pub.events, 250)
	assert.Equal(t, 3, pub.batches)
}

func TestCollector_PublishErrorsDoNotStopLoop(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 10)
	c.Start(context.Background())
	c.Track(SearchEvent{Query: "a"})
	c.Track(SearchEvent{Query: "b"})
	c.Close()

	assert.Len(t, pub.events, 2)
}

func TestCollector_DropsWhenFull(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	c := NewCollector(pub, 1)
	c.Track(SearchEvent{Query: "kept"})
	c.Track(SearchEvent{Query: "dropped"})

	c.Start(context.Background())
	c.Close()
	require.Len(t, pub.events, 1)
	assert.Equal(t, "search:kept", pub.events[0].Key)
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

type fakeHistory struct {
	snaps []AggregatedStats
	limit int
}

func (f *fakeHistory) ListSnapshots(_ context.Context, limit int) ([]AggregatedStats, error) {
	f.limit = limit
	return f.snaps, nil
}

func TestHandler_Stats(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.Restore(AggregatedStats{TotalSearches: 5})
	h := NewHandler(agg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(5), got.TotalSearches)
}

func TestHandler_Snapshots(t *testing.T) {
	t.Parallel()

	hist := &fakeHistory{snaps: []AggregatedStats{{TotalSearches: 2}, {TotalSearches: 1}}}
	h := NewHandler(NewAggregator(), hist)

	rec := httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, hist.limit)

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(NewAggregator(), nil).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
