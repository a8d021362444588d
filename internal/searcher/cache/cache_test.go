package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/config"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func result(q string) *executor.SearchResult {
	return &executor.SearchResult{
		Rewriting: executor.Rewriting{Query: q, Rewritten: q, Ignored: []string{"the"}},
		TotalHits: 1,
		Hits:      []executor.Hit{{ID: "1", Score: 0.5}},
	}
}

func TestQueryCache_GetOrCompute(t *testing.T) {
	t.Parallel()

	c := New(newMemStore(), config.RedisConfig{CacheTTL: time.Minute})
	req := executor.Request{Query: "the cat", Limit: 10}

	calls := 0
	compute := func() (*executor.SearchResult, error) {
		calls++
		return result(req.Query), nil
	}

	got, hit, err := c.GetOrCompute(context.Background(), req, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "the cat", got.Query)

	got, hit, err = c.GetOrCompute(context.Background(), executor.Request{Query: "  the   cat ", Limit: 10}, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"the"}, got.Ignored)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestQueryCache_KeyDependsOnPaging(t *testing.T) {
	t.Parallel()

	a := buildKey(executor.Request{Query: "cat", Limit: 10})
	assert.NotEqual(t, a, buildKey(executor.Request{Query: "cat", Limit: 10, Offset: 10}))
	assert.NotEqual(t, a, buildKey(executor.Request{Query: "cat", Limit: 20}))
	assert.NotEqual(t, buildKey(executor.Request{Query: "a OR b"}), buildKey(executor.Request{Query: "a or b"}))
}

func TestQueryCache_ErrorNotCached(t *testing.T) {
	t.Parallel()

	c := New(newMemStore(), config.RedisConfig{})
	req := executor.Request{Query: "cat"}
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(context.Background(), req, func() (*executor.SearchResult, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get(context.Background(), req)
	assert.False(t, ok)
}

func TestQueryCache_SingleflightCollapsesConcurrentMisses(t *testing.T) {
	t.Parallel()

	c := New(newMemStore(), config.RedisConfig{})
	req := executor.Request{Query: "cat", Limit: 10}

	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), req, func() (*executor.SearchResult, error) {
				calls.Add(1)
				<-release
				return result("cat"), nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	_, ok := c.Get(context.Background(), req)
	assert.True(t, ok)
}

func TestQueryCache_Invalidate(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	c := New(store, config.RedisConfig{})
	c.Set(context.Background(), executor.Request{Query: "cat"}, result("cat"))
	c.Set(context.Background(), executor.Request{Query: "dog"}, result("dog"))
	store.data["other:key"] = "x"

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Len(t, store.data, 1)
	_, ok := c.Get(context.Background(), executor.Request{Query: "cat"})
	assert.False(t, ok)
}
