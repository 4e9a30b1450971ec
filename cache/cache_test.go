package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thelarryrutledge/nvlp-app-sub004/cache"
)

func TestGetOrCompute_CachesResult(t *testing.T) {
	c := cache.New(10)
	ctx := context.Background()

	computes := 0
	compute := func(context.Context) ([]string, error) {
		computes++
		return []string{"a", "b"}, nil
	}

	got, err := cache.GetOrCompute(ctx, c, "categories", "b1", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = cache.GetOrCompute(ctx, c, "categories", "b1", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, computes, "second read should come from cache")
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c := cache.New(10)
	ctx := context.Background()

	boom := errors.New("store down")
	calls := 0
	compute := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}
		return 42, nil
	}

	_, err := cache.GetOrCompute(ctx, c, "ns", "k", time.Minute, compute)
	require.ErrorIs(t, err, boom)

	got, err := cache.GetOrCompute(ctx, c, "ns", "k", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestGetOrCompute_DeduplicatesConcurrentComputes(t *testing.T) {
	c := cache.New(10)
	ctx := context.Background()

	var computes int64
	release := make(chan struct{})
	compute := func(context.Context) (string, error) {
		atomic.AddInt64(&computes, 1)
		<-release
		return "value", nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.GetOrCompute(ctx, c, "ns", "shared", time.Minute, compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Give the racers time to pile onto the flight group, then release.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&computes))
	for _, v := range results {
		assert.Equal(t, "value", v)
	}
}

func TestExpiry(t *testing.T) {
	c := cache.New(10)

	c.Set("ns", "k", "v", 10*time.Millisecond)
	_, ok := c.Get("ns", "k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("ns", "k")
	assert.False(t, ok, "entry should expire after its TTL")
}

func TestInvalidate_ClearsWholeNamespace(t *testing.T) {
	c := cache.New(10)

	c.Set("categories", "b1", 1, time.Minute)
	c.Set("categories", "b2", 2, time.Minute)
	c.Set("payees", "b1", 3, time.Minute)

	c.Invalidate("categories")

	_, ok := c.Get("categories", "b1")
	assert.False(t, ok)
	_, ok = c.Get("categories", "b2")
	assert.False(t, ok)

	v, ok := c.Get("payees", "b1")
	assert.True(t, ok, "other namespaces stay intact")
	assert.Equal(t, 3, v)
}

func TestInvalidate_MultipleGroups(t *testing.T) {
	c := cache.New(10)

	c.Set("categories", "b1", 1, time.Minute)
	c.Set("category-tree", "b1", 2, time.Minute)
	c.Set("envelopes", "b1", 3, time.Minute)

	c.Invalidate("categories", "category-tree")

	_, ok := c.Get("categories", "b1")
	assert.False(t, ok)
	_, ok = c.Get("category-tree", "b1")
	assert.False(t, ok)
	_, ok = c.Get("envelopes", "b1")
	assert.True(t, ok)
}

func TestLRUEviction(t *testing.T) {
	c := cache.New(2)

	c.Set("ns", "a", 1, time.Minute)
	c.Set("ns", "b", 2, time.Minute)
	c.Set("ns", "c", 3, time.Minute) // evicts "a"

	_, ok := c.Get("ns", "a")
	assert.False(t, ok)
	_, ok = c.Get("ns", "b")
	assert.True(t, ok)
	_, ok = c.Get("ns", "c")
	assert.True(t, ok)

	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCleanExpired(t *testing.T) {
	c := cache.New(10)

	c.Set("ns", "old", 1, time.Millisecond)
	c.Set("ns", "fresh", 2, time.Minute)
	time.Sleep(5 * time.Millisecond)

	removed := c.CleanExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Size())
}

func TestManager_SweepsRegisteredCaches(t *testing.T) {
	c := cache.New(10)
	c.Set("ns", "old", 1, time.Millisecond)

	m := cache.NewManager(zerolog.Nop())
	m.Register(c)
	m.Start(10 * time.Millisecond)
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return c.Size() == 0
	}, time.Second, 5*time.Millisecond)
}
