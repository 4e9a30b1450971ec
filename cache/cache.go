/*
Package cache provides the namespaced read-through cache for listing paths.

PURPOSE:
  Read paths (category, envelope, payee listings) probe the cache by
  (namespace, key) before touching the store. Mutations invalidate whole
  namespaces after their write succeeds, never before, so a failed
  mutation leaves the cache untouched.

DESIGN:
  - Entries are keyed by namespace+key with a per-entry TTL and a global
    LRU bound across all namespaces.
  - Concurrent computes for the same key are deduplicated with
    singleflight, so a cold listing is computed once no matter how many
    requests race on it.
  - The cache is constructed and injected; there is no package global.
    A Manager owns the lifecycle: it sweeps expired entries on an
    interval and is stopped on shutdown.

SEE ALSO:
  - service/: Defines the invalidation groups per mutation kind
*/
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// =============================================================================
// CACHE - Namespaced entries with TTL, LRU bound, and compute dedup
// =============================================================================

type Cache struct {
	mu         sync.Mutex
	maxEntries int
	namespaces map[string]map[string]*list.Element
	lru        *list.List
	flight     singleflight.Group

	hits      int64
	misses    int64
	evictions int64
}

type entry struct {
	namespace string
	key       string
	value     any
	expiresAt time.Time
}

// New creates a cache bounded to maxEntries across all namespaces.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Cache{
		maxEntries: maxEntries,
		namespaces: make(map[string]map[string]*list.Element),
		lru:        list.New(),
	}
}

// Get retrieves a live value. Expired entries are removed on access.
func (c *Cache) Get(namespace, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.namespaces[namespace][key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	e := elem.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.removeElement(elem)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	c.lru.MoveToFront(elem)
	atomic.AddInt64(&c.hits, 1)
	return e.value, true
}

// Set stores a value with the given TTL, evicting the least recently
// used entry when the cache is over capacity.
func (c *Cache) Set(namespace, key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{namespace: namespace, key: key, value: value, expiresAt: time.Now().Add(ttl)}

	ns, ok := c.namespaces[namespace]
	if !ok {
		ns = make(map[string]*list.Element)
		c.namespaces[namespace] = ns
	}

	if elem, exists := ns[key]; exists {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}

	ns[key] = c.lru.PushFront(e)

	if c.lru.Len() > c.maxEntries {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
			atomic.AddInt64(&c.evictions, 1)
		}
	}
}

// GetOrCompute returns the cached value or runs compute and stores the
// result with the given TTL. Concurrent calls for the same
// (namespace, key) share one compute.
func (c *Cache) GetOrCompute(ctx context.Context, namespace, key string, ttl time.Duration, compute func(context.Context) (any, error)) (any, error) {
	if v, ok := c.Get(namespace, key); ok {
		return v, nil
	}

	v, err, _ := c.flight.Do(namespace+"\x00"+key, func() (any, error) {
		// A concurrent caller may have filled the entry while this one
		// waited on the flight group.
		if v, ok := c.Get(namespace, key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(namespace, key, v, ttl)
		return v, nil
	})
	return v, err
}

// Invalidate clears every entry in the given namespaces.
func (c *Cache) Invalidate(namespaces ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, namespace := range namespaces {
		for _, elem := range c.namespaces[namespace] {
			c.lru.Remove(elem)
		}
		delete(c.namespaces, namespace)
	}
}

// CleanExpired removes all expired entries and returns how many were removed.
func (c *Cache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// Size returns the current number of entries across all namespaces.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats reports cumulative hit/miss/eviction counts.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

// caller holds the lock
func (c *Cache) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	if ns, ok := c.namespaces[e.namespace]; ok {
		delete(ns, e.key)
		if len(ns) == 0 {
			delete(c.namespaces, e.namespace)
		}
	}
	c.lru.Remove(elem)
}

// =============================================================================
// TYPED ACCESS
// =============================================================================

// GetOrCompute is the typed wrapper around Cache.GetOrCompute. A cached
// value of the wrong type counts as a miss and is recomputed.
func GetOrCompute[T any](ctx context.Context, c *Cache, namespace, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	v, err := c.GetOrCompute(ctx, namespace, key, ttl, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	return compute(ctx)
}
