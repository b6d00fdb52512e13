// Package lru provides a small concurrent-safe bounded cache with
// least-recently-used eviction. It backs the process-wide memoized lookups
// (geocoding, place search) so eviction is explicit and testable rather
// than hidden inside a function-level memo.
package lru

import (
	"sync"
	"sync/atomic"
)

// Cache is a fixed-capacity LRU map. The zero value is not usable; construct
// with New.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]V
	order    []K // front=least recently used, back=most recently used
	capacity int
	hits     atomic.Int64
	misses   atomic.Int64
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Entries  int
	Capacity int
	Hits     int64
	Misses   int64
}

// New creates a Cache holding at most capacity entries. Capacity values
// below 1 are treated as 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		entries:  make(map[K]V, capacity),
		capacity: capacity,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return v, true
}

// Put stores a value, evicting the least recently used entry when the cache
// is at capacity.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = value
	c.order = append(c.order, key)
}

// Len returns the current number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns effectiveness counters for observability.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	capacity := c.capacity
	c.mu.Unlock()

	return Stats{
		Entries:  entries,
		Capacity: capacity,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}

// removeFromOrder drops a key from the recency list. Caller holds the lock.
func (c *Cache[K, V]) removeFromOrder(key K) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
