// Package cache provides a TTL and capacity bounded in-memory cache,
// instantiated as the embedding, query-result, and document tiers.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a key-value cache with per-entry TTL and a maximum key count.
// Expired entries are logically absent even before they are physically
// evicted. All operations are safe for concurrent use; none of them fail.
type Cache[V any] struct {
	defaultTTL time.Duration
	maxKeys    int

	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List // insertion order, oldest at the back

	now func() time.Time // replaced in tests
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// New creates a cache with the given default TTL and key capacity.
func New[V any](defaultTTL time.Duration, maxKeys int) *Cache[V] {
	if maxKeys <= 0 {
		maxKeys = 1
	}
	return &Cache[V]{
		defaultTTL: defaultTTL,
		maxKeys:    maxKeys,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// Get returns the live value for key. Expired entries report a miss and are
// lazily evicted.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	elem, ok := c.entries[key]
	if !ok {
		c.mu.RUnlock()
		var zero V
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if c.now().After(e.expiresAt) {
		c.mu.RUnlock()
		c.evictExpired(key)
		var zero V
		return zero, false
	}
	v := e.value
	c.mu.RUnlock()
	return v, true
}

// Set stores value under key with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL. At capacity, expired
// entries are swept first; if the cache is still full, the oldest-inserted
// entry is evicted.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expiresAt = c.now().Add(ttl)
		return
	}

	if len(c.entries) >= c.maxKeys {
		c.sweepLocked()
	}
	if len(c.entries) >= c.maxKeys {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
		}
	}

	e := &entry[V]{key: key, value: value, expiresAt: c.now().Add(ttl)}
	c.entries[key] = c.order.PushFront(e)
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.evict(key)
}

// Flush removes all entries.
func (c *Cache[V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the number of live entries after sweeping expired ones.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	return len(c.entries)
}

func (c *Cache[V]) evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// evictExpired removes key only if it is still expired. Get drops its read
// lock before evicting, so a concurrent SetTTL may have refreshed the entry
// in the gap; that refresh must not be lost.
func (c *Cache[V]) evictExpired(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok && c.now().After(elem.Value.(*entry[V]).expiresAt) {
		c.removeLocked(elem)
	}
}

func (c *Cache[V]) sweepLocked() {
	now := c.now()
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[V]).expiresAt) {
			c.removeLocked(elem)
		}
		elem = prev
	}
}

func (c *Cache[V]) removeLocked(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*entry[V]).key)
}
