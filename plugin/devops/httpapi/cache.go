package httpapi

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// DefaultCacheCapacity bounds the number of cached responses per client.
const DefaultCacheCapacity = 256

// responseCache is an LRU cache of response bodies with a fixed TTL.
type responseCache struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List // front is most recently used
}

type cacheEntry struct {
	key       string
	body      []byte
	expiresAt time.Time
	element   *list.Element
}

func newResponseCache(capacity int, ttl time.Duration) *responseCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &responseCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]*cacheEntry),
		order:    list.New(),
	}
}

func (c *responseCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.remove(e)
		return nil, false
	}
	c.order.MoveToFront(e.element)
	return e.body, true
}

func (c *responseCache) set(key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.body = body
		e.expiresAt = expiresAt
		c.order.MoveToFront(e.element)
		return
	}

	if len(c.entries) >= c.capacity {
		c.removeExpired()
	}
	for len(c.entries) >= c.capacity {
		c.remove(c.order.Back().Value.(*cacheEntry))
	}

	e := &cacheEntry{key: key, body: body, expiresAt: expiresAt}
	e.element = c.order.PushFront(e)
	c.entries[key] = e
}

// invalidate drops keys starting with prefix and returns how many were dropped.
func (c *responseCache) invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.remove(e)
			n++
		}
	}
	return n
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Must be called with the lock held.
func (c *responseCache) removeExpired() {
	now := c.now()
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			c.remove(e)
		}
	}
}

// Must be called with the lock held.
func (c *responseCache) remove(e *cacheEntry) {
	c.order.Remove(e.element)
	delete(c.entries, e.key)
}
