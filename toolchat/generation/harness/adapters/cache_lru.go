package adapters

import (
	"container/list"
	"context"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

// LRUCache is a bounded, TTL-aware byte cache. The geocoder keeps Nominatim
// answers here so repeated city lookups stay off the public API.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	recency  *list.List // front is most recently used
	now      func() time.Time
}

type lruEntry struct {
	key     string
	value   []byte
	expires time.Time // zero never expires
}

// NewLRUCache creates a cache holding at most capacity entries. A
// non-positive capacity stores nothing.
func NewLRUCache(capacity int) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		recency:  list.New(),
		now:      time.Now,
	}
}

// Get returns a copy of a live value and marks it most recently used.
func (c *LRUCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*lruEntry)
	if c.expired(entry) {
		c.remove(el)
		return nil, false
	}
	c.recency.MoveToFront(el)
	return append([]byte(nil), entry.value...), true
}

// Set stores a copy of value. A non-positive ttlSeconds never expires.
func (c *LRUCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if c.capacity <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &lruEntry{key: key, value: append([]byte(nil), value...)}
	if ttlSeconds > 0 {
		entry.expires = c.now().Add(time.Duration(ttlSeconds) * time.Second)
	}

	if el, ok := c.entries[key]; ok {
		el.Value = entry
		c.recency.MoveToFront(el)
		return nil
	}

	c.entries[key] = c.recency.PushFront(entry)
	for c.recency.Len() > c.capacity {
		c.remove(c.recency.Back())
	}
	return nil
}

func (c *LRUCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
	return nil
}

// Len counts entries, expired ones included until they are touched or evicted.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

func (c *LRUCache) expired(e *lruEntry) bool {
	return !e.expires.IsZero() && c.now().After(e.expires)
}

func (c *LRUCache) remove(el *list.Element) {
	c.recency.Remove(el)
	delete(c.entries, el.Value.(*lruEntry).key)
}

var _ ports.Cache = (*LRUCache)(nil)
