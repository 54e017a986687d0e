package adapters

import (
	"container/list"
	"context"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
)

// CacheStats counts cache traffic since creation.
type CacheStats struct {
	Hits        int
	Misses      int
	Evictions   int
	Expirations int
}

// LRUCache is a bounded least-recently-used cache with per-entry expiry.
// Values are copied on the way in and out.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	entries  map[string]*list.Element
	stats    CacheStats
	now      func() time.Time
}

type lruEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// NewLRUCache creates a cache holding at most capacity entries.
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

// Len counts stored entries, including expired ones not yet looked up.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the traffic counters.
func (c *LRUCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *LRUCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	e := el.Value.(*lruEntry)
	if !c.now().Before(e.expires) {
		c.drop(el)
		c.stats.Expirations++
		c.stats.Misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.stats.Hits++
	return append([]byte(nil), e.value...), true
}

func (c *LRUCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(time.Duration(ttlSeconds) * time.Second)
	stored := append([]byte(nil), value...)

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*lruEntry)
		e.value, e.expires = stored, expires
		c.order.MoveToFront(el)
		return nil
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: stored, expires: expires})
	for c.order.Len() > c.capacity {
		c.drop(c.order.Back())
		c.stats.Evictions++
	}
	return nil
}

func (c *LRUCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.drop(el)
	}
	return nil
}

func (c *LRUCache) drop(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*lruEntry).key)
}

var _ ports.Cache = (*LRUCache)(nil)
