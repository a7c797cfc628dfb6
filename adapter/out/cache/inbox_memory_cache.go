package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
)

// DefaultMaxItems bounds MemoryClassificationCache.
const DefaultMaxItems = 10000

// MemoryClassificationCache is an in-process LRU with per-entry TTL, used when
// no Redis is configured.
type MemoryClassificationCache struct {
	mu       sync.Mutex
	maxItems int
	items    map[string]*list.Element
	lru      *list.List // front = most recently used
	now      func() time.Time
}

type memoryEntry struct {
	key       string
	value     domain.Classification
	expiresAt time.Time
}

var _ out.ClassificationCache = (*MemoryClassificationCache)(nil)

func NewMemoryClassificationCache(maxItems int) *MemoryClassificationCache {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &MemoryClassificationCache{
		maxItems: maxItems,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
	}
}

func (c *MemoryClassificationCache) Get(ctx context.Context, key string) (*domain.Classification, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	entry := el.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.remove(el)
		return nil, false, nil
	}
	c.lru.MoveToFront(el)

	v := entry.value
	return &v, true, nil
}

// Set stores a copy of result. A non-positive ttl never expires and a nil
// result is not stored.
func (c *MemoryClassificationCache) Set(ctx context.Context, key string, result *domain.Classification, ttl time.Duration) error {
	if result == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = *result
		entry.expiresAt = expiresAt
		c.lru.MoveToFront(el)
		return nil
	}

	c.items[key] = c.lru.PushFront(&memoryEntry{key: key, value: *result, expiresAt: expiresAt})
	for c.lru.Len() > c.maxItems {
		c.remove(c.lru.Back())
	}
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *MemoryClassificationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *MemoryClassificationCache) remove(el *list.Element) {
	c.lru.Remove(el)
	delete(c.items, el.Value.(*memoryEntry).key)
}
