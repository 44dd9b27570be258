package lsm

import (
	"container/list"
	"sync"
)

// lruEntry is one cached block keyed by table path + block index.
type lruEntry struct {
	key    string
	value  []byte
	charge int64
}

// LRUCache is a capacity-bounded, charge-accounted block cache. It is
// the raw cache pkg/cache wraps with hit/miss tickers and an optional
// arena allocator; this layer only knows about bytes in, bytes out, and
// eviction order.
type LRUCache struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	ll       *list.List
	items    map[string]*list.Element
}

// NewLRUCache creates a cache that evicts least-recently-used entries
// once the sum of charges exceeds capacityBytes.
func NewLRUCache(capacityBytes int64) *LRUCache {
	return &LRUCache{
		capacity: capacityBytes,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached value for key and marks it most-recently-used.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

// Insert adds or replaces key, evicting least-recently-used entries if
// necessary to stay within capacity.
func (c *LRUCache) Insert(key string, value []byte, charge int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.used -= el.Value.(*lruEntry).charge
		c.ll.Remove(el)
		delete(c.items, key)
	}
	el := c.ll.PushFront(&lruEntry{key: key, value: value, charge: charge})
	c.items[key] = el
	c.used += charge

	for c.used > c.capacity && c.ll.Len() > 0 {
		back := c.ll.Back()
		if back == nil {
			break
		}
		ent := back.Value.(*lruEntry)
		c.used -= ent.charge
		c.ll.Remove(back)
		delete(c.items, ent.key)
	}
}

// Erase removes key from the cache if present.
func (c *LRUCache) Erase(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.used -= el.Value.(*lruEntry).charge
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// Usage reports the current sum of charges held by the cache.
func (c *LRUCache) Usage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Capacity reports the cache's byte budget.
func (c *LRUCache) Capacity() int64 {
	return c.capacity
}

// SetCapacity resizes the cache, evicting immediately if the new
// capacity is smaller than current usage.
func (c *LRUCache) SetCapacity(capacityBytes int64) {
	c.mu.Lock()
	c.capacity = capacityBytes
	for c.used > c.capacity && c.ll.Len() > 0 {
		back := c.ll.Back()
		if back == nil {
			break
		}
		ent := back.Value.(*lruEntry)
		c.used -= ent.charge
		c.ll.Remove(back)
		delete(c.items, ent.key)
	}
	c.mu.Unlock()
}
