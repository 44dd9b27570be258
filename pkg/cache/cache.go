// Package cache wraps lsm.LRUCache with its own hit/miss counters
// (rather than trusting the underlying cache to report them) and an
// optional arena allocator that tries to mlock its backing memory so
// cached blocks are not paged out under memory pressure. The hit/miss
// counters are registered on an optional prometheus.Registerer.
package cache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cluso/lsmkv/pkg/lsm"
)

// Cache is a byte-budgeted block cache. The Database builds and owns one,
// but no column or SSTable read path consults it.
type Cache struct {
	raw   *lsm.LRUCache
	alloc *Allocator

	hits   atomic.Uint64
	misses atomic.Uint64

	hitCounter  prometheus.Counter
	missCounter prometheus.Counter
}

// Options configures a new Cache.
type Options struct {
	CapacityBytes int64
	UseArena      bool
	Registry      prometheus.Registerer
}

// New builds a Cache with its own local hit/miss tickers and, if
// requested, an mlock-backed arena allocator for cached block storage.
func New(opts Options) *Cache {
	c := &Cache{raw: lsm.NewLRUCache(opts.CapacityBytes)}
	if opts.UseArena {
		c.alloc = NewAllocator(opts.CapacityBytes)
	}
	if opts.Registry != nil {
		c.hitCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lsmkv_cache_hits_total",
			Help: "Block cache hits.",
		})
		c.missCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lsmkv_cache_misses_total",
			Help: "Block cache misses.",
		})
		opts.Registry.MustRegister(c.hitCounter, c.missCounter)
	}
	return c
}

// Get looks up key, recording the access in the local hit/miss tickers
// regardless of whether a Prometheus registry is attached.
func (c *Cache) Get(key string) ([]byte, bool) {
	v, ok := c.raw.Get(key)
	if ok {
		c.hits.Add(1)
		if c.hitCounter != nil {
			c.hitCounter.Inc()
		}
	} else {
		c.misses.Add(1)
		if c.missCounter != nil {
			c.missCounter.Inc()
		}
	}
	return v, ok
}

// Insert stores value under key with the given charge against capacity.
// If an arena allocator is configured and has room, the bytes are copied
// into the arena before insertion; otherwise the cache keeps the
// caller's slice as given.
func (c *Cache) Insert(key string, value []byte, charge int64) {
	if c.alloc != nil {
		if copied, ok := c.alloc.Copy(value); ok {
			value = copied
		}
	}
	c.raw.Insert(key, value, charge)
}

func (c *Cache) Erase(key string)      { c.raw.Erase(key) }
func (c *Cache) Usage() int64          { return c.raw.Usage() }
func (c *Cache) Capacity() int64       { return c.raw.Capacity() }
func (c *Cache) SetCapacity(n int64)   { c.raw.SetCapacity(n) }
func (c *Cache) Hits() uint64          { return c.hits.Load() }
func (c *Cache) Misses() uint64        { return c.misses.Load() }

// HitRate returns the fraction of lookups that were hits, or 0 if there
// have been no lookups yet.
func (c *Cache) HitRate() float64 {
	h, m := c.hits.Load(), c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}
