// Package cache is an explicitly owned TTL cache. Entries carry invalidation
// tags; bumping a tag invalidates every entry stored under it, including
// entries whose load was still in flight when the tag was bumped.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

type entry[V any] struct {
	value   V
	expires time.Time
	tags    []string
	// stamp is the clock value read before the load started.
	stamp uint64
}

// Cache orders loads and invalidations on one logical clock. A tag holds
// the clock value of its last invalidation, and an entry is stale once any
// of its tags moved past the entry's stamp.
type Cache[V any] struct {
	ttl      time.Duration
	entries  *xsync.Map[string, entry[V]]
	versions *xsync.Map[string, uint64]
	clock    atomic.Uint64
	// loads maps in-flight load ids to their stamp. Zero marks a load that
	// has not read its stamp yet.
	loads   *xsync.Map[uint64, uint64]
	loadIDs atomic.Uint64
	now     func() time.Time
}

// New returns a cache whose entries live for ttl. A non-positive ttl
// disables caching: every lookup loads.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:      ttl,
		entries:  xsync.NewMap[string, entry[V]](),
		versions: xsync.NewMap[string, uint64](),
		loads:    xsync.NewMap[uint64, uint64](),
		now:      time.Now,
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	e, ok := c.entries.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	if !c.fresh(e) {
		c.entries.Delete(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrLoad returns the cached value for key or calls load and stores its
// result under tags. Load errors are not cached.
func (c *Cache[V]) GetOrLoad(key string, tags []string, load func() (V, error)) (V, error) {
	if c.ttl <= 0 {
		return load()
	}
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	id := c.loadIDs.Add(1)
	c.loads.Store(id, 0)
	defer c.loads.Delete(id)
	stamp := c.clock.Load()
	c.loads.Store(id, stamp)

	v, err := load()
	if err != nil {
		return v, err
	}
	c.entries.Store(key, entry[V]{value: v, expires: c.now().Add(c.ttl), tags: tags, stamp: stamp})
	return v, nil
}

// Invalidate drops every entry stored under any of tags.
func (c *Cache[V]) Invalidate(tags ...string) {
	for _, tag := range tags {
		at := c.clock.Add(1)
		c.versions.Compute(tag, func(old uint64, _ bool) (uint64, xsync.ComputeOp) {
			if old > at {
				return old, xsync.CancelOp
			}
			return at, xsync.UpdateOp
		})
	}
}

// Sweep removes expired and invalidated entries and reports how many went.
// Tags are forgotten once no live entry or in-flight load predates their
// last invalidation.
func (c *Cache[V]) Sweep() int {
	floor := c.clock.Load()
	c.loads.Range(func(_ uint64, stamp uint64) bool {
		if stamp < floor {
			floor = stamp
		}
		return true
	})

	removed := 0
	c.entries.Range(func(key string, e entry[V]) bool {
		if !c.fresh(e) {
			c.entries.Delete(key)
			removed++
		}
		return true
	})

	c.versions.Range(func(tag string, at uint64) bool {
		if at <= floor {
			c.versions.Compute(tag, func(old uint64, loaded bool) (uint64, xsync.ComputeOp) {
				if loaded && old <= floor {
					return old, xsync.DeleteOp
				}
				return old, xsync.CancelOp
			})
		}
		return true
	})
	return removed
}

func (c *Cache[V]) Len() int {
	return c.entries.Size()
}

// Tags reports how many invalidation tags are tracked.
func (c *Cache[V]) Tags() int {
	return c.versions.Size()
}

func (c *Cache[V]) fresh(e entry[V]) bool {
	if !c.now().Before(e.expires) {
		return false
	}
	for _, tag := range e.tags {
		if at, ok := c.versions.Load(tag); ok && at > e.stamp {
			return false
		}
	}
	return true
}
