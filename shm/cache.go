package shm

import (
	"container/list"
	log "log/slog"
	"sync"
)

// DefaultCacheSize is the default bound on open segment handles.
const DefaultCacheSize = 5

// Cache is a bounded table of open segment handles keyed by name. When a new
// name is registered at capacity, the oldest entry by insertion order is
// closed and evicted (FIFO). Re-accessing or re-registering an existing name
// does not refresh its position; this is deliberately not an LRU, to keep
// eviction order predictable for processes that registered segments early.
//
// The cache exclusively owns the handles it holds: eviction and Clear are
// the paths that release them.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List // segment names, oldest at front
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	seg  *Segment
	node *list.Element
}

// NewCache builds a handle cache bounded at maxSize, or DefaultCacheSize
// when maxSize is not positive.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*cacheEntry),
	}
}

// Register inserts or replaces the handle for name. Replacing does not close
// the previous handle (it may still be in use by the caller) and does not
// refresh the entry's eviction position. Inserting a new name at capacity
// first closes and evicts the oldest entry.
func (c *Cache) Register(name string, seg *Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registerLocked(name, seg)
}

func (c *Cache) registerLocked(name string, seg *Segment) {
	if e, ok := c.entries[name]; ok {
		e.seg = seg
		log.Debug("segment cache entry replaced", "name", name)
		return
	}

	if c.order.Len() >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[name] = &cacheEntry{seg: seg, node: c.order.PushBack(name)}
	log.Debug("segment cache entry added", "name", name)
}

// Fetch returns the cached handle for name, opening and registering the OS
// segment when it is not cached yet. It fails with ErrNotFound when no such
// segment exists at the OS level. Concurrent fetches of the same uncached
// name all resolve to one shared handle.
func (c *Cache) Fetch(name string) (*Segment, error) {
	c.mu.Lock()
	if e, ok := c.entries[name]; ok {
		c.mu.Unlock()
		return e.seg, nil
	}
	c.mu.Unlock()

	// Open outside the lock, then re-check: a concurrent Fetch may have
	// registered the name first, in which case the redundant handle must be
	// closed rather than leaked.
	seg, err := Open(name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if e, ok := c.entries[name]; ok {
		c.mu.Unlock()
		seg.Close()
		return e.seg, nil
	}
	c.registerLocked(name, seg)
	c.mu.Unlock()
	return seg, nil
}

// Evict closes and removes the entry for name. It is idempotent: evicting an
// absent name is a no-op.
func (c *Cache) Evict(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok {
		return
	}
	c.order.Remove(e.node)
	delete(c.entries, name)
	if err := e.seg.Close(); err != nil {
		log.Warn("closing evicted segment", "name", name, "error", err)
	}
}

// Remove drops the entry for name without closing its handle, for callers
// that manage the close themselves. Idempotent.
func (c *Cache) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok {
		return
	}
	c.order.Remove(e.node)
	delete(c.entries, name)
}

// Clear closes every handle and empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, e := range c.entries {
		if err := e.seg.Close(); err != nil {
			log.Warn("closing cached segment", "name", name, "error", err)
		}
	}
	c.entries = make(map[string]*cacheEntry)
	c.order.Init()
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	name := front.Value.(string)
	e := c.entries[name]
	c.order.Remove(front)
	delete(c.entries, name)
	if err := e.seg.Close(); err != nil {
		log.Warn("closing evicted segment", "name", name, "error", err)
	}
	log.Debug("segment cache entry evicted", "name", name)
}
