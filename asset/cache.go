package asset

import (
	"sync"
	"time"
)

// Cache is a bounded LRU cache of decoded assets keyed by file path. Both
// bounds apply at once: when either the entry count or the total sample
// bytes would be exceeded, the least recently used entries are evicted
// until the new asset fits.
//
// Assets are immutable and reference counted only by the Go GC, so eviction
// never invalidates a handle a caller already holds.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	maxEntries int
	maxBytes   uint64
	totalBytes uint64

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	asset *Asset
	// lastAccess is Unix milliseconds of the most recent Get or Put.
	lastAccess int64
}

// CacheStats is a snapshot of cache occupancy and hit accounting.
type CacheStats struct {
	Entries    int
	TotalBytes uint64
	MaxEntries int
	MaxBytes   uint64
	Hits       uint64
	Misses     uint64
}

// NewCache creates a cache bounded by maxEntries assets and maxBytes of
// decoded sample data. Bounds below 1 are raised to 1.
func NewCache(maxEntries int, maxBytes uint64) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if maxBytes < 1 {
		maxBytes = 1
	}
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
	}
}

// Get returns the cached asset for path, refreshing its access time.
func (c *Cache) Get(path string) (*Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	e.lastAccess = time.Now().UnixMilli()
	return e.asset, true
}

// Put inserts an asset, evicting least recently used entries as needed to
// satisfy both bounds. An asset larger than maxBytes on its own is still
// stored; it simply evicts everything else.
func (c *Cache) Put(path string, a *Asset) {
	size := a.SizeBytes()

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[path]; ok {
		c.totalBytes -= old.asset.SizeBytes()
		delete(c.entries, path)
	}

	for len(c.entries) > 0 &&
		(len(c.entries)+1 > c.maxEntries || c.totalBytes+size > c.maxBytes) {
		c.evictOldest()
	}

	c.entries[path] = &cacheEntry{
		asset:      a,
		lastAccess: time.Now().UnixMilli(),
	}
	c.totalBytes += size
}

// evictOldest removes the entry with the smallest lastAccess. Caller holds mu.
func (c *Cache) evictOldest() {
	var oldestPath string
	var oldest int64 = 1<<63 - 1
	for path, e := range c.entries {
		if e.lastAccess < oldest {
			oldest = e.lastAccess
			oldestPath = path
		}
	}
	if e, ok := c.entries[oldestPath]; ok {
		c.totalBytes -= e.asset.SizeBytes()
		delete(c.entries, oldestPath)
	}
}

// Remove drops the entry for path if present.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		c.totalBytes -= e.asset.SizeBytes()
		delete(c.entries, path)
	}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.totalBytes = 0
}

// Stats returns a snapshot of occupancy and hit accounting.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries:    len(c.entries),
		TotalBytes: c.totalBytes,
		MaxEntries: c.maxEntries,
		MaxBytes:   c.maxBytes,
		Hits:       c.hits,
		Misses:     c.misses,
	}
}
