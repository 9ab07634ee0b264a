package dataset

import (
	"slices"
	"sync"
	"time"

	"sealevel/pkg/contracts/domain"
)

// cleanupInterval is how often expired entries are swept
const cleanupInterval = 5 * time.Minute

// CacheEntry is a cached dataset with bookkeeping
type CacheEntry struct {
	Dataset   *domain.Dataset `json:"dataset"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	HitCount  int             `json:"hit_count"`
}

// CacheStats is a point-in-time view of cache usage
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxSize    int     `json:"max_size"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRatio   float64 `json:"hit_ratio"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// Cache holds parsed datasets by ID so that re-uploading or re-selecting the
// same data skips parsing. Pinned entries never expire and are never evicted.
type Cache struct {
	entries   map[string]CacheEntry
	pinned    map[string]bool
	mutex     sync.RWMutex
	ttl       time.Duration
	maxSize   int
	hitCount  int64
	missCount int64
	now       func() time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewCache creates a cache and starts its sweeper
func NewCache(ttl time.Duration, maxSize int) *Cache {
	cache := &Cache{
		entries:  make(map[string]CacheEntry),
		pinned:   make(map[string]bool),
		ttl:      ttl,
		maxSize:  maxSize,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// Get returns the dataset stored under id
func (c *Cache) Get(id string) (*domain.Dataset, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[id]
	if !exists || c.expired(id, entry) {
		c.missCount++
		return nil, false
	}

	entry.HitCount++
	c.entries[id] = entry
	c.hitCount++

	return entry.Dataset, true
}

// Set stores ds under its ID
func (c *Cache) Set(ds *domain.Dataset) {
	if ds == nil || ds.ID == "" {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.store(ds)
}

// Pin stores ds and exempts it from expiry and eviction
func (c *Cache) Pin(ds *domain.Dataset) {
	if ds == nil || ds.ID == "" {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.pinned[ds.ID] = true
	c.store(ds)
}

func (c *Cache) store(ds *domain.Dataset) {
	_, exists := c.entries[ds.ID]
	if !c.pinned[ds.ID] {
		if c.maxSize <= 0 {
			return
		}
		if !exists && c.unpinnedCount() >= c.maxSize {
			c.evictOldest()
		}
	}

	now := c.now()
	c.entries[ds.ID] = CacheEntry{
		Dataset:   ds,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
}

// Invalidate removes a dataset from the cache
func (c *Cache) Invalidate(id string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, id)
	delete(c.pinned, id)
}

// List returns the cached datasets, pinned first then newest first
func (c *Cache) List() []*domain.Dataset {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var pinned, rest []CacheEntry
	for id, entry := range c.entries {
		if c.expired(id, entry) {
			continue
		}
		if c.pinned[id] {
			pinned = append(pinned, entry)
		} else {
			rest = append(rest, entry)
		}
	}

	sortNewestFirst(pinned)
	sortNewestFirst(rest)

	out := make([]*domain.Dataset, 0, len(pinned)+len(rest))
	for _, e := range append(pinned, rest...) {
		out = append(out, e.Dataset)
	}
	return out
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	total := c.hitCount + c.missCount
	ratio := 0.0
	if total > 0 {
		ratio = float64(c.hitCount) / float64(total)
	}

	return CacheStats{
		Entries:    len(c.entries),
		MaxSize:    c.maxSize,
		Hits:       c.hitCount,
		Misses:     c.missCount,
		HitRatio:   ratio,
		TTLSeconds: c.ttl.Seconds(),
	}
}

// Stop stops the sweeper. It is safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Cache) expired(id string, entry CacheEntry) bool {
	return !c.pinned[id] && c.ttl > 0 && c.now().After(entry.ExpiresAt)
}

func (c *Cache) unpinnedCount() int {
	n := 0
	for id := range c.entries {
		if !c.pinned[id] {
			n++
		}
	}
	return n
}

func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if c.pinned[key] {
			continue
		}
		if oldestKey == "" || entry.CachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CachedAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *Cache) sweep() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, entry := range c.entries {
		if c.expired(key, entry) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopChan:
			return
		}
	}
}

func sortNewestFirst(entries []CacheEntry) {
	slices.SortStableFunc(entries, func(a, b CacheEntry) int {
		return b.CachedAt.Compare(a.CachedAt)
	})
}
