package perf

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CacheEntry holds one cached payload with its freshness and access metadata.
type CacheEntry struct {
	Key          string        `json:"key"`
	Value        interface{}   `json:"-"`
	InsertedAt   time.Time     `json:"inserted_at"`
	TTL          time.Duration `json:"ttl"`
	AccessCount  int64         `json:"access_count"`
	LastAccessed time.Time     `json:"last_accessed"`
	SizeBytes    int           `json:"size_bytes"`
}

// expired reports whether the entry is past its TTL at the given instant.
func (e *CacheEntry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.InsertedAt) >= e.TTL
}

// Cache is a TTL + size-bounded cache. Entries become invisible once their
// TTL elapses; independent of TTL, when the entry count exceeds the cap the
// least-recently-accessed entries are evicted first.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry

	defaultTTL      time.Duration
	maxEntries      int
	cleanupInterval time.Duration

	hits   int64
	misses int64

	listeners *listenerSet
	logger    zerolog.Logger

	backgroundWg sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewCache creates a cache with the given options applied.
func NewCache(options ...CacheOption) *Cache {
	c := &Cache{
		entries:         make(map[string]*CacheEntry),
		defaultTTL:      5 * time.Minute,
		maxEntries:      1000,
		cleanupInterval: time.Minute,
		logger:          zerolog.Nop(),
		stopChan:        make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	c.listeners = newListenerSet(c.logger)
	return c
}

// Set stores a value under the cache's default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value that expires ttl after insertion.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	now := time.Now()
	entry := &CacheEntry{
		Key:          key,
		Value:        value,
		InsertedAt:   now,
		TTL:          ttl,
		LastAccessed: now,
		SizeBytes:    estimateSize(value),
	}

	c.mu.Lock()
	c.entries[key] = entry
	evicted := c.evictOverCap()
	c.mu.Unlock()

	if len(evicted) > 0 {
		c.listeners.emit(EventCacheEvicted, map[string]interface{}{
			"keys": evicted,
		})
	}
}

// Get returns the cached value for key, or nil and false when the key is
// absent or its TTL has elapsed.
func (c *Cache) Get(key string) (interface{}, bool) {
	now := time.Now()

	c.mu.Lock()
	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	if entry.expired(now) {
		delete(c.entries, key)
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	entry.AccessCount++
	entry.LastAccessed = now
	c.hits++
	value := entry.Value
	c.mu.Unlock()

	return value, true
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mu.Unlock()
}

// evictOverCap removes least-recently-accessed entries until the entry count
// is back under the cap. Caller must hold c.mu.
func (c *Cache) evictOverCap() []string {
	var evicted []string
	for c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		var oldestKey string
		var oldestAccess time.Time
		for key, entry := range c.entries {
			if oldestKey == "" || entry.LastAccessed.Before(oldestAccess) {
				oldestKey = key
				oldestAccess = entry.LastAccessed
			}
		}
		delete(c.entries, oldestKey)
		evicted = append(evicted, oldestKey)
	}
	return evicted
}

// StartCleanup launches the periodic expiry sweep. Safe to call once per
// cache; Stop tears it down.
func (c *Cache) StartCleanup() {
	if c.cleanupInterval <= 0 {
		return
	}
	c.backgroundWg.Add(1)
	go func() {
		defer c.backgroundWg.Done()
		ticker := time.NewTicker(c.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.cleanupExpired()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop halts the cleanup worker and waits for it to exit.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.backgroundWg.Wait()
}

// cleanupExpired removes every expired entry and emits a cache-cleanup event
// when anything was dropped.
func (c *Cache) cleanupExpired() {
	now := time.Now()

	c.mu.Lock()
	var removed int
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Debug().Int("removed", removed).Int("remaining", remaining).Msg("cache cleanup")
		c.listeners.emit(EventCacheCleanup, map[string]interface{}{
			"removed":   removed,
			"remaining": remaining,
		})
	}
}

// AddListener subscribes to cache events and returns a subscription ID.
func (c *Cache) AddListener(fn func(Event)) int {
	return c.listeners.add(fn)
}

// RemoveListener drops a subscription.
func (c *Cache) RemoveListener(id int) {
	c.listeners.remove(id)
}

// Len returns the current entry count, expired entries included until swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetStatistics returns hit/miss counters and size information.
func (c *Cache) GetStatistics() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totalBytes int
	for _, entry := range c.entries {
		totalBytes += entry.SizeBytes
	}

	hitRate := 0.0
	if c.hits+c.misses > 0 {
		hitRate = float64(c.hits) / float64(c.hits+c.misses)
	}

	return map[string]interface{}{
		"entries":         len(c.entries),
		"max_entries":     c.maxEntries,
		"hits":            c.hits,
		"misses":          c.misses,
		"hit_rate":        hitRate,
		"estimated_bytes": totalBytes,
	}
}

// estimateSize gives a rough byte estimate for threshold bookkeeping. Exact
// accounting is not worth the cost here.
func estimateSize(value interface{}) int {
	switch v := value.(type) {
	case string:
		return len(v)
	case []byte:
		return len(v)
	case nil:
		return 0
	default:
		return len(fmt.Sprintf("%+v", v))
	}
}
