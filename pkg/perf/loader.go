package perf

import "time"

// LoadOptions tunes a single optimized load.
type LoadOptions struct {
	// UseCache permits serving and storing the result via the cache.
	UseCache bool
	// TTL overrides the cache's default TTL when positive.
	TTL time.Duration
	// Component is attached to the timed operation for attribution.
	Component string
}

// Loader serves reads through the cache and times cache misses as single
// operations on the monitor.
type Loader struct {
	monitor *Monitor
	cache   *Cache
}

// NewLoader creates a loader over the given monitor and cache.
func NewLoader(monitor *Monitor, cache *Cache) *Loader {
	return &Loader{monitor: monitor, cache: cache}
}

// Load returns the cached value for cacheKey when fresh and permitted,
// otherwise invokes loader, caches the result on success, and times the
// whole path as one operation.
func (l *Loader) Load(cacheKey string, loader func() (interface{}, error), opts LoadOptions) (interface{}, error) {
	if opts.UseCache && cacheKey != "" {
		if value, ok := l.cache.Get(cacheKey); ok {
			return value, nil
		}
	}

	opID := l.monitor.StartOperation("data-load", opts.Component)
	value, err := loader()
	l.monitor.EndOperation(opID, err == nil, err)
	if err != nil {
		return nil, err
	}

	if opts.UseCache && cacheKey != "" {
		ttl := opts.TTL
		if ttl <= 0 {
			ttl = l.cache.defaultTTL
		}
		l.cache.SetWithTTL(cacheKey, value, ttl)
	}
	return value, nil
}
