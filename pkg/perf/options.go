package perf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithDurationThreshold sets the duration above which an operation emits a
// threshold-exceeded event. Zero disables the check.
func WithDurationThreshold(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.durationThreshold = d
	}
}

// WithMemoryThreshold sets the per-operation memory delta, in bytes, above
// which a memory-warning event fires. Zero disables the check.
func WithMemoryThreshold(bytes uint64) MonitorOption {
	return func(m *Monitor) {
		m.memoryThreshold = bytes
	}
}

// WithMaxRetainedOperations bounds how many completed operations are kept
// for trend aggregation.
func WithMaxRetainedOperations(n int) MonitorOption {
	return func(m *Monitor) {
		m.maxRetained = n
	}
}

// WithMonitorLogger sets the monitor's logger.
func WithMonitorLogger(logger zerolog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithPrometheus registers operation and breach counters on reg.
func WithPrometheus(reg prometheus.Registerer) MonitorOption {
	return func(m *Monitor) {
		m.registerCollectors(reg)
	}
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithDefaultTTL sets the TTL applied by Set.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.defaultTTL = ttl
	}
}

// WithMaxEntries caps the entry count; excess entries are evicted in
// least-recently-accessed order. Zero disables the cap.
func WithMaxEntries(n int) CacheOption {
	return func(c *Cache) {
		c.maxEntries = n
	}
}

// WithCleanupInterval sets how often the expiry sweep runs. Zero disables
// the background sweep.
func WithCleanupInterval(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.cleanupInterval = d
	}
}

// WithCacheLogger sets the cache's logger.
func WithCacheLogger(logger zerolog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}
