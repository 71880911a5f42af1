package perf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetAndGet(t *testing.T) {
	cache := NewCache()

	cache.Set("k1", "v1")
	value, hit := cache.Get("k1")
	assert.True(t, hit)
	assert.Equal(t, "v1", value)

	_, hit = cache.Get("missing")
	assert.False(t, hit)
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := NewCache()

	cache.SetWithTTL("short", "v", 100*time.Millisecond)

	_, hit := cache.Get("short")
	require.True(t, hit)

	time.Sleep(150 * time.Millisecond)
	_, hit = cache.Get("short")
	assert.False(t, hit)

	// The expired entry is removed on read, not just hidden.
	assert.Equal(t, 0, cache.Len())
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := NewCache()
	cache.SetWithTTL("forever", "v", 0)

	time.Sleep(50 * time.Millisecond)
	_, hit := cache.Get("forever")
	assert.True(t, hit)
}

func TestCache_LRUEvictionOverCap(t *testing.T) {
	cache := NewCache(WithMaxEntries(2))

	cache.Set("a", 1)
	time.Sleep(5 * time.Millisecond)
	cache.Set("b", 2)
	time.Sleep(5 * time.Millisecond)

	// Touch "a" so "b" is the least recently accessed.
	_, hit := cache.Get("a")
	require.True(t, hit)
	time.Sleep(5 * time.Millisecond)

	cache.Set("c", 3)

	_, hit = cache.Get("b")
	assert.False(t, hit, "least recently accessed entry should be evicted")
	_, hit = cache.Get("a")
	assert.True(t, hit)
	_, hit = cache.Get("c")
	assert.True(t, hit)
}

func TestCache_EvictionEmitsEvent(t *testing.T) {
	cache := NewCache(WithMaxEntries(1))

	var events []Event
	cache.AddListener(func(e Event) {
		events = append(events, e)
	})

	cache.Set("a", 1)
	cache.Set("b", 2)

	require.Len(t, events, 1)
	assert.Equal(t, EventCacheEvicted, events[0].Type)
	assert.Equal(t, []string{"a"}, events[0].Details["keys"])
}

func TestCache_InvalidateAndClear(t *testing.T) {
	cache := NewCache()

	cache.Set("a", 1)
	cache.Set("b", 2)

	cache.Invalidate("a")
	_, hit := cache.Get("a")
	assert.False(t, hit)

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestCache_CleanupSweep(t *testing.T) {
	cache := NewCache(WithCleanupInterval(50 * time.Millisecond))

	cleanups := make(chan Event, 4)
	cache.AddListener(func(e Event) {
		if e.Type == EventCacheCleanup {
			cleanups <- e
		}
	})

	cache.SetWithTTL("short", "v", 20*time.Millisecond)
	cache.StartCleanup()
	defer cache.Stop()

	var event Event
	select {
	case event = <-cleanups:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected a cache-cleanup event")
	}

	assert.Equal(t, 1, event.Details["removed"])
	assert.Equal(t, 0, cache.Len())
}

func TestCache_Statistics(t *testing.T) {
	cache := NewCache()

	cache.Set("a", "value")
	cache.Get("a")
	cache.Get("a")
	cache.Get("missing")

	stats := cache.GetStatistics()
	assert.Equal(t, 1, stats["entries"])
	assert.EqualValues(t, 2, stats["hits"])
	assert.EqualValues(t, 1, stats["misses"])
	assert.InDelta(t, 2.0/3.0, stats["hit_rate"], 0.001)
}

func TestCache_StopIsIdempotent(t *testing.T) {
	cache := NewCache(WithCleanupInterval(10 * time.Millisecond))
	cache.StartCleanup()
	cache.Stop()
	cache.Stop()
}
