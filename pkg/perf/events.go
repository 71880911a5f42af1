package perf

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types emitted by the performance layer.
const (
	EventOperationCompleted = "operation-completed"
	EventThresholdExceeded  = "threshold-exceeded"
	EventMemoryWarning      = "memory-warning"
	EventCacheCleanup       = "cache-cleanup"
	EventCacheEvicted       = "cache-evicted"
)

// Event is a performance-layer notification.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// listenerSet manages subscriptions for a single emitting service. Listener
// panics are recovered and logged so observers can never abort the operation
// that triggered the event.
type listenerSet struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(Event)
	logger    zerolog.Logger
}

func newListenerSet(logger zerolog.Logger) *listenerSet {
	return &listenerSet{listeners: make(map[int]func(Event)), logger: logger}
}

func (ls *listenerSet) add(fn func(Event)) int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.nextID++
	ls.listeners[ls.nextID] = fn
	return ls.nextID
}

func (ls *listenerSet) remove(id int) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	delete(ls.listeners, id)
}

func (ls *listenerSet) emit(eventType string, details map[string]interface{}) {
	ls.mu.RLock()
	fns := make([]func(Event), 0, len(ls.listeners))
	for _, fn := range ls.listeners {
		fns = append(fns, fn)
	}
	ls.mu.RUnlock()

	event := Event{Type: eventType, Timestamp: time.Now(), Details: details}
	for _, fn := range fns {
		ls.invoke(fn, event)
	}
}

func (ls *listenerSet) invoke(fn func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil {
			ls.logger.Warn().
				Str("event", event.Type).
				Interface("panic", r).
				Msg("event listener panicked")
		}
	}()
	fn(event)
}
