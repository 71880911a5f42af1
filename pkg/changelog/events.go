package changelog

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types emitted by the tracker.
const (
	EventChangeTracked     = "change-tracked"
	EventChangeApplied     = "change-applied"
	EventChangeCommitted   = "change-committed"
	EventChangeRolledBack  = "change-rolled-back"
	EventValidationFailed  = "validation-failed"
	EventBaselineCreated   = "baseline-created"
	EventBaselineActivated = "baseline-activated"
	EventBaselineRollback  = "baseline-rollback"
)

// Event is a change-tracking notification.
type Event struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	ChangeID   string    `json:"change_id,omitempty"`
	BaselineID string    `json:"baseline_id,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
}

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

// emit invokes listeners synchronously; a listener panic is recovered and
// logged, never allowed to abort the change operation.
func (ls *listenerSet) emit(event Event) {
	ls.mu.RLock()
	fns := make([]func(Event), 0, len(ls.listeners))
	for _, fn := range ls.listeners {
		fns = append(fns, fn)
	}
	ls.mu.RUnlock()

	event.Timestamp = time.Now()
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					ls.logger.Warn().
						Str("event", event.Type).
						Interface("panic", r).
						Msg("changelog event listener panicked")
				}
			}()
			fn(event)
		}()
	}
}
