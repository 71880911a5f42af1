package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types emitted by the transaction manager.
const (
	EventWriteCommitted   = "write-committed"
	EventDeleteCommitted  = "delete-committed"
	EventRollbackComplete = "rollback-complete"
	EventStorageCleared   = "storage-cleared"
)

// Event is a storage-layer notification.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Key       string    `json:"key,omitempty"`
	TxID      string    `json:"tx_id,omitempty"`
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

// emit invokes listeners synchronously; panics are recovered and logged so a
// bad listener can never abort the storage operation.
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
						Msg("storage event listener panicked")
				}
			}()
			fn(event)
		}()
	}
}
