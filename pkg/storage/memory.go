package storage

import (
	"sync"

	"github.com/tokenlab/tokencore/pkg/domain"
)

// MemoryStore is an in-memory domain.KVStore. It backs tests and
// non-persistent sessions, and can be armed to fail writes so transaction
// rollback paths can be exercised.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]interface{}

	writeErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]interface{})}
}

// Get implements domain.KVStore.
func (ms *MemoryStore) Get(key string) (interface{}, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	value, exists := ms.data[key]
	return value, exists
}

// Set implements domain.KVStore.
func (ms *MemoryStore) Set(key string, value interface{}) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.writeErr != nil {
		return ms.writeErr
	}
	ms.data[key] = value
	return nil
}

// Delete implements domain.KVStore.
func (ms *MemoryStore) Delete(key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.writeErr != nil {
		return ms.writeErr
	}
	delete(ms.data, key)
	return nil
}

// Keys implements domain.KVStore.
func (ms *MemoryStore) Keys() []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	keys := make([]string, 0, len(ms.data))
	for key := range ms.data {
		keys = append(keys, key)
	}
	return keys
}

// Clear implements domain.KVStore.
func (ms *MemoryStore) Clear() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.writeErr != nil {
		return ms.writeErr
	}
	ms.data = make(map[string]interface{})
	return nil
}

// SetWriteError arms (or with nil, disarms) a failure returned by every
// subsequent write. Reads are unaffected, which lets rollback replay the
// captured previous value.
func (ms *MemoryStore) SetWriteError(err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.writeErr = err
}

var _ domain.KVStore = (*MemoryStore)(nil)
