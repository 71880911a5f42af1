// Package storage implements the storage transaction manager: atomic
// get/set/delete against a key-value substrate, with a transaction audit log
// and automatic compensating rollback when the underlying write fails.
package storage

import (
	"fmt"
	"hash/crc32"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tokenlab/tokencore/pkg/domain"
)

// TransactionManager wraps a domain.KVStore with per-write transactions.
// Every Set/Delete captures the key's previous value before touching the
// substrate; a substrate failure replays the captured value so callers never
// observe a half-applied write.
type TransactionManager struct {
	mu    sync.RWMutex
	store domain.KVStore

	validator         domain.Validator
	validationEnabled bool

	txLog    []*Transaction
	maxTxLog int

	validationCache map[string]domain.ValidationResult

	listeners *listenerSet
	logger    zerolog.Logger
}

// NewTransactionManager creates a manager over the given substrate.
func NewTransactionManager(store domain.KVStore, options ...Option) *TransactionManager {
	tm := &TransactionManager{
		store:             store,
		validationEnabled: true,
		maxTxLog:          100,
		validationCache:   make(map[string]domain.ValidationResult),
		logger:            zerolog.Nop(),
	}
	for _, option := range options {
		option(tm)
	}
	tm.listeners = newListenerSet(tm.logger)
	return tm
}

// Get returns the value stored under key, or nil and false when absent.
func (tm *TransactionManager) Get(key string) (interface{}, bool) {
	return tm.store.Get(key)
}

// GetTyped returns the document stored under key after checking it against
// the rules for the given logical type. A value that is not a document, or
// fails validation, surfaces a coded error rather than corrupt data.
func (tm *TransactionManager) GetTyped(key string, logicalType domain.LogicalType) (domain.Document, error) {
	value, exists := tm.store.Get(key)
	if !exists {
		return nil, nil
	}

	doc, ok := asDocument(value)
	if !ok {
		return nil, &Error{Code: CodeGetFailed, Key: key,
			Err: fmt.Errorf("stored value is %T, not a document", value)}
	}

	if tm.validationEnabled && tm.validator != nil {
		if result := tm.validateCached(doc, logicalType); !result.IsValid {
			return nil, &Error{Code: CodeValidationFailed, Key: key,
				Err: fmt.Errorf("stored value failed validation: %s", firstIssue(result))}
		}
	}
	return doc, nil
}

// Set writes a value atomically. On substrate failure the previous value is
// restored (or the key removed if it was absent) before the error surfaces.
func (tm *TransactionManager) Set(key string, value interface{}) error {
	return tm.write(key, value, OpWrite)
}

// SetTyped validates the document for its logical type before opening a
// transaction. A failed validation aborts with no transaction created.
func (tm *TransactionManager) SetTyped(key string, value domain.Document, logicalType domain.LogicalType) error {
	if tm.validationEnabled && tm.validator != nil {
		if result := tm.validateCached(value, logicalType); !result.IsValid {
			return &Error{Code: CodeValidationFailed, Key: key,
				Err: fmt.Errorf("validation failed: %s", firstIssue(result))}
		}
	}
	return tm.write(key, map[string]interface{}(value), OpWrite)
}

// Delete removes a key atomically, restoring the previous value when the
// substrate delete fails.
func (tm *TransactionManager) Delete(key string) error {
	return tm.write(key, nil, OpDelete)
}

// write runs one single-operation transaction against the substrate.
// Events are emitted after the lock is released so listeners may call back
// into the manager.
func (tm *TransactionManager) write(key string, value interface{}, kind OpKind) error {
	tm.mu.Lock()

	previous, hadPrevious := tm.store.Get(key)
	tx := &Transaction{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Status:    TxPending,
		Operations: []Operation{{
			Kind:         kind,
			Key:          key,
			NewData:      value,
			PreviousData: previous,
			HadPrevious:  hadPrevious,
		}},
	}

	var writeErr error
	if kind == OpDelete {
		writeErr = tm.store.Delete(key)
	} else {
		writeErr = tm.store.Set(key, value)
	}

	if writeErr != nil {
		tm.rollback(tx)
		tm.appendTxLocked(tx)
		tm.mu.Unlock()
		tm.listeners.emit(Event{Type: EventRollbackComplete, Key: key, TxID: tx.ID})
		code := CodeSetFailed
		if kind == OpDelete {
			code = CodeDeleteFailed
		}
		return &Error{Code: code, Key: key, Err: writeErr}
	}

	tx.Status = TxCommitted
	tm.appendTxLocked(tx)
	tm.mu.Unlock()

	eventType := EventWriteCommitted
	if kind == OpDelete {
		eventType = EventDeleteCommitted
	}
	tm.listeners.emit(Event{Type: eventType, Key: key, TxID: tx.ID})
	return nil
}

// rollback replays the captured previous values of a failed transaction, in
// reverse operation order. Rollback failures are logged; the original write
// error still wins. Caller must hold tm.mu.
func (tm *TransactionManager) rollback(tx *Transaction) {
	for i := len(tx.Operations) - 1; i >= 0; i-- {
		op := tx.Operations[i]
		var err error
		if op.HadPrevious {
			err = tm.store.Set(op.Key, op.PreviousData)
		} else {
			err = tm.store.Delete(op.Key)
		}
		if err != nil {
			tm.logger.Error().
				Str("key", op.Key).
				Str("tx_id", tx.ID).
				Err(err).
				Msg("compensating rollback failed")
		}
	}
	tx.Status = TxRolledBack
}

// ClearAll removes every key in one transaction; a substrate failure midway
// restores the keys already removed.
func (tm *TransactionManager) ClearAll() error {
	tm.mu.Lock()

	tx := &Transaction{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Status:    TxPending,
	}
	for _, key := range tm.store.Keys() {
		previous, _ := tm.store.Get(key)
		tx.Operations = append(tx.Operations, Operation{
			Kind:         OpDelete,
			Key:          key,
			PreviousData: previous,
			HadPrevious:  true,
		})
		if err := tm.store.Delete(key); err != nil {
			tm.rollback(tx)
			tm.appendTxLocked(tx)
			tm.mu.Unlock()
			tm.listeners.emit(Event{Type: EventRollbackComplete, Key: key, TxID: tx.ID})
			return &Error{Code: CodeClearFailed, Key: key, Err: err}
		}
	}

	tx.Status = TxCommitted
	tm.appendTxLocked(tx)
	tm.mu.Unlock()
	tm.listeners.emit(Event{Type: EventStorageCleared, TxID: tx.ID})
	return nil
}

// Keys returns the substrate's current key set.
func (tm *TransactionManager) Keys() []string {
	return tm.store.Keys()
}

// validateCached validates a document, serving repeats of identical payloads
// from the content-hash cache.
func (tm *TransactionManager) validateCached(doc domain.Document, logicalType domain.LogicalType) domain.ValidationResult {
	cacheKey := contentHash(doc, logicalType)

	if cacheKey != "" {
		tm.mu.RLock()
		cached, ok := tm.validationCache[cacheKey]
		tm.mu.RUnlock()
		if ok {
			return cached
		}
	}

	result := tm.validator.Validate(doc, logicalType)
	if cacheKey != "" {
		tm.mu.Lock()
		tm.validationCache[cacheKey] = result
		tm.mu.Unlock()
	}
	return result
}

// ClearValidationCache drops all cached validation results. Safe at any time.
func (tm *TransactionManager) ClearValidationCache() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.validationCache = make(map[string]domain.ValidationResult)
}

// GetTransactionLog returns a copy of the in-memory audit log, oldest first.
func (tm *TransactionManager) GetTransactionLog() []*Transaction {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	out := make([]*Transaction, len(tm.txLog))
	copy(out, tm.txLog)
	return out
}

// GetStatistics returns counters over the audit log and caches.
func (tm *TransactionManager) GetStatistics() map[string]interface{} {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	var committed, rolledBack int
	for _, tx := range tm.txLog {
		switch tx.Status {
		case TxCommitted:
			committed++
		case TxRolledBack:
			rolledBack++
		}
	}

	return map[string]interface{}{
		"keys":                     len(tm.store.Keys()),
		"transactions_logged":      len(tm.txLog),
		"transactions_committed":   committed,
		"transactions_rolled_back": rolledBack,
		"validation_cache_entries": len(tm.validationCache),
		"validation_enabled":       tm.validationEnabled,
	}
}

// AddListener subscribes to storage events and returns a subscription ID.
func (tm *TransactionManager) AddListener(fn func(Event)) int {
	return tm.listeners.add(fn)
}

// RemoveListener drops a subscription.
func (tm *TransactionManager) RemoveListener(id int) {
	tm.listeners.remove(id)
}

// Reset clears the audit log and validation cache, leaving stored data
// untouched. Intended for test isolation.
func (tm *TransactionManager) Reset() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.txLog = nil
	tm.validationCache = make(map[string]domain.ValidationResult)
}

func (tm *TransactionManager) appendTxLocked(tx *Transaction) {
	tm.txLog = append(tm.txLog, tx)
	if len(tm.txLog) > tm.maxTxLog {
		tm.txLog = tm.txLog[len(tm.txLog)-tm.maxTxLog:]
	}
}

// contentHash builds a cache key from the msgpack encoding of the payload.
// Unencodable payloads return "" and skip the cache.
func contentHash(doc domain.Document, logicalType domain.LogicalType) string {
	encoded, err := msgpack.Marshal(map[string]interface{}(doc))
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s:%08x", logicalType, crc32.ChecksumIEEE(encoded))
}

func asDocument(value interface{}) (domain.Document, bool) {
	switch v := value.(type) {
	case domain.Document:
		return v, true
	case map[string]interface{}:
		return domain.Document(v), true
	default:
		return nil, false
	}
}

func firstIssue(result domain.ValidationResult) string {
	if len(result.Errors) == 0 {
		return "unknown validation error"
	}
	return result.Errors[0].Message
}
