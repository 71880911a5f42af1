package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlab/tokencore/pkg/domain"
	"github.com/tokenlab/tokencore/pkg/validation"
)

func newTestManager(store domain.KVStore) *TransactionManager {
	return NewTransactionManager(store, WithValidator(validation.NewEngine()))
}

func TestTransactionManager_SetAndGet(t *testing.T) {
	tm := newTestManager(NewMemoryStore())

	require.NoError(t, tm.Set("k1", "v1"))

	value, exists := tm.Get("k1")
	assert.True(t, exists)
	assert.Equal(t, "v1", value)

	_, exists = tm.Get("missing")
	assert.False(t, exists)
}

func TestTransactionManager_AtomicRollbackOnWriteFailure(t *testing.T) {
	store := NewMemoryStore()
	tm := newTestManager(store)

	require.NoError(t, tm.Set("k1", "v1"))

	store.SetWriteError(errors.New("disk full"))
	err := tm.Set("k1", "v2")
	require.Error(t, err)

	var storageErr *Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, CodeSetFailed, storageErr.Code)
	assert.Equal(t, "k1", storageErr.Key)

	// The pre-call value must survive the failed write.
	store.SetWriteError(nil)
	value, exists := tm.Get("k1")
	assert.True(t, exists)
	assert.Equal(t, "v1", value)
}

func TestTransactionManager_FailedWriteOnAbsentKey(t *testing.T) {
	store := NewMemoryStore()
	tm := newTestManager(store)

	store.SetWriteError(errors.New("disk full"))
	err := tm.Set("fresh", "v1")
	require.Error(t, err)

	store.SetWriteError(nil)
	_, exists := tm.Get("fresh")
	assert.False(t, exists)
}

func TestTransactionManager_TransactionLogStatuses(t *testing.T) {
	store := NewMemoryStore()
	tm := newTestManager(store)

	require.NoError(t, tm.Set("k1", "v1"))
	store.SetWriteError(errors.New("boom"))
	_ = tm.Set("k2", "v2")
	store.SetWriteError(nil)

	log := tm.GetTransactionLog()
	require.Len(t, log, 2)
	assert.Equal(t, TxCommitted, log[0].Status)
	assert.Equal(t, TxRolledBack, log[1].Status)
	assert.Equal(t, OpWrite, log[1].Operations[0].Kind)
}

func TestTransactionManager_SetTypedValidationAbortsBeforeWrite(t *testing.T) {
	tm := newTestManager(NewMemoryStore())

	err := tm.SetTyped("token:bad", domain.Document{"type": "color", "value": "#fff"}, domain.TypeToken)
	require.Error(t, err)

	var storageErr *Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, CodeValidationFailed, storageErr.Code)

	// No transaction is opened for a failed validation.
	assert.Empty(t, tm.GetTransactionLog())
	_, exists := tm.Get("token:bad")
	assert.False(t, exists)
}

func TestTransactionManager_SetTypedValid(t *testing.T) {
	tm := newTestManager(NewMemoryStore())

	doc := domain.Document{"name": "primary", "type": "color", "value": "#ff0000"}
	require.NoError(t, tm.SetTyped("token:primary", doc, domain.TypeToken))

	loaded, err := tm.GetTyped("token:primary", domain.TypeToken)
	require.NoError(t, err)
	assert.Equal(t, "primary", loaded["name"])
}

func TestTransactionManager_GetTypedMissingKey(t *testing.T) {
	tm := newTestManager(NewMemoryStore())
	loaded, err := tm.GetTyped("absent", domain.TypeToken)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestTransactionManager_GetTypedNonDocument(t *testing.T) {
	tm := newTestManager(NewMemoryStore())
	require.NoError(t, tm.Set("raw", 42))

	_, err := tm.GetTyped("raw", domain.TypeToken)
	var storageErr *Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, CodeGetFailed, storageErr.Code)
}

func TestTransactionManager_ValidationCache(t *testing.T) {
	tm := newTestManager(NewMemoryStore())
	doc := domain.Document{"name": "primary", "type": "color", "value": "#ff0000"}

	require.NoError(t, tm.SetTyped("k1", doc, domain.TypeToken))
	require.NoError(t, tm.SetTyped("k2", doc, domain.TypeToken))

	stats := tm.GetStatistics()
	assert.Equal(t, 1, stats["validation_cache_entries"])

	tm.ClearValidationCache()
	stats = tm.GetStatistics()
	assert.Equal(t, 0, stats["validation_cache_entries"])
}

func TestTransactionManager_Delete(t *testing.T) {
	tm := newTestManager(NewMemoryStore())

	require.NoError(t, tm.Set("k1", "v1"))
	require.NoError(t, tm.Delete("k1"))

	_, exists := tm.Get("k1")
	assert.False(t, exists)
}

func TestTransactionManager_DeleteRollbackRestoresValue(t *testing.T) {
	store := NewMemoryStore()
	tm := newTestManager(store)

	require.NoError(t, tm.Set("k1", "v1"))
	store.SetWriteError(errors.New("boom"))

	err := tm.Delete("k1")
	var storageErr *Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, CodeDeleteFailed, storageErr.Code)

	store.SetWriteError(nil)
	value, exists := tm.Get("k1")
	assert.True(t, exists)
	assert.Equal(t, "v1", value)
}

func TestTransactionManager_ClearAll(t *testing.T) {
	tm := newTestManager(NewMemoryStore())

	require.NoError(t, tm.Set("k1", "v1"))
	require.NoError(t, tm.Set("k2", "v2"))
	require.NoError(t, tm.ClearAll())

	assert.Empty(t, tm.Keys())
}

func TestTransactionManager_Events(t *testing.T) {
	store := NewMemoryStore()
	tm := newTestManager(store)

	var events []string
	id := tm.AddListener(func(e Event) {
		events = append(events, e.Type)
	})

	require.NoError(t, tm.Set("k1", "v1"))
	store.SetWriteError(errors.New("boom"))
	_ = tm.Set("k2", "v2")
	store.SetWriteError(nil)

	assert.Equal(t, []string{EventWriteCommitted, EventRollbackComplete}, events)

	tm.RemoveListener(id)
	require.NoError(t, tm.Set("k3", "v3"))
	assert.Len(t, events, 2)
}

func TestTransactionManager_ListenerPanicDoesNotAbort(t *testing.T) {
	tm := newTestManager(NewMemoryStore())
	tm.AddListener(func(e Event) {
		panic("listener bug")
	})

	require.NoError(t, tm.Set("k1", "v1"))
	value, _ := tm.Get("k1")
	assert.Equal(t, "v1", value)
}

func TestTransactionManager_ValidationDisabled(t *testing.T) {
	tm := NewTransactionManager(NewMemoryStore(),
		WithValidator(validation.NewEngine()),
		WithValidation(false),
	)

	// Invalid payload is accepted when validation is off.
	err := tm.SetTyped("token:bad", domain.Document{"type": "color"}, domain.TypeToken)
	require.NoError(t, err)
}
