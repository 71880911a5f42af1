// Package changelog is the change-tracking ledger: every mutation is
// recorded as a timestamped entry, entries group under named baselines, and
// individual changes or whole baselines can be rolled back.
package changelog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tokenlab/tokencore/pkg/domain"
	"github.com/tokenlab/tokencore/pkg/storage"
)

// Storage keys owned by the ledger.
const (
	KeyChangeHistory   = "tokencore:change_history"
	KeyBaselines       = "tokencore:baselines"
	KeyMigrationStatus = "tokencore:migration_status"
)

// Tracker is the change ledger. All mutating operations persist the full
// change and baseline lists through the storage transaction manager when
// durable tracking is enabled.
type Tracker struct {
	mu            sync.RWMutex
	entries       []*ChangeEntry // chronological
	byID          map[string]*ChangeEntry
	index         *entityIndex
	baselines     []*Baseline // chronological
	baselinesByID map[string]*Baseline

	validator         domain.Validator
	validationEnabled bool
	optimisticUpdates bool
	durable           bool
	store             *storage.TransactionManager
	snapshotProvider  func() domain.Document

	maxHistory   int
	maxBaselines int

	listeners *listenerSet
	logger    zerolog.Logger
}

// NewTracker creates a ledger. With durable tracking enabled and a storage
// manager configured, previously persisted history is loaded eagerly.
func NewTracker(options ...Option) *Tracker {
	t := &Tracker{
		byID:              make(map[string]*ChangeEntry),
		index:             newEntityIndex(),
		baselinesByID:     make(map[string]*Baseline),
		validationEnabled: true,
		optimisticUpdates: true,
		maxHistory:        1000,
		maxBaselines:      20,
		logger:            zerolog.Nop(),
	}
	for _, option := range options {
		option(t)
	}
	t.listeners = newListenerSet(t.logger)

	if t.durable && t.store != nil {
		if err := t.loadPersisted(); err != nil {
			t.logger.Error().Err(err).Msg("failed to load persisted change history")
		}
	}
	return t
}

// trackConfig carries the optional TrackChange parameters.
type trackConfig struct {
	oldValue interface{}
	hasOld   bool
	field    string
	metadata map[string]interface{}
}

// TrackOption supplies an optional TrackChange parameter.
type TrackOption func(*trackConfig)

// WithOldValue captures the pre-change value, enabling later rollback.
func WithOldValue(value interface{}) TrackOption {
	return func(c *trackConfig) {
		c.oldValue = value
		c.hasOld = true
	}
}

// WithField names the single field the change touches.
func WithField(field string) TrackOption {
	return func(c *trackConfig) {
		c.field = field
	}
}

// WithMetadata attaches free-form metadata to the entry.
func WithMetadata(metadata map[string]interface{}) TrackOption {
	return func(c *trackConfig) {
		c.metadata = metadata
	}
}

// TrackChange records a mutation. It fails fast when entityID is empty, when
// a non-delete change carries no new value, or when validation is enabled
// and the new value fails the rules for the entity's logical type; a failed
// validation emits a validation-failed event before the error propagates.
// Failed entries are returned with status error and never appended to
// history. With optimistic updates enabled, a successful entry is
// immediately marked applied.
func (t *Tracker) TrackChange(changeType ChangeType, entityType domain.LogicalType, entityID string, newValue interface{}, options ...TrackOption) (*ChangeEntry, error) {
	var cfg trackConfig
	for _, option := range options {
		option(&cfg)
	}

	entry := &ChangeEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Type:       changeType,
		Status:     StatusPending,
		EntityType: entityType,
		EntityID:   entityID,
		Field:      cfg.field,
		NewValue:   copyValue(newValue),
		OldValue:   copyValue(cfg.oldValue),
		HasOld:     cfg.hasOld,
		Metadata:   cfg.metadata,
	}

	if entityID == "" {
		entry.Status = StatusError
		entry.Error = "entity id is required"
		return entry, &Error{Code: CodeTrackingFailed, ChangeID: entry.ID,
			Err: fmt.Errorf("entity id is required")}
	}
	if changeType != ChangeDelete && newValue == nil {
		entry.Status = StatusError
		entry.Error = "non-delete change requires a new value"
		return entry, &Error{Code: CodeTrackingFailed, ChangeID: entry.ID,
			Err: fmt.Errorf("non-delete change requires a new value")}
	}

	if t.validationEnabled && t.validator != nil && changeType != ChangeDelete {
		if doc, ok := asDocument(newValue); ok {
			result := t.validator.Validate(doc, entityType)
			if !result.IsValid {
				entry.Status = StatusError
				entry.Error = validationSummary(result)
				t.listeners.emit(Event{Type: EventValidationFailed, ChangeID: entry.ID, EntityID: entityID})
				return entry, &Error{Code: CodeValidationFailed, ChangeID: entry.ID,
					Err: fmt.Errorf("%s", entry.Error)}
			}
		}
	}

	if t.optimisticUpdates {
		entry.Status = StatusApplied
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.byID[entry.ID] = entry
	t.index.add(entry)
	t.trimHistoryLocked()
	t.persistLocked()
	t.mu.Unlock()

	t.listeners.emit(Event{Type: EventChangeTracked, ChangeID: entry.ID, EntityID: entityID})
	if entry.Status == StatusApplied {
		t.listeners.emit(Event{Type: EventChangeApplied, ChangeID: entry.ID, EntityID: entityID})
	}
	return entry, nil
}

// CommitChange marks an entry committed. Entries in error status cannot be
// committed.
func (t *Tracker) CommitChange(id string) error {
	t.mu.Lock()
	entry, exists := t.byID[id]
	if !exists {
		t.mu.Unlock()
		return &Error{Code: CodeChangeNotFound, ChangeID: id}
	}
	if entry.Status == StatusError {
		t.mu.Unlock()
		return &Error{Code: CodeCommitErrorStatus, ChangeID: id,
			Err: fmt.Errorf("cannot commit entry in error status: %s", entry.Error)}
	}
	entry.Status = StatusCommitted
	t.persistLocked()
	t.mu.Unlock()

	t.listeners.emit(Event{Type: EventChangeCommitted, ChangeID: id, EntityID: entry.EntityID})
	return nil
}

// RollbackChange reverses a single entry. Without a captured old value the
// entry degrades to error status and the rollback fails.
func (t *Tracker) RollbackChange(id string) error {
	t.mu.Lock()
	entry, exists := t.byID[id]
	if !exists {
		t.mu.Unlock()
		return &Error{Code: CodeChangeNotFound, ChangeID: id}
	}
	if !entry.HasOld {
		entry.Status = StatusError
		entry.Error = "rollback requires a captured old value"
		t.persistLocked()
		t.mu.Unlock()
		return &Error{Code: CodeMissingOldValue, ChangeID: id,
			Err: fmt.Errorf("rollback requires a captured old value")}
	}
	entry.Status = StatusRolledBack
	t.persistLocked()
	t.mu.Unlock()

	t.listeners.emit(Event{Type: EventChangeRolledBack, ChangeID: id, EntityID: entry.EntityID})
	return nil
}

// CreateBaseline checkpoints the current dataset under a name. When a
// snapshot provider is configured its document is captured into the
// baseline. Old inactive baselines beyond the retention cap are purged.
func (t *Tracker) CreateBaseline(name, description string) *Baseline {
	baseline := &Baseline{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Name:        name,
		Description: description,
	}
	if t.snapshotProvider != nil {
		baseline.Snapshot = domain.DeepCopy(t.snapshotProvider())
	}

	t.mu.Lock()
	baseline.ChangeCount = len(t.entries)
	t.baselines = append(t.baselines, baseline)
	t.baselinesByID[baseline.ID] = baseline
	t.purgeBaselinesLocked()
	t.persistLocked()
	t.mu.Unlock()

	t.listeners.emit(Event{Type: EventBaselineCreated, BaselineID: baseline.ID})
	return baseline
}

// ActivateBaseline makes the named baseline the single active one.
func (t *Tracker) ActivateBaseline(id string) error {
	t.mu.Lock()
	baseline, exists := t.baselinesByID[id]
	if !exists {
		t.mu.Unlock()
		return &Error{Code: CodeBaselineNotFound, BaselineID: id}
	}
	t.activateLocked(baseline)
	t.persistLocked()
	t.mu.Unlock()

	t.listeners.emit(Event{Type: EventBaselineActivated, BaselineID: id})
	return nil
}

// RollbackToBaseline rolls back, in strict reverse chronological order,
// every entry newer than the baseline, then activates the baseline. Unlike
// RollbackChange, no per-entry old value is required: the baseline snapshot
// is the restore source.
func (t *Tracker) RollbackToBaseline(id string) error {
	t.mu.Lock()
	baseline, exists := t.baselinesByID[id]
	if !exists {
		t.mu.Unlock()
		return &Error{Code: CodeBaselineNotFound, BaselineID: id}
	}

	newer := make([]*ChangeEntry, 0)
	for _, entry := range t.entries {
		if entry.Timestamp.After(baseline.Timestamp) {
			newer = append(newer, entry)
		}
	}
	// Later entries may build on earlier ones, so reverse them newest first.
	sort.Slice(newer, func(i, j int) bool {
		return newer[i].Timestamp.After(newer[j].Timestamp)
	})

	rolledBack := make([]string, 0, len(newer))
	for _, entry := range newer {
		if entry.Status == StatusRolledBack {
			continue
		}
		entry.Status = StatusRolledBack
		rolledBack = append(rolledBack, entry.ID)
	}

	t.activateLocked(baseline)
	t.persistLocked()
	t.mu.Unlock()

	for _, changeID := range rolledBack {
		t.listeners.emit(Event{Type: EventChangeRolledBack, ChangeID: changeID})
	}
	t.listeners.emit(Event{Type: EventBaselineRollback, BaselineID: id})
	return nil
}

// GetCurrentBaseline returns the active baseline, or nil when none is.
func (t *Tracker) GetCurrentBaseline() *Baseline {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, baseline := range t.baselines {
		if baseline.IsActive {
			return baseline
		}
	}
	return nil
}

// GetBaselines returns all baselines, oldest first.
func (t *Tracker) GetBaselines() []*Baseline {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Baseline, len(t.baselines))
	copy(out, t.baselines)
	return out
}

// GetChange returns a single entry by ID.
func (t *Tracker) GetChange(id string) (*ChangeEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, exists := t.byID[id]
	return entry, exists
}

// GetChanges returns the full history, oldest first.
func (t *Tracker) GetChanges() []*ChangeEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*ChangeEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// GetChangesByEntity returns the history for one entity, oldest first.
func (t *Tracker) GetChangesByEntity(entityType domain.LogicalType, entityID string) []*ChangeEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entriesForIDs(t.index.entity(entityType, entityID))
}

// GetChangesByEntityType returns the history for one logical type.
func (t *Tracker) GetChangesByEntityType(entityType domain.LogicalType) []*ChangeEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entriesForIDs(t.index.entityType(entityType))
}

// GetChangesByType returns entries of one change type, oldest first.
func (t *Tracker) GetChangesByType(changeType ChangeType) []*ChangeEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*ChangeEntry
	for _, entry := range t.entries {
		if entry.Type == changeType {
			out = append(out, entry)
		}
	}
	return out
}

// GetStatistics summarizes the ledger.
func (t *Tracker) GetStatistics() Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Statistics{
		TotalChanges:    len(t.entries),
		ChangesByType:   make(map[ChangeType]int),
		ChangesByStatus: make(map[ChangeStatus]int),
		Baselines:       len(t.baselines),
	}
	for _, entry := range t.entries {
		stats.ChangesByType[entry.Type]++
		stats.ChangesByStatus[entry.Status]++
	}
	if len(t.entries) > 0 {
		stats.OldestChange = t.entries[0].Timestamp
		stats.NewestChange = t.entries[len(t.entries)-1].Timestamp
	}
	for _, baseline := range t.baselines {
		if baseline.IsActive {
			stats.ActiveBaselineID = baseline.ID
		}
	}
	return stats
}

// AddListener subscribes to ledger events and returns a subscription ID.
func (t *Tracker) AddListener(fn func(Event)) int {
	return t.listeners.add(fn)
}

// RemoveListener drops a subscription.
func (t *Tracker) RemoveListener(id int) {
	t.listeners.remove(id)
}

// Reset discards all history and baselines and persists the empty state.
// Intended for test isolation.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.byID = make(map[string]*ChangeEntry)
	t.index = newEntityIndex()
	t.baselines = nil
	t.baselinesByID = make(map[string]*Baseline)
	t.persistLocked()
}

// activateLocked makes baseline the single active one. Caller holds t.mu.
func (t *Tracker) activateLocked(baseline *Baseline) {
	for _, other := range t.baselines {
		other.IsActive = false
	}
	baseline.IsActive = true
}

// trimHistoryLocked drops the oldest entries once the cap is exceeded.
// Caller holds t.mu.
func (t *Tracker) trimHistoryLocked() {
	if t.maxHistory <= 0 || len(t.entries) <= t.maxHistory {
		return
	}
	dropped := t.entries[:len(t.entries)-t.maxHistory]
	t.entries = t.entries[len(t.entries)-t.maxHistory:]
	for _, entry := range dropped {
		delete(t.byID, entry.ID)
		t.index.remove(entry)
	}
}

// purgeBaselinesLocked removes the oldest inactive baselines beyond the
// retention cap. The active baseline is never purged. Caller holds t.mu.
func (t *Tracker) purgeBaselinesLocked() {
	if t.maxBaselines <= 0 {
		return
	}
	for len(t.baselines) > t.maxBaselines {
		removed := false
		for i, baseline := range t.baselines {
			if !baseline.IsActive {
				delete(t.baselinesByID, baseline.ID)
				t.baselines = append(t.baselines[:i], t.baselines[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			return
		}
	}
}

// persistLocked writes the full change and baseline lists through the
// storage manager. Persistence failures are logged, not surfaced: the
// in-memory ledger stays authoritative for the session. Caller holds t.mu.
func (t *Tracker) persistLocked() {
	if !t.durable || t.store == nil {
		return
	}

	if encoded, err := msgpack.Marshal(t.entries); err != nil {
		t.logger.Error().Err(err).Msg("failed to encode change history")
	} else if err := t.store.Set(KeyChangeHistory, encoded); err != nil {
		t.logger.Error().Err(err).Msg("failed to persist change history")
	}

	if encoded, err := msgpack.Marshal(t.baselines); err != nil {
		t.logger.Error().Err(err).Msg("failed to encode baselines")
	} else if err := t.store.Set(KeyBaselines, encoded); err != nil {
		t.logger.Error().Err(err).Msg("failed to persist baselines")
	}
}

// loadPersisted restores history and baselines written by persistLocked.
func (t *Tracker) loadPersisted() error {
	if raw, exists := t.store.Get(KeyChangeHistory); exists {
		encoded, ok := raw.([]byte)
		if !ok {
			return fmt.Errorf("change history key holds %T, not bytes", raw)
		}
		var entries []*ChangeEntry
		if err := msgpack.Unmarshal(encoded, &entries); err != nil {
			return fmt.Errorf("failed to decode change history: %w", err)
		}
		t.entries = entries
		t.byID = make(map[string]*ChangeEntry, len(entries))
		for _, entry := range entries {
			t.byID[entry.ID] = entry
		}
		t.index.rebuild(entries)
	}

	if raw, exists := t.store.Get(KeyBaselines); exists {
		encoded, ok := raw.([]byte)
		if !ok {
			return fmt.Errorf("baselines key holds %T, not bytes", raw)
		}
		var baselines []*Baseline
		if err := msgpack.Unmarshal(encoded, &baselines); err != nil {
			return fmt.Errorf("failed to decode baselines: %w", err)
		}
		t.baselines = baselines
		t.baselinesByID = make(map[string]*Baseline, len(baselines))
		for _, baseline := range baselines {
			t.baselinesByID[baseline.ID] = baseline
		}
	}

	t.logger.Info().
		Int("changes", len(t.entries)).
		Int("baselines", len(t.baselines)).
		Msg("loaded persisted change history")
	return nil
}

func (t *Tracker) entriesForIDs(ids []string) []*ChangeEntry {
	out := make([]*ChangeEntry, 0, len(ids))
	for _, id := range ids {
		if entry, exists := t.byID[id]; exists {
			out = append(out, entry)
		}
	}
	return out
}

// copyValue deep-copies document-shaped values so ledger entries never alias
// caller-owned memory.
func copyValue(value interface{}) interface{} {
	if value == nil {
		return nil
	}
	if doc, ok := asDocument(value); ok {
		return map[string]interface{}(domain.DeepCopy(doc))
	}
	return domain.DeepCopyValue(value)
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

func validationSummary(result domain.ValidationResult) string {
	if len(result.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", result.Errors[0].Message)
}
