// Package editsession manages per-entity edit sessions: undo/redo stacks,
// debounced validation, auto-save, change tracking, and persistence through
// the host application's save handler.
package editsession

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tokenlab/tokencore/pkg/changelog"
	"github.com/tokenlab/tokencore/pkg/domain"
	"github.com/tokenlab/tokencore/pkg/perf"
)

// Manager owns all active edit sessions. External collaborators interact
// only through its operations; sessions are never handed out by reference.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	validator   domain.Validator
	tracker     *changelog.Tracker
	saveHandler domain.SaveHandler
	monitor     *perf.Monitor
	debouncer   *perf.Debouncer

	maxUndo          int
	validationDelay  time.Duration
	autoSaveInterval time.Duration
	changeTracking   bool

	listeners *listenerSet
	logger    zerolog.Logger
}

// NewManager creates a session manager.
func NewManager(options ...Option) *Manager {
	m := &Manager{
		sessions:        make(map[string]*Session),
		debouncer:       perf.NewDebouncer(),
		maxUndo:         50,
		validationDelay: 300 * time.Millisecond,
		changeTracking:  true,
		logger:          zerolog.Nop(),
	}
	for _, option := range options {
		option(m)
	}
	m.listeners = newListenerSet(m.logger)
	return m
}

// StartEditSession opens a session for one entity. The initial payload is
// deep-copied into both the original snapshot and the live edit buffer.
func (m *Manager) StartEditSession(componentType string, entityType domain.LogicalType, entityID string, mode Mode, initial domain.Document) *Session {
	session := &Session{
		ID:            uuid.NewString(),
		ComponentType: componentType,
		EntityType:    entityType,
		EntityID:      entityID,
		Mode:          mode,
		Status:        StatusEditing,
		StartTime:     time.Now(),
		LastModified:  time.Now(),
		OriginalData:  domain.DeepCopy(initial),
		CurrentData:   domain.DeepCopy(initial),
	}
	if mode == ModeView {
		session.Status = StatusIdle
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	if m.autoSaveInterval > 0 && mode != ModeView {
		m.startAutoSave(session)
	}

	if m.changeTracking && m.tracker != nil {
		if _, err := m.tracker.TrackChange(changelog.ChangeCreate, entityType, entityID,
			map[string]interface{}(session.OriginalData),
			changelog.WithMetadata(map[string]interface{}{"session_id": session.ID})); err != nil {
			m.logger.Warn().Str("session_id", session.ID).Err(err).Msg("failed to track session start")
		}
	}

	m.listeners.emit(Event{Type: EventSessionStarted, SessionID: session.ID, EntityID: entityID})
	return session.snapshot()
}

// UpdateSessionData replaces the live edit buffer. The pre-update state is
// pushed onto the undo stack, the redo stack is cleared (a new edit
// invalidates prior redo history), and a debounced validation pass is
// scheduled.
func (m *Manager) UpdateSessionData(sessionID string, data domain.Document) error {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return &Error{Code: CodeSessionNotFound, SessionID: sessionID}
	}

	previous := session.CurrentData
	session.undoStack = append(session.undoStack, previous)
	if len(session.undoStack) > m.maxUndo {
		session.undoStack = session.undoStack[1:]
	}
	session.redoStack = nil
	session.CurrentData = domain.DeepCopy(data)
	session.ChangeCount++
	session.LastModified = time.Now()
	session.Status = StatusEditing
	entityType := session.EntityType
	entityID := session.EntityID
	m.mu.Unlock()

	if m.validationDelay > 0 {
		m.debouncer.Debounce("validate:"+sessionID, m.validationDelay, func() {
			if _, err := m.ValidateSession(sessionID); err != nil {
				m.logger.Debug().Str("session_id", sessionID).Err(err).Msg("debounced validation")
			}
		})
	}

	if m.changeTracking && m.tracker != nil {
		if _, err := m.tracker.TrackChange(changelog.ChangeUpdate, entityType, entityID,
			map[string]interface{}(domain.DeepCopy(data)),
			changelog.WithOldValue(map[string]interface{}(previous)),
			changelog.WithMetadata(map[string]interface{}{"session_id": sessionID})); err != nil {
			m.logger.Warn().Str("session_id", sessionID).Err(err).Msg("failed to track session update")
		}
	}

	m.listeners.emit(Event{Type: EventSessionUpdated, SessionID: sessionID, EntityID: entityID})
	return nil
}

// ValidateSession runs the validation contract against the live buffer. On
// failure the session enters error status with the issue list stored; on
// success it returns to editing.
func (m *Manager) ValidateSession(sessionID string) (domain.ValidationResult, error) {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return domain.ValidationResult{}, &Error{Code: CodeSessionNotFound, SessionID: sessionID}
	}
	session.Status = StatusValidating
	candidate := domain.DeepCopy(session.CurrentData)
	entityType := session.EntityType
	m.mu.Unlock()

	result := domain.ValidationResult{IsValid: true}
	if m.validator != nil {
		result = m.validator.Validate(candidate, entityType)
	}

	m.mu.Lock()
	// The session may have ended while validation ran.
	if session, exists = m.sessions[sessionID]; exists {
		if result.IsValid {
			session.Status = StatusEditing
			session.ValidationErrors = nil
		} else {
			session.Status = StatusError
			session.ValidationErrors = result.Errors
		}
	}
	m.mu.Unlock()

	if result.IsValid {
		m.listeners.emit(Event{Type: EventSessionValidated, SessionID: sessionID})
		return result, nil
	}
	m.listeners.emit(Event{Type: EventValidationFailed, SessionID: sessionID})
	return result, &Error{Code: CodeValidationFailed, SessionID: sessionID,
		Err: fmt.Errorf("%d validation errors", len(result.Errors))}
}

// SaveSession revalidates synchronously (superseding any pending debounced
// pass), refuses to persist invalid data, and delegates persistence to the
// save handler.
func (m *Manager) SaveSession(sessionID string) error {
	m.debouncer.Cancel("validate:" + sessionID)

	result, err := m.ValidateSession(sessionID)
	if err != nil {
		var sessionErr *Error
		if errors.As(err, &sessionErr) && sessionErr.Code == CodeSessionNotFound {
			return err
		}
		return &Error{Code: CodeValidationFailed, SessionID: sessionID,
			Err: fmt.Errorf("refusing to save: %d validation errors", len(result.Errors))}
	}

	if m.saveHandler == nil {
		return &Error{Code: CodeNoSaveHandler, SessionID: sessionID}
	}

	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return &Error{Code: CodeSessionNotFound, SessionID: sessionID}
	}
	session.Status = StatusSaving
	componentType := session.ComponentType
	mode := session.Mode
	payload := domain.DeepCopy(session.CurrentData)
	entityID := session.EntityID
	m.mu.Unlock()

	var saveErr error
	save := func() error {
		return m.saveHandler.Save(componentType, string(mode), payload,
			map[string]interface{}{"entity_id": entityID})
	}
	if m.monitor != nil {
		saveErr = m.monitor.Time("session-save", componentType, save)
	} else {
		saveErr = save()
	}

	m.mu.Lock()
	if session, exists = m.sessions[sessionID]; exists {
		if saveErr != nil {
			session.Status = StatusError
		} else {
			session.Status = StatusSuccess
		}
	}
	m.mu.Unlock()

	if saveErr != nil {
		m.listeners.emit(Event{Type: EventSaveFailed, SessionID: sessionID, EntityID: entityID})
		return &Error{Code: CodeSaveFailed, SessionID: sessionID, Err: saveErr}
	}
	m.listeners.emit(Event{Type: EventSessionSaved, SessionID: sessionID, EntityID: entityID})
	return nil
}

// Undo restores the previous edit state. The current state moves to the
// redo stack. An empty undo stack is an explicit error, not a no-op.
func (m *Manager) Undo(sessionID string) error {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return &Error{Code: CodeSessionNotFound, SessionID: sessionID}
	}
	if len(session.undoStack) == 0 {
		m.mu.Unlock()
		return &Error{Code: CodeNothingToUndo, SessionID: sessionID}
	}

	last := len(session.undoStack) - 1
	restored := session.undoStack[last]
	session.undoStack = session.undoStack[:last]
	session.redoStack = append(session.redoStack, session.CurrentData)
	session.CurrentData = restored
	session.ChangeCount--
	session.LastModified = time.Now()
	m.mu.Unlock()

	m.listeners.emit(Event{Type: EventUndoApplied, SessionID: sessionID})
	return nil
}

// Redo restores the next edit state, symmetric with Undo.
func (m *Manager) Redo(sessionID string) error {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return &Error{Code: CodeSessionNotFound, SessionID: sessionID}
	}
	if len(session.redoStack) == 0 {
		m.mu.Unlock()
		return &Error{Code: CodeNothingToRedo, SessionID: sessionID}
	}

	last := len(session.redoStack) - 1
	restored := session.redoStack[last]
	session.redoStack = session.redoStack[:last]
	session.undoStack = append(session.undoStack, session.CurrentData)
	session.CurrentData = restored
	session.ChangeCount++
	session.LastModified = time.Now()
	m.mu.Unlock()

	m.listeners.emit(Event{Type: EventRedoApplied, SessionID: sessionID})
	return nil
}

// EndEditSession clears the session's timers, optionally performs a
// best-effort save (failures logged, not re-raised), then discards the
// session and its stacks.
func (m *Manager) EndEditSession(sessionID string, save bool) error {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return &Error{Code: CodeSessionNotFound, SessionID: sessionID}
	}
	stop := session.autoSaveStop
	session.autoSaveStop = nil
	entityID := session.EntityID
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	m.debouncer.Cancel("validate:" + sessionID)

	if save {
		if err := m.SaveSession(sessionID); err != nil {
			m.logger.Warn().Str("session_id", sessionID).Err(err).Msg("best-effort save on session end failed")
		}
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	m.listeners.emit(Event{Type: EventSessionEnded, SessionID: sessionID, EntityID: entityID})
	return nil
}

// GetSession returns a detached snapshot of a session.
func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, false
	}
	return session.snapshot(), true
}

// GetSessionData returns a deep copy of the live edit buffer.
func (m *Manager) GetSessionData(sessionID string) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, &Error{Code: CodeSessionNotFound, SessionID: sessionID}
	}
	return domain.DeepCopy(session.CurrentData), nil
}

// UndoDepth reports how many states a session can undo.
func (m *Manager) UndoDepth(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, exists := m.sessions[sessionID]; exists {
		return len(session.undoStack)
	}
	return 0
}

// RedoDepth reports how many states a session can redo.
func (m *Manager) RedoDepth(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, exists := m.sessions[sessionID]; exists {
		return len(session.redoStack)
	}
	return 0
}

// ActiveSessions returns snapshots of every open session.
func (m *Manager) ActiveSessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session.snapshot())
	}
	return out
}

// GetStatistics returns aggregate numbers over open sessions.
func (m *Manager) GetStatistics() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStatus := make(map[Status]int)
	var totalChanges int
	for _, session := range m.sessions {
		byStatus[session.Status]++
		totalChanges += session.ChangeCount
	}
	return map[string]interface{}{
		"active_sessions":    len(m.sessions),
		"sessions_by_status": byStatus,
		"total_changes":      totalChanges,
		"auto_save_enabled":  m.autoSaveInterval > 0,
	}
}

// AddListener subscribes to session events and returns a subscription ID.
func (m *Manager) AddListener(fn func(Event)) int {
	return m.listeners.add(fn)
}

// RemoveListener drops a subscription.
func (m *Manager) RemoveListener(id int) {
	m.listeners.remove(id)
}

// Reset ends every session without saving and cancels all timers. Intended
// for test isolation.
func (m *Manager) Reset() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		if session.autoSaveStop != nil {
			close(session.autoSaveStop)
		}
		m.debouncer.Cancel("validate:" + session.ID)
	}
	m.debouncer.CancelAll()
}

// startAutoSave launches the per-session auto-save loop. The loop silently
// skips (logs, never throws) whenever the session is not editing or its
// data is currently invalid; auto-save must never persist invalid data.
func (m *Manager) startAutoSave(session *Session) {
	stop := make(chan struct{})
	session.autoSaveStop = stop
	sessionID := session.ID

	go func() {
		ticker := time.NewTicker(m.autoSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.autoSave(sessionID)
			case <-stop:
				return
			}
		}
	}()
}

// autoSave performs one best-effort save attempt.
func (m *Manager) autoSave(sessionID string) {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return
	}
	if session.Status != StatusEditing {
		status := session.Status
		m.mu.Unlock()
		m.logger.Debug().Str("session_id", sessionID).Str("status", string(status)).Msg("auto-save skipped: session not editing")
		return
	}
	candidate := domain.DeepCopy(session.CurrentData)
	entityType := session.EntityType
	componentType := session.ComponentType
	mode := session.Mode
	entityID := session.EntityID
	m.mu.Unlock()

	if m.validator != nil {
		if result := m.validator.Validate(candidate, entityType); !result.IsValid {
			m.logger.Debug().Str("session_id", sessionID).Msg("auto-save skipped: validation failed")
			return
		}
	}
	if m.saveHandler == nil {
		return
	}

	if err := m.saveHandler.Save(componentType, string(mode), candidate,
		map[string]interface{}{"entity_id": entityID, "auto_save": true}); err != nil {
		m.logger.Warn().Str("session_id", sessionID).Err(err).Msg("auto-save failed")
		return
	}
	m.listeners.emit(Event{Type: EventSessionSaved, SessionID: sessionID, EntityID: entityID})
}
