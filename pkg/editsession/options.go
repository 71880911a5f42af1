package editsession

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tokenlab/tokencore/pkg/changelog"
	"github.com/tokenlab/tokencore/pkg/domain"
	"github.com/tokenlab/tokencore/pkg/perf"
)

// Option configures a Manager.
type Option func(*Manager)

// WithValidator sets the validation contract used by sessions.
func WithValidator(v domain.Validator) Option {
	return func(m *Manager) {
		m.validator = v
	}
}

// WithChangeTracker records session lifecycle changes in the ledger.
func WithChangeTracker(tracker *changelog.Tracker) Option {
	return func(m *Manager) {
		m.tracker = tracker
	}
}

// WithChangeTracking toggles change tracking (default: on, if a tracker is
// configured).
func WithChangeTracking(enabled bool) Option {
	return func(m *Manager) {
		m.changeTracking = enabled
	}
}

// WithSaveHandler sets the collaborator performing durable writes on save.
func WithSaveHandler(handler domain.SaveHandler) Option {
	return func(m *Manager) {
		m.saveHandler = handler
	}
}

// WithMonitor times save operations on the performance monitor.
func WithMonitor(monitor *perf.Monitor) Option {
	return func(m *Manager) {
		m.monitor = monitor
	}
}

// WithMaxUndo bounds each session's undo stack; the oldest state is evicted
// once the cap is reached.
func WithMaxUndo(n int) Option {
	return func(m *Manager) {
		m.maxUndo = n
	}
}

// WithValidationDelay sets the debounce delay for validation after an edit.
// Zero disables debounced validation.
func WithValidationDelay(d time.Duration) Option {
	return func(m *Manager) {
		m.validationDelay = d
	}
}

// WithAutoSave enables per-session auto-save at the given interval.
func WithAutoSave(interval time.Duration) Option {
	return func(m *Manager) {
		m.autoSaveInterval = interval
	}
}

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}
