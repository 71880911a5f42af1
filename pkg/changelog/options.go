package changelog

import (
	"github.com/rs/zerolog"

	"github.com/tokenlab/tokencore/pkg/domain"
	"github.com/tokenlab/tokencore/pkg/storage"
)

// Option configures a Tracker.
type Option func(*Tracker)

// WithValidator sets the validator applied to tracked new values.
func WithValidator(v domain.Validator) Option {
	return func(t *Tracker) {
		t.validator = v
	}
}

// WithValidation toggles validation of tracked changes (default: on).
func WithValidation(enabled bool) Option {
	return func(t *Tracker) {
		t.validationEnabled = enabled
	}
}

// WithOptimisticUpdates toggles marking validated entries applied before
// persistence confirms (default: on).
func WithOptimisticUpdates(enabled bool) Option {
	return func(t *Tracker) {
		t.optimisticUpdates = enabled
	}
}

// WithDurableTracking persists the change and baseline lists through the
// given storage manager on every mutation.
func WithDurableTracking(store *storage.TransactionManager) Option {
	return func(t *Tracker) {
		t.durable = true
		t.store = store
	}
}

// WithMaxHistory caps the change history; oldest entries are dropped first.
func WithMaxHistory(n int) Option {
	return func(t *Tracker) {
		t.maxHistory = n
	}
}

// WithMaxBaselines caps retained baselines; oldest inactive ones are purged.
func WithMaxBaselines(n int) Option {
	return func(t *Tracker) {
		t.maxBaselines = n
	}
}

// WithSnapshotProvider captures a dataset snapshot into every new baseline.
func WithSnapshotProvider(provider func() domain.Document) Option {
	return func(t *Tracker) {
		t.snapshotProvider = provider
	}
}

// WithLogger sets the tracker's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}
