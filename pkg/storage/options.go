package storage

import (
	"github.com/rs/zerolog"

	"github.com/tokenlab/tokencore/pkg/domain"
)

// Option configures a TransactionManager.
type Option func(*TransactionManager)

// WithValidator sets the validator consulted by typed reads and writes.
func WithValidator(v domain.Validator) Option {
	return func(tm *TransactionManager) {
		tm.validator = v
	}
}

// WithValidation toggles validation of typed reads and writes (default: on).
func WithValidation(enabled bool) Option {
	return func(tm *TransactionManager) {
		tm.validationEnabled = enabled
	}
}

// WithMaxTransactionLog bounds the in-memory audit log.
func WithMaxTransactionLog(n int) Option {
	return func(tm *TransactionManager) {
		tm.maxTxLog = n
	}
}

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(tm *TransactionManager) {
		tm.logger = logger
	}
}
