package storage

import "fmt"

// Machine-readable storage error codes.
const (
	CodeValidationFailed = "DATA_VALIDATION_FAILED"
	CodeGetFailed        = "DATA_GET_FAILED"
	CodeSetFailed        = "DATA_SET_FAILED"
	CodeDeleteFailed     = "DATA_DELETE_FAILED"
	CodeClearFailed      = "DATA_CLEAR_FAILED"
	CodeRollbackFailed   = "TRANSACTION_ROLLBACK_FAILED"
)

// Error is a storage failure carrying its code and the offending key.
type Error struct {
	Code string
	Key  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage %s (key %q): %v", e.Code, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s (key %q)", e.Code, e.Key)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
