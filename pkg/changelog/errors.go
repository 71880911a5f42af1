package changelog

import "fmt"

// Machine-readable change-tracking error codes.
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeTrackingFailed    = "TRACKING_FAILED"
	CodeChangeNotFound    = "CHANGE_NOT_FOUND"
	CodeBaselineNotFound  = "BASELINE_NOT_FOUND"
	CodeCommitErrorStatus = "COMMIT_ERROR_STATUS"
	CodeMissingOldValue   = "MISSING_OLD_VALUE"
	CodePersistFailed     = "PERSIST_FAILED"
)

// Error is a change-tracking failure carrying its code and the change or
// baseline it concerns.
type Error struct {
	Code       string
	ChangeID   string
	BaselineID string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	id := e.ChangeID
	if id == "" {
		id = e.BaselineID
	}
	if e.Err != nil {
		return fmt.Sprintf("changelog %s (%s): %v", e.Code, id, e.Err)
	}
	return fmt.Sprintf("changelog %s (%s)", e.Code, id)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
