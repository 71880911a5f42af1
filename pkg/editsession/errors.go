package editsession

import "fmt"

// Machine-readable edit-session error codes.
const (
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeSaveFailed       = "SAVE_FAILED"
	CodeNothingToUndo    = "NOTHING_TO_UNDO"
	CodeNothingToRedo    = "NOTHING_TO_REDO"
	CodeNoSaveHandler    = "NO_SAVE_HANDLER"
)

// Error is an edit-session failure carrying its code and the session it
// concerns.
type Error struct {
	Code      string
	SessionID string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("editsession %s (session %s): %v", e.Code, e.SessionID, e.Err)
	}
	return fmt.Sprintf("editsession %s (session %s)", e.Code, e.SessionID)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
