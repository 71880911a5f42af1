package editsession

import (
	"time"

	"github.com/tokenlab/tokencore/pkg/domain"
)

// Mode is what kind of edit a session represents.
type Mode string

const (
	ModeView     Mode = "view"
	ModeEdit     Mode = "edit"
	ModeCreate   Mode = "create"
	ModeDelete   Mode = "delete"
	ModeMerge    Mode = "merge"
	ModeValidate Mode = "validate"
)

// Status is a session's position in its state machine:
// idle -> editing -> (validating <-> editing) -> saving -> success|error.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusEditing    Status = "editing"
	StatusSaving     Status = "saving"
	StatusValidating Status = "validating"
	StatusError      Status = "error"
	StatusSuccess    Status = "success"
)

// Session is one in-progress edit of one entity. OriginalData is the
// immutable snapshot taken at session start; CurrentData is the live edit
// buffer and is always a deep copy, never aliased to caller-owned memory.
type Session struct {
	ID            string             `json:"id"`
	ComponentType string             `json:"component_type"`
	EntityType    domain.LogicalType `json:"entity_type"`
	EntityID      string             `json:"entity_id"`
	Mode          Mode               `json:"mode"`
	Status        Status             `json:"status"`
	StartTime     time.Time          `json:"start_time"`
	LastModified  time.Time          `json:"last_modified"`

	OriginalData     domain.Document          `json:"original_data"`
	CurrentData      domain.Document          `json:"current_data"`
	ValidationErrors []domain.ValidationIssue `json:"validation_errors,omitempty"`
	ChangeCount      int                      `json:"change_count"`

	undoStack []domain.Document
	redoStack []domain.Document

	autoSaveStop chan struct{}
}

// snapshot returns a detached copy safe to hand to callers.
func (s *Session) snapshot() *Session {
	copied := *s
	copied.OriginalData = domain.DeepCopy(s.OriginalData)
	copied.CurrentData = domain.DeepCopy(s.CurrentData)
	copied.ValidationErrors = append([]domain.ValidationIssue(nil), s.ValidationErrors...)
	copied.undoStack = nil
	copied.redoStack = nil
	copied.autoSaveStop = nil
	return &copied
}

// UndoDepth reports how many states can be undone.
func (s *Session) UndoDepth() int {
	return len(s.undoStack)
}

// RedoDepth reports how many states can be redone.
func (s *Session) RedoDepth() int {
	return len(s.redoStack)
}
