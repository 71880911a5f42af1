package changelog

import (
	"time"

	"github.com/tokenlab/tokencore/pkg/domain"
)

// ChangeType classifies a tracked mutation.
type ChangeType string

const (
	ChangeCreate   ChangeType = "create"
	ChangeUpdate   ChangeType = "update"
	ChangeDelete   ChangeType = "delete"
	ChangeMerge    ChangeType = "merge"
	ChangeRollback ChangeType = "rollback"
)

// ChangeStatus is the lifecycle state of a change entry.
type ChangeStatus string

const (
	StatusPending    ChangeStatus = "pending"
	StatusApplied    ChangeStatus = "applied"
	StatusCommitted  ChangeStatus = "committed"
	StatusRolledBack ChangeStatus = "rolled-back"
	StatusError      ChangeStatus = "error"
)

// ChangeEntry records a single mutation with enough information to replay
// or reverse it. Non-delete entries must carry a NewValue; rollback requires
// the OldValue captured at creation time.
type ChangeEntry struct {
	ID         string                 `json:"id" msgpack:"id"`
	Timestamp  time.Time              `json:"timestamp" msgpack:"timestamp"`
	Type       ChangeType             `json:"type" msgpack:"type"`
	Status     ChangeStatus           `json:"status" msgpack:"status"`
	EntityType domain.LogicalType     `json:"entity_type" msgpack:"entity_type"`
	EntityID   string                 `json:"entity_id" msgpack:"entity_id"`
	Field      string                 `json:"field,omitempty" msgpack:"field,omitempty"`
	OldValue   interface{}            `json:"old_value,omitempty" msgpack:"old_value,omitempty"`
	NewValue   interface{}            `json:"new_value,omitempty" msgpack:"new_value,omitempty"`
	HasOld     bool                   `json:"has_old" msgpack:"has_old"`
	Error      string                 `json:"error,omitempty" msgpack:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Baseline is a named checkpoint of the dataset used as a rollback target.
// At most one baseline is active at any time.
type Baseline struct {
	ID          string          `json:"id" msgpack:"id"`
	Timestamp   time.Time       `json:"timestamp" msgpack:"timestamp"`
	Name        string          `json:"name" msgpack:"name"`
	Description string          `json:"description,omitempty" msgpack:"description,omitempty"`
	Snapshot    domain.Document `json:"snapshot,omitempty" msgpack:"snapshot,omitempty"`
	ChangeCount int             `json:"change_count" msgpack:"change_count"`
	IsActive    bool            `json:"is_active" msgpack:"is_active"`
}

// Statistics summarizes the ledger's current state.
type Statistics struct {
	TotalChanges     int                  `json:"total_changes"`
	ChangesByType    map[ChangeType]int   `json:"changes_by_type"`
	ChangesByStatus  map[ChangeStatus]int `json:"changes_by_status"`
	Baselines        int                  `json:"baselines"`
	ActiveBaselineID string               `json:"active_baseline_id,omitempty"`
	OldestChange     time.Time            `json:"oldest_change,omitzero"`
	NewestChange     time.Time            `json:"newest_change,omitzero"`
}
