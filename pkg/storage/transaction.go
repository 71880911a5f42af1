package storage

import "time"

// TxStatus is the lifecycle state of a transaction.
type TxStatus string

const (
	TxPending    TxStatus = "pending"
	TxCommitted  TxStatus = "committed"
	TxRolledBack TxStatus = "rolled-back"
)

// OpKind is the kind of a single transaction operation.
type OpKind string

const (
	OpRead   OpKind = "read"
	OpWrite  OpKind = "write"
	OpDelete OpKind = "delete"
)

// Operation records one substrate access inside a transaction, with enough
// captured state to replay the previous value on rollback.
type Operation struct {
	Kind         OpKind      `json:"kind"`
	Key          string      `json:"key"`
	NewData      interface{} `json:"new_data,omitempty"`
	PreviousData interface{} `json:"previous_data,omitempty"`
	HadPrevious  bool        `json:"had_previous"`
}

// Transaction is one atomic unit of substrate writes. Once committed its
// operations are irreversible except via an explicit compensating rollback
// that replays PreviousData.
type Transaction struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	Operations []Operation `json:"operations"`
	Status     TxStatus    `json:"status"`
}
