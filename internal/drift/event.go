// Package drift implements drift detection for vendor connections: diffing
// live schema snapshots against current mappings, classifying the result
// into typed drift events, and tracking the event lifecycle from detection
// through repair.
package drift

import (
	"time"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/vendors"
)

// Kind classifies a drift event.
type Kind string

// Drift event kinds.
const (
	KindFieldAdded   Kind = "FIELD_ADDED"
	KindFieldRemoved Kind = "FIELD_REMOVED"
	KindFieldRenamed Kind = "FIELD_RENAMED"
)

// Status is the lifecycle state of a drift event.
type Status string

// Drift event lifecycle states. OPEN events await scoring; PROPOSED events
// have a repair plan and an approval ticket; terminal states record the
// repair outcome.
const (
	StatusOpen     Status = "OPEN"
	StatusProposed Status = "PROPOSED"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusApplied  Status = "APPLIED"
	StatusFailed   Status = "FAILED"
)

// Event is one detected schema drift occurrence. Field holds the vendor
// field the event concerns: the new field for additions, the vanished
// mapped field for removals and renames. Counterpart holds the new live
// field name for renames.
type Event struct {
	ID           uuid.UUID `json:"id"`
	ConnectionID uuid.UUID `json:"connection_id"`
	Entity       string    `json:"entity"`
	Field        string    `json:"field"`
	Counterpart  *string   `json:"counterpart,omitempty"`
	Kind         Kind      `json:"kind"`
	ObservedType string    `json:"observed_type"`
	Status       Status    `json:"status"`
	DetectedAt   time.Time `json:"detected_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Candidate is one potential drift occurrence produced by a single diff
// pass, before debouncing decides whether it becomes an event.
type Candidate struct {
	Kind         Kind
	Field        string
	Counterpart  string
	ObservedType vendors.FieldType
	Similarity   float64
}

// MutateCommand injects synthetic drift into a mutable vendor source.
type MutateCommand struct {
	ConnectionID uuid.UUID         `json:"connection_id"`
	Op           string            `json:"op"`
	Field        string            `json:"field"`
	NewField     string            `json:"new_field,omitempty"`
	FieldType    vendors.FieldType `json:"field_type,omitempty"`
}

// Mutation operations accepted by MutateCommand.
const (
	OpAddField    = "add_field"
	OpRemoveField = "remove_field"
	OpRenameField = "rename_field"
)

// transitions lists the legal status moves for a drift event. FAILED moves
// back to OPEN so a failed repair is re-detected and re-proposed.
var transitions = map[Status][]Status{
	StatusProposed: {StatusOpen},
	StatusApproved: {StatusProposed},
	StatusRejected: {StatusOpen, StatusProposed},
	StatusApplied:  {StatusProposed, StatusApproved},
	StatusFailed:   {StatusProposed, StatusApproved},
	StatusOpen:     {StatusFailed},
}
