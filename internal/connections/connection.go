// Package connections implements the vendor connection domain: registration
// of vendor sources, drift-check cadence bookkeeping, and connection health
// status used by the reconciliation engine to schedule work.
package connections

import (
	"time"

	"github.com/google/uuid"
)

// Connection statuses.
const (
	StatusActive   = "ACTIVE"
	StatusDrifted  = "DRIFTED"
	StatusDisabled = "DISABLED"
)

// Connection represents one registered vendor source. Cadence fields
// control how often the drift check runs: after CadenceCalls fetches or
// after CadenceInterval has elapsed, whichever comes first.
type Connection struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	Vendor          string            `json:"vendor"`
	Entity          string            `json:"entity"`
	Config          map[string]string `json:"config"`
	Status          string            `json:"status"`
	CadenceCalls    int               `json:"cadence_calls"`
	CadenceInterval time.Duration     `json:"cadence_interval"`
	CallsSinceCheck int               `json:"calls_since_check"`
	LastCheckedAt   *time.Time        `json:"last_checked_at"`
	LastCanonicalAt *time.Time        `json:"last_canonical_at"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CadenceDue reports whether a drift check is due at now. A connection that
// has never been checked is always due.
func (c *Connection) CadenceDue(now time.Time) bool {
	if c.LastCheckedAt == nil {
		return true
	}
	if c.CadenceCalls > 0 && c.CallsSinceCheck >= c.CadenceCalls {
		return true
	}
	if c.CadenceInterval > 0 && now.Sub(*c.LastCheckedAt) >= c.CadenceInterval {
		return true
	}
	return false
}

// CreateCommand carries the data needed to register a new connection.
type CreateCommand struct {
	Name            string            `json:"name"`
	Vendor          string            `json:"vendor"`
	Entity          string            `json:"entity"`
	Config          map[string]string `json:"config"`
	CadenceCalls    int               `json:"cadence_calls"`
	CadenceInterval time.Duration     `json:"cadence_interval"`
}

// UpdateCommand carries optional field updates for a connection.
// Nil fields are left unchanged.
type UpdateCommand struct {
	Name            *string            `json:"name,omitempty"`
	Config          *map[string]string `json:"config,omitempty"`
	Status          *string            `json:"status,omitempty"`
	CadenceCalls    *int               `json:"cadence_calls,omitempty"`
	CadenceInterval *time.Duration     `json:"cadence_interval,omitempty"`
}

// SourceStatus summarizes one connection's reconciliation state for the
// debug surface.
type SourceStatus struct {
	ConnectionID    uuid.UUID  `json:"connection_id"`
	Name            string     `json:"name"`
	Vendor          string     `json:"vendor"`
	Entity          string     `json:"entity"`
	Status          string     `json:"status"`
	OpenEvents      int        `json:"open_events"`
	PendingTickets  int        `json:"pending_tickets"`
	CurrentMappings int        `json:"current_mappings"`
	LastCheckedAt   *time.Time `json:"last_checked_at"`
	LastCanonicalAt *time.Time `json:"last_canonical_at"`
}
