// Package approvals implements the repair approval workflow. Every repair
// proposal gets a ticket; tickets move PENDING_REVIEW -> APPROVED/REJECTED
// under a compare-and-swap guard so concurrent reviewers cannot both win,
// and APPROVED/AUTO_APPROVED tickets settle to APPLIED or FAILED when the
// repair runs.
package approvals

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ticket statuses.
const (
	StatusPendingReview = "PENDING_REVIEW"
	StatusAutoApproved  = "AUTO_APPROVED"
	StatusApproved      = "APPROVED"
	StatusRejected      = "REJECTED"
	StatusApplied       = "APPLIED"
	StatusFailed        = "FAILED"
)

// Record is one approval ticket for a drift repair proposal.
type Record struct {
	TicketID     uuid.UUID  `json:"ticket_id"`
	DriftEventID uuid.UUID  `json:"drift_event_id"`
	Status       string     `json:"status"`
	Confidence   float64    `json:"confidence"`
	Approver     *string    `json:"approver,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Decided reports whether the ticket has left the pending state.
func (r *Record) Decided() bool {
	return r.Status != StatusPendingReview
}

// DecideCommand is the request body for the repair decision endpoint.
// Apply true approves and applies the repair; false rejects it.
type DecideCommand struct {
	TicketID uuid.UUID `json:"ticket_id"`
	Apply    bool      `json:"apply"`
	Approver string    `json:"approver,omitempty"`
}

// Decision is the response for the repair decision endpoint.
type Decision struct {
	TicketID   uuid.UUID `json:"ticket_id"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
}

// Repairer applies an approved repair ticket. Implemented by the applier;
// declared here so the handler can trigger application without a package
// cycle.
type Repairer interface {
	Repair(ctx context.Context, ticketID uuid.UUID) error
}
