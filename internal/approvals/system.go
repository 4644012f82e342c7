package approvals

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
)

// System defines the public contract for approval workflow operations.
// MarkAppliedTx and MarkFailedTx join the applier's transaction so ticket
// settlement is atomic with the registry revision.
type System interface {
	Handler(repairer Repairer) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Record], error)

	Find(ctx context.Context, ticketID uuid.UUID) (*Record, error)
	FindByEvent(ctx context.Context, eventID uuid.UUID) (*Record, error)

	// ConnectionID resolves the connection the ticket's drift event
	// belongs to, so callers can lease the connection before acting.
	ConnectionID(ctx context.Context, ticketID uuid.UUID) (uuid.UUID, error)

	Create(ctx context.Context, eventID uuid.UUID, status string, confidence float64) (*Record, error)

	// Decide settles a pending ticket. Deciding an already-decided ticket
	// fails with ErrConflict regardless of the requested outcome.
	Decide(ctx context.Context, cmd DecideCommand) (*Record, error)

	MarkAppliedTx(ctx context.Context, tx *sql.Tx, ticketID uuid.UUID) error
	MarkFailedTx(ctx context.Context, tx *sql.Tx, ticketID uuid.UUID) error
}
