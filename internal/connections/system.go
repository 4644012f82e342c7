package connections

import (
	"context"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
)

// System defines the public contract for connection domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Connection], error)

	Find(ctx context.Context, id uuid.UUID) (*Connection, error)
	Create(ctx context.Context, cmd CreateCommand) (*Connection, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Connection, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ListActive returns connections eligible for engine scheduling:
	// every status except DISABLED, so drifted sources keep being
	// scanned and can recover.
	ListActive(ctx context.Context) ([]Connection, error)

	// RecordCall increments the fetch counter and returns the fresh
	// connection so the caller can evaluate cadence.
	RecordCall(ctx context.Context, id uuid.UUID) (*Connection, error)
	// MarkChecked resets cadence counters after a completed drift check.
	MarkChecked(ctx context.Context, id uuid.UUID) error
	// SetStatus transitions the connection to the given status.
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	// TouchCanonical records a successful canonical materialization.
	TouchCanonical(ctx context.Context, id uuid.UUID) error

	// SourceStatuses summarizes reconciliation state across all connections.
	SourceStatuses(ctx context.Context) ([]SourceStatus, error)
}
