package drift

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
)

// System defines the public contract for drift domain operations.
// Observe runs a debounced detection pass; Transition moves events through
// their lifecycle with guarded state checks. TransitionTx joins a caller
// transaction so repair application stays atomic across domains.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Event], error)

	Find(ctx context.Context, id uuid.UUID) (*Event, error)
	ListByStatus(ctx context.Context, connectionID uuid.UUID, statuses ...Status) ([]Event, error)

	// Observe records one detection pass for a connection entity. Candidates
	// seen on enough consecutive passes open events; candidates absent from
	// this pass have their streaks reset. Returns events newly opened by
	// this pass.
	Observe(ctx context.Context, connectionID uuid.UUID, entity string, candidates []Candidate) ([]Event, error)

	Transition(ctx context.Context, id uuid.UUID, to Status) (*Event, error)
	TransitionTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, to Status) error

	// Mutate injects synthetic drift into a mutable vendor source.
	Mutate(ctx context.Context, cmd MutateCommand) error
}
