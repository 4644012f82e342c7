package registry

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
)

// System defines the public contract for mapping registry operations.
// Apply runs a revision in its own transaction; ApplyTx joins a caller
// transaction so repair application stays atomic across domains.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Entry], error)

	Current(ctx context.Context, connectionID uuid.UUID, entity string) ([]Entry, error)
	FindCurrent(ctx context.Context, connectionID uuid.UUID, entity, vendorField string) (*Entry, error)
	History(ctx context.Context, connectionID uuid.UUID, entity, vendorField string) ([]Entry, error)
	Validated(ctx context.Context, connectionID uuid.UUID, entity string) ([]Entry, error)

	Apply(ctx context.Context, cmd ApplyCommand) (*Entry, error)
	ApplyTx(ctx context.Context, tx *sql.Tx, cmd ApplyCommand) (*Entry, error)

	JoinRefs(ctx context.Context, connectionID uuid.UUID, entity, field string) ([]JoinRef, error)
	RegisterJoin(ctx context.Context, ref JoinRef) (*JoinRef, error)

	AppendAudit(ctx context.Context, entry AuditEntry) error
	AppendAuditTx(ctx context.Context, tx *sql.Tx, entry AuditEntry) error
	ListAudit(
		ctx context.Context,
		page pagination.PageRequest,
		connectionID uuid.UUID,
	) (*pagination.PageResult[AuditEntry], error)
}
