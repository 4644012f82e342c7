package approvals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/query"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "approvals", "a").
	Project("ticket_id", "TicketID").
	Project("drift_event_id", "DriftEventID").
	Project("status", "Status").
	Project("confidence", "Confidence").
	Project("approver", "Approver").
	Project("decided_at", "DecidedAt").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for approval queries.
// Nil fields are ignored.
type Filters struct {
	Status       *string    `json:"status,omitempty"`
	DriftEventID *uuid.UUID `json:"drift_event_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("DriftEventID", f.DriftEventID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if eid := values.Get("drift_event_id"); eid != "" {
		if id, err := uuid.Parse(eid); err == nil {
			f.DriftEventID = &id
		}
	}

	return f
}

func scanRecord(s repository.Scanner) (Record, error) {
	var r Record
	err := s.Scan(
		&r.TicketID,
		&r.DriftEventID,
		&r.Status,
		&r.Confidence,
		&r.Approver,
		&r.DecidedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

type repo struct {
	db         *sql.DB
	drift      drift.System
	leases     *lease.Registry
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an approval repository implementing the System interface.
// leases is the per-connection reconciliation lease registry shared with
// the engine; decisions hold the lease while their repair applies.
func New(
	db *sql.DB,
	driftSys drift.System,
	leases *lease.Registry,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		drift:      driftSys,
		leases:     leases,
		logger:     logger.With("system", "approvals"),
		pagination: pagination,
	}
}

func (r *repo) Handler(repairer Repairer) *Handler {
	return NewHandler(r, repairer, r.leases, r.logger, r.pagination)
}

const recordColumns = `ticket_id, drift_event_id, status, confidence,
	approver, decided_at, created_at, updated_at`

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Record], error) {
	page.Normalize(r.pagination)

	qb := query.NewBuilder(projection, defaultSort)
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count approvals: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	records, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}

	result := pagination.NewPageResult(records, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, ticketID uuid.UUID) (*Record, error) {
	q := fmt.Sprintf("SELECT %s FROM approvals WHERE ticket_id = $1", recordColumns)

	rec, err := repository.QueryOne(ctx, r.db, q, []any{ticketID}, scanRecord)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &rec, nil
}

func (r *repo) FindByEvent(ctx context.Context, eventID uuid.UUID) (*Record, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM approvals
		WHERE drift_event_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, recordColumns)

	rec, err := repository.QueryOne(ctx, r.db, q, []any{eventID}, scanRecord)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &rec, nil
}

func (r *repo) ConnectionID(ctx context.Context, ticketID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		SELECT e.connection_id
		FROM approvals a
		JOIN drift_events e ON e.id = a.drift_event_id
		WHERE a.ticket_id = $1`, ticketID).Scan(&id)
	if err != nil {
		return uuid.Nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return id, nil
}

func (r *repo) Create(
	ctx context.Context,
	eventID uuid.UUID,
	status string,
	confidence float64,
) (*Record, error) {
	q := fmt.Sprintf(`
		INSERT INTO approvals(ticket_id, drift_event_id, status, confidence)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, recordColumns)

	rec, err := repository.QueryOne(
		ctx, r.db, q,
		[]any{uuid.New(), eventID, status, confidence},
		scanRecord,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("approval ticket created",
		"ticket_id", rec.TicketID,
		"drift_event_id", eventID,
		"status", status,
	)
	return &rec, nil
}

func (r *repo) Decide(ctx context.Context, cmd DecideCommand) (*Record, error) {
	status := StatusRejected
	eventStatus := drift.StatusRejected
	if cmd.Apply {
		status = StatusApproved
		eventStatus = drift.StatusApproved
	}

	var approver *string
	if cmd.Approver != "" {
		approver = &cmd.Approver
	}

	rec, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*Record, error) {
		// CAS on the pending state: only one decision lands.
		q := fmt.Sprintf(`
			UPDATE approvals
			SET status = $2, approver = $3, decided_at = now(), updated_at = now()
			WHERE ticket_id = $1 AND status = $4
			RETURNING %s`, recordColumns)

		rec, err := repository.QueryOne(
			ctx, tx, q,
			[]any{cmd.TicketID, status, approver, StatusPendingReview},
			scanRecord,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, r.decideFailure(ctx, tx, cmd.TicketID)
			}
			return nil, fmt.Errorf("decide ticket: %w", err)
		}

		if err := r.drift.TransitionTx(ctx, tx, rec.DriftEventID, eventStatus); err != nil {
			return nil, err
		}

		return &rec, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("approval ticket decided",
		"ticket_id", rec.TicketID,
		"status", rec.Status,
		"approver", cmd.Approver,
	)
	return rec, nil
}

// decideFailure distinguishes a lost decision race from a missing ticket.
func (r *repo) decideFailure(ctx context.Context, tx *sql.Tx, ticketID uuid.UUID) error {
	var status string
	err := tx.QueryRowContext(ctx,
		"SELECT status FROM approvals WHERE ticket_id = $1", ticketID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect ticket: %w", err)
	}
	return ErrConflict
}

func (r *repo) MarkAppliedTx(ctx context.Context, tx *sql.Tx, ticketID uuid.UUID) error {
	return r.settle(ctx, tx, ticketID, StatusApplied)
}

func (r *repo) MarkFailedTx(ctx context.Context, tx *sql.Tx, ticketID uuid.UUID) error {
	return r.settle(ctx, tx, ticketID, StatusFailed)
}

func (r *repo) settle(ctx context.Context, tx *sql.Tx, ticketID uuid.UUID, status string) error {
	err := repository.ExecExpectOne(ctx, tx, `
		UPDATE approvals
		SET status = $2, updated_at = now()
		WHERE ticket_id = $1 AND status IN ($3, $4)`,
		ticketID, status, StatusApproved, StatusAutoApproved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		return fmt.Errorf("settle ticket: %w", err)
	}
	return nil
}
