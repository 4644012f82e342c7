package drift

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/connections"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/vendors"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/query"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/repository"
)

type repo struct {
	db          *sql.DB
	logger      *slog.Logger
	pagination  pagination.Config
	debounce    int
	connections connections.System
	vendors     *vendors.Registry
}

// New creates a drift repository implementing the System interface.
// debounce is the number of consecutive detection passes a candidate must
// survive before it opens an event.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
	debounce int,
	conns connections.System,
	vendorRegistry *vendors.Registry,
) System {
	if debounce < 1 {
		debounce = 1
	}

	return &repo{
		db:          db,
		logger:      logger.With("system", "drift"),
		pagination:  pagination,
		debounce:    debounce,
		connections: conns,
		vendors:     vendorRegistry,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

const eventColumns = `id, connection_id, entity, field, counterpart, kind,
	observed_type, status, detected_at, updated_at`

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Event], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Field", "Entity")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count drift events: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	events, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("query drift events: %w", err)
	}

	result := pagination.NewPageResult(events, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Event, error) {
	q := fmt.Sprintf("SELECT %s FROM drift_events WHERE id = $1", eventColumns)

	e, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanEvent)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (r *repo) ListByStatus(
	ctx context.Context,
	connectionID uuid.UUID,
	statuses ...Status,
) ([]Event, error) {
	if len(statuses) == 0 {
		return []Event{}, nil
	}

	placeholders := make([]string, len(statuses))
	args := []any{connectionID}
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, s)
	}

	q := fmt.Sprintf(`
		SELECT %s FROM drift_events
		WHERE connection_id = $1 AND status IN (%s)
		ORDER BY detected_at`,
		eventColumns, strings.Join(placeholders, ", "))

	return repository.QueryMany(ctx, r.db, q, args, scanEvent)
}

func (r *repo) Observe(
	ctx context.Context,
	connectionID uuid.UUID,
	entity string,
	candidates []Candidate,
) ([]Event, error) {
	opened, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Event, error) {
		if err := r.resetVanished(ctx, tx, connectionID, entity, candidates); err != nil {
			return nil, err
		}

		var opened []Event
		for _, c := range candidates {
			streak, err := r.recordObservation(ctx, tx, connectionID, entity, c)
			if err != nil {
				return nil, err
			}

			if streak < r.debounce {
				continue
			}

			event, err := r.openEvent(ctx, tx, connectionID, entity, c)
			if err != nil {
				return nil, err
			}
			if event != nil {
				opened = append(opened, *event)
			}
		}

		return opened, nil
	})
	if err != nil {
		return nil, fmt.Errorf("observe drift: %w", err)
	}

	for _, e := range opened {
		r.logger.Info("drift event opened",
			"id", e.ID,
			"connection_id", e.ConnectionID,
			"kind", e.Kind,
			"field", e.Field,
		)
	}

	return opened, nil
}

// resetVanished drops ledger rows for candidates that did not recur in this
// pass; their streaks start over on the next sighting.
func (r *repo) resetVanished(
	ctx context.Context,
	tx *sql.Tx,
	connectionID uuid.UUID,
	entity string,
	candidates []Candidate,
) error {
	if len(candidates) == 0 {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM drift_observations
			WHERE connection_id = $1 AND entity = $2`,
			connectionID, entity)
		return err
	}

	tuples := make([]string, len(candidates))
	args := []any{connectionID, entity}
	for i, c := range candidates {
		tuples[i] = fmt.Sprintf("($%d, $%d)", len(args)+1, len(args)+2)
		args = append(args, c.Field, c.Kind)
	}

	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM drift_observations
		WHERE connection_id = $1 AND entity = $2
			AND (field, kind) NOT IN (%s)`,
		strings.Join(tuples, ", ")), args...)
	return err
}

func (r *repo) recordObservation(
	ctx context.Context,
	tx *sql.Tx,
	connectionID uuid.UUID,
	entity string,
	c Candidate,
) (int, error) {
	var streak int
	err := tx.QueryRowContext(ctx, `
		INSERT INTO drift_observations(connection_id, entity, field, kind, counterpart, observed_type, streak)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, 1)
		ON CONFLICT (connection_id, entity, field, kind)
		DO UPDATE SET
			streak = drift_observations.streak + 1,
			counterpart = EXCLUDED.counterpart,
			observed_type = EXCLUDED.observed_type,
			last_seen_at = now()
		RETURNING streak`,
		connectionID, entity, c.Field, c.Kind, c.Counterpart, c.ObservedType,
	).Scan(&streak)
	if err != nil {
		return 0, fmt.Errorf("record observation %s/%s: %w", c.Kind, c.Field, err)
	}
	return streak, nil
}

// openEvent inserts an OPEN event unless one is already in flight for the
// field; recurring drift coalesces into the existing event, and a candidate
// of a different kind upgrades an OPEN event in place (a removal whose new
// counterpart appears later becomes the rename, never a second event).
func (r *repo) openEvent(
	ctx context.Context,
	tx *sql.Tx,
	connectionID uuid.UUID,
	entity string,
	c Candidate,
) (*Event, error) {
	var counterpart *string
	if c.Counterpart != "" {
		counterpart = &c.Counterpart
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE drift_events
		SET kind = $4, counterpart = $5, observed_type = $6, updated_at = now()
		WHERE connection_id = $1 AND entity = $2 AND field = $3
			AND status = 'OPEN' AND kind <> $4`,
		connectionID, entity, c.Field, c.Kind, counterpart, string(c.ObservedType))
	if err != nil {
		return nil, fmt.Errorf("reclassify drift event %s/%s: %w", c.Kind, c.Field, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.logger.Info("drift event reclassified",
			"connection_id", connectionID,
			"field", c.Field,
			"kind", c.Kind,
		)
		return nil, nil
	}

	q := fmt.Sprintf(`
		INSERT INTO drift_events(id, connection_id, entity, field, counterpart, kind, observed_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (connection_id, entity, field)
			WHERE status IN ('OPEN', 'PROPOSED')
			DO NOTHING
		RETURNING %s`, eventColumns)

	args := []any{
		uuid.New(), connectionID, entity, c.Field, counterpart, c.Kind, string(c.ObservedType),
	}

	events, err := repository.QueryMany(ctx, tx, q, args, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("open drift event %s/%s: %w", c.Kind, c.Field, err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (r *repo) Transition(ctx context.Context, id uuid.UUID, to Status) (*Event, error) {
	event, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*Event, error) {
		if err := r.TransitionTx(ctx, tx, id, to); err != nil {
			return nil, err
		}

		q := fmt.Sprintf("SELECT %s FROM drift_events WHERE id = $1", eventColumns)
		e, err := repository.QueryOne(ctx, tx, q, []any{id}, scanEvent)
		if err != nil {
			return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}
		return &e, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("drift event transitioned", "id", id, "status", to)
	return event, nil
}

func (r *repo) TransitionTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, to Status) error {
	allowed, ok := transitions[to]
	if !ok {
		return ErrInvalidTransition
	}

	placeholders := make([]string, len(allowed))
	args := []any{id, to}
	for i, s := range allowed {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, s)
	}

	err := repository.ExecExpectOne(ctx, tx, fmt.Sprintf(`
		UPDATE drift_events
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status IN (%s)`,
		strings.Join(placeholders, ", ")), args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("transition drift event: %w", err)
	}

	return nil
}

func (r *repo) Mutate(ctx context.Context, cmd MutateCommand) error {
	if err := validateMutate(cmd); err != nil {
		return err
	}

	conn, err := r.connections.Find(ctx, cmd.ConnectionID)
	if err != nil {
		return err
	}

	adapter, err := r.vendors.Open(conn.Vendor, conn.Config)
	if err != nil {
		return err
	}

	mutator, ok := adapter.(vendors.Mutator)
	if !ok {
		return ErrImmutableSource
	}

	switch cmd.Op {
	case OpAddField:
		err = mutator.AddField(ctx, conn.Entity, cmd.Field, cmd.FieldType)
	case OpRemoveField:
		err = mutator.RemoveField(ctx, conn.Entity, cmd.Field)
	case OpRenameField:
		err = mutator.RenameField(ctx, conn.Entity, cmd.Field, cmd.NewField)
	}
	if err != nil {
		return fmt.Errorf("mutate source: %w", err)
	}

	r.logger.Info("synthetic drift injected",
		"connection_id", cmd.ConnectionID,
		"op", cmd.Op,
		"field", cmd.Field,
	)
	return nil
}

func validateMutate(cmd MutateCommand) error {
	switch cmd.Op {
	case OpAddField:
		if cmd.FieldType == "" {
			return ErrInvalidOp
		}
	case OpRemoveField:
	case OpRenameField:
		if !registry.ValidIdentifier(cmd.NewField) {
			return ErrInvalidIdentifier
		}
	default:
		return ErrInvalidOp
	}

	if !registry.ValidIdentifier(cmd.Field) {
		return ErrInvalidIdentifier
	}

	return nil
}
