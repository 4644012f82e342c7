package connections

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/query"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a connection repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "connections"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

const connectionColumns = `id, name, vendor, entity, config, status,
	cadence_calls, cadence_interval_seconds, calls_since_check,
	last_checked_at, last_canonical_at, created_at, updated_at`

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Connection], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Vendor")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count connections: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	conns, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanConnection)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}

	result := pagination.NewPageResult(conns, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Connection, error) {
	q := fmt.Sprintf("SELECT %s FROM connections WHERE id = $1", connectionColumns)

	c, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanConnection)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Connection, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return nil, ErrInvalidName
	}
	if !registry.ValidIdentifier(cmd.Entity) {
		return nil, ErrInvalidEntity
	}

	config, err := json.Marshal(orEmpty(cmd.Config))
	if err != nil {
		return nil, fmt.Errorf("encode connection config: %w", err)
	}

	q := fmt.Sprintf(`
		INSERT INTO connections(id, name, vendor, entity, config, cadence_calls, cadence_interval_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s`, connectionColumns)

	args := []any{
		uuid.New(),
		cmd.Name,
		cmd.Vendor,
		cmd.Entity,
		config,
		cmd.CadenceCalls,
		int64(cmd.CadenceInterval.Seconds()),
	}

	c, err := repository.QueryOne(ctx, r.db, q, args, scanConnection)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("connection created", "id", c.ID, "name", c.Name, "vendor", c.Vendor)
	return &c, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Connection, error) {
	current, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if cmd.Name != nil {
		if strings.TrimSpace(*cmd.Name) == "" {
			return nil, ErrInvalidName
		}
		current.Name = *cmd.Name
	}
	if cmd.Config != nil {
		current.Config = orEmpty(*cmd.Config)
	}
	if cmd.Status != nil {
		if !validStatus(*cmd.Status) {
			return nil, ErrInvalidStatus
		}
		current.Status = *cmd.Status
	}
	if cmd.CadenceCalls != nil {
		current.CadenceCalls = *cmd.CadenceCalls
	}
	if cmd.CadenceInterval != nil {
		current.CadenceInterval = *cmd.CadenceInterval
	}

	config, err := json.Marshal(current.Config)
	if err != nil {
		return nil, fmt.Errorf("encode connection config: %w", err)
	}

	q := fmt.Sprintf(`
		UPDATE connections
		SET name = $2, config = $3, status = $4, cadence_calls = $5,
			cadence_interval_seconds = $6, updated_at = now()
		WHERE id = $1
		RETURNING %s`, connectionColumns)

	args := []any{
		id,
		current.Name,
		config,
		current.Status,
		current.CadenceCalls,
		int64(current.CadenceInterval.Seconds()),
	}

	c, err := repository.QueryOne(ctx, r.db, q, args, scanConnection)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("connection updated", "id", c.ID, "status", c.Status)
	return &c, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM connections WHERE id = $1", id)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("connection deleted", "id", id)
	return nil
}

func (r *repo) ListActive(ctx context.Context) ([]Connection, error) {
	// DRIFTED connections stay in the scan rotation: their fetch is
	// retried, failed events reopen, and a later pass restores ACTIVE
	// once the outstanding drift settles. Only DISABLED leaves the loop.
	q := fmt.Sprintf(
		"SELECT %s FROM connections WHERE status IN ($1, $2) ORDER BY name",
		connectionColumns,
	)
	return repository.QueryMany(ctx, r.db, q, []any{StatusActive, StatusDrifted}, scanConnection)
}

func (r *repo) RecordCall(ctx context.Context, id uuid.UUID) (*Connection, error) {
	q := fmt.Sprintf(`
		UPDATE connections
		SET calls_since_check = calls_since_check + 1, updated_at = now()
		WHERE id = $1
		RETURNING %s`, connectionColumns)

	c, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanConnection)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) MarkChecked(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, `
		UPDATE connections
		SET calls_since_check = 0, last_checked_at = now(), updated_at = now()
		WHERE id = $1`, id)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatus(status) {
		return ErrInvalidStatus
	}

	err := repository.ExecExpectOne(ctx, r.db, `
		UPDATE connections SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("connection status changed", "id", id, "status", status)
	return nil
}

func (r *repo) TouchCanonical(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, `
		UPDATE connections SET last_canonical_at = now(), updated_at = now() WHERE id = $1`,
		id)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (r *repo) SourceStatuses(ctx context.Context) ([]SourceStatus, error) {
	q := `
		SELECT c.id, c.name, c.vendor, c.entity, c.status,
			(SELECT COUNT(*) FROM drift_events e
				WHERE e.connection_id = c.id AND e.status IN ('OPEN', 'PROPOSED')),
			(SELECT COUNT(*) FROM approvals a
				JOIN drift_events e ON e.id = a.drift_event_id
				WHERE e.connection_id = c.id AND a.status = 'PENDING_REVIEW'),
			(SELECT COUNT(*) FROM mapping_entries m
				WHERE m.connection_id = c.id AND m.current),
			c.last_checked_at, c.last_canonical_at
		FROM connections c
		ORDER BY c.name`

	return repository.QueryMany(ctx, r.db, q, nil, func(s repository.Scanner) (SourceStatus, error) {
		var st SourceStatus
		err := s.Scan(
			&st.ConnectionID,
			&st.Name,
			&st.Vendor,
			&st.Entity,
			&st.Status,
			&st.OpenEvents,
			&st.PendingTickets,
			&st.CurrentMappings,
			&st.LastCheckedAt,
			&st.LastCanonicalAt,
		)
		return st, err
	})
}

func validStatus(status string) bool {
	switch status {
	case StatusActive, StatusDrifted, StatusDisabled:
		return true
	}
	return false
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
