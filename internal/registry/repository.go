package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/query"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a mapping registry repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "registry"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort...).
		WhereSearch(page.Search, "VendorField", "CanonicalField")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count mapping entries: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	entries, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query mapping entries: %w", err)
	}

	result := pagination.NewPageResult(entries, total, page.Page, page.PageSize)
	return &result, nil
}

const entryColumns = `id, connection_id, entity, vendor_field, canonical_field,
	transform, declared_type, confidence, validated, version, current, created_at`

func (r *repo) Current(ctx context.Context, connectionID uuid.UUID, entity string) ([]Entry, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM mapping_entries
		WHERE connection_id = $1 AND entity = $2 AND current
		ORDER BY vendor_field`, entryColumns)

	return repository.QueryMany(ctx, r.db, q, []any{connectionID, entity}, scanEntry)
}

func (r *repo) FindCurrent(
	ctx context.Context,
	connectionID uuid.UUID,
	entity, vendorField string,
) (*Entry, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM mapping_entries
		WHERE connection_id = $1 AND entity = $2 AND vendor_field = $3 AND current`,
		entryColumns)

	e, err := repository.QueryOne(ctx, r.db, q, []any{connectionID, entity, vendorField}, scanEntry)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (r *repo) History(
	ctx context.Context,
	connectionID uuid.UUID,
	entity, vendorField string,
) ([]Entry, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM mapping_entries
		WHERE connection_id = $1 AND entity = $2 AND vendor_field = $3
		ORDER BY version DESC`, entryColumns)

	return repository.QueryMany(ctx, r.db, q, []any{connectionID, entity, vendorField}, scanEntry)
}

func (r *repo) Validated(ctx context.Context, connectionID uuid.UUID, entity string) ([]Entry, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM mapping_entries
		WHERE connection_id = $1 AND entity = $2 AND current AND validated
		ORDER BY vendor_field`, entryColumns)

	return repository.QueryMany(ctx, r.db, q, []any{connectionID, entity}, scanEntry)
}

func (r *repo) Apply(ctx context.Context, cmd ApplyCommand) (*Entry, error) {
	entry, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*Entry, error) {
		return r.ApplyTx(ctx, tx, cmd)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("mapping applied",
		"connection_id", cmd.ConnectionID,
		"vendor_field", entry.VendorField,
		"canonical_field", entry.CanonicalField,
		"version", entry.Version,
	)
	return entry, nil
}

func (r *repo) ApplyTx(ctx context.Context, tx *sql.Tx, cmd ApplyCommand) (*Entry, error) {
	if err := validateApply(cmd); err != nil {
		return nil, err
	}

	version := 1
	if cmd.PrevVendorField != "" {
		err := repository.ExecExpectOne(ctx, tx, `
			UPDATE mapping_entries
			SET current = false
			WHERE connection_id = $1 AND entity = $2 AND vendor_field = $3
				AND version = $4 AND current`,
			cmd.ConnectionID, cmd.Entity, cmd.PrevVendorField, cmd.PrevVersion,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrVersionConflict
			}
			return nil, fmt.Errorf("supersede mapping: %w", err)
		}
		version = cmd.PrevVersion + 1
	}

	q := fmt.Sprintf(`
		INSERT INTO mapping_entries(
			id, connection_id, entity, vendor_field, canonical_field,
			transform, declared_type, confidence, validated, version, current)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true)
		RETURNING %s`, entryColumns)

	args := []any{
		uuid.New(),
		cmd.ConnectionID,
		cmd.Entity,
		cmd.VendorField,
		cmd.CanonicalField,
		cmd.Transform,
		cmd.DeclaredType,
		cmd.Confidence,
		cmd.Validated,
		version,
	}

	e, err := repository.QueryOne(ctx, tx, q, args, scanEntry)
	if err != nil {
		// A duplicate current row means another writer revised this
		// lineage first.
		return nil, repository.MapError(err, ErrNotFound, ErrVersionConflict)
	}

	return &e, nil
}

func validateApply(cmd ApplyCommand) error {
	if !ValidIdentifier(cmd.VendorField) || !ValidIdentifier(cmd.CanonicalField) {
		return ErrInvalidIdentifier
	}
	if !ValidIdentifier(cmd.Entity) {
		return ErrInvalidIdentifier
	}
	if !cmd.Transform.Valid() {
		return ErrInvalidTransform
	}
	return nil
}

func (r *repo) JoinRefs(
	ctx context.Context,
	connectionID uuid.UUID,
	entity, field string,
) ([]JoinRef, error) {
	q := `
		SELECT id, connection_id, entity, field, ref_entity, ref_field, created_at
		FROM join_refs
		WHERE connection_id = $1 AND entity = $2 AND field = $3
		ORDER BY created_at`

	return repository.QueryMany(ctx, r.db, q, []any{connectionID, entity, field}, scanJoinRef)
}

func (r *repo) RegisterJoin(ctx context.Context, ref JoinRef) (*JoinRef, error) {
	if !ValidIdentifier(ref.Field) || !ValidIdentifier(ref.RefField) {
		return nil, ErrInvalidIdentifier
	}
	if !ValidIdentifier(ref.Entity) || !ValidIdentifier(ref.RefEntity) {
		return nil, ErrInvalidIdentifier
	}

	q := `
		INSERT INTO join_refs(id, connection_id, entity, field, ref_entity, ref_field)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, connection_id, entity, field, ref_entity, ref_field, created_at`

	args := []any{uuid.New(), ref.ConnectionID, ref.Entity, ref.Field, ref.RefEntity, ref.RefField}

	j, err := repository.QueryOne(ctx, r.db, q, args, scanJoinRef)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &j, nil
}

func (r *repo) AppendAudit(ctx context.Context, entry AuditEntry) error {
	return r.appendAudit(ctx, r.db, entry)
}

func (r *repo) AppendAuditTx(ctx context.Context, tx *sql.Tx, entry AuditEntry) error {
	return r.appendAudit(ctx, tx, entry)
}

func (r *repo) appendAudit(ctx context.Context, exec repository.Executor, entry AuditEntry) error {
	detail := entry.Detail
	if detail == "" {
		detail = "{}"
	}

	_, err := exec.ExecContext(ctx, `
		INSERT INTO audit_log(id, connection_id, actor, action, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), entry.ConnectionID, entry.Actor, entry.Action, detail,
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (r *repo) ListAudit(
	ctx context.Context,
	page pagination.PageRequest,
	connectionID uuid.UUID,
) (*pagination.PageResult[AuditEntry], error) {
	page.Normalize(r.pagination)

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_log WHERE connection_id = $1",
		connectionID,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}

	q := `
		SELECT id, connection_id, actor, action, detail, created_at
		FROM audit_log
		WHERE connection_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	entries, err := repository.QueryMany(
		ctx, r.db, q,
		[]any{connectionID, page.PageSize, page.Offset()},
		scanAudit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}

	result := pagination.NewPageResult(entries, total, page.Page, page.PageSize)
	return &result, nil
}
