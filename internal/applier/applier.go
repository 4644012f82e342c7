// Package applier executes approved repair plans. Each application is a
// single transaction: the registry revision, the drift event transition,
// the ticket settlement, and the audit record land together or not at all.
// Version conflicts get a bounded retry with a refreshed plan; exhaustion
// settles the ticket FAILED so the event re-enters detection.
package applier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/approvals"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/embeddings"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/scoring"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/repository"
)

// Actor names recorded in the audit trail.
const (
	actorEngine = "engine"
)

// Materializer receives a nudge after a successful repair so the canonical
// view catches up. Enqueue must not block.
type Materializer interface {
	Enqueue(connectionID uuid.UUID, entity string)
}

// System applies approved repair tickets. It implements approvals.Repairer.
type System interface {
	Repair(ctx context.Context, ticketID uuid.UUID) error
	Apply(ctx context.Context, ticket *approvals.Record, card *scoring.Scorecard) error
}

type applier struct {
	db          *sql.DB
	registry    registry.System
	drift       drift.System
	approvals   approvals.System
	scoring     scoring.System
	index       *embeddings.Index
	materialize Materializer
	logger      *slog.Logger
	maxRetries  int
	floor       float64
}

// New creates an applier. maxRetries bounds how many times a conflicted
// application is retried with a refreshed plan before the ticket fails;
// floor is the confidence below which no repair may be applied, even with
// an approval in hand.
func New(
	db *sql.DB,
	reg registry.System,
	driftSys drift.System,
	approvalSys approvals.System,
	scoringSys scoring.System,
	index *embeddings.Index,
	materialize Materializer,
	logger *slog.Logger,
	maxRetries int,
	floor float64,
) System {
	if maxRetries < 1 {
		maxRetries = 3
	}

	return &applier{
		db:          db,
		registry:    reg,
		drift:       driftSys,
		approvals:   approvalSys,
		scoring:     scoringSys,
		index:       index,
		materialize: materialize,
		logger:      logger.With("system", "applier"),
		maxRetries:  maxRetries,
		floor:       floor,
	}
}

func (a *applier) Repair(ctx context.Context, ticketID uuid.UUID) error {
	ticket, err := a.approvals.Find(ctx, ticketID)
	if err != nil {
		return err
	}

	if ticket.Status != approvals.StatusApproved && ticket.Status != approvals.StatusAutoApproved {
		return approvals.ErrConflict
	}

	card, err := a.scoring.FindByEvent(ctx, ticket.DriftEventID)
	if err != nil {
		return err
	}

	if card.Confidence < a.floor {
		return scoring.ErrLowConfidence
	}

	return a.Apply(ctx, ticket, card)
}

func (a *applier) Apply(
	ctx context.Context,
	ticket *approvals.Record,
	card *scoring.Scorecard,
) error {
	cmd := card.Proposal.ApplyCommand

	var lastErr error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		err := a.applyOnce(ctx, ticket, card, cmd)
		if err == nil {
			a.afterApply(ctx, cmd)
			return nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return err
		}

		if errors.Is(err, registry.ErrVersionConflict) {
			// A concurrent revision moved the lineage; refresh the plan
			// against the new current version and try again.
			refreshed, refreshErr := a.refreshPlan(ctx, cmd)
			if refreshErr != nil {
				lastErr = refreshErr
				break
			}
			cmd = refreshed

			a.logger.Warn("repair conflicted, retrying",
				"ticket_id", ticket.TicketID,
				"attempt", attempt,
			)
			continue
		}

		break
	}

	if failErr := a.fail(ctx, ticket, lastErr); failErr != nil {
		a.logger.Error("failed to settle conflicted ticket",
			"ticket_id", ticket.TicketID,
			"error", failErr,
		)
	}

	return fmt.Errorf("apply repair: %w", lastErr)
}

func (a *applier) applyOnce(
	ctx context.Context,
	ticket *approvals.Record,
	card *scoring.Scorecard,
	cmd registry.ApplyCommand,
) error {
	_, err := repository.WithTx(ctx, a.db, func(tx *sql.Tx) (*registry.Entry, error) {
		entry, err := a.registry.ApplyTx(ctx, tx, cmd)
		if err != nil {
			return nil, err
		}

		if err := a.drift.TransitionTx(ctx, tx, card.DriftEventID, drift.StatusApplied); err != nil {
			return nil, err
		}

		if card.Proposal.ComplementEventID != nil {
			// The recombined peer event is settled by the same repair.
			if err := a.drift.TransitionTx(ctx, tx, *card.Proposal.ComplementEventID, drift.StatusApplied); err != nil {
				return nil, err
			}
		}

		if err := a.approvals.MarkAppliedTx(ctx, tx, ticket.TicketID); err != nil {
			return nil, err
		}

		audit := registry.AuditEntry{
			ConnectionID: cmd.ConnectionID,
			Actor:        auditActor(ticket),
			Action:       "mapping_applied",
			Detail: fmt.Sprintf(
				`{"ticket_id":%q,"vendor_field":%q,"canonical_field":%q,"transform":%q,"version":%d,"confidence":%.2f}`,
				ticket.TicketID, entry.VendorField, entry.CanonicalField,
				entry.Transform, entry.Version, card.Confidence,
			),
		}
		if err := a.registry.AppendAuditTx(ctx, tx, audit); err != nil {
			return nil, err
		}

		return entry, nil
	})

	return repository.MapConflict(err, registry.ErrVersionConflict)
}

// afterApply feeds the freshly validated canonical field into the
// similarity index and nudges materialization. Both are best-effort; the
// registry is already consistent.
func (a *applier) afterApply(ctx context.Context, cmd registry.ApplyCommand) {
	if cmd.Transform != registry.TransformDrop {
		if err := a.index.Store(ctx, cmd.CanonicalField); err != nil {
			a.logger.Warn("index update failed",
				"canonical_field", cmd.CanonicalField,
				"error", err,
			)
		}
	}

	if a.materialize != nil {
		a.materialize.Enqueue(cmd.ConnectionID, cmd.Entity)
	}

	a.logger.Info("repair applied",
		"connection_id", cmd.ConnectionID,
		"vendor_field", cmd.VendorField,
		"canonical_field", cmd.CanonicalField,
	)
}

// refreshPlan re-resolves the superseded lineage's current version so the
// retry swings at fresh state.
func (a *applier) refreshPlan(
	ctx context.Context,
	cmd registry.ApplyCommand,
) (registry.ApplyCommand, error) {
	if cmd.PrevVendorField == "" {
		return cmd, registry.ErrVersionConflict
	}

	current, err := a.registry.FindCurrent(ctx, cmd.ConnectionID, cmd.Entity, cmd.PrevVendorField)
	if err != nil {
		return cmd, err
	}

	cmd.PrevVersion = current.Version
	return cmd, nil
}

// fail settles the ticket FAILED and moves the event to FAILED so the next
// detection cycle reopens it.
func (a *applier) fail(ctx context.Context, ticket *approvals.Record, cause error) error {
	_, err := repository.WithTx(ctx, a.db, func(tx *sql.Tx) (struct{}, error) {
		if err := a.approvals.MarkFailedTx(ctx, tx, ticket.TicketID); err != nil {
			return struct{}{}, err
		}
		if err := a.drift.TransitionTx(ctx, tx, ticket.DriftEventID, drift.StatusFailed); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	a.logger.Error("repair failed",
		"ticket_id", ticket.TicketID,
		"drift_event_id", ticket.DriftEventID,
		"error", cause,
	)
	return nil
}

func auditActor(ticket *approvals.Record) string {
	if ticket.Approver != nil {
		return *ticket.Approver
	}
	return actorEngine
}
