// Package engine drives the reconciliation loop: on every scan tick it
// walks the active connections, fetches a fresh schema snapshot, records a
// drift observation pass, scores whatever events the debounce opened, and
// routes each scorecard to auto-apply, review, or auto-reject. Each
// connection is processed under an exclusive lease so overlapping ticks
// never double-handle the same source.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/applier"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/approvals"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/config"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/connections"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/embeddings"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/materializer"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/scoring"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/vendors"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lifecycle"
)

const actorEngine = "engine"

// requeueDelay spaces out retries when a materialization task finds its
// connection leased by another phase.
const requeueDelay = 100 * time.Millisecond

// Deps collects the domain systems the engine orchestrates.
type Deps struct {
	Connections  connections.System
	Drift        drift.System
	Registry     registry.System
	Scoring      scoring.System
	Approvals    approvals.System
	Applier      applier.System
	Materializer materializer.System
	Vendors      *vendors.Registry
	Detector     *drift.Detector
	Index        *embeddings.Index
	Logger       *slog.Logger
}

// Engine is the reconciliation scheduler. Construct with New and register
// with the lifecycle coordinator via Start.
type Engine struct {
	cfg    config.EngineConfig
	queue  *Queue
	leases *lease.Registry
	deps   Deps
	logger *slog.Logger
}

// New creates an engine over the given domain systems and materialization
// queue. leases is the shared per-connection lease registry; the HTTP
// repair and materialize paths contend on the same registry so no two
// phases ever work one connection concurrently.
func New(cfg config.EngineConfig, queue *Queue, leases *lease.Registry, deps Deps) *Engine {
	return &Engine{
		cfg:    cfg,
		queue:  queue,
		leases: leases,
		deps:   deps,
		logger: deps.Logger.With("system", "engine"),
	}
}

// Start seeds the similarity index, launches the scan loop and the
// materialization drain worker, and ties both to the lifecycle context.
func (e *Engine) Start(lc *lifecycle.Coordinator) {
	ctx := lc.Context()

	lc.OnStartup(func() {
		e.seedIndex(ctx)
	})

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		e.run(ctx)
	}()

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		e.drain(ctx)
	}()

	lc.OnShutdown(func() {
		<-scanDone
		<-drainDone
	})
}

// seedIndex loads every validated canonical field into the similarity index
// so addition scoring has a corpus from the first cycle.
func (e *Engine) seedIndex(ctx context.Context) {
	conns, err := e.deps.Connections.ListActive(ctx)
	if err != nil {
		e.logger.Error("index seed failed to list connections", "error", err)
		return
	}

	seeded := 0
	for _, conn := range conns {
		entries, err := e.deps.Registry.Validated(ctx, conn.ID, conn.Entity)
		if err != nil {
			e.logger.Warn("index seed skipped connection",
				"connection_id", conn.ID,
				"error", err,
			)
			continue
		}
		for _, entry := range entries {
			if entry.Retired() {
				continue
			}
			if err := e.deps.Index.Store(ctx, entry.CanonicalField); err != nil {
				e.logger.Warn("index seed failed to store field",
					"field", entry.CanonicalField,
					"error", err,
				)
				continue
			}
			seeded++
		}
	}

	e.logger.Info("similarity index seeded", "fields", seeded)
}

func (e *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ScanIntervalDuration())
	defer ticker.Stop()

	e.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.cycle(ctx)
		}
	}
}

// cycle processes every active connection with a bounded worker pool.
// Per-connection failures are logged and never abort the cycle.
func (e *Engine) cycle(ctx context.Context) {
	conns, err := e.deps.Connections.ListActive(ctx)
	if err != nil {
		e.logger.Error("cycle failed to list connections", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for _, conn := range conns {
		g.Go(func() error {
			e.process(gctx, conn)
			return nil
		})
	}

	_ = g.Wait()
}

// process runs one drift check for a connection: lease, cadence gate,
// schema fetch, observation pass, and resolution of open events.
func (e *Engine) process(ctx context.Context, conn connections.Connection) {
	guard, ok := e.leases.TryAcquire(conn.ID.String())
	if !ok {
		e.logger.Debug("connection lease held, skipping", "connection_id", conn.ID)
		return
	}
	defer guard.Release()

	fresh, err := e.deps.Connections.RecordCall(ctx, conn.ID)
	if err != nil {
		e.logger.Warn("failed to record call", "connection_id", conn.ID, "error", err)
		return
	}
	if !fresh.CadenceDue(time.Now()) {
		return
	}

	fctx, cancel := context.WithTimeout(ctx, e.cfg.PhaseTimeoutDuration())
	schema, err := e.fetchSchema(fctx, fresh)
	cancel()
	if err != nil {
		e.logger.Warn("schema fetch failed",
			"connection_id", conn.ID,
			"vendor", fresh.Vendor,
			"error", err,
		)
		if serr := e.deps.Connections.SetStatus(ctx, conn.ID, connections.StatusDrifted); serr != nil {
			e.logger.Warn("failed to mark connection drifted", "connection_id", conn.ID, "error", serr)
		}
		return
	}

	e.reopenFailed(ctx, fresh)

	entries, err := e.deps.Registry.Current(ctx, conn.ID, fresh.Entity)
	if err != nil {
		e.logger.Warn("failed to load current mappings", "connection_id", conn.ID, "error", err)
		return
	}

	candidates := e.deps.Detector.Detect(entries, schema)
	opened, err := e.deps.Drift.Observe(ctx, conn.ID, fresh.Entity, candidates)
	if err != nil {
		e.logger.Warn("observation pass failed", "connection_id", conn.ID, "error", err)
		return
	}
	if len(opened) > 0 {
		e.logger.Info("drift events opened",
			"connection_id", conn.ID,
			"entity", fresh.Entity,
			"count", len(opened),
		)
	}

	open, err := e.deps.Drift.ListByStatus(ctx, conn.ID, drift.StatusOpen)
	if err != nil {
		e.logger.Warn("failed to list open events", "connection_id", conn.ID, "error", err)
		return
	}
	if len(open) > 0 {
		e.resolve(ctx, fresh, open)
	}

	if err := e.deps.Connections.MarkChecked(ctx, conn.ID); err != nil {
		e.logger.Warn("failed to mark connection checked", "connection_id", conn.ID, "error", err)
	}

	e.settleStatus(ctx, fresh)
}

// reopenFailed returns failed events to detection so a later cycle can
// re-propose them.
func (e *Engine) reopenFailed(ctx context.Context, conn *connections.Connection) {
	failed, err := e.deps.Drift.ListByStatus(ctx, conn.ID, drift.StatusFailed)
	if err != nil {
		e.logger.Warn("failed to list failed events", "connection_id", conn.ID, "error", err)
		return
	}

	for _, ev := range failed {
		if _, err := e.deps.Drift.Transition(ctx, ev.ID, drift.StatusOpen); err != nil {
			e.logger.Warn("failed to reopen event", "event_id", ev.ID, "error", err)
		}
	}
}

// resolve scores each open event and routes it by confidence band. When a
// scorecard recombines an add/remove pair into a rename, the complementary
// event travels with the primary and is not scored on its own.
func (e *Engine) resolve(ctx context.Context, conn *connections.Connection, open []drift.Event) {
	consumed := make(map[uuid.UUID]bool)

	for i := range open {
		ev := open[i]
		if consumed[ev.ID] {
			continue
		}

		sctx, cancel := context.WithTimeout(ctx, e.cfg.PhaseTimeoutDuration())
		card, err := e.deps.Scoring.Score(sctx, &ev, open)
		cancel()
		if err != nil {
			e.logger.Warn("scoring failed", "event_id", ev.ID, "error", err)
			continue
		}

		complement := card.Proposal.ComplementEventID
		if complement != nil {
			consumed[*complement] = true
		}

		switch card.Band(e.cfg.AutoApply, e.cfg.Review) {
		case scoring.BandReject:
			e.reject(ctx, conn, &ev, card)
		case scoring.BandReview:
			e.propose(ctx, &ev, card, approvals.StatusPendingReview)
		case scoring.BandAutoApply:
			ticket := e.propose(ctx, &ev, card, approvals.StatusAutoApproved)
			if ticket == nil {
				continue
			}
			actx, cancel := context.WithTimeout(ctx, e.cfg.PhaseTimeoutDuration())
			err := e.deps.Applier.Apply(actx, ticket, card)
			cancel()
			if err != nil {
				e.logger.Warn("auto-apply failed",
					"event_id", ev.ID,
					"ticket_id", ticket.TicketID,
					"error", err,
				)
			}
		}
	}
}

// reject closes an event whose confidence fell below the review floor and
// records the decision in the audit trail.
func (e *Engine) reject(ctx context.Context, conn *connections.Connection, ev *drift.Event, card *scoring.Scorecard) {
	if _, err := e.deps.Drift.Transition(ctx, ev.ID, drift.StatusRejected); err != nil {
		e.logger.Warn("failed to reject event", "event_id", ev.ID, "error", err)
		return
	}
	if comp := card.Proposal.ComplementEventID; comp != nil {
		if _, err := e.deps.Drift.Transition(ctx, *comp, drift.StatusRejected); err != nil {
			e.logger.Warn("failed to reject complement event", "event_id", *comp, "error", err)
		}
	}

	detail, _ := json.Marshal(map[string]any{
		"event_id":   ev.ID,
		"kind":       ev.Kind,
		"field":      ev.Field,
		"confidence": card.Confidence,
	})
	audit := registry.AuditEntry{
		ConnectionID: conn.ID,
		Actor:        actorEngine,
		Action:       "drift_auto_rejected",
		Detail:       string(detail),
	}
	if err := e.deps.Registry.AppendAudit(ctx, audit); err != nil {
		e.logger.Warn("failed to audit rejection", "event_id", ev.ID, "error", err)
	}
}

// propose moves the event (and any recombined complement) to PROPOSED and
// opens an approval ticket in the given status.
func (e *Engine) propose(ctx context.Context, ev *drift.Event, card *scoring.Scorecard, status string) *approvals.Record {
	if _, err := e.deps.Drift.Transition(ctx, ev.ID, drift.StatusProposed); err != nil {
		e.logger.Warn("failed to propose event", "event_id", ev.ID, "error", err)
		return nil
	}
	if comp := card.Proposal.ComplementEventID; comp != nil {
		if _, err := e.deps.Drift.Transition(ctx, *comp, drift.StatusProposed); err != nil {
			e.logger.Warn("failed to propose complement event", "event_id", *comp, "error", err)
		}
	}

	ticket, err := e.deps.Approvals.Create(ctx, ev.ID, status, card.Confidence)
	if err != nil {
		e.logger.Warn("failed to open ticket", "event_id", ev.ID, "error", err)
		return nil
	}

	e.logger.Info("repair proposed",
		"event_id", ev.ID,
		"ticket_id", ticket.TicketID,
		"status", status,
		"confidence", card.Confidence,
	)
	return ticket
}

// settleStatus keeps the connection status aligned with its outstanding
// drift: DRIFTED while open or proposed events remain, ACTIVE otherwise.
func (e *Engine) settleStatus(ctx context.Context, conn *connections.Connection) {
	outstanding, err := e.deps.Drift.ListByStatus(ctx, conn.ID, drift.StatusOpen, drift.StatusProposed)
	if err != nil {
		e.logger.Warn("failed to list outstanding events", "connection_id", conn.ID, "error", err)
		return
	}

	target := connections.StatusActive
	if len(outstanding) > 0 {
		target = connections.StatusDrifted
	}
	if target == conn.Status {
		return
	}
	if err := e.deps.Connections.SetStatus(ctx, conn.ID, target); err != nil {
		e.logger.Warn("failed to settle connection status", "connection_id", conn.ID, "error", err)
	}
}

// fetchSchema retries transient fetch failures with doubling backoff.
// Non-transient errors fail immediately.
func (e *Engine) fetchSchema(ctx context.Context, conn *connections.Connection) (*vendors.TableSchema, error) {
	adapter, err := e.deps.Vendors.Open(conn.Vendor, conn.Config)
	if err != nil {
		return nil, err
	}

	backoff := e.cfg.FetchBackoffDuration()
	var last error

	for attempt := 1; attempt <= e.cfg.FetchAttempts; attempt++ {
		schema, err := adapter.FetchSchema(ctx, conn.Entity)
		if err == nil {
			return schema, nil
		}
		last = err

		if !vendors.IsTransient(err) {
			return nil, err
		}

		e.logger.Warn("transient schema fetch failure",
			"connection_id", conn.ID,
			"attempt", attempt,
			"error", err,
		)

		if attempt == e.cfg.FetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, last
}

// drain consumes the materialization queue, rebuilding canonical views as
// repairs land. Each rebuild runs under the connection's exclusive lease;
// a task whose connection is busy with another phase is re-enqueued.
func (e *Engine) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-e.queue.tasks:
			guard, ok := e.leases.TryAcquire(t.ConnectionID.String())
			if !ok {
				e.queue.Enqueue(t.ConnectionID, t.Entity)
				select {
				case <-ctx.Done():
					return
				case <-time.After(requeueDelay):
				}
				continue
			}

			mctx, cancel := context.WithTimeout(ctx, e.cfg.PhaseTimeoutDuration())
			result, err := e.deps.Materializer.Materialize(mctx, t.ConnectionID)
			cancel()
			guard.Release()
			if err != nil {
				e.logger.Warn("materialization failed",
					"connection_id", t.ConnectionID,
					"entity", t.Entity,
					"error", err,
				)
				continue
			}
			e.logger.Info("canonical view materialized",
				"connection_id", result.ConnectionID,
				"entity", result.Entity,
				"version", result.Version,
				"emitted", result.Emitted,
				"skipped", result.Skipped,
			)
		}
	}
}
