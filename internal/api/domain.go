package api

import (
	"github.com/ilyacantor/autonomos-platform-sub005/internal/applier"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/approvals"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/config"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/connections"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/materializer"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/scoring"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/vendors"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
)

// Domain holds all domain systems that comprise the API. The engine shares
// the same systems so the HTTP surface and the scheduler always agree.
type Domain struct {
	Connections  connections.System
	Registry     registry.System
	Drift        drift.System
	Scoring      scoring.System
	Approvals    approvals.System
	Materializer materializer.System
	Applier      applier.System
	Vendors      *vendors.Registry
	Detector     *drift.Detector
}

// NewDomain creates all domain systems from the API runtime. materialize
// receives a nudge after every applied repair; the engine's queue satisfies
// it in production. leases is the per-connection reconciliation lease
// registry shared with the engine so HTTP-triggered repairs and rebuilds
// never overlap a scan phase.
func NewDomain(
	runtime *Runtime,
	cfg *config.Config,
	materialize applier.Materializer,
	leases *lease.Registry,
) *Domain {
	db := runtime.Database.Connection()

	vendorRegistry := vendors.NewRegistry()
	detector := drift.NewDetector(cfg.Engine.RenameEdit, cfg.Engine.RenameOverlap)

	connectionsSystem := connections.New(db, runtime.Logger, runtime.Pagination)
	registrySystem := registry.New(db, runtime.Logger, runtime.Pagination)

	driftSystem := drift.New(
		db,
		runtime.Logger,
		runtime.Pagination,
		cfg.Engine.DebounceChecks,
		connectionsSystem,
		vendorRegistry,
	)

	scorer := scoring.NewScorer(runtime.Index, registrySystem, detector, cfg.Engine.TopK)
	scoringSystem := scoring.New(db, scorer, runtime.Logger)

	approvalsSystem := approvals.New(db, driftSystem, leases, runtime.Logger, runtime.Pagination)

	materializerSystem := materializer.New(
		connectionsSystem,
		registrySystem,
		vendorRegistry,
		runtime.Storage,
		leases,
		runtime.Logger,
	)

	applierSystem := applier.New(
		db,
		registrySystem,
		driftSystem,
		approvalsSystem,
		scoringSystem,
		runtime.Index,
		materialize,
		runtime.Logger,
		cfg.Engine.ApplyRetries,
		cfg.Engine.Review,
	)

	return &Domain{
		Connections:  connectionsSystem,
		Registry:     registrySystem,
		Drift:        driftSystem,
		Scoring:      scoringSystem,
		Approvals:    approvalsSystem,
		Materializer: materializerSystem,
		Applier:      applierSystem,
		Vendors:      vendorRegistry,
		Detector:     detector,
	}
}
