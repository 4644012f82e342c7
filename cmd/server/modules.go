package main

import (
	"encoding/json"
	"net/http"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/api"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/config"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/engine"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/infrastructure"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/module"
)

// materializeQueueSize bounds how many repair-triggered materialization
// requests can be outstanding before new ones are dropped.
const materializeQueueSize = 64

type Modules struct {
	API    *module.Module
	Engine *engine.Engine
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	queue := engine.NewQueue(materializeQueueSize, infra.Logger)

	// One lease registry for every phase that touches a connection: the
	// scan loop, queued materializations, and the HTTP repair and rebuild
	// endpoints all contend on it.
	leases := lease.New()

	runtime := api.NewRuntime(cfg, infra)
	domain := api.NewDomain(runtime, cfg, queue, leases)

	apiModule, err := api.NewModule(cfg, runtime, domain)
	if err != nil {
		return nil, err
	}

	eng := engine.New(cfg.Engine, queue, leases, engine.Deps{
		Connections:  domain.Connections,
		Drift:        domain.Drift,
		Registry:     domain.Registry,
		Scoring:      domain.Scoring,
		Approvals:    domain.Approvals,
		Applier:      domain.Applier,
		Materializer: domain.Materializer,
		Vendors:      domain.Vendors,
		Detector:     domain.Detector,
		Index:        infra.Index,
		Logger:       infra.Logger,
	})

	return &Modules{
		API:    apiModule,
		Engine: eng,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !infra.Lifecycle.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	return router
}
