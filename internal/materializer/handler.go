package materializer

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/handlers"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/routes"
)

// Handler provides HTTP endpoints for canonical views.
type Handler struct {
	sys    System
	leases *lease.Registry
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system, lease registry, and
// logger.
func NewHandler(sys System, leases *lease.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		leases: leases,
		logger: logger.With("handler", "views"),
	}
}

// Routes returns the route group definition for canonical view endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/views",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{entity}", Handler: h.Views},
			{Method: "POST", Pattern: "/{entity}/materialize", Handler: h.Materialize},
		},
	}
}

// Views returns the latest canonical batch for an entity.
// Query parameter: connection_id.
func (h *Handler) Views(w http.ResponseWriter, r *http.Request) {
	connectionID, err := uuid.Parse(r.URL.Query().Get("connection_id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	entity := r.PathValue("entity")
	if !registry.ValidIdentifier(entity) {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, registry.ErrInvalidIdentifier)
		return
	}

	envelopes, err := h.sys.Views(r.Context(), connectionID, entity)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, envelopes)
}

// Materialize forces a fresh canonical batch for the connection. The
// rebuild runs under the connection's reconciliation lease; 409 when
// another phase holds it.
func (h *Handler) Materialize(w http.ResponseWriter, r *http.Request) {
	connectionID, err := uuid.Parse(r.URL.Query().Get("connection_id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	guard, ok := h.leases.TryAcquire(connectionID.String())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusConflict, ErrBusy)
		return
	}
	defer guard.Release()

	result, err := h.sys.Materialize(r.Context(), connectionID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
