package registry

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/handlers"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/routes"
)

// Handler provides HTTP endpoints for mapping registry operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "registry"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for registry endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/registry",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/history", Handler: h.History},
			{Method: "GET", Pattern: "/audit", Handler: h.Audit},
			{Method: "POST", Pattern: "/joins", Handler: h.RegisterJoin},
		},
	}
}

// List returns a paginated list of mapping entries with optional filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// History returns the full version lineage for one vendor field.
// Query parameters: connection_id, entity, vendor_field.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	connectionID, err := uuid.Parse(r.URL.Query().Get("connection_id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidIdentifier)
		return
	}

	entity := r.URL.Query().Get("entity")
	vendorField := r.URL.Query().Get("vendor_field")
	if !ValidIdentifier(entity) || !ValidIdentifier(vendorField) {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidIdentifier)
		return
	}

	entries, err := h.sys.History(r.Context(), connectionID, entity, vendorField)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, entries)
}

// Audit returns a paginated audit trail for one connection.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	connectionID, err := uuid.Parse(r.URL.Query().Get("connection_id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidIdentifier)
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.ListAudit(r.Context(), page, connectionID)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// RegisterJoin records a cross-entity join reference for a mapped field.
func (h *Handler) RegisterJoin(w http.ResponseWriter, r *http.Request) {
	var ref JoinRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	created, err := h.sys.RegisterJoin(r.Context(), ref)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, created)
}
