package approvals

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/handlers"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/routes"
)

// Handler provides HTTP endpoints for the approval workflow.
type Handler struct {
	sys        System
	repairer   Repairer
	leases     *lease.Registry
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, repairer, lease
// registry, logger, and pagination config.
func NewHandler(
	sys System,
	repairer Repairer,
	leases *lease.Registry,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		repairer:   repairer,
		leases:     leases,
		logger:     logger.With("handler", "approvals"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for approval listing endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/approvals",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{ticket_id}", Handler: h.Find},
		},
	}
}

// RepairRoutes returns the route group for repair decisions.
func (h *Handler) RepairRoutes() routes.Group {
	return routes.Group{
		Prefix: "/repair",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/approve", Handler: h.Approve},
		},
	}
}

// List returns a paginated list of approval tickets with optional filters.
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

// Find returns a single approval ticket by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(r.PathValue("ticket_id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	rec, err := h.sys.Find(r.Context(), ticketID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

// Approve settles a pending ticket. The decision and its repair run under
// the connection's reconciliation lease; 409 when another phase holds it.
// Approved tickets have their repair applied before the response returns;
// a repair failure settles the ticket FAILED and reopens the drift event,
// which the response reflects.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var cmd DecideCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	connectionID, err := h.sys.ConnectionID(r.Context(), cmd.TicketID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	guard, ok := h.leases.TryAcquire(connectionID.String())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusConflict, ErrBusy)
		return
	}
	defer guard.Release()

	rec, err := h.sys.Decide(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if rec.Status == StatusApproved && h.repairer != nil {
		if err := h.repairer.Repair(r.Context(), rec.TicketID); err != nil {
			h.logger.Error("repair application failed",
				"ticket_id", rec.TicketID,
				"error", err,
			)
		}

		// Re-read so the response carries the settled status.
		if settled, err := h.sys.Find(r.Context(), rec.TicketID); err == nil {
			rec = settled
		}
	}

	handlers.RespondJSON(w, http.StatusOK, Decision{
		TicketID:   rec.TicketID,
		Status:     rec.Status,
		Confidence: rec.Confidence,
	})
}
