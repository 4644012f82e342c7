package scoring

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/handlers"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/routes"
)

// Handler provides HTTP endpoints for scorecard lookup.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "scoring"),
	}
}

// Routes returns the route group definition for scorecard endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/scorecards",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{event_id}", Handler: h.FindByEvent},
		},
	}
}

// FindByEvent returns the active scorecard for a drift event.
func (h *Handler) FindByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(r.PathValue("event_id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	card, err := h.sys.FindByEvent(r.Context(), eventID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, card)
}
