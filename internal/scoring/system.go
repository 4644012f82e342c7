package scoring

import (
	"context"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
)

// System defines the public contract for scoring operations. Score computes
// and persists a card, superseding earlier cards for the same event;
// FindByEvent returns the active card.
type System interface {
	Handler() *Handler

	Score(ctx context.Context, event *drift.Event, openPeers []drift.Event) (*Scorecard, error)
	FindByEvent(ctx context.Context, eventID uuid.UUID) (*Scorecard, error)
}
