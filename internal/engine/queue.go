package engine

import (
	"log/slog"

	"github.com/google/uuid"
)

// task identifies one canonical view that needs rebuilding.
type task struct {
	ConnectionID uuid.UUID
	Entity       string
}

// Queue buffers materialization requests between the applier and the
// engine's drain worker. Enqueue never blocks; when the buffer is full the
// request is dropped and the next drift check re-materializes anyway.
type Queue struct {
	tasks  chan task
	logger *slog.Logger
}

// NewQueue creates a queue with the given buffer size.
func NewQueue(size int, logger *slog.Logger) *Queue {
	return &Queue{
		tasks:  make(chan task, size),
		logger: logger,
	}
}

// Enqueue requests materialization of the connection's canonical view.
func (q *Queue) Enqueue(connectionID uuid.UUID, entity string) {
	select {
	case q.tasks <- task{ConnectionID: connectionID, Entity: entity}:
	default:
		q.logger.Warn("materialization queue full, dropping request",
			"connection_id", connectionID,
			"entity", entity,
		)
	}
}
