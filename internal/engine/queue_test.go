package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func TestQueueEnqueueNeverBlocks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := NewQueue(2, logger)

	connID := uuid.New()
	for range 10 {
		q.Enqueue(connID, "accounts")
	}

	if len(q.tasks) != 2 {
		t.Errorf("buffered tasks = %d, want 2", len(q.tasks))
	}
}

func TestQueueDeliversInOrder(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := NewQueue(4, logger)

	first := uuid.New()
	second := uuid.New()
	q.Enqueue(first, "accounts")
	q.Enqueue(second, "contacts")

	got := <-q.tasks
	if got.ConnectionID != first || got.Entity != "accounts" {
		t.Errorf("first task = %+v", got)
	}
	got = <-q.tasks
	if got.ConnectionID != second || got.Entity != "contacts" {
		t.Errorf("second task = %+v", got)
	}
}
