package approvals_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/approvals"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
)

// testDB connects to the migrated test database named by
// AUTONOMOS_TEST_DB_DSN, or skips the test when none is configured.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("AUTONOMOS_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("AUTONOMOS_TEST_DB_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Fatalf("ping test database: %v", err)
	}
	return db
}

// seedProposal creates a connection, a PROPOSED drift event, and a pending
// ticket for it, returning the connection and ticket IDs.
func seedProposal(t *testing.T, db *sql.DB) (uuid.UUID, uuid.UUID) {
	t.Helper()

	connID := uuid.New()
	_, err := db.Exec(`
		INSERT INTO connections (id, name, vendor, entity)
		VALUES ($1, $2, 'file', 'accounts')`,
		connID, "approvals-test-"+connID.String())
	if err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM connections WHERE id = $1`, connID)
	})

	eventID := uuid.New()
	_, err = db.Exec(`
		INSERT INTO drift_events (id, connection_id, entity, field, kind, observed_type, status)
		VALUES ($1, $2, 'accounts', 'acct_name', $3, 'string', $4)`,
		eventID, connID, string(drift.KindFieldRemoved), string(drift.StatusProposed))
	if err != nil {
		t.Fatalf("seed drift event: %v", err)
	}

	ticketID := uuid.New()
	_, err = db.Exec(`
		INSERT INTO approvals (ticket_id, drift_event_id, status, confidence)
		VALUES ($1, $2, $3, 0.72)`,
		ticketID, eventID, approvals.StatusPendingReview)
	if err != nil {
		t.Fatalf("seed ticket: %v", err)
	}

	return connID, ticketID
}

func newApprovalsSystem(db *sql.DB) approvals.System {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	driftSys := drift.New(db, logger, pagination.Config{}, 1, nil, nil)
	return approvals.New(db, driftSys, lease.New(), logger, pagination.Config{})
}

func TestDecideSecondDecisionConflicts(t *testing.T) {
	db := testDB(t)
	_, ticketID := seedProposal(t, db)
	sys := newApprovalsSystem(db)
	ctx := context.Background()

	rec, err := sys.Decide(ctx, approvals.DecideCommand{
		TicketID: ticketID,
		Apply:    false,
		Approver: "first@example.com",
	})
	if err != nil {
		t.Fatalf("first decision: %v", err)
	}
	if rec.Status != approvals.StatusRejected {
		t.Errorf("Status = %s, want %s", rec.Status, approvals.StatusRejected)
	}

	_, err = sys.Decide(ctx, approvals.DecideCommand{
		TicketID: ticketID,
		Apply:    true,
		Approver: "second@example.com",
	})
	if !errors.Is(err, approvals.ErrConflict) {
		t.Errorf("second decision error = %v, want %v", err, approvals.ErrConflict)
	}
}

func TestDecideConcurrentReviewersSingleWinner(t *testing.T) {
	db := testDB(t)
	_, ticketID := seedProposal(t, db)
	sys := newApprovalsSystem(db)
	ctx := context.Background()

	const reviewers = 4
	results := make([]error, reviewers)

	var wg sync.WaitGroup
	for i := range reviewers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = sys.Decide(ctx, approvals.DecideCommand{
				TicketID: ticketID,
				Apply:    i%2 == 0,
				Approver: "reviewer@example.com",
			})
		}()
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, approvals.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected decision error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("winning decisions = %d, want exactly 1", wins)
	}
	if conflicts != reviewers-1 {
		t.Errorf("conflicted decisions = %d, want %d", conflicts, reviewers-1)
	}
}

func TestConnectionIDResolvesTicketOwner(t *testing.T) {
	db := testDB(t)
	connID, ticketID := seedProposal(t, db)
	sys := newApprovalsSystem(db)

	got, err := sys.ConnectionID(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("resolve connection: %v", err)
	}
	if got != connID {
		t.Errorf("ConnectionID = %s, want %s", got, connID)
	}

	_, err = sys.ConnectionID(context.Background(), uuid.New())
	if !errors.Is(err, approvals.ErrNotFound) {
		t.Errorf("unknown ticket error = %v, want %v", err, approvals.ErrNotFound)
	}
}
