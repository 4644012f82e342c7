package drift_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/vendors"
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

func seedConnection(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO connections (id, name, vendor, entity)
		VALUES ($1, $2, 'file', 'accounts')`,
		id, "drift-test-"+id.String())
	if err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM connections WHERE id = $1`, id)
	})
	return id
}

func newDriftSystem(db *sql.DB, debounce int) drift.System {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return drift.New(db, logger, pagination.Config{}, debounce, nil, nil)
}

func TestObserveDebouncesAndCoalesces(t *testing.T) {
	db := testDB(t)
	connID := seedConnection(t, db)
	sys := newDriftSystem(db, 2)
	ctx := context.Background()

	removal := []drift.Candidate{{
		Kind:         drift.KindFieldRemoved,
		Field:        "acct_name",
		ObservedType: vendors.TypeString,
	}}

	opened, err := sys.Observe(ctx, connID, "accounts", removal)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if len(opened) != 0 {
		t.Fatalf("first pass opened %d events, want 0 before the debounce", len(opened))
	}

	opened, err = sys.Observe(ctx, connID, "accounts", removal)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(opened) != 1 {
		t.Fatalf("second pass opened %d events, want 1", len(opened))
	}
	if opened[0].Kind != drift.KindFieldRemoved || opened[0].Status != drift.StatusOpen {
		t.Errorf("opened event = %s/%s, want %s/%s",
			opened[0].Kind, opened[0].Status, drift.KindFieldRemoved, drift.StatusOpen)
	}

	// Recurring drift coalesces into the in-flight event.
	opened, err = sys.Observe(ctx, connID, "accounts", removal)
	if err != nil {
		t.Fatalf("third pass: %v", err)
	}
	if len(opened) != 0 {
		t.Errorf("third pass opened %d events, want 0", len(opened))
	}

	inflight, err := sys.ListByStatus(ctx, connID, drift.StatusOpen)
	if err != nil {
		t.Fatalf("list open events: %v", err)
	}
	if len(inflight) != 1 {
		t.Errorf("open events = %d, want 1", len(inflight))
	}
}

func TestObserveResetsStreakWhenCandidateVanishes(t *testing.T) {
	db := testDB(t)
	connID := seedConnection(t, db)
	sys := newDriftSystem(db, 2)
	ctx := context.Background()

	removal := []drift.Candidate{{
		Kind:         drift.KindFieldRemoved,
		Field:        "fax",
		ObservedType: vendors.TypeString,
	}}

	if _, err := sys.Observe(ctx, connID, "accounts", removal); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	// The candidate does not recur, so its streak starts over.
	if _, err := sys.Observe(ctx, connID, "accounts", nil); err != nil {
		t.Fatalf("empty pass: %v", err)
	}

	opened, err := sys.Observe(ctx, connID, "accounts", removal)
	if err != nil {
		t.Fatalf("post-reset pass: %v", err)
	}
	if len(opened) != 0 {
		t.Fatalf("post-reset pass opened %d events, want 0", len(opened))
	}

	opened, err = sys.Observe(ctx, connID, "accounts", removal)
	if err != nil {
		t.Fatalf("final pass: %v", err)
	}
	if len(opened) != 1 {
		t.Errorf("final pass opened %d events, want 1", len(opened))
	}
}

func TestObserveReclassifiesRemovalIntoRename(t *testing.T) {
	db := testDB(t)
	connID := seedConnection(t, db)
	sys := newDriftSystem(db, 2)
	ctx := context.Background()

	removal := []drift.Candidate{{
		Kind:         drift.KindFieldRemoved,
		Field:        "acct_name",
		ObservedType: vendors.TypeString,
	}}
	for range 2 {
		if _, err := sys.Observe(ctx, connID, "accounts", removal); err != nil {
			t.Fatalf("removal pass: %v", err)
		}
	}

	// The new counterpart shows up in later passes and the detector now
	// classifies the same vanished field as a rename.
	rename := []drift.Candidate{{
		Kind:         drift.KindFieldRenamed,
		Field:        "acct_name",
		Counterpart:  "account_name",
		ObservedType: vendors.TypeString,
	}}
	for range 2 {
		if _, err := sys.Observe(ctx, connID, "accounts", rename); err != nil {
			t.Fatalf("rename pass: %v", err)
		}
	}

	inflight, err := sys.ListByStatus(ctx, connID, drift.StatusOpen)
	if err != nil {
		t.Fatalf("list open events: %v", err)
	}
	if len(inflight) != 1 {
		t.Fatalf("open events = %d, want the removal upgraded in place", len(inflight))
	}

	ev := inflight[0]
	if ev.Kind != drift.KindFieldRenamed {
		t.Errorf("Kind = %s, want %s", ev.Kind, drift.KindFieldRenamed)
	}
	if ev.Field != "acct_name" {
		t.Errorf("Field = %s, want acct_name", ev.Field)
	}
	if ev.Counterpart == nil || *ev.Counterpart != "account_name" {
		t.Errorf("Counterpart = %v, want account_name", ev.Counterpart)
	}
}
