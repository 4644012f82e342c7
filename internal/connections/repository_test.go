package connections_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/connections"
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

func seedStatusConnection(t *testing.T, db *sql.DB, status string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO connections (id, name, vendor, entity, status)
		VALUES ($1, $2, 'file', 'accounts', $3)`,
		id, "conn-test-"+id.String(), status)
	if err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM connections WHERE id = $1`, id)
	})
	return id
}

func TestListActiveKeepsDriftedInRotation(t *testing.T) {
	db := testDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sys := connections.New(db, logger, pagination.Config{})

	activeID := seedStatusConnection(t, db, connections.StatusActive)
	driftedID := seedStatusConnection(t, db, connections.StatusDrifted)
	disabledID := seedStatusConnection(t, db, connections.StatusDisabled)

	conns, err := sys.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}

	listed := make(map[uuid.UUID]bool, len(conns))
	for _, c := range conns {
		listed[c.ID] = true
	}

	if !listed[activeID] {
		t.Error("ACTIVE connection missing from the scan rotation")
	}
	// A drifted connection must keep being scanned so it can recover.
	if !listed[driftedID] {
		t.Error("DRIFTED connection missing from the scan rotation")
	}
	if listed[disabledID] {
		t.Error("DISABLED connection scheduled for scanning")
	}
}
