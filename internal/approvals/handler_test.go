package approvals_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/approvals"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/pagination"
)

// fakeSystem serves a single ticket from memory and counts decisions.
type fakeSystem struct {
	connID  uuid.UUID
	decided int
}

func (f *fakeSystem) Handler(approvals.Repairer) *approvals.Handler { return nil }

func (f *fakeSystem) List(context.Context, pagination.PageRequest, approvals.Filters) (*pagination.PageResult[approvals.Record], error) {
	return nil, nil
}

func (f *fakeSystem) Find(context.Context, uuid.UUID) (*approvals.Record, error) {
	return nil, approvals.ErrNotFound
}

func (f *fakeSystem) FindByEvent(context.Context, uuid.UUID) (*approvals.Record, error) {
	return nil, approvals.ErrNotFound
}

func (f *fakeSystem) ConnectionID(context.Context, uuid.UUID) (uuid.UUID, error) {
	return f.connID, nil
}

func (f *fakeSystem) Create(context.Context, uuid.UUID, string, float64) (*approvals.Record, error) {
	return nil, nil
}

func (f *fakeSystem) Decide(_ context.Context, cmd approvals.DecideCommand) (*approvals.Record, error) {
	f.decided++
	return &approvals.Record{TicketID: cmd.TicketID, Status: approvals.StatusRejected}, nil
}

func (f *fakeSystem) MarkAppliedTx(context.Context, *sql.Tx, uuid.UUID) error { return nil }

func (f *fakeSystem) MarkFailedTx(context.Context, *sql.Tx, uuid.UUID) error { return nil }

func approveRequest(t *testing.T, ticketID uuid.UUID) *http.Request {
	t.Helper()

	body, err := json.Marshal(approvals.DecideCommand{
		TicketID: ticketID,
		Apply:    false,
		Approver: "ops@example.com",
	})
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, "/repair/approve", bytes.NewReader(body))
}

func TestApproveConflictsWhileConnectionLeased(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	leases := lease.New()
	sys := &fakeSystem{connID: uuid.New()}
	h := approvals.NewHandler(sys, nil, leases, logger, pagination.Config{})

	// A scan or materialization phase holds the connection.
	guard, ok := leases.TryAcquire(sys.connID.String())
	if !ok {
		t.Fatal("could not seed the external lease")
	}
	defer guard.Release()

	rr := httptest.NewRecorder()
	h.Approve(rr, approveRequest(t, uuid.New()))

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
	// The ticket must stay pending: deciding before the repair can run
	// would strand an approved-but-unapplied ticket.
	if sys.decided != 0 {
		t.Errorf("Decide calls = %d, want 0 while the connection is leased", sys.decided)
	}
}

func TestApproveDecidesAndReleasesLease(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	leases := lease.New()
	sys := &fakeSystem{connID: uuid.New()}
	h := approvals.NewHandler(sys, nil, leases, logger, pagination.Config{})

	ticketID := uuid.New()
	rr := httptest.NewRecorder()
	h.Approve(rr, approveRequest(t, ticketID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if sys.decided != 1 {
		t.Errorf("Decide calls = %d, want 1", sys.decided)
	}
	if leases.Holding(sys.connID.String()) {
		t.Error("connection lease still held after the decision returned")
	}

	var decision approvals.Decision
	if err := json.NewDecoder(rr.Body).Decode(&decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decision.TicketID != ticketID || decision.Status != approvals.StatusRejected {
		t.Errorf("decision = %+v", decision)
	}
}
