package materializer_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/materializer"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
)

type fakeSystem struct {
	materialized int
}

func (f *fakeSystem) Handler() *materializer.Handler { return nil }

func (f *fakeSystem) Materialize(_ context.Context, connectionID uuid.UUID) (*materializer.Result, error) {
	f.materialized++
	return &materializer.Result{ConnectionID: connectionID, Entity: "accounts"}, nil
}

func (f *fakeSystem) Views(context.Context, uuid.UUID, string) ([]materializer.Envelope, error) {
	return nil, nil
}

func materializeRequest(connID uuid.UUID) *http.Request {
	r := httptest.NewRequest(
		http.MethodPost,
		"/views/accounts/materialize?connection_id="+connID.String(),
		nil,
	)
	r.SetPathValue("entity", "accounts")
	return r
}

func TestMaterializeConflictsWhileConnectionLeased(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	leases := lease.New()
	sys := &fakeSystem{}
	h := materializer.NewHandler(sys, leases, logger)

	connID := uuid.New()
	guard, ok := leases.TryAcquire(connID.String())
	if !ok {
		t.Fatal("could not seed the external lease")
	}
	defer guard.Release()

	rr := httptest.NewRecorder()
	h.Materialize(rr, materializeRequest(connID))

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if sys.materialized != 0 {
		t.Errorf("Materialize calls = %d, want 0 while the connection is leased", sys.materialized)
	}
}

func TestMaterializeRunsUnderLeaseAndReleases(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	leases := lease.New()
	sys := &fakeSystem{}
	h := materializer.NewHandler(sys, leases, logger)

	connID := uuid.New()
	rr := httptest.NewRecorder()
	h.Materialize(rr, materializeRequest(connID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if sys.materialized != 1 {
		t.Errorf("Materialize calls = %d, want 1", sys.materialized)
	}
	if leases.Holding(connID.String()) {
		t.Error("connection lease still held after the rebuild returned")
	}
}
