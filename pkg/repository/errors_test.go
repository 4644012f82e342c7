package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
	errConflict  = errors.New("conflict")
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil passes through", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"wrapped no rows", fmt.Errorf("query: %w", sql.ErrNoRows), errNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"other pg error unchanged", &pgconn.PgError{Code: "42601"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.in, errNotFound, errDuplicate)
			if tt.want != nil {
				if !errors.Is(got, tt.want) {
					t.Errorf("MapError = %v, want %v", got, tt.want)
				}
				return
			}
			if !errors.Is(got, tt.in) && got != nil {
				t.Errorf("MapError = %v, want original error", got)
			}
		})
	}
}

func TestMapConflict(t *testing.T) {
	if got := repository.MapConflict(nil, errConflict); got != nil {
		t.Errorf("MapConflict(nil) = %v", got)
	}

	serialization := &pgconn.PgError{Code: "40001"}
	if got := repository.MapConflict(serialization, errConflict); !errors.Is(got, errConflict) {
		t.Errorf("serialization failure mapped to %v, want %v", got, errConflict)
	}

	deadlock := &pgconn.PgError{Code: "40P01"}
	if got := repository.MapConflict(deadlock, errConflict); !errors.Is(got, errConflict) {
		t.Errorf("deadlock mapped to %v, want %v", got, errConflict)
	}

	other := errors.New("boom")
	if got := repository.MapConflict(other, errConflict); !errors.Is(got, other) {
		t.Errorf("unrelated error mapped to %v", got)
	}
}
