package connections_test

import (
	"testing"
	"time"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/connections"
)

func TestCadenceDue(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-5 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	tests := []struct {
		name string
		conn connections.Connection
		want bool
	}{
		{
			name: "never checked",
			conn: connections.Connection{CadenceCalls: 100, CadenceInterval: time.Hour},
			want: true,
		},
		{
			name: "call threshold reached",
			conn: connections.Connection{
				CadenceCalls:    10,
				CadenceInterval: time.Hour,
				CallsSinceCheck: 10,
				LastCheckedAt:   &recent,
			},
			want: true,
		},
		{
			name: "interval elapsed",
			conn: connections.Connection{
				CadenceCalls:    100,
				CadenceInterval: time.Hour,
				CallsSinceCheck: 1,
				LastCheckedAt:   &stale,
			},
			want: true,
		},
		{
			name: "neither threshold met",
			conn: connections.Connection{
				CadenceCalls:    100,
				CadenceInterval: time.Hour,
				CallsSinceCheck: 3,
				LastCheckedAt:   &recent,
			},
			want: false,
		},
		{
			name: "zero cadence never fires on calls",
			conn: connections.Connection{
				CadenceInterval: time.Hour,
				CallsSinceCheck: 500,
				LastCheckedAt:   &recent,
			},
			want: false,
		},
		{
			name: "zero interval never fires on time",
			conn: connections.Connection{
				CadenceCalls:    100,
				CallsSinceCheck: 1,
				LastCheckedAt:   &stale,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conn.CadenceDue(now); got != tt.want {
				t.Errorf("CadenceDue = %v, want %v", got, tt.want)
			}
		})
	}
}
