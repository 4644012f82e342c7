package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/config"
)

func TestEngineConfigDefaults(t *testing.T) {
	cfg := config.EngineConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.ScanIntervalDuration() != 30*time.Second {
		t.Errorf("ScanInterval = %v, want 30s", cfg.ScanIntervalDuration())
	}
	if cfg.DebounceChecks != 2 {
		t.Errorf("DebounceChecks = %d, want 2", cfg.DebounceChecks)
	}
	if cfg.ApplyRetries != 3 {
		t.Errorf("ApplyRetries = %d, want 3", cfg.ApplyRetries)
	}
	if cfg.AutoApply != 0.90 || cfg.Review != 0.50 {
		t.Errorf("thresholds = %f/%f, want 0.90/0.50", cfg.AutoApply, cfg.Review)
	}
	if cfg.RenameEdit != 0.60 || cfg.RenameOverlap != 0.50 {
		t.Errorf("rename thresholds = %f/%f, want 0.60/0.50", cfg.RenameEdit, cfg.RenameOverlap)
	}
}

func TestEngineConfigEnvOverrides(t *testing.T) {
	t.Setenv("AUTONOMOS_ENGINE_WORKERS", "8")
	t.Setenv("AUTONOMOS_ENGINE_SCAN_INTERVAL", "5s")

	cfg := config.EngineConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.ScanIntervalDuration() != 5*time.Second {
		t.Errorf("ScanInterval = %v, want 5s", cfg.ScanIntervalDuration())
	}
}

func TestEngineConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EngineConfig
		wantErr string
	}{
		{
			name:    "review above auto-apply",
			cfg:     config.EngineConfig{Review: 0.95, AutoApply: 0.90},
			wantErr: "review_threshold must be below",
		},
		{
			name:    "bad scan interval",
			cfg:     config.EngineConfig{ScanInterval: "often"},
			wantErr: "invalid scan_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEngineConfigMerge(t *testing.T) {
	base := config.EngineConfig{Workers: 4, ScanInterval: "30s"}
	base.Merge(&config.EngineConfig{Workers: 16})

	if base.Workers != 16 {
		t.Errorf("Workers = %d, want 16", base.Workers)
	}
	if base.ScanInterval != "30s" {
		t.Errorf("ScanInterval = %s, want 30s", base.ScanInterval)
	}
}
