package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvEngineWorkers       = "AUTONOMOS_ENGINE_WORKERS"
	EnvEngineScanInterval  = "AUTONOMOS_ENGINE_SCAN_INTERVAL"
	EnvEnginePhaseTimeout  = "AUTONOMOS_ENGINE_PHASE_TIMEOUT"
	EnvEngineFetchAttempts = "AUTONOMOS_ENGINE_FETCH_ATTEMPTS"
	EnvEngineFetchBackoff  = "AUTONOMOS_ENGINE_FETCH_BACKOFF"
)

// EngineConfig holds reconciliation engine tuning: worker pool size, scan
// cadence, detection debounce, scoring thresholds, and retry bounds.
type EngineConfig struct {
	Workers        int     `toml:"workers"`
	ScanInterval   string  `toml:"scan_interval"`
	PhaseTimeout   string  `toml:"phase_timeout"`
	FetchAttempts  int     `toml:"fetch_attempts"`
	FetchBackoff   string  `toml:"fetch_backoff"`
	DebounceChecks int     `toml:"debounce_checks"`
	ApplyRetries   int     `toml:"apply_retries"`
	AutoApply      float64 `toml:"auto_apply_threshold"`
	Review         float64 `toml:"review_threshold"`
	RenameEdit     float64 `toml:"rename_edit_threshold"`
	RenameOverlap  float64 `toml:"rename_overlap_threshold"`
	TopK           int     `toml:"top_k"`
}

// ScanIntervalDuration returns ScanInterval as a time.Duration.
func (c *EngineConfig) ScanIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.ScanInterval)
	return d
}

// PhaseTimeoutDuration returns PhaseTimeout as a time.Duration.
func (c *EngineConfig) PhaseTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.PhaseTimeout)
	return d
}

// FetchBackoffDuration returns FetchBackoff as a time.Duration.
func (c *EngineConfig) FetchBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.FetchBackoff)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EngineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.ScanInterval != "" {
		c.ScanInterval = overlay.ScanInterval
	}
	if overlay.PhaseTimeout != "" {
		c.PhaseTimeout = overlay.PhaseTimeout
	}
	if overlay.FetchAttempts != 0 {
		c.FetchAttempts = overlay.FetchAttempts
	}
	if overlay.FetchBackoff != "" {
		c.FetchBackoff = overlay.FetchBackoff
	}
	if overlay.DebounceChecks != 0 {
		c.DebounceChecks = overlay.DebounceChecks
	}
	if overlay.ApplyRetries != 0 {
		c.ApplyRetries = overlay.ApplyRetries
	}
	if overlay.AutoApply != 0 {
		c.AutoApply = overlay.AutoApply
	}
	if overlay.Review != 0 {
		c.Review = overlay.Review
	}
	if overlay.RenameEdit != 0 {
		c.RenameEdit = overlay.RenameEdit
	}
	if overlay.RenameOverlap != 0 {
		c.RenameOverlap = overlay.RenameOverlap
	}
	if overlay.TopK != 0 {
		c.TopK = overlay.TopK
	}
}

func (c *EngineConfig) loadDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.ScanInterval == "" {
		c.ScanInterval = "30s"
	}
	if c.PhaseTimeout == "" {
		c.PhaseTimeout = "1m"
	}
	if c.FetchAttempts == 0 {
		c.FetchAttempts = 3
	}
	if c.FetchBackoff == "" {
		c.FetchBackoff = "2s"
	}
	if c.DebounceChecks == 0 {
		c.DebounceChecks = 2
	}
	if c.ApplyRetries == 0 {
		c.ApplyRetries = 3
	}
	if c.AutoApply == 0 {
		c.AutoApply = 0.90
	}
	if c.Review == 0 {
		c.Review = 0.50
	}
	if c.RenameEdit == 0 {
		c.RenameEdit = 0.60
	}
	if c.RenameOverlap == 0 {
		c.RenameOverlap = 0.50
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
}

func (c *EngineConfig) loadEnv() {
	if v := os.Getenv(EnvEngineWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv(EnvEngineScanInterval); v != "" {
		c.ScanInterval = v
	}
	if v := os.Getenv(EnvEnginePhaseTimeout); v != "" {
		c.PhaseTimeout = v
	}
	if v := os.Getenv(EnvEngineFetchAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FetchAttempts = n
		}
	}
	if v := os.Getenv(EnvEngineFetchBackoff); v != "" {
		c.FetchBackoff = v
	}
}

func (c *EngineConfig) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if _, err := time.ParseDuration(c.ScanInterval); err != nil {
		return fmt.Errorf("invalid scan_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.PhaseTimeout); err != nil {
		return fmt.Errorf("invalid phase_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.FetchBackoff); err != nil {
		return fmt.Errorf("invalid fetch_backoff: %w", err)
	}
	if c.Review >= c.AutoApply {
		return fmt.Errorf("review_threshold must be below auto_apply_threshold")
	}
	if c.AutoApply > 1 || c.Review < 0 {
		return fmt.Errorf("thresholds must fall within [0, 1]")
	}
	return nil
}
