package config

import (
	"fmt"
	"os"
)

const (
	EnvEmbeddingProvider = "AUTONOMOS_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "AUTONOMOS_EMBEDDING_MODEL"
	EnvEmbeddingAPIKey   = "GEMINI_API_KEY"
)

// Embedding providers.
const (
	EmbeddingProviderLocal  = "local"
	EmbeddingProviderGemini = "gemini"
)

// EmbeddingConfig selects the field-name embedding provider. The API key is
// environment-only and never read from TOML.
type EmbeddingConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"-"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EmbeddingConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *EmbeddingConfig) Merge(overlay *EmbeddingConfig) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
}

func (c *EmbeddingConfig) loadDefaults() {
	if c.Provider == "" {
		c.Provider = EmbeddingProviderLocal
	}
	if c.Model == "" {
		c.Model = "gemini-embedding-001"
	}
}

func (c *EmbeddingConfig) loadEnv() {
	if v := os.Getenv(EnvEmbeddingProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvEmbeddingModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvEmbeddingAPIKey); v != "" {
		c.APIKey = v
	}
}

func (c *EmbeddingConfig) validate() error {
	switch c.Provider {
	case EmbeddingProviderLocal:
		return nil
	case EmbeddingProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("gemini provider requires %s", EnvEmbeddingAPIKey)
		}
		return nil
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Provider)
	}
}
