// Package infrastructure provides core service initialization for
// application startup. It assembles the common dependencies (logging,
// database, blob storage, embedding index) that domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/config"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/embeddings"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/database"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lifecycle"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, blob storage, and the similarity index.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Index     *embeddings.Index
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	embedder, err := newEmbedder(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Index:     embeddings.NewIndex(embedder),
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	return nil
}

func newEmbedder(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingProviderGemini:
		return embeddings.NewGeminiEmbedder(context.Background(), cfg.APIKey, cfg.Model)
	default:
		return embeddings.NewLocalEmbedder(), nil
	}
}
