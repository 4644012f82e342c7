package materializer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/connections"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/vendors"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/lease"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/storage"
)

const maxReportedIssues = 20

// System defines the public contract for canonical materialization.
type System interface {
	Handler() *Handler

	// Materialize runs the current mapping set over the connection's raw
	// records and writes the canonical batch.
	Materialize(ctx context.Context, connectionID uuid.UUID) (*Result, error)
	// Views returns the latest materialized batch for the entity.
	Views(ctx context.Context, connectionID uuid.UUID, entity string) ([]Envelope, error)
}

type system struct {
	connections connections.System
	registry    registry.System
	vendors     *vendors.Registry
	storage     storage.System
	leases      *lease.Registry
	logger      *slog.Logger
}

// New creates a materializer over the given domains and blob storage.
// leases is the per-connection reconciliation lease registry shared with
// the engine; the forced-materialization endpoint contends on it.
func New(
	conns connections.System,
	reg registry.System,
	vendorRegistry *vendors.Registry,
	store storage.System,
	leases *lease.Registry,
	logger *slog.Logger,
) System {
	return &system{
		connections: conns,
		registry:    reg,
		vendors:     vendorRegistry,
		storage:     store,
		leases:      leases,
		logger:      logger.With("system", "materializer"),
	}
}

func (s *system) Handler() *Handler {
	return NewHandler(s, s.leases, s.logger)
}

func (s *system) Materialize(ctx context.Context, connectionID uuid.UUID) (*Result, error) {
	conn, err := s.connections.Find(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	entries, err := s.registry.Current(ctx, conn.ID, conn.Entity)
	if err != nil {
		return nil, s.fatal(conn, err)
	}
	if len(activeEntries(entries)) == 0 {
		return nil, s.fatal(conn, ErrNoMappings)
	}

	adapter, err := s.vendors.Open(conn.Vendor, conn.Config)
	if err != nil {
		return nil, s.fatal(conn, err)
	}

	records, err := adapter.FetchRecords(ctx, conn.Entity)
	if err != nil {
		return nil, s.fatal(conn, err)
	}

	version := mappingVersion(entries)
	batch := batchID(conn.ID, conn.Entity, version)

	result := &Result{
		ConnectionID: conn.ID,
		Entity:       conn.Entity,
		Version:      version,
		Key:          batchKey(conn.ID, conn.Entity, version),
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for i, record := range records {
		data, err := transformRecord(record, entries)
		if err != nil {
			// One bad record never sinks the batch.
			result.Skipped++
			if len(result.Issues) < maxReportedIssues {
				result.Issues = append(result.Issues, fmt.Sprintf("record %d: %v", i, err))
			}
			continue
		}

		envelope := Envelope{
			Meta:   Meta{Version: version, Batch: batch},
			Source: Source{ConnectionID: conn.ID, Vendor: conn.Vendor},
			Entity: conn.Entity,
			Op:     OpUpsert,
			Data:   data,
		}

		if err := encoder.Encode(envelope); err != nil {
			return nil, s.fatal(conn, fmt.Errorf("encode envelope: %w", err))
		}
		result.Emitted++
	}

	if err := s.storage.Upload(ctx, result.Key, &buf, "application/x-ndjson"); err != nil {
		return nil, s.fatal(conn, err)
	}

	if err := s.connections.TouchCanonical(ctx, conn.ID); err != nil {
		s.logger.Warn("canonical timestamp update failed", "connection_id", conn.ID, "error", err)
	}

	s.logger.Info("canonical batch materialized",
		"connection_id", conn.ID,
		"entity", conn.Entity,
		"version", version,
		"emitted", result.Emitted,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (s *system) Views(ctx context.Context, connectionID uuid.UUID, entity string) ([]Envelope, error) {
	entries, err := s.registry.Current(ctx, connectionID, entity)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoMappings
	}

	key := batchKey(connectionID, entity, mappingVersion(entries))

	reader, err := s.storage.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotMaterialized
		}
		return nil, err
	}
	defer reader.Close()

	envelopes := make([]Envelope, 0)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var e Envelope
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("decode batch %s: %w", key, err)
		}
		envelopes = append(envelopes, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch %s: %w", key, err)
	}

	return envelopes, nil
}

// mappingVersion is the revision level of a mapping set: the highest
// current entry version.
func mappingVersion(entries []registry.Entry) int {
	version := 0
	for _, e := range entries {
		if e.Version > version {
			version = e.Version
		}
	}
	return version
}

func activeEntries(entries []registry.Entry) []registry.Entry {
	active := entries[:0:0]
	for _, e := range entries {
		if !e.Retired() {
			active = append(active, e)
		}
	}
	return active
}

func (s *system) fatal(conn *connections.Connection, err error) error {
	return &Error{
		ConnectionID: conn.ID.String(),
		Entity:       conn.Entity,
		Err:          err,
	}
}
