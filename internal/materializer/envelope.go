// Package materializer produces the canonical view of a connection's
// records: raw vendor records pushed through the current mapping set and
// written as JSONL batches to blob storage. Materialization is idempotent;
// a batch is fully determined by the mapping version and the source
// records, so re-running a version overwrites the batch with identical
// bytes.
package materializer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Meta pins an envelope to the mapping revision that produced it.
type Meta struct {
	Version int    `json:"version"`
	Batch   string `json:"batch"`
}

// Source identifies the vendor connection an envelope came from.
type Source struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	Vendor       string    `json:"vendor"`
}

// Envelope is one canonical record.
type Envelope struct {
	Meta   Meta           `json:"meta"`
	Source Source         `json:"source"`
	Entity string         `json:"entity"`
	Op     string         `json:"op"`
	Data   map[string]any `json:"data"`
}

// OpUpsert is the only envelope operation emitted today.
const OpUpsert = "upsert"

// Result reports the outcome of one materialization run.
type Result struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	Entity       string    `json:"entity"`
	Version      int       `json:"version"`
	Emitted      int       `json:"emitted"`
	Skipped      int       `json:"skipped"`
	Key          string    `json:"key"`
	Issues       []string  `json:"issues,omitempty"`
}

// batchID derives a deterministic batch identifier from the connection,
// entity, and mapping version. No wall clock: the same inputs always name
// the same batch.
func batchID(connectionID uuid.UUID, entity string, version int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/v%d", connectionID, entity, version)))
	return hex.EncodeToString(sum[:6])
}

// batchKey is the blob storage key for a materialized batch.
func batchKey(connectionID uuid.UUID, entity string, version int) string {
	return fmt.Sprintf("canonical/%s/%s/v%d.jsonl", connectionID, entity, version)
}
