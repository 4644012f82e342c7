// Package registry implements the versioned mapping registry: the canonical
// record of how vendor fields map onto canonical fields for each connection.
// Entries are append-only; exactly one entry per (connection, entity, vendor
// field) carries the current flag, and every revision lands as a new version
// guarded by compare-and-swap on the superseded row.
package registry

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// TransformKind names the transform applied when materializing a field.
type TransformKind string

// Supported mapping transforms. Drop retires a lineage without deleting
// its history; the materializer skips dropped entries.
const (
	TransformDirect     TransformKind = "direct"
	TransformRename     TransformKind = "rename"
	TransformCastNumber TransformKind = "cast_number"
	TransformCastString TransformKind = "cast_string"
	TransformCastBool   TransformKind = "cast_bool"
	TransformCastTime   TransformKind = "cast_time"
	TransformDrop       TransformKind = "drop"
)

// Valid reports whether the transform kind is one of the supported values.
func (t TransformKind) Valid() bool {
	switch t {
	case TransformDirect, TransformRename, TransformCastNumber,
		TransformCastString, TransformCastBool, TransformCastTime, TransformDrop:
		return true
	}
	return false
}

// Entry is one version of a vendor-to-canonical field mapping.
type Entry struct {
	ID             uuid.UUID     `json:"id"`
	ConnectionID   uuid.UUID     `json:"connection_id"`
	Entity         string        `json:"entity"`
	VendorField    string        `json:"vendor_field"`
	CanonicalField string        `json:"canonical_field"`
	Transform      TransformKind `json:"transform"`
	DeclaredType   string        `json:"declared_type"`
	Confidence     float64       `json:"confidence"`
	Validated      bool          `json:"validated"`
	Version        int           `json:"version"`
	Current        bool          `json:"current"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Retired reports whether this entry tombstones its lineage.
func (e *Entry) Retired() bool {
	return e.Transform == TransformDrop
}

// ApplyCommand describes one registry revision. When PrevVendorField is set,
// the current entry for that field at PrevVersion is superseded in the same
// transaction; a stale PrevVersion fails with ErrVersionConflict. An empty
// PrevVendorField starts a new lineage at version 1.
type ApplyCommand struct {
	ConnectionID    uuid.UUID     `json:"connection_id"`
	Entity          string        `json:"entity"`
	PrevVendorField string        `json:"prev_vendor_field,omitempty"`
	PrevVersion     int           `json:"prev_version,omitempty"`
	VendorField     string        `json:"vendor_field"`
	CanonicalField  string        `json:"canonical_field"`
	Transform       TransformKind `json:"transform"`
	DeclaredType    string        `json:"declared_type"`
	Confidence      float64       `json:"confidence"`
	Validated       bool          `json:"validated"`
}

// JoinRef records that a mapped field participates in a cross-entity join.
// Fields with join references never auto-apply.
type JoinRef struct {
	ID           uuid.UUID `json:"id"`
	ConnectionID uuid.UUID `json:"connection_id"`
	Entity       string    `json:"entity"`
	Field        string    `json:"field"`
	RefEntity    string    `json:"ref_entity"`
	RefField     string    `json:"ref_field"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditEntry is one append-only audit log record.
type AuditEntry struct {
	ID           uuid.UUID `json:"id"`
	ConnectionID uuid.UUID `json:"connection_id"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	Detail       string    `json:"detail"`
	CreatedAt    time.Time `json:"created_at"`
}

const maxIdentifierBytes = 63

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is a legal field or entity
// identifier: leading letter or underscore, alphanumerics and underscores,
// at most 63 bytes.
func ValidIdentifier(name string) bool {
	return len(name) <= maxIdentifierBytes && identifierPattern.MatchString(name)
}
