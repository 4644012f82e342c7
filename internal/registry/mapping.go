package registry

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/query"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "mapping_entries", "m").
	Project("id", "ID").
	Project("connection_id", "ConnectionID").
	Project("entity", "Entity").
	Project("vendor_field", "VendorField").
	Project("canonical_field", "CanonicalField").
	Project("transform", "Transform").
	Project("declared_type", "DeclaredType").
	Project("confidence", "Confidence").
	Project("validated", "Validated").
	Project("version", "Version").
	Project("current", "Current").
	Project("created_at", "CreatedAt")

var defaultSort = []query.SortField{
	{Field: "VendorField"},
	{Field: "Version", Descending: true},
}

// Filters contains optional filtering criteria for mapping queries.
// Nil fields are ignored.
type Filters struct {
	ConnectionID *uuid.UUID `json:"connection_id,omitempty"`
	Entity       *string    `json:"entity,omitempty"`
	VendorField  *string    `json:"vendor_field,omitempty"`
	Current      *bool      `json:"current,omitempty"`
	Validated    *bool      `json:"validated,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ConnectionID", f.ConnectionID).
		WhereEquals("Entity", f.Entity).
		WhereEquals("VendorField", f.VendorField).
		WhereEquals("Current", f.Current).
		WhereEquals("Validated", f.Validated)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if cid := values.Get("connection_id"); cid != "" {
		if id, err := uuid.Parse(cid); err == nil {
			f.ConnectionID = &id
		}
	}

	if e := values.Get("entity"); e != "" {
		f.Entity = &e
	}

	if vf := values.Get("vendor_field"); vf != "" {
		f.VendorField = &vf
	}

	if c := values.Get("current"); c != "" {
		v := c == "true"
		f.Current = &v
	}

	if vd := values.Get("validated"); vd != "" {
		v := vd == "true"
		f.Validated = &v
	}

	return f
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var e Entry
	err := s.Scan(
		&e.ID,
		&e.ConnectionID,
		&e.Entity,
		&e.VendorField,
		&e.CanonicalField,
		&e.Transform,
		&e.DeclaredType,
		&e.Confidence,
		&e.Validated,
		&e.Version,
		&e.Current,
		&e.CreatedAt,
	)
	return e, err
}

func scanJoinRef(s repository.Scanner) (JoinRef, error) {
	var j JoinRef
	err := s.Scan(
		&j.ID,
		&j.ConnectionID,
		&j.Entity,
		&j.Field,
		&j.RefEntity,
		&j.RefField,
		&j.CreatedAt,
	)
	return j, err
}

func scanAudit(s repository.Scanner) (AuditEntry, error) {
	var a AuditEntry
	err := s.Scan(
		&a.ID,
		&a.ConnectionID,
		&a.Actor,
		&a.Action,
		&a.Detail,
		&a.CreatedAt,
	)
	return a, err
}
