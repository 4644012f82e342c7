package drift

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/query"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "drift_events", "e").
	Project("id", "ID").
	Project("connection_id", "ConnectionID").
	Project("entity", "Entity").
	Project("field", "Field").
	Project("counterpart", "Counterpart").
	Project("kind", "Kind").
	Project("observed_type", "ObservedType").
	Project("status", "Status").
	Project("detected_at", "DetectedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "DetectedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for drift event queries.
// Nil fields are ignored.
type Filters struct {
	ConnectionID *uuid.UUID `json:"connection_id,omitempty"`
	Entity       *string    `json:"entity,omitempty"`
	Kind         *string    `json:"kind,omitempty"`
	Status       *string    `json:"status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ConnectionID", f.ConnectionID).
		WhereEquals("Entity", f.Entity).
		WhereEquals("Kind", f.Kind).
		WhereEquals("Status", f.Status)
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

	if k := values.Get("kind"); k != "" {
		f.Kind = &k
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	return f
}

func scanEvent(s repository.Scanner) (Event, error) {
	var e Event
	err := s.Scan(
		&e.ID,
		&e.ConnectionID,
		&e.Entity,
		&e.Field,
		&e.Counterpart,
		&e.Kind,
		&e.ObservedType,
		&e.Status,
		&e.DetectedAt,
		&e.UpdatedAt,
	)
	return e, err
}
