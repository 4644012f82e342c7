package connections

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/ilyacantor/autonomos-platform-sub005/pkg/query"
	"github.com/ilyacantor/autonomos-platform-sub005/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "connections", "c").
	Project("id", "ID").
	Project("name", "Name").
	Project("vendor", "Vendor").
	Project("entity", "Entity").
	Project("config", "Config").
	Project("status", "Status").
	Project("cadence_calls", "CadenceCalls").
	Project("cadence_interval_seconds", "CadenceInterval").
	Project("calls_since_check", "CallsSinceCheck").
	Project("last_checked_at", "LastCheckedAt").
	Project("last_canonical_at", "LastCanonicalAt").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "Name"}

// Filters contains optional filtering criteria for connection queries.
// Nil fields are ignored.
type Filters struct {
	Status *string `json:"status,omitempty"`
	Vendor *string `json:"vendor,omitempty"`
	Name   *string `json:"name,omitempty"`
	Entity *string `json:"entity,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("Vendor", f.Vendor).
		WhereContains("Name", f.Name).
		WhereEquals("Entity", f.Entity)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if v := values.Get("vendor"); v != "" {
		f.Vendor = &v
	}

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if e := values.Get("entity"); e != "" {
		f.Entity = &e
	}

	return f
}

func scanConnection(s repository.Scanner) (Connection, error) {
	var (
		c               Connection
		config          []byte
		intervalSeconds int64
	)

	err := s.Scan(
		&c.ID,
		&c.Name,
		&c.Vendor,
		&c.Entity,
		&config,
		&c.Status,
		&c.CadenceCalls,
		&intervalSeconds,
		&c.CallsSinceCheck,
		&c.LastCheckedAt,
		&c.LastCanonicalAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}

	c.CadenceInterval = time.Duration(intervalSeconds) * time.Second

	if len(config) > 0 {
		if err := json.Unmarshal(config, &c.Config); err != nil {
			return c, err
		}
	}
	if c.Config == nil {
		c.Config = map[string]string{}
	}

	return c, nil
}
