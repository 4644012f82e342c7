// Package vendors defines the vendor source adapter contract and the
// registry that selects an adapter implementation from connection metadata.
// Each vendor (CRM, relational, file) implements the same capability
// interface: validate configuration, test connectivity, fetch a schema
// snapshot, fetch raw records, and report health.
package vendors

import (
	"context"
)

// FieldType is a vendor-neutral declared type for a schema field.
type FieldType string

// Declared field types shared across all vendor adapters.
const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "boolean"
	TypeTime   FieldType = "datetime"
	TypeJSON   FieldType = "json"
	TypeID     FieldType = "id"
)

// TableSchema is one snapshot of a vendor entity's fields and declared types.
type TableSchema struct {
	Entity string               `json:"entity"`
	Fields map[string]FieldType `json:"fields"`
}

// Has reports whether the schema declares the given field.
func (s *TableSchema) Has(field string) bool {
	_, ok := s.Fields[field]
	return ok
}

// Record is one raw vendor record keyed by vendor field name.
type Record map[string]any

// Adapter is the capability contract every vendor source implements.
type Adapter interface {
	// Vendor returns the adapter's vendor identifier.
	Vendor() string
	// Validate checks the adapter's configuration without performing I/O.
	Validate() error
	// Test verifies connectivity to the vendor source.
	Test(ctx context.Context) error
	// FetchSchema returns a fresh schema snapshot for the entity.
	FetchSchema(ctx context.Context, entity string) (*TableSchema, error)
	// FetchRecords returns the raw records for the entity.
	FetchRecords(ctx context.Context, entity string) ([]Record, error)
	// Health reports whether the source is currently reachable.
	Health(ctx context.Context) error
}

// Mutator is implemented by adapters whose source schema can be changed
// in place. Used to inject synthetic drift into demo sources.
type Mutator interface {
	AddField(ctx context.Context, entity, field string, ft FieldType) error
	RemoveField(ctx context.Context, entity, field string) error
	RenameField(ctx context.Context, entity, oldField, newField string) error
}

// Factory constructs an Adapter from connection configuration.
type Factory func(cfg map[string]string) (Adapter, error)

// Registry selects adapter factories by vendor identifier.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(VendorFile, NewFileAdapter)
	r.Register(VendorPostgres, NewPostgresAdapter)
	r.Register(VendorSalesforce, NewSalesforceAdapter)
	return r
}

// Register adds or replaces the factory for a vendor identifier.
func (r *Registry) Register(vendor string, f Factory) {
	r.factories[vendor] = f
}

// Open constructs and validates an adapter for the vendor.
func (r *Registry) Open(vendor string, cfg map[string]string) (Adapter, error) {
	f, ok := r.factories[vendor]
	if !ok {
		return nil, ErrUnknownVendor
	}

	a, err := f(cfg)
	if err != nil {
		return nil, err
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

// Vendor identifiers for the built-in adapters.
const (
	VendorFile       = "file"
	VendorPostgres   = "postgres"
	VendorSalesforce = "salesforce"
)
