package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// fileAdapter serves schemas and records from a local directory. Each entity
// is a pair of files: <entity>.schema.json and <entity>.records.json. Used
// for demo connections and deterministic tests.
type fileAdapter struct {
	dir string
}

// NewFileAdapter creates an adapter reading from cfg["dir"].
func NewFileAdapter(cfg map[string]string) (Adapter, error) {
	return &fileAdapter{dir: cfg["dir"]}, nil
}

func (f *fileAdapter) Vendor() string {
	return VendorFile
}

func (f *fileAdapter) Validate() error {
	if f.dir == "" {
		return fmt.Errorf("%w: file adapter requires dir", ErrInvalidConfig)
	}
	return nil
}

func (f *fileAdapter) Test(ctx context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return NewFetchError(VendorFile, "test", err)
	}
	if !info.IsDir() {
		return NewFetchError(VendorFile, "test", fmt.Errorf("%s is not a directory", f.dir))
	}
	return nil
}

func (f *fileAdapter) Health(ctx context.Context) error {
	return f.Test(ctx)
}

func (f *fileAdapter) FetchSchema(ctx context.Context, entity string) (*TableSchema, error) {
	path := filepath.Join(f.dir, entity+".schema.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewFetchError(VendorFile, "fetch schema", err)
	}

	var schema TableSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}

	if schema.Entity == "" {
		schema.Entity = entity
	}

	return &schema, nil
}

func (f *fileAdapter) FetchRecords(ctx context.Context, entity string) ([]Record, error) {
	path := filepath.Join(f.dir, entity+".records.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewFetchError(VendorFile, "fetch records", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse records %s: %w", path, err)
	}

	return records, nil
}

// AddField introduces a new schema field and backfills records with a
// type-appropriate zero value.
func (f *fileAdapter) AddField(ctx context.Context, entity, field string, ft FieldType) error {
	return f.mutate(ctx, entity, func(schema *TableSchema, records []Record) {
		schema.Fields[field] = ft
		for _, rec := range records {
			rec[field] = zeroValue(ft)
		}
	})
}

// RemoveField drops a schema field and strips it from records.
func (f *fileAdapter) RemoveField(ctx context.Context, entity, field string) error {
	return f.mutate(ctx, entity, func(schema *TableSchema, records []Record) {
		delete(schema.Fields, field)
		for _, rec := range records {
			delete(rec, field)
		}
	})
}

// RenameField moves a schema field and its record values to a new name.
func (f *fileAdapter) RenameField(ctx context.Context, entity, oldField, newField string) error {
	return f.mutate(ctx, entity, func(schema *TableSchema, records []Record) {
		if ft, ok := schema.Fields[oldField]; ok {
			delete(schema.Fields, oldField)
			schema.Fields[newField] = ft
		}
		for _, rec := range records {
			if v, ok := rec[oldField]; ok {
				delete(rec, oldField)
				rec[newField] = v
			}
		}
	})
}

func (f *fileAdapter) mutate(
	ctx context.Context,
	entity string,
	apply func(*TableSchema, []Record),
) error {
	schema, err := f.FetchSchema(ctx, entity)
	if err != nil {
		return err
	}

	records, err := f.FetchRecords(ctx, entity)
	if err != nil {
		return err
	}

	apply(schema, records)

	if err := writeJSON(filepath.Join(f.dir, entity+".schema.json"), schema); err != nil {
		return err
	}
	return writeJSON(filepath.Join(f.dir, entity+".records.json"), records)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func zeroValue(ft FieldType) any {
	switch ft {
	case TypeNumber:
		return 0
	case TypeBool:
		return false
	case TypeJSON:
		return map[string]any{}
	default:
		return ""
	}
}
