package vendors

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// postgresAdapter introspects a relational source through information_schema
// and reads records with a plain SELECT. The source database is external to
// the platform; the adapter opens its own connection from cfg["dsn"].
type postgresAdapter struct {
	dsn    string
	schema string
}

// NewPostgresAdapter creates an adapter from cfg["dsn"] and optional
// cfg["schema"] (defaults to public).
func NewPostgresAdapter(cfg map[string]string) (Adapter, error) {
	schema := cfg["schema"]
	if schema == "" {
		schema = "public"
	}
	return &postgresAdapter{dsn: cfg["dsn"], schema: schema}, nil
}

func (p *postgresAdapter) Vendor() string {
	return VendorPostgres
}

func (p *postgresAdapter) Validate() error {
	if p.dsn == "" {
		return fmt.Errorf("%w: postgres adapter requires dsn", ErrInvalidConfig)
	}
	return nil
}

func (p *postgresAdapter) open() (*sql.DB, error) {
	db, err := sql.Open("pgx", p.dsn)
	if err != nil {
		return nil, NewFetchError(VendorPostgres, "open", err)
	}
	return db, nil
}

func (p *postgresAdapter) Test(ctx context.Context) error {
	db, err := p.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return NewFetchError(VendorPostgres, "ping", err)
	}
	return nil
}

func (p *postgresAdapter) Health(ctx context.Context) error {
	return p.Test(ctx)
}

func (p *postgresAdapter) FetchSchema(ctx context.Context, entity string) (*TableSchema, error) {
	db, err := p.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`,
		p.schema, entity,
	)
	if err != nil {
		return nil, NewFetchError(VendorPostgres, "fetch schema", err)
	}
	defer rows.Close()

	fields := make(map[string]FieldType)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		fields[name] = mapPostgresType(dataType)
	}
	if err := rows.Err(); err != nil {
		return nil, NewFetchError(VendorPostgres, "fetch schema", err)
	}

	if len(fields) == 0 {
		return nil, NewFetchError(VendorPostgres, "fetch schema",
			fmt.Errorf("table %s.%s has no columns", p.schema, entity))
	}

	return &TableSchema{Entity: entity, Fields: fields}, nil
}

func (p *postgresAdapter) FetchRecords(ctx context.Context, entity string) ([]Record, error) {
	// Verifies the table exists before interpolating identifiers into the
	// SELECT; identifiers cannot be parameterized.
	if _, err := p.FetchSchema(ctx, entity); err != nil {
		return nil, err
	}

	db, err := p.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT row_to_json(t) FROM %q.%q t`, p.schema, entity,
	))
	if err != nil {
		return nil, NewFetchError(VendorPostgres, "fetch records", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, NewFetchError(VendorPostgres, "fetch records", err)
	}

	return records, nil
}

func mapPostgresType(dataType string) FieldType {
	switch dataType {
	case "integer", "bigint", "smallint", "numeric", "real", "double precision":
		return TypeNumber
	case "boolean":
		return TypeBool
	case "timestamp without time zone", "timestamp with time zone", "date":
		return TypeTime
	case "json", "jsonb":
		return TypeJSON
	case "uuid":
		return TypeID
	default:
		return TypeString
	}
}
