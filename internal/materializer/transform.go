package materializer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
)

// transformRecord pushes one raw vendor record through the mapping set.
// Absent or null vendor values are omitted from the canonical record; a
// coercion failure poisons the whole record so partial rows never land in
// the canonical view.
func transformRecord(record map[string]any, entries []registry.Entry) (map[string]any, error) {
	data := make(map[string]any, len(entries))

	for _, entry := range entries {
		if entry.Retired() {
			continue
		}

		raw, ok := record[entry.VendorField]
		if !ok || raw == nil {
			continue
		}

		value, err := coerce(raw, entry.Transform)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", entry.VendorField, err)
		}

		data[entry.CanonicalField] = value
	}

	return data, nil
}

func coerce(value any, transform registry.TransformKind) (any, error) {
	switch transform {
	case registry.TransformDirect, registry.TransformRename:
		return value, nil
	case registry.TransformCastNumber:
		return coerceNumber(value)
	case registry.TransformCastString:
		return coerceString(value)
	case registry.TransformCastBool:
		return coerceBool(value)
	case registry.TransformCastTime:
		return coerceTime(value)
	default:
		return nil, fmt.Errorf("unknown transform %q", transform)
	}
}

func coerceNumber(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return float64(1), nil
		}
		return float64(0), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to number", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to number", value)
	}
}

func coerceString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func coerceBool(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("cannot coerce %q to bool", v)
	default:
		return nil, fmt.Errorf("cannot coerce %T to bool", value)
	}
}

// coerceTime normalizes to RFC 3339 UTC. Numbers are taken as unix seconds.
func coerceTime(value any) (any, error) {
	switch v := value.(type) {
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC().Format(time.RFC3339), nil
			}
		}
		return nil, fmt.Errorf("cannot coerce %q to time", v)
	case float64:
		return time.Unix(int64(v), 0).UTC().Format(time.RFC3339), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to time", value)
	}
}
