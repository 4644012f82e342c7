package drift_test

import (
	"reflect"
	"testing"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/drift"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
	"github.com/ilyacantor/autonomos-platform-sub005/internal/vendors"
)

func newDetector() *drift.Detector {
	return drift.NewDetector(0.6, 0.5)
}

func mapped(field string, ft vendors.FieldType) registry.Entry {
	return registry.Entry{
		VendorField:    field,
		CanonicalField: field,
		Transform:      registry.TransformDirect,
		DeclaredType:   string(ft),
		Current:        true,
	}
}

func snapshot(fields map[string]vendors.FieldType) *vendors.TableSchema {
	return &vendors.TableSchema{Entity: "accounts", Fields: fields}
}

func TestDetectNoDrift(t *testing.T) {
	entries := []registry.Entry{
		mapped("name", vendors.TypeString),
		mapped("amount", vendors.TypeNumber),
	}
	schema := snapshot(map[string]vendors.FieldType{
		"name":   vendors.TypeString,
		"amount": vendors.TypeNumber,
	})

	got := newDetector().Detect(entries, schema)
	if len(got) != 0 {
		t.Errorf("Detect returned %d candidates, want 0", len(got))
	}
}

func TestDetectAddition(t *testing.T) {
	entries := []registry.Entry{mapped("name", vendors.TypeString)}
	schema := snapshot(map[string]vendors.FieldType{
		"name":       vendors.TypeString,
		"created_on": vendors.TypeTime,
	})

	got := newDetector().Detect(entries, schema)
	if len(got) != 1 {
		t.Fatalf("Detect returned %d candidates, want 1", len(got))
	}
	if got[0].Kind != drift.KindFieldAdded {
		t.Errorf("Kind = %s, want %s", got[0].Kind, drift.KindFieldAdded)
	}
	if got[0].Field != "created_on" {
		t.Errorf("Field = %s, want created_on", got[0].Field)
	}
	if got[0].ObservedType != vendors.TypeTime {
		t.Errorf("ObservedType = %s, want %s", got[0].ObservedType, vendors.TypeTime)
	}
}

func TestDetectRemoval(t *testing.T) {
	entries := []registry.Entry{
		mapped("name", vendors.TypeString),
		mapped("fax", vendors.TypeString),
	}
	schema := snapshot(map[string]vendors.FieldType{
		"name": vendors.TypeString,
	})

	got := newDetector().Detect(entries, schema)
	if len(got) != 1 {
		t.Fatalf("Detect returned %d candidates, want 1", len(got))
	}
	if got[0].Kind != drift.KindFieldRemoved {
		t.Errorf("Kind = %s, want %s", got[0].Kind, drift.KindFieldRemoved)
	}
	if got[0].Field != "fax" {
		t.Errorf("Field = %s, want fax", got[0].Field)
	}
}

func TestDetectRenameByEditSimilarity(t *testing.T) {
	entries := []registry.Entry{mapped("acct_name", vendors.TypeString)}
	schema := snapshot(map[string]vendors.FieldType{
		"account_name": vendors.TypeString,
	})

	got := newDetector().Detect(entries, schema)
	if len(got) != 1 {
		t.Fatalf("Detect returned %d candidates, want 1", len(got))
	}
	if got[0].Kind != drift.KindFieldRenamed {
		t.Fatalf("Kind = %s, want %s", got[0].Kind, drift.KindFieldRenamed)
	}
	if got[0].Field != "acct_name" {
		t.Errorf("Field = %s, want acct_name", got[0].Field)
	}
	if got[0].Counterpart != "account_name" {
		t.Errorf("Counterpart = %s, want account_name", got[0].Counterpart)
	}
	if got[0].Similarity <= 0 {
		t.Errorf("Similarity = %f, want > 0", got[0].Similarity)
	}
}

func TestDetectRenameByTokenOverlap(t *testing.T) {
	entries := []registry.Entry{mapped("email", vendors.TypeString)}
	schema := snapshot(map[string]vendors.FieldType{
		"email_address": vendors.TypeString,
	})

	got := newDetector().Detect(entries, schema)
	if len(got) != 1 || got[0].Kind != drift.KindFieldRenamed {
		t.Fatalf("candidates = %+v, want single rename", got)
	}
}

func TestDetectIncompatibleTypesNeverPair(t *testing.T) {
	entries := []registry.Entry{mapped("amount", vendors.TypeNumber)}
	schema := snapshot(map[string]vendors.FieldType{
		"amount_total": vendors.TypeBool,
	})

	got := newDetector().Detect(entries, schema)
	if len(got) != 2 {
		t.Fatalf("Detect returned %d candidates, want removal + addition", len(got))
	}
	for _, c := range got {
		if c.Kind == drift.KindFieldRenamed {
			t.Errorf("incompatible types paired as rename: %+v", c)
		}
	}
}

func TestDetectUnrelatedNamesNeverPair(t *testing.T) {
	entries := []registry.Entry{mapped("phone", vendors.TypeString)}
	schema := snapshot(map[string]vendors.FieldType{
		"revenue": vendors.TypeString,
	})

	got := newDetector().Detect(entries, schema)
	if len(got) != 2 {
		t.Fatalf("Detect returned %d candidates, want 2", len(got))
	}
}

func TestDetectIgnoresRetiredEntries(t *testing.T) {
	retired := mapped("legacy_code", vendors.TypeString)
	retired.Transform = registry.TransformDrop

	entries := []registry.Entry{retired, mapped("name", vendors.TypeString)}
	schema := snapshot(map[string]vendors.FieldType{
		"name": vendors.TypeString,
	})

	got := newDetector().Detect(entries, schema)
	if len(got) != 0 {
		t.Errorf("retired entry surfaced drift: %+v", got)
	}
}

func TestDetectDeterministicOrder(t *testing.T) {
	entries := []registry.Entry{
		mapped("alpha", vendors.TypeString),
		mapped("beta", vendors.TypeString),
	}
	schema := snapshot(map[string]vendors.FieldType{
		"gamma": vendors.TypeString,
		"delta": vendors.TypeNumber,
		"omega": vendors.TypeBool,
	})

	d := newDetector()
	first := d.Detect(entries, schema)
	for range 10 {
		if next := d.Detect(entries, schema); !reflect.DeepEqual(first, next) {
			t.Fatalf("Detect order unstable:\nfirst = %+v\nnext  = %+v", first, next)
		}
	}
}

func TestRenameCandidate(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		oldType  vendors.FieldType
		newType  vendors.FieldType
		want     bool
	}{
		{"close edit distance", "acct_name", "account_name", vendors.TypeString, vendors.TypeString, true},
		{"token overlap", "email", "email_address", vendors.TypeString, vendors.TypeString, true},
		{"identical", "name", "name", vendors.TypeString, vendors.TypeString, true},
		{"unrelated names", "phone", "revenue", vendors.TypeString, vendors.TypeString, false},
		{"incompatible types", "amount", "amount_total", vendors.TypeNumber, vendors.TypeBool, false},
		{"string absorbs number", "count", "count_total", vendors.TypeNumber, vendors.TypeString, true},
	}

	d := newDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.RenameCandidate(tt.old, tt.new, tt.oldType, tt.newType)
			if got != tt.want {
				t.Errorf("RenameCandidate(%s, %s) = %v, want %v", tt.old, tt.new, got, tt.want)
			}
		})
	}
}
