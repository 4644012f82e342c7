package registry_test

import (
	"strings"
	"testing"

	"github.com/ilyacantor/autonomos-platform-sub005/internal/registry"
)

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"simple", "account_name", true},
		{"leading underscore", "_internal", true},
		{"mixed case", "AccountName", true},
		{"digits", "field_2", true},
		{"empty", "", false},
		{"leading digit", "2field", false},
		{"hyphen", "account-name", false},
		{"space", "account name", false},
		{"sql injection", "name; DROP TABLE", false},
		{"max length", strings.Repeat("a", 63), true},
		{"over max length", strings.Repeat("a", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := registry.ValidIdentifier(tt.in); got != tt.want {
				t.Errorf("ValidIdentifier(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransformKindValid(t *testing.T) {
	valid := []registry.TransformKind{
		registry.TransformDirect,
		registry.TransformRename,
		registry.TransformCastNumber,
		registry.TransformCastString,
		registry.TransformCastBool,
		registry.TransformCastTime,
		registry.TransformDrop,
	}
	for _, k := range valid {
		if !k.Valid() {
			t.Errorf("%s reported invalid", k)
		}
	}

	if registry.TransformKind("uppercase").Valid() {
		t.Error("unknown transform reported valid")
	}
}

func TestEntryRetired(t *testing.T) {
	live := registry.Entry{Transform: registry.TransformDirect}
	if live.Retired() {
		t.Error("direct entry reported retired")
	}

	dropped := registry.Entry{Transform: registry.TransformDrop}
	if !dropped.Retired() {
		t.Error("dropped entry not reported retired")
	}
}
