package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecordAccessorsTolerateMissingFields(t *testing.T) {
	record := Record{
		"name":    "Core Deposits",
		"tags":    []any{"deposits", "retail"},
		"count":   12,
		"active":  true,
		"nothing": nil,
	}

	if _, ok := record.Lookup("missing"); ok {
		t.Fatalf("expected missing field to report not ok")
	}
	if _, ok := record.Lookup("nothing"); ok {
		t.Fatalf("expected nil field to report not ok")
	}
	if got := record.Text("missing"); got != "" {
		t.Fatalf("expected empty text for missing field, got %q", got)
	}
	if got := record.Text("tags"); got != "deposits; retail" {
		t.Fatalf("unexpected joined tags %q", got)
	}
	if got, ok := record.Float("count"); !ok || got != 12 {
		t.Fatalf("expected count 12, got %v (ok=%v)", got, ok)
	}
	tags, ok := record.Strings("tags")
	if !ok {
		t.Fatalf("expected tags to be present")
	}
	if diff := cmp.Diff([]string{"deposits", "retail"}, tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
	if !record.IsArray("tags") || record.IsArray("name") {
		t.Fatalf("IsArray misreported field shapes")
	}
}

func TestRecordPresent(t *testing.T) {
	record := Record{
		"bronzeTable": "bronze.deposit_accounts",
		"silverTable": "",
		"rules":       []any{},
	}
	cases := map[string]bool{
		"bronzeTable": true,
		"silverTable": false,
		"rules":       false,
		"goldTable":   false,
	}
	for field, want := range cases {
		if got := record.Present(field); got != want {
			t.Errorf("Present(%q) = %v, want %v", field, got, want)
		}
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	original := Record{
		"meta": map[string]any{"owner": "data-office"},
		"tags": []any{"a"},
	}
	clone := original.Clone()
	clone["meta"].(map[string]any)["owner"] = "changed"
	clone["tags"].([]any)[0] = "changed"

	if original["meta"].(map[string]any)["owner"] != "data-office" {
		t.Fatalf("clone shares nested map with original")
	}
	if original["tags"].([]any)[0] != "a" {
		t.Fatalf("clone shares nested slice with original")
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{name: "nil", value: nil, want: ""},
		{name: "string", value: "x", want: "x"},
		{name: "int", value: 42, want: "42"},
		{name: "float", value: 1.5, want: "1.5"},
		{name: "whole float", value: float64(3), want: "3"},
		{name: "bool", value: false, want: "false"},
		{name: "strings", value: []string{"a", "b"}, want: "a; b"},
		{name: "map", value: map[string]any{"k": "v"}, want: `{"k":"v"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatValue(tc.value); got != tc.want {
				t.Fatalf("FormatValue(%v) = %q, want %q", tc.value, got, tc.want)
			}
		})
	}
}

func TestUnionKeys(t *testing.T) {
	got := UnionKeys([]Record{{"b": 1, "a": 2}, {"c": 3, "a": 4}})
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestWithExtension(t *testing.T) {
	if got := WithExtension("mappings", ".csv"); got != "mappings.csv" {
		t.Fatalf("unexpected %q", got)
	}
	if got := WithExtension("mappings.CSV", ".csv"); got != "mappings.CSV" {
		t.Fatalf("unexpected %q", got)
	}
	if got := WithExtension("  ", ".json"); got != "export.json" {
		t.Fatalf("unexpected %q", got)
	}
}
