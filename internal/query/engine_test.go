package query

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rpattn/medallion-catalog/internal/domain"
)

func mappingRecords() []domain.Record {
	return []domain.Record{
		{"sourceSystem": "FIS", "transformationType": "direct", "sourceField": "ACCT_NBR", "bronzeTable": "bronze.accounts", "silverTable": "silver.account", "businessDefinition": "Account number"},
		{"sourceSystem": "FIS", "transformationType": "derived", "sourceField": "CUR_BAL", "bronzeTable": "bronze.balances", "businessDefinition": "Current ledger balance"},
		{"sourceSystem": "Temenos", "transformationType": "direct", "sourceField": "CUST_ID", "bronzeTable": "bronze.customers", "silverTable": "silver.customer", "goldTable": "gold.dim_customer", "businessDefinition": "Customer identifier"},
		{"sourceSystem": "Fiserv", "transformationType": "lookup", "sourceField": "BR_CODE", "businessDefinition": "Branch code"},
	}
}

func newMappingEngine() *Engine {
	return New(mappingRecords(),
		WithFacets(
			domain.Facet{Name: "sourceSystem"},
			domain.Facet{Name: "transformationType"},
			domain.Facet{Name: "layer", Kind: domain.FacetKindPresence, Values: map[string]string{
				"bronze": "bronzeTable",
				"silver": "silverTable",
				"gold":   "goldTable",
			}},
		),
		WithSearchFields("sourceField", "businessDefinition"),
	)
}

func fields(records []domain.Record, field string) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Text(field))
	}
	return out
}

func TestFilteredRecordsIsIdempotent(t *testing.T) {
	engine := newMappingEngine()
	engine.SetFilter("sourceSystem", "FIS")
	engine.SetSearchTerm("bal")

	first := engine.FilteredRecords()
	second := engine.FilteredRecords()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("consecutive reads differ (-first +second):\n%s", diff)
	}
	if len(first) != 1 {
		t.Fatalf("expected one record, got %d", len(first))
	}
}

func TestFilterMonotonicity(t *testing.T) {
	engine := newMappingEngine()
	engine.SetFilter("transformationType", "direct")
	broader := engine.FilteredRecords()

	engine.SetFilter("sourceSystem", "FIS")
	narrower := engine.FilteredRecords()

	if len(narrower) > len(broader) {
		t.Fatalf("adding a constraint grew the view: %d > %d", len(narrower), len(broader))
	}
	broadSet := make(map[string]bool)
	for _, r := range broader {
		broadSet[r.Text("sourceField")] = true
	}
	for _, r := range narrower {
		if !broadSet[r.Text("sourceField")] {
			t.Fatalf("record %s is not in the broader view", r.Text("sourceField"))
		}
	}
}

func TestFacetsCombineWithAnd(t *testing.T) {
	records := []domain.Record{
		{"sys": "A", "type": "X"},
		{"sys": "A", "type": "Y"},
		{"sys": "B", "type": "X"},
	}
	engine := New(records)
	engine.SetFilter("sys", "A")
	engine.SetFilter("type", "X")

	want := []domain.Record{{"sys": "A", "type": "X"}}
	if diff := cmp.Diff(want, engine.FilteredRecords()); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestSearchMatchesAnyField(t *testing.T) {
	records := []domain.Record{
		{"a": "foo", "b": "bar"},
		{"a": "baz", "b": "qux"},
	}
	engine := New(records, WithSearchFields("a", "b"))
	engine.SetSearchTerm("bar")

	want := []domain.Record{{"a": "foo", "b": "bar"}}
	if diff := cmp.Diff(want, engine.FilteredRecords()); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	engine := New([]domain.Record{{"name": "food"}, {"name": "drink"}}, WithSearchFields("name"))
	engine.SetSearchTerm("FOO")

	got := fields(engine.FilteredRecords(), "name")
	if diff := cmp.Diff([]string{"food"}, got); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestAllSentinelIsNoop(t *testing.T) {
	engine := newMappingEngine()
	engine.SetSearchTerm("code")
	baseline := engine.FilteredRecords()

	engine.SetFilter("sourceSystem", domain.FilterAll)
	engine.SetFilter("layer", domain.FilterAll)
	if diff := cmp.Diff(baseline, engine.FilteredRecords()); diff != "" {
		t.Fatalf("all sentinel changed the view (-want +got):\n%s", diff)
	}

	engine.SetFilter("sourceSystem", "FIS")
	engine.SetFilter("sourceSystem", domain.FilterAll)
	if diff := cmp.Diff(baseline, engine.FilteredRecords()); diff != "" {
		t.Fatalf("resetting to all did not restore the view (-want +got):\n%s", diff)
	}
}

func TestEmptySearchMatchesEverything(t *testing.T) {
	engine := newMappingEngine()
	engine.SetSearchTerm("")
	if got := len(engine.FilteredRecords()); got != engine.Len() {
		t.Fatalf("expected %d records, got %d", engine.Len(), got)
	}
	engine.SetSearchTerm("   ")
	if got := len(engine.FilteredRecords()); got != engine.Len() {
		t.Fatalf("blank term filtered records: %d", got)
	}
}

func TestMissingSearchFieldDoesNotPanic(t *testing.T) {
	records := []domain.Record{
		{"name": "Net Interest Margin"},
		{"name": "Deposit Growth", "definition": "Growth in core deposits"},
		{},
		nil,
	}
	engine := New(records, WithSearchFields("name", "definition"))
	engine.SetSearchTerm("core")

	got := fields(engine.FilteredRecords(), "name")
	if diff := cmp.Diff([]string{"Deposit Growth"}, got); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestUnknownFacetFieldMatchesNothing(t *testing.T) {
	engine := newMappingEngine()
	engine.SetFilter("doesNotExist", "x")
	if got := engine.FilteredRecords(); len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}

	engine.ClearFilters()
	engine.SetFilter("layer", "platinum")
	if got := engine.FilteredRecords(); len(got) != 0 {
		t.Fatalf("expected unknown presence value to match nothing, got %d", len(got))
	}
}

func TestPresenceFacet(t *testing.T) {
	engine := newMappingEngine()
	engine.SetFilter("layer", "silver")

	got := fields(engine.FilteredRecords(), "sourceField")
	if diff := cmp.Diff([]string{"ACCT_NBR", "CUST_ID"}, got); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestArrayFieldFilterAndSearch(t *testing.T) {
	records := []domain.Record{
		{"name": "Deposits", "domains": []any{"retail", "commercial"}},
		{"name": "Cards", "domains": []string{"retail"}},
		{"name": "Treasury", "domains": []any{"wholesale"}},
	}
	engine := New(records, WithSearchFields("domains"))

	engine.SetFilter("domains", "commercial")
	if got := fields(engine.FilteredRecords(), "name"); !cmp.Equal([]string{"Deposits"}, got) {
		t.Fatalf("array membership filter returned %v", got)
	}

	engine.ClearFilters()
	engine.SetSearchTerm("ail; com")
	if got := fields(engine.FilteredRecords(), "name"); !cmp.Equal([]string{"Deposits"}, got) {
		t.Fatalf("joined array search returned %v", got)
	}
}

func TestScalarFilterUsesExactEquality(t *testing.T) {
	engine := New([]domain.Record{{"tier": "Gold"}, {"tier": "Gold Plus"}, {"tier": 1}})
	engine.SetFilter("tier", "Gold")
	if got := fields(engine.FilteredRecords(), "tier"); !cmp.Equal([]string{"Gold"}, got) {
		t.Fatalf("expected exact match only, got %v", got)
	}
	engine.SetFilter("tier", "1")
	if got := len(engine.FilteredRecords()); got != 1 {
		t.Fatalf("expected numeric value to compare by text, got %d", got)
	}
}

func TestSearchWithoutConfiguredFieldsScansAllFields(t *testing.T) {
	engine := New([]domain.Record{{"a": "alpha"}, {"b": "beta"}})
	engine.SetSearchTerm("BET")
	if got := fields(engine.FilteredRecords(), "b"); !cmp.Equal([]string{"beta"}, got) {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestFilteringDoesNotMutateInput(t *testing.T) {
	records := mappingRecords()
	before := make([]domain.Record, len(records))
	for i, r := range records {
		before[i] = r.Clone()
	}
	engine := New(records, WithSearchFields("sourceField"))
	engine.SetFilter("sourceSystem", "FIS")
	engine.SetSearchTerm("acct")
	engine.SetSort("sourceField", domain.SortDirectionDesc)
	_ = engine.FilteredRecords()
	_ = engine.ExportCSV(nil, "x")

	if diff := cmp.Diff(before, records); diff != "" {
		t.Fatalf("input records changed (-before +after):\n%s", diff)
	}
}

func TestSortOrdersView(t *testing.T) {
	records := []domain.Record{
		{"name": "b", "rank": 10},
		{"name": "a", "rank": 2},
		{"name": "c"},
		{"name": "D", "rank": 2.5},
	}
	engine := New(records)

	engine.SetSort("rank", domain.SortDirectionAsc)
	if got := fields(engine.FilteredRecords(), "name"); !cmp.Equal([]string{"a", "D", "b", "c"}, got) {
		t.Fatalf("numeric ascending sort returned %v", got)
	}
	engine.SetSort("rank", domain.SortDirectionDesc)
	if got := fields(engine.FilteredRecords(), "name"); !cmp.Equal([]string{"b", "D", "a", "c"}, got) {
		t.Fatalf("numeric descending sort returned %v", got)
	}
	engine.SetSort("name", domain.SortDirectionAsc)
	if got := fields(engine.FilteredRecords(), "name"); !cmp.Equal([]string{"a", "b", "c", "D"}, got) {
		t.Fatalf("case-folded text sort returned %v", got)
	}
	engine.SetSort("", domain.SortDirectionAsc)
	if got := fields(engine.FilteredRecords(), "name"); !cmp.Equal([]string{"b", "a", "c", "D"}, got) {
		t.Fatalf("clearing sort did not restore source order: %v", got)
	}
}

func TestPage(t *testing.T) {
	records := make([]domain.Record, 0, 7)
	for i := 0; i < 7; i++ {
		records = append(records, domain.Record{"n": fmt.Sprintf("%d", i)})
	}
	engine := New(records)

	result := engine.Page(domain.Page{Limit: 3, Offset: 3})
	if result.Total != 7 {
		t.Fatalf("expected total 7, got %d", result.Total)
	}
	if got := fields(result.Records, "n"); !cmp.Equal([]string{"3", "4", "5"}, got) {
		t.Fatalf("unexpected page %v", got)
	}
	if tail := engine.Page(domain.Page{Limit: 3, Offset: 6}); len(tail.Records) != 1 {
		t.Fatalf("expected one record on last page, got %d", len(tail.Records))
	}
	if past := engine.Page(domain.Page{Limit: 3, Offset: 20}); len(past.Records) != 0 || past.Total != 7 {
		t.Fatalf("unexpected page past the end: %+v", past)
	}
	if all := engine.Page(domain.Page{}); len(all.Records) != 7 {
		t.Fatalf("zero limit should return everything, got %d", len(all.Records))
	}
	huge := engine.Page(domain.Page{Limit: math.MaxInt, Offset: 1})
	if got := fields(huge.Records, "n"); !cmp.Equal([]string{"1", "2", "3", "4", "5", "6"}, got) {
		t.Fatalf("unexpected page for max limit %v", got)
	}
}

func TestStateRoundTrip(t *testing.T) {
	engine := newMappingEngine()
	engine.SetFilter("sourceSystem", "FIS")
	engine.SetSearchTerm("balance")
	engine.SetSort("sourceField", domain.SortDirectionDesc)
	state := engine.State()

	other := newMappingEngine()
	other.Apply(state)
	if diff := cmp.Diff(engine.FilteredRecords(), other.FilteredRecords()); diff != "" {
		t.Fatalf("applied state produced a different view:\n%s", diff)
	}

	state.Filters["sourceSystem"] = "Temenos"
	if engine.State().Filters["sourceSystem"] != "FIS" {
		t.Fatalf("State leaked internal filter map")
	}

	want := []domain.FilterSpec{{Field: "sourceSystem", Value: "FIS"}}
	if diff := cmp.Diff(want, engine.Filters()); diff != "" {
		t.Fatalf("unexpected filters (-want +got):\n%s", diff)
	}
}

func TestDistinctPreservesFirstSeenOrder(t *testing.T) {
	got := Distinct([]string{"B", "A", "B", "C", "A"})
	if diff := cmp.Diff([]string{"B", "A", "C"}, got); diff != "" {
		t.Fatalf("unexpected distinct values (-want +got):\n%s", diff)
	}
}

func TestDistinctValues(t *testing.T) {
	engine := newMappingEngine()
	got := engine.DistinctValues("sourceSystem")
	if diff := cmp.Diff([]string{"FIS", "Temenos", "Fiserv"}, got); diff != "" {
		t.Fatalf("unexpected values (-want +got):\n%s", diff)
	}
	if got := engine.DistinctValues("missing"); len(got) != 0 {
		t.Fatalf("expected no values for a missing field, got %v", got)
	}
}

func TestFacetValuesCountsIgnoreOwnFacet(t *testing.T) {
	engine := newMappingEngine()
	engine.SetFilter("sourceSystem", "FIS")
	engine.SetFilter("transformationType", "direct")

	want := []FacetValue{
		{Value: "FIS", Count: 1},
		{Value: "Temenos", Count: 1},
		{Value: "Fiserv", Count: 0},
	}
	if diff := cmp.Diff(want, engine.FacetValues("sourceSystem")); diff != "" {
		t.Fatalf("unexpected facet values (-want +got):\n%s", diff)
	}

	engine.ClearFilters()
	wantLayers := []FacetValue{
		{Value: "bronze", Count: 3},
		{Value: "gold", Count: 1},
		{Value: "silver", Count: 2},
	}
	if diff := cmp.Diff(wantLayers, engine.FacetValues("layer")); diff != "" {
		t.Fatalf("unexpected layer values (-want +got):\n%s", diff)
	}
}

func TestExportReflectsFilteredView(t *testing.T) {
	records := make([]domain.Record, 0, 10)
	for i := 0; i < 10; i++ {
		system := "FIS"
		if i%3 != 0 {
			system = "Temenos"
		}
		records = append(records, domain.Record{"id": fmt.Sprintf("r%d", i), "system": system})
	}
	engine := New(records)
	engine.SetFilter("system", "FIS")

	columns := []domain.ExportColumn{domain.FieldColumn("ID", "id"), domain.FieldColumn("System", "system")}
	file := engine.ExportCSV(columns, "mappings")
	if file.Filename != "mappings.csv" || file.Rows != 4 {
		t.Fatalf("unexpected export metadata %+v", file)
	}
	rows, err := csv.NewReader(bytes.NewReader(file.Content)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	wantRows := [][]string{{"ID", "System"}, {"r0", "FIS"}, {"r3", "FIS"}, {"r6", "FIS"}, {"r9", "FIS"}}
	if diff := cmp.Diff(wantRows, rows); diff != "" {
		t.Fatalf("csv rows mismatch (-want +got):\n%s", diff)
	}

	engine.SetFilter("id", "r3")
	jsonFile, err := engine.ExportJSON("mappings")
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(jsonFile.Content, &decoded); err != nil {
		t.Fatalf("decode json export: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["id"] != "r3" {
		t.Fatalf("json export does not match view: %v", decoded)
	}
	if !strings.Contains(string(jsonFile.Content), "\n  {") {
		t.Fatalf("expected two-space indentation:\n%s", jsonFile.Content)
	}
}

func TestExportXLSXAndDispatch(t *testing.T) {
	engine := newMappingEngine()
	engine.SetFilter("sourceSystem", "Temenos")

	for _, format := range []domain.ExportFormat{domain.ExportFormatCSV, domain.ExportFormatJSON, domain.ExportFormatXLSX} {
		file, err := engine.Export(format, nil, "temenos")
		if err != nil {
			t.Fatalf("Export(%s): %v", format, err)
		}
		if file.Rows != 1 {
			t.Fatalf("Export(%s) rows = %d, want 1", format, file.Rows)
		}
		if file.Filename != "temenos"+format.Extension() {
			t.Fatalf("Export(%s) filename = %s", format, file.Filename)
		}
	}
}
