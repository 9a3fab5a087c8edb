package query

import (
	"sort"

	"github.com/rpattn/medallion-catalog/internal/domain"
)

// Distinct returns values with duplicates removed, keeping first-seen order.
func Distinct[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DistinctValues lists the values of field across the whole collection in
// first-seen order, for populating facet pickers. Array fields contribute each
// element; records without the field are skipped.
func (e *Engine) DistinctValues(field string) []string {
	return distinctFieldValues(e.records, field)
}

func distinctFieldValues(records []domain.Record, field string) []string {
	values := make([]string, 0)
	for _, record := range records {
		if record.IsArray(field) {
			items, _ := record.Strings(field)
			values = append(values, items...)
			continue
		}
		if text, ok := record.String(field); ok {
			values = append(values, text)
		}
	}
	return Distinct(values)
}

// FacetValue is one option of a facet picker.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FacetValues lists the options of a facet with the number of records each
// would select, given every other active constraint. Equality facets list
// values in first-seen order; presence facets list their declared values
// alphabetically.
func (e *Engine) FacetValues(name string) []FacetValue {
	facet := e.facet(name)
	base := e.view(facet.Name)

	if facet.Kind == domain.FacetKindPresence {
		keys := make([]string, 0, len(facet.Values))
		for k := range facet.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]FacetValue, 0, len(keys))
		for _, k := range keys {
			match := facetPredicate(facet, k)
			count := 0
			for _, record := range base {
				if match(record) {
					count++
				}
			}
			out = append(out, FacetValue{Value: k, Count: count})
		}
		return out
	}

	values := distinctFieldValues(e.records, facet.Field)
	counts := make(map[string]int, len(values))
	for _, record := range base {
		if record.IsArray(facet.Field) {
			items, _ := record.Strings(facet.Field)
			for _, item := range Distinct(items) {
				counts[item]++
			}
			continue
		}
		if text, ok := record.String(facet.Field); ok {
			counts[text]++
		}
	}
	out := make([]FacetValue, 0, len(values))
	for _, v := range values {
		out = append(out, FacetValue{Value: v, Count: counts[v]})
	}
	return out
}
