package query

import (
	"strings"

	"github.com/rpattn/medallion-catalog/internal/domain"
)

type predicate func(domain.Record) bool

func matchesAll(record domain.Record, predicates []predicate) bool {
	for _, p := range predicates {
		if !p(record) {
			return false
		}
	}
	return true
}

func facetPredicate(facet domain.Facet, value string) predicate {
	switch facet.Kind {
	case domain.FacetKindPresence:
		field, ok := facet.Values[value]
		if !ok || field == "" {
			return func(domain.Record) bool { return false }
		}
		return func(r domain.Record) bool {
			return r.Present(field)
		}
	default:
		return func(r domain.Record) bool {
			return fieldEquals(r, facet.Field, value)
		}
	}
}

// fieldEquals compares a scalar field exactly against value. Array fields pass
// when any element equals value. Missing fields never match.
func fieldEquals(r domain.Record, field, value string) bool {
	if r.IsArray(field) {
		items, _ := r.Strings(field)
		for _, item := range items {
			if item == value {
				return true
			}
		}
		return false
	}
	text, ok := r.String(field)
	return ok && text == value
}

// searchPredicate matches term case-insensitively as a substring of any of the
// fields. Missing fields count as empty text; arrays are joined with
// domain.ArraySeparator. With no fields configured every field is searched.
func searchPredicate(fields []string, term string) predicate {
	needle := strings.ToLower(term)
	return func(r domain.Record) bool {
		searchIn := fields
		if len(searchIn) == 0 {
			searchIn = r.Keys()
		}
		for _, field := range searchIn {
			if strings.Contains(strings.ToLower(r.Text(field)), needle) {
				return true
			}
		}
		return false
	}
}
