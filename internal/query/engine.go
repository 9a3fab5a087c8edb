// Package query implements the faceted query engine: facet filters, free-text
// search, ordering and paging over an in-memory catalog, plus exports of the
// resulting view.
//
// An Engine holds the query state of a single session and is not safe for
// concurrent use.
package query

import (
	"sort"
	"strings"

	"github.com/rpattn/medallion-catalog/internal/domain"
	"github.com/rpattn/medallion-catalog/internal/export"
)

// Engine filters a fixed record collection according to mutable query state.
// The filtered view is recomputed on every read, so setters are O(1).
type Engine struct {
	records    []domain.Record
	facets     map[string]domain.Facet
	facetOrder []string
	search     domain.SearchSpec
	csv        export.CSVOptions

	filters map[string]string
	term    string
	sort    *domain.Sort
}

type Option func(*Engine)

// WithFacets declares the filterable dimensions of the collection.
func WithFacets(facets ...domain.Facet) Option {
	return func(e *Engine) {
		for _, facet := range facets {
			facet = facet.Normalize()
			if facet.Name == "" {
				continue
			}
			if _, exists := e.facets[facet.Name]; !exists {
				e.facetOrder = append(e.facetOrder, facet.Name)
			}
			e.facets[facet.Name] = facet
		}
	}
}

// WithSearchFields sets the fields a search term is matched against.
func WithSearchFields(fields ...string) Option {
	return func(e *Engine) {
		e.search.Fields = append([]string(nil), fields...)
	}
}

// WithCSVOptions tunes CSV exports.
func WithCSVOptions(opts export.CSVOptions) Option {
	return func(e *Engine) {
		e.csv = opts
	}
}

// New returns an engine over records. The records are shared, never mutated.
func New(records []domain.Record, opts ...Option) *Engine {
	e := &Engine{
		records: append([]domain.Record(nil), records...),
		facets:  make(map[string]domain.Facet),
		filters: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetFilter sets the active value of a facet. FilterAll or an empty value
// removes the constraint. A facet that was never declared filters by equality
// on the field of the same name.
func (e *Engine) SetFilter(facet, value string) {
	facet = strings.TrimSpace(facet)
	if facet == "" {
		return
	}
	if value == "" || value == domain.FilterAll {
		delete(e.filters, facet)
		return
	}
	e.filters[facet] = value
}

// ClearFilters resets every facet to FilterAll.
func (e *Engine) ClearFilters() {
	e.filters = make(map[string]string)
}

// SetSearchTerm sets the free-text term. A blank term matches everything.
func (e *Engine) SetSearchTerm(term string) {
	e.term = strings.TrimSpace(term)
}

// SetSort orders the view by field. An empty field restores source order.
func (e *Engine) SetSort(field string, direction domain.SortDirection) {
	field = strings.TrimSpace(field)
	if field == "" {
		e.sort = nil
		return
	}
	if direction != domain.SortDirectionDesc {
		direction = domain.SortDirectionAsc
	}
	e.sort = &domain.Sort{Field: field, Direction: direction}
}

// State returns a copy of the current query state.
func (e *Engine) State() domain.QueryState {
	state := domain.QueryState{Search: e.term, Sort: e.sort}
	if len(e.filters) > 0 {
		state.Filters = e.filters
	}
	return state.Clone()
}

// Apply replaces the current query state.
func (e *Engine) Apply(state domain.QueryState) {
	e.ClearFilters()
	for facet, value := range state.Filters {
		e.SetFilter(facet, value)
	}
	e.SetSearchTerm(state.Search)
	if state.Sort != nil {
		e.SetSort(state.Sort.Field, state.Sort.Direction)
	} else {
		e.sort = nil
	}
}

// Facets returns the declared facets in declaration order.
func (e *Engine) Facets() []domain.Facet {
	out := make([]domain.Facet, 0, len(e.facetOrder))
	for _, name := range e.facetOrder {
		out = append(out, e.facets[name])
	}
	return out
}

// Filters returns the active constraints, ordered by facet name.
func (e *Engine) Filters() []domain.FilterSpec {
	names := make([]string, 0, len(e.filters))
	for name := range e.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	specs := make([]domain.FilterSpec, 0, len(names))
	for _, name := range names {
		facet := e.facet(name)
		field := facet.Field
		if facet.Kind == domain.FacetKindPresence {
			field = facet.Values[e.filters[name]]
		}
		specs = append(specs, domain.FilterSpec{Field: field, Value: e.filters[name]})
	}
	return specs
}

// Len returns the size of the unfiltered collection.
func (e *Engine) Len() int {
	return len(e.records)
}

// FilteredRecords returns the records passing every active facet and the search
// term, in view order. Each call materializes a fresh slice.
func (e *Engine) FilteredRecords() []domain.Record {
	return e.view("")
}

// Result is one page of a filtered view.
type Result struct {
	Records []domain.Record `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// Page returns a limit/offset window of the filtered view along with the total
// number of matching records.
func (e *Engine) Page(page domain.Page) Result {
	records := e.FilteredRecords()
	total := len(records)
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if page.Limit > 0 && page.Limit < total-offset {
		end = offset + page.Limit
	}
	return Result{
		Records: records[offset:end],
		Total:   total,
		Limit:   page.Limit,
		Offset:  offset,
	}
}

// view filters the collection, skipping the facet named skip, and applies the
// active sort.
func (e *Engine) view(skip string) []domain.Record {
	predicates := e.predicates(skip)
	filtered := make([]domain.Record, 0, len(e.records))
	for _, record := range e.records {
		if matchesAll(record, predicates) {
			filtered = append(filtered, record)
		}
	}
	if e.sort != nil {
		sortRecords(filtered, *e.sort)
	}
	return filtered
}

func (e *Engine) predicates(skip string) []predicate {
	preds := make([]predicate, 0, len(e.filters)+1)
	for name, value := range e.filters {
		if name == skip {
			continue
		}
		preds = append(preds, facetPredicate(e.facet(name), value))
	}
	if e.term != "" {
		preds = append(preds, searchPredicate(e.search.Fields, e.term))
	}
	return preds
}

func (e *Engine) facet(name string) domain.Facet {
	if facet, ok := e.facets[name]; ok {
		return facet
	}
	return domain.Facet{Name: name}.Normalize()
}
