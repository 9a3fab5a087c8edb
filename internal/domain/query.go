package domain

import "strings"

// FilterAll is the facet value meaning "no constraint".
const FilterAll = "all"

// FilterSpec is the active value of one facet.
type FilterSpec struct {
	Field string `json:"field" yaml:"field"`
	Value string `json:"value" yaml:"value"`
}

// Active reports whether the filter constrains anything.
func (f FilterSpec) Active() bool {
	return f.Value != "" && f.Value != FilterAll
}

// FacetKind selects how a facet value is matched against a record.
type FacetKind string

const (
	// FacetKindEquals matches records whose field equals the facet value.
	FacetKindEquals FacetKind = "equals"
	// FacetKindPresence maps each facet value to a field that must be present.
	FacetKindPresence FacetKind = "presence"
)

// Facet declares a filterable dimension of a catalog. For presence facets,
// Values maps each facet value to the field it requires.
type Facet struct {
	Name   string            `json:"name" yaml:"name"`
	Label  string            `json:"label,omitempty" yaml:"label,omitempty"`
	Field  string            `json:"field,omitempty" yaml:"field,omitempty"`
	Kind   FacetKind         `json:"kind,omitempty" yaml:"kind,omitempty"`
	Values map[string]string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Normalize fills the defaults an undeclared or partially declared facet needs.
func (f Facet) Normalize() Facet {
	f.Name = strings.TrimSpace(f.Name)
	if f.Kind == "" {
		f.Kind = FacetKindEquals
	}
	if f.Field == "" && f.Kind == FacetKindEquals {
		f.Field = f.Name
	}
	if f.Label == "" {
		f.Label = f.Name
	}
	return f
}

// SearchSpec lists the fields a free-text term is matched against.
type SearchSpec struct {
	Fields []string `json:"fields" yaml:"fields"`
}

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// ParseSortDirection accepts asc/desc in any case; anything else is ascending.
func ParseSortDirection(raw string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(raw), string(SortDirectionDesc)) {
		return SortDirectionDesc
	}
	return SortDirectionAsc
}

// Sort captures ordering preferences for a filtered view.
type Sort struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// Page is a limit/offset window over a filtered view. A zero limit means
// unbounded.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// QueryState is the caller-owned filter, search and sort state of one session.
type QueryState struct {
	Filters map[string]string `json:"filters"`
	Search  string            `json:"search"`
	Sort    *Sort             `json:"sort,omitempty"`
}

// Clone returns an independent copy of the state.
func (s QueryState) Clone() QueryState {
	out := QueryState{Search: s.Search}
	if len(s.Filters) > 0 {
		out.Filters = make(map[string]string, len(s.Filters))
		for k, v := range s.Filters {
			out.Filters[k] = v
		}
	}
	if s.Sort != nil {
		sortCopy := *s.Sort
		out.Sort = &sortCopy
	}
	return out
}
