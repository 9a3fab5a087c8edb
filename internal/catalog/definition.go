// Package catalog loads the static catalog definitions (metrics, mappings,
// table schemas) that the query engine serves.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rpattn/medallion-catalog/internal/domain"
	"github.com/rpattn/medallion-catalog/internal/export"
	"github.com/rpattn/medallion-catalog/internal/query"
	"github.com/rpattn/medallion-catalog/pkg/validator"
)

var (
	// ErrNotFound is returned when a catalog name is not registered.
	ErrNotFound = errors.New("catalog not found")
	// ErrUnsupportedFormat is returned for definition or source files of an unknown type.
	ErrUnsupportedFormat = errors.New("unsupported catalog file format")
)

// SortSpec is the declarative default ordering of a catalog.
type SortSpec struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// Definition is the on-disk shape of a catalog file.
type Definition struct {
	Name        string              `json:"name" yaml:"name"`
	Title       string              `json:"title,omitempty" yaml:"title,omitempty"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Domain      string              `json:"domain,omitempty" yaml:"domain,omitempty"`
	Search      []string            `json:"search,omitempty" yaml:"search,omitempty"`
	Facets      []domain.Facet      `json:"facets,omitempty" yaml:"facets,omitempty"`
	Columns     []domain.ColumnSpec `json:"columns,omitempty" yaml:"columns,omitempty"`
	Sort        *SortSpec           `json:"sort,omitempty" yaml:"sort,omitempty"`
	ExportBOM   bool                `json:"exportBom,omitempty" yaml:"exportBom,omitempty"`
	Records     []map[string]any    `json:"records,omitempty" yaml:"records,omitempty"`
	Source      string              `json:"source,omitempty" yaml:"source,omitempty"`
	Sheet       string              `json:"sheet,omitempty" yaml:"sheet,omitempty"`

	// Fields optionally types the records. StrictFields rejects undeclared fields.
	Fields       map[string]validator.FieldDefinition `json:"fields,omitempty" yaml:"fields,omitempty"`
	StrictFields bool                                 `json:"strictFields,omitempty" yaml:"strictFields,omitempty"`
}

// Catalog is a loaded, immutable record collection with its query metadata.
type Catalog struct {
	Name        string
	Title       string
	Description string
	Domain      string
	Path        string
	Search      []string
	Facets      []domain.Facet
	ColumnSpecs []domain.ColumnSpec
	Sort        *domain.Sort
	CSV         export.CSVOptions
	Records     []domain.Record
}

// Summary describes a catalog without its records.
type Summary struct {
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Domain      string         `json:"domain,omitempty"`
	Records     int            `json:"records"`
	Search      []string       `json:"search"`
	Facets      []domain.Facet `json:"facets"`
}

// Summary returns the catalog's metadata.
func (c *Catalog) Summary() Summary {
	search := c.Search
	if search == nil {
		search = []string{}
	}
	facets := c.Facets
	if facets == nil {
		facets = []domain.Facet{}
	}
	return Summary{
		Name:        c.Name,
		Title:       c.Title,
		Description: c.Description,
		Domain:      c.Domain,
		Records:     len(c.Records),
		Search:      search,
		Facets:      facets,
	}
}

// Columns returns the catalog's export columns. A catalog without declared
// columns exports every field.
func (c *Catalog) Columns() []domain.ExportColumn {
	if len(c.ColumnSpecs) == 0 {
		return nil
	}
	return domain.Columns(c.ColumnSpecs)
}

// Engine returns a fresh query engine over the catalog, with the catalog's
// default sort applied. Extra options override the catalog's settings.
func (c *Catalog) Engine(opts ...query.Option) *query.Engine {
	base := []query.Option{
		query.WithFacets(c.Facets...),
		query.WithSearchFields(c.Search...),
		query.WithCSVOptions(c.CSV),
	}
	engine := query.New(c.Records, append(base, opts...)...)
	if c.Sort != nil {
		engine.SetSort(c.Sort.Field, c.Sort.Direction)
	}
	return engine
}

// LoadFile reads a catalog definition and its record source.
func LoadFile(path string) (*Catalog, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	def, err := decodeDefinition(path, payload)
	if err != nil {
		return nil, err
	}
	return build(path, def)
}

func decodeDefinition(path string, payload []byte) (Definition, error) {
	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(payload, &def); err != nil {
			return Definition{}, fmt.Errorf("decode catalog %s: %w", path, err)
		}
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(payload))
		decoder.UseNumber()
		if err := decoder.Decode(&def); err != nil {
			return Definition{}, fmt.Errorf("decode catalog %s: %w", path, err)
		}
	default:
		return Definition{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return def, nil
}

func build(path string, def Definition) (*Catalog, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	title := strings.TrimSpace(def.Title)
	if title == "" {
		title = name
	}

	records := make([]domain.Record, 0, len(def.Records))
	for _, raw := range def.Records {
		records = append(records, domain.Record(raw))
	}
	if source := strings.TrimSpace(def.Source); source != "" {
		if !filepath.IsAbs(source) {
			source = filepath.Join(filepath.Dir(path), source)
		}
		loaded, err := LoadTable(source, def.Sheet, textFields(def.Fields)...)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		records = append(records, loaded...)
	}

	if err := validateRecords(def.Fields, def.StrictFields, records); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}

	facets := make([]domain.Facet, 0, len(def.Facets))
	for _, facet := range def.Facets {
		facet = facet.Normalize()
		if facet.Name == "" {
			return nil, fmt.Errorf("catalog %s: facet without a name", name)
		}
		if facet.Kind != domain.FacetKindEquals && facet.Kind != domain.FacetKindPresence {
			return nil, fmt.Errorf("catalog %s: facet %s has unknown kind %q", name, facet.Name, facet.Kind)
		}
		if facet.Kind == domain.FacetKindPresence && len(facet.Values) == 0 {
			return nil, fmt.Errorf("catalog %s: presence facet %s declares no values", name, facet.Name)
		}
		facets = append(facets, facet)
	}

	var sortOrder *domain.Sort
	if def.Sort != nil && strings.TrimSpace(def.Sort.Field) != "" {
		sortOrder = &domain.Sort{
			Field:     strings.TrimSpace(def.Sort.Field),
			Direction: domain.ParseSortDirection(def.Sort.Direction),
		}
	}

	return &Catalog{
		Name:        name,
		Title:       title,
		Description: strings.TrimSpace(def.Description),
		Domain:      strings.TrimSpace(def.Domain),
		Path:        path,
		Search:      append([]string(nil), def.Search...),
		Facets:      facets,
		ColumnSpecs: append([]domain.ColumnSpec(nil), def.Columns...),
		Sort:        sortOrder,
		CSV:         export.CSVOptions{ByteOrderMark: def.ExportBOM},
		Records:     records,
	}, nil
}

// textFields lists the declared string fields, whose tabular cells must not be
// coerced to numbers or booleans.
func textFields(fields map[string]validator.FieldDefinition) []string {
	var out []string
	for name, def := range fields {
		if strings.EqualFold(strings.TrimSpace(string(def.Type)), string(validator.FieldTypeString)) {
			out = append(out, name)
		}
	}
	return out
}

// maxReportedRecordErrors bounds the errors joined into one load failure.
const maxReportedRecordErrors = 10

func validateRecords(fields map[string]validator.FieldDefinition, strict bool, records []domain.Record) error {
	if len(fields) == 0 {
		return nil
	}
	v, err := validator.NewRecordValidator(fields, strict)
	if err != nil {
		return err
	}
	var errs []error
	for i, record := range records {
		result := v.Validate(record)
		for _, verr := range result.Errors {
			if len(errs) == maxReportedRecordErrors {
				return errors.Join(append(errs, errors.New("further record errors omitted"))...)
			}
			errs = append(errs, fmt.Errorf("record %d: %w", i+1, verr))
		}
	}
	return errors.Join(errs...)
}
