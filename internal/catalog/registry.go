package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Registry holds every loaded catalog by name. It is immutable after loading
// and safe for concurrent reads.
type Registry struct {
	catalogs map[string]*Catalog
	order    []string
}

// NewRegistry builds a registry from already loaded catalogs.
func NewRegistry(catalogs ...*Catalog) (*Registry, error) {
	r := &Registry{catalogs: make(map[string]*Catalog, len(catalogs))}
	for _, c := range catalogs {
		if c == nil {
			continue
		}
		if existing, ok := r.catalogs[c.Name]; ok {
			return nil, fmt.Errorf("duplicate catalog name %q in %s and %s", c.Name, existing.Path, c.Path)
		}
		r.catalogs[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	sort.Strings(r.order)
	return r, nil
}

// LoadDir loads every catalog definition file in dir. Tabular source files
// referenced by definitions are not treated as catalogs themselves.
func LoadDir(dir string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog directory: %w", err)
	}
	catalogs := make([]*Catalog, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		c, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		logger.Info("catalog loaded",
			zap.String("catalog", c.Name),
			zap.String("path", path),
			zap.Int("records", len(c.Records)))
		catalogs = append(catalogs, c)
	}
	return NewRegistry(catalogs...)
}

// Get returns the catalog registered under name.
func (r *Registry) Get(name string) (*Catalog, error) {
	c, ok := r.catalogs[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return c, nil
}

// GetMany returns the catalogs for names, in order. Missing names yield a nil
// entry and an error at the same index.
func (r *Registry) GetMany(names []string) ([]*Catalog, []error) {
	catalogs := make([]*Catalog, len(names))
	errs := make([]error, len(names))
	for i, name := range names {
		catalogs[i], errs[i] = r.Get(name)
	}
	return catalogs, errs
}

// List returns summaries of every catalog, ordered by name.
func (r *Registry) List() []Summary {
	out := make([]Summary, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.catalogs[name].Summary())
	}
	return out
}

// Len returns the number of catalogs.
func (r *Registry) Len() int {
	return len(r.order)
}
