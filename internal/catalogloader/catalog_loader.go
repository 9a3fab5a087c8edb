package catalogloader

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/medallion-catalog/internal/catalog"
)

// Source resolves catalogs by name.
type Source interface {
	GetMany(names []string) ([]*catalog.Catalog, []error)
}

// CatalogLoader batches and caches catalog lookups for the lifetime of one
// request.
type CatalogLoader struct {
	Loader *dataloader.Loader
}

func NewCatalogLoader(source Source) *CatalogLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}

		catalogs, errs := source.GetMany(names)

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i := range keys {
			switch {
			case i >= len(catalogs):
				results[i] = &dataloader.Result{Error: fmt.Errorf("%w: %s", catalog.ErrNotFound, names[i])}
			case i < len(errs) && errs[i] != nil:
				results[i] = &dataloader.Result{Error: errs[i]}
			default:
				results[i] = &dataloader.Result{Data: catalogs[i]}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond))

	return &CatalogLoader{Loader: loader}
}

// Load resolves one catalog through the batching loader.
func Load(ctx context.Context, loader *dataloader.Loader, name string) (*catalog.Catalog, error) {
	thunk := loader.Load(ctx, dataloader.StringKey(name))
	data, err := thunk()
	if err != nil {
		return nil, err
	}
	c, ok := data.(*catalog.Catalog)
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: %s", catalog.ErrNotFound, name)
	}
	return c, nil
}
