package middleware

import (
	"context"
	"net/http"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/medallion-catalog/internal/catalogloader"
)

type ctxKey string

const catalogLoaderKey ctxKey = "catalogLoader"

// DataLoaderMiddleware attaches a per-request catalog loader to the context.
func DataLoaderMiddleware(source catalogloader.Source) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := catalogloader.NewCatalogLoader(source)

			ctx := context.WithValue(r.Context(), catalogLoaderKey, loader.Loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CatalogLoaderFromContext retrieves the dataloader from context
func CatalogLoaderFromContext(ctx context.Context) *dataloader.Loader {
	if l, ok := ctx.Value(catalogLoaderKey).(*dataloader.Loader); ok {
		return l
	}
	return nil
}
