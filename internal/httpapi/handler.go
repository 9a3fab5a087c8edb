// Package httpapi exposes catalogs and query sessions over HTTP/JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/medallion-catalog/internal/catalog"
	"github.com/rpattn/medallion-catalog/internal/catalogloader"
	"github.com/rpattn/medallion-catalog/internal/domain"
	"github.com/rpattn/medallion-catalog/internal/export"
	"github.com/rpattn/medallion-catalog/internal/middleware"
	"github.com/rpattn/medallion-catalog/internal/query"
	"github.com/rpattn/medallion-catalog/internal/session"
)

const facetParamPrefix = "facet."

// Catalogs is the catalog source the handler reads from.
type Catalogs interface {
	catalogloader.Source
	List() []catalog.Summary
}

type Handler struct {
	catalogs   Catalogs
	sessions   *session.Store
	exports    *export.Service
	logger     *zap.Logger
	engineOpts []query.Option
}

type Option func(*Handler)

// WithEngineOptions applies opts to the engines built for stateless catalog
// requests, after the catalog's own settings.
func WithEngineOptions(opts ...query.Option) Option {
	return func(h *Handler) {
		h.engineOpts = append(h.engineOpts, opts...)
	}
}

// NewHandler serves catalogs and sessions. Exports requested with
// deliver=file go to the service's sink; all others stream as attachments.
func NewHandler(catalogs Catalogs, sessions *session.Store, exports *export.Service, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exports == nil {
		exports = export.NewService(nil, export.WithLogger(logger))
	}
	h := &Handler{catalogs: catalogs, sessions: sessions, exports: exports, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segments := splitPath(r.URL.Path)
	switch {
	case len(segments) == 0:
		http.Error(w, "not found", http.StatusNotFound)
	case segments[0] == "catalogs":
		h.routeCatalogs(w, r, segments[1:])
	case segments[0] == "sessions":
		h.routeSessions(w, r, segments[1:])
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) routeCatalogs(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch {
	case len(rest) == 0:
		writeJSON(w, http.StatusOK, h.catalogs.List())
	case len(rest) == 1:
		c, ok := h.loadCatalog(w, r, rest[0])
		if ok {
			writeJSON(w, http.StatusOK, c.Summary())
		}
	case len(rest) == 2 && rest[1] == "records":
		h.handleCatalogRecords(w, r, rest[0])
	case len(rest) == 3 && rest[1] == "facets":
		h.handleFacetValues(w, r, rest[0], rest[2])
	case len(rest) == 2 && rest[1] == "export":
		h.handleCatalogExport(w, r, rest[0])
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) routeSessions(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		h.handleCreateSession(w, r)
	case len(rest) == 1 && r.Method == http.MethodGet:
		h.withSession(w, rest[0], func(s *session.Session) {
			writeJSON(w, http.StatusOK, s.Info())
		})
	case len(rest) == 1 && r.Method == http.MethodPatch:
		h.handleUpdateSession(w, r, rest[0])
	case len(rest) == 1 && r.Method == http.MethodDelete:
		h.handleDeleteSession(w, rest[0])
	case len(rest) == 2 && rest[1] == "records" && r.Method == http.MethodGet:
		h.handleSessionRecords(w, r, rest[0])
	case len(rest) == 3 && rest[1] == "facets" && r.Method == http.MethodGet:
		h.handleSessionFacetValues(w, rest[0], rest[2])
	case len(rest) == 2 && rest[1] == "export" && r.Method == http.MethodGet:
		h.handleSessionExport(w, r, rest[0])
	case len(rest) <= 3:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleCatalogRecords(w http.ResponseWriter, r *http.Request, name string) {
	c, ok := h.loadCatalog(w, r, name)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	engine := c.Engine(h.engineOpts...)
	applyQueryParams(engine, r)
	writeJSON(w, http.StatusOK, engine.Page(page))
}

func (h *Handler) handleFacetValues(w http.ResponseWriter, r *http.Request, name, facet string) {
	c, ok := h.loadCatalog(w, r, name)
	if !ok {
		return
	}
	engine := c.Engine(h.engineOpts...)
	applyQueryParams(engine, r)
	writeJSON(w, http.StatusOK, engine.FacetValues(facet))
}

func (h *Handler) handleCatalogExport(w http.ResponseWriter, r *http.Request, name string) {
	c, ok := h.loadCatalog(w, r, name)
	if !ok {
		return
	}
	engine := c.Engine(h.engineOpts...)
	applyQueryParams(engine, r)
	h.writeExport(w, r, c, engine)
}

type createSessionPayload struct {
	Catalog string             `json:"catalog"`
	State   *domain.QueryState `json:"state"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload createSessionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Catalog) == "" {
		http.Error(w, "catalog is required", http.StatusBadRequest)
		return
	}
	c, ok := h.loadCatalog(w, r, payload.Catalog)
	if !ok {
		return
	}
	s, err := h.sessions.Create(c)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if payload.State != nil {
		state := *payload.State
		_ = s.With(func(e *query.Engine) error {
			e.Apply(state)
			return nil
		})
	}
	h.logger.Debug("session created", zap.String("session", s.ID.String()), zap.String("catalog", c.Name))
	writeJSON(w, http.StatusCreated, s.Info())
}

// updateSessionPayload patches a session. Absent fields are left unchanged;
// a filter value of "all" or "" clears that facet.
type updateSessionPayload struct {
	Filters      map[string]string `json:"filters"`
	ClearFilters bool              `json:"clearFilters"`
	Search       *string           `json:"search"`
	Sort         *domain.Sort      `json:"sort"`
}

func (h *Handler) handleUpdateSession(w http.ResponseWriter, r *http.Request, rawID string) {
	defer r.Body.Close()
	var payload updateSessionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	h.withSession(w, rawID, func(s *session.Session) {
		_ = s.With(func(e *query.Engine) error {
			if payload.ClearFilters {
				e.ClearFilters()
			}
			for facet, value := range payload.Filters {
				e.SetFilter(facet, value)
			}
			if payload.Search != nil {
				e.SetSearchTerm(*payload.Search)
			}
			if payload.Sort != nil {
				e.SetSort(payload.Sort.Field, payload.Sort.Direction)
			}
			return nil
		})
		writeJSON(w, http.StatusOK, s.Info())
	})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, rawID string) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid session id: %v", err), http.StatusBadRequest)
		return
	}
	if err := h.sessions.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSessionRecords(w http.ResponseWriter, r *http.Request, rawID string) {
	page, err := parsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.withSession(w, rawID, func(s *session.Session) {
		var result query.Result
		_ = s.With(func(e *query.Engine) error {
			result = e.Page(page)
			return nil
		})
		writeJSON(w, http.StatusOK, result)
	})
}

func (h *Handler) handleSessionFacetValues(w http.ResponseWriter, rawID, facet string) {
	h.withSession(w, rawID, func(s *session.Session) {
		var values []query.FacetValue
		_ = s.With(func(e *query.Engine) error {
			values = e.FacetValues(facet)
			return nil
		})
		writeJSON(w, http.StatusOK, values)
	})
}

func (h *Handler) handleSessionExport(w http.ResponseWriter, r *http.Request, rawID string) {
	h.withSession(w, rawID, func(s *session.Session) {
		_ = s.With(func(e *query.Engine) error {
			h.writeExport(w, r, s.Catalog, e)
			return nil
		})
	})
}

// writeExport encodes the engine's view in the requested format and streams it
// as an attachment.
func (h *Handler) writeExport(w http.ResponseWriter, r *http.Request, c *catalog.Catalog, engine *query.Engine) {
	rawFormat := r.URL.Query().Get("format")
	if strings.TrimSpace(rawFormat) == "" {
		rawFormat = string(domain.ExportFormatCSV)
	}
	format, ok := domain.ParseExportFormat(rawFormat)
	if !ok {
		http.Error(w, fmt.Sprintf("unsupported export format %q", rawFormat), http.StatusBadRequest)
		return
	}
	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		filename = c.Name
	}
	file, err := engine.Export(format, c.Columns(), filename)
	if err != nil {
		h.logger.Error("export encoding failed", zap.String("catalog", c.Name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	switch r.URL.Query().Get("deliver") {
	case "", "download":
		if _, err := h.exports.DeliverTo(r.Context(), export.NewResponseSink(w), file); err != nil {
			h.logger.Warn("export response aborted", zap.String("catalog", c.Name), zap.Error(err))
		}
	case "file":
		receipt, err := h.exports.Deliver(r.Context(), file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, receipt)
	default:
		http.Error(w, fmt.Sprintf("unsupported delivery %q", r.URL.Query().Get("deliver")), http.StatusBadRequest)
	}
}

// loadCatalog resolves a catalog through the request's dataloader when one is
// attached, falling back to the source directly.
func (h *Handler) loadCatalog(w http.ResponseWriter, r *http.Request, name string) (*catalog.Catalog, bool) {
	var (
		c   *catalog.Catalog
		err error
	)
	if loader := middleware.CatalogLoaderFromContext(r.Context()); loader != nil {
		c, err = catalogloader.Load(r.Context(), loader, name)
	} else {
		catalogs, errs := h.catalogs.GetMany([]string{name})
		switch {
		case len(errs) > 0 && errs[0] != nil:
			err = errs[0]
		case len(catalogs) == 0 || catalogs[0] == nil:
			err = fmt.Errorf("%w: %s", catalog.ErrNotFound, name)
		default:
			c = catalogs[0]
		}
	}
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return c, true
}

func (h *Handler) withSession(w http.ResponseWriter, rawID string, fn func(*session.Session)) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid session id: %v", err), http.StatusBadRequest)
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	fn(s)
}

// applyQueryParams maps facet.<name>, q, sort and dir onto the engine.
func applyQueryParams(engine *query.Engine, r *http.Request) {
	values := r.URL.Query()
	for key, vals := range values {
		if !strings.HasPrefix(key, facetParamPrefix) || len(vals) == 0 {
			continue
		}
		engine.SetFilter(strings.TrimPrefix(key, facetParamPrefix), vals[len(vals)-1])
	}
	if values.Has("q") {
		engine.SetSearchTerm(values.Get("q"))
	}
	if values.Has("sort") {
		engine.SetSort(values.Get("sort"), domain.ParseSortDirection(values.Get("dir")))
	}
}

func parsePage(r *http.Request) (domain.Page, error) {
	var page domain.Page
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return page, fmt.Errorf("invalid limit %q", raw)
		}
		page.Limit = v
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return page, fmt.Errorf("invalid offset %q", raw)
		}
		page.Offset = v
	}
	return page, nil
}

func splitPath(path string) []string {
	var out []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, session.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
