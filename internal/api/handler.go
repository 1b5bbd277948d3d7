package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/artisan/internal/catalog"
	"github.com/kalambet/artisan/internal/pipeline"
	"github.com/kalambet/artisan/internal/retrieval"
	"github.com/kalambet/artisan/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Assistant is the part of pipeline.Service used by the HTTP and MCP layers.
type Assistant interface {
	Ready() bool
	Answer(ctx context.Context, question string) pipeline.Response
	Search(ctx context.Context, question string, k int) ([]retrieval.ScoredDocument, error)
	Status() pipeline.Status
}

// CatalogReader gives read access to the normalized catalog.
type CatalogReader interface {
	ListEntries(ctx context.Context, limit, offset int) ([]storage.Entry, error)
	EntryByReference(ctx context.Context, ref string) (storage.Entry, error)
	CountEntries(ctx context.Context) (int, error)
}

// Deps holds the handler dependencies.
type Deps struct {
	Assistant Assistant
	Catalog   CatalogReader // nil when the build stopped before the catalog was stored
	Token     string        // bearer token for /catalog; empty disables auth
	AskRate   float64       // /ask requests per second; 0 disables limiting
	AskBurst  int
}

// NewHandler returns the HTTP API: /health, /status, POST /ask and the
// read-only /catalog endpoints.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/status", handleStatus(deps))
	r.With(RateLimit(deps.AskRate, deps.AskBurst)).Post("/ask", handleAsk(deps))

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Get("/catalog", handleListCatalog(deps))
		r.Get("/catalog/{ref}", handleGetCatalogEntry(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := deps.Assistant.Status()
		code := http.StatusOK
		if !st.Ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, st)
	}
}

type askRequest struct {
	Question *string `json:"question"`
}

// handleAsk always answers 200 with a {"response": ...} payload.
func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.Assistant.Ready() {
			writeAnswer(w, pipeline.Response{Text: pipeline.MsgUninitialized})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == nil {
			writeAnswer(w, pipeline.Response{Text: pipeline.MsgInvalidRequest})
			return
		}

		writeAnswer(w, deps.Assistant.Answer(r.Context(), *req.Question))
	}
}

type catalogEntry struct {
	Position int  `json:"position"`
	Embedded bool `json:"embedded"`
	catalog.Document
}

func toCatalogEntry(e storage.Entry) catalogEntry {
	return catalogEntry{Position: e.Position, Embedded: e.Embedded, Document: e.Document}
}

type catalogPage struct {
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	Entries []catalogEntry `json:"entries"`
}

func handleListCatalog(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Catalog == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "catalog not loaded")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		entries, err := deps.Catalog.ListEntries(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list catalog: %v", err)
			return
		}
		total, err := deps.Catalog.CountEntries(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count catalog: %v", err)
			return
		}

		page := catalogPage{Total: total, Limit: limit, Offset: offset, Entries: make([]catalogEntry, len(entries))}
		for i, e := range entries {
			page.Entries[i] = toCatalogEntry(e)
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func handleGetCatalogEntry(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Catalog == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "catalog not loaded")
			return
		}
		ref := chi.URLParam(r, "ref")

		e, err := deps.Catalog.EntryByReference(r.Context(), ref)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no catalog entry with reference %q", ref)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get catalog entry: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toCatalogEntry(e))
	}
}

func writeAnswer(w http.ResponseWriter, resp pipeline.Response) {
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
