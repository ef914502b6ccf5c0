// Package httpapi serves product search over HTTP.
//
//	GET /search?q=防水喇叭&limit=5&lexical_weight=0.35&vector_weight=0.65
//	GET /healthz
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dshills/productrank-mcp/internal/searcher"
	"github.com/dshills/productrank-mcp/pkg/types"
)

// Searcher runs one ranked query
type Searcher interface {
	Search(ctx context.Context, query string, p searcher.Params) (*searcher.Response, error)
}

// HealthFunc reports whether the backing store is usable
type HealthFunc func(ctx context.Context) error

// Handler serves the search API
type Handler struct {
	searcher Searcher
	defaults searcher.Params
	health   HealthFunc
	logger   zerolog.Logger
}

// SearchResponseDTO is the body of GET /search
type SearchResponseDTO struct {
	QueryID        string      `json:"query_id"`
	Query          string      `json:"query"`
	Categories     []string    `json:"categories"`
	Degraded       bool        `json:"degraded"`
	DegradedReason string      `json:"degraded_reason,omitempty"`
	DurationMs     int64       `json:"duration_ms"`
	Results        []ResultDTO `json:"results"`
}

// ResultDTO is one ranked product
type ResultDTO struct {
	Rank      int             `json:"rank"`
	RecordID  string          `json:"record_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	ChunkType string          `json:"chunk_type"`
	Score     float64         `json:"score"`
	Breakdown types.Breakdown `json:"breakdown"`
	Content   string          `json:"content,omitempty"`
}

// NewHandler creates the handler. health may be nil.
func NewHandler(s Searcher, defaults searcher.Params, health HealthFunc, logger zerolog.Logger) *Handler {
	return &Handler{searcher: s, defaults: defaults, health: health, logger: logger}
}

// Router mounts the routes with request id, recovery, access logging and
// a per-request timeout
func (h *Handler) Router(timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(h.accessLog)
	if timeout > 0 {
		r.Use(chimiddleware.Timeout(timeout))
	}

	r.Get("/healthz", h.Health)
	r.Get("/search", h.Search)
	return r
}

// Search handles GET /search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		query = q.Get("query")
	}

	p, err := h.params(q.Get)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid parameter", err.Error())
		return
	}

	resp, err := h.searcher.Search(r.Context(), query, p)
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery), errors.Is(err, searcher.ErrInvalidConfig):
		h.writeError(w, http.StatusBadRequest, "invalid search request", err.Error())
		return
	case errors.Is(err, searcher.ErrNoIndex):
		h.writeError(w, http.StatusServiceUnavailable, "catalog not indexed", "")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, "search cancelled", err.Error())
		return
	case err != nil:
		h.logger.Error().Err(err).Str("query", query).Msg("search failed")
		h.writeError(w, http.StatusInternalServerError, "search failed", "")
		return
	}

	out := NewSearchResponse(query, resp)
	h.writeJSON(w, http.StatusOK, out)
}

// NewSearchResponse converts a searcher response to its wire form
func NewSearchResponse(query string, resp *searcher.Response) SearchResponseDTO {
	out := SearchResponseDTO{
		QueryID:        resp.QueryID,
		Query:          query,
		Categories:     resp.Categories,
		Degraded:       resp.Degraded,
		DegradedReason: resp.DegradedReason,
		DurationMs:     resp.Duration.Milliseconds(),
		Results:        make([]ResultDTO, 0, len(resp.Results)),
	}
	if out.Categories == nil {
		out.Categories = []string{}
	}
	for _, res := range resp.Results {
		out.Results = append(out.Results, ResultDTO{
			Rank:      res.Rank,
			RecordID:  res.RecordID,
			Name:      res.Name,
			Category:  res.Category,
			ChunkType: string(res.ChunkType),
			Score:     res.Score,
			Breakdown: res.Breakdown,
			Content:   res.Text,
		})
	}
	return out
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "productrank"})
}

// params overlays query string values on the defaults. Range checks are
// left to the searcher so HTTP and MCP reject the same inputs.
func (h *Handler) params(get func(string) string) (searcher.Params, error) {
	p := h.defaults

	if v := get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("limit: %w", err)
		}
		p.Limit = n
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"lexical_weight", &p.LexicalWeight},
		{"vector_weight", &p.VectorWeight},
		{"threshold", &p.ScoreThreshold},
	} {
		if v := get(f.key); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return p, fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = n
		}
	}
	if v := get("category_weight"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("category_weight: %w", err)
		}
		p.EnableCategoryWeight = b
	}
	if v := get("prefer_chunk"); v != "" {
		p.PreferChunk = types.ChunkType(v)
	}
	return p, nil
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	h.writeJSON(w, status, resp)
}

// ListenAndServe serves handler on addr until ctx is cancelled, then
// shuts down gracefully within shutdownTimeout
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
