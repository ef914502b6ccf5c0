package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/productrank-mcp/internal/indexer"
	"github.com/dshills/productrank-mcp/internal/searcher"
	"github.com/dshills/productrank-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another import is already running
	ErrorCodeNotIndexed         = -32003 // No lexical corpus loaded yet
)

// handleSearchProducts handles the search_products tool invocation
func (s *Server) handleSearchProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing or not a string",
		})
	}

	params, err := s.paramsFromArgs(args)
	if err != nil {
		return nil, err
	}

	resp, err := s.svc.Searcher.Search(ctx, query, params)
	if err != nil {
		return nil, searchError(err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":       r.Rank,
			"record_id":  r.RecordID,
			"name":       r.Name,
			"category":   r.Category,
			"chunk_type": string(r.ChunkType),
			"score":      round4(r.Score),
			"breakdown": map[string]interface{}{
				"lexical_norm":    round4(r.Breakdown.LexicalNorm),
				"vector_norm":     round4(r.Breakdown.VectorNorm),
				"category_weight": r.Breakdown.CategoryWeight,
			},
			"content": r.Text,
		})
	}

	response := map[string]interface{}{
		"query_id":    resp.QueryID,
		"results":     results,
		"categories":  nonNil(resp.Categories),
		"degraded":    resp.Degraded,
		"duration_ms": resp.Duration.Milliseconds(),
	}
	if resp.Degraded {
		response["degraded_reason"] = resp.DegradedReason
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// paramsFromArgs overlays tool arguments on the configured defaults.
// Range checks are left to searcher.Params.Validate.
func (s *Server) paramsFromArgs(args map[string]interface{}) (searcher.Params, error) {
	p := s.svc.Params()

	if v, ok, err := numberArg(args, "limit"); err != nil {
		return p, err
	} else if ok {
		if v != math.Trunc(v) {
			return p, invalidParam("limit", "must be an integer", v)
		}
		p.Limit = int(v)
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"lexical_weight", &p.LexicalWeight},
		{"vector_weight", &p.VectorWeight},
		{"score_threshold", &p.ScoreThreshold},
	} {
		v, ok, err := numberArg(args, f.key)
		if err != nil {
			return p, err
		}
		if ok {
			*f.dst = v
		}
	}
	if raw, ok := args["enable_category_weight"]; ok {
		b, isBool := raw.(bool)
		if !isBool {
			return p, invalidParam("enable_category_weight", "must be a boolean", raw)
		}
		p.EnableCategoryWeight = b
	}
	if raw, ok := args["prefer_chunk"]; ok {
		str, isString := raw.(string)
		if !isString {
			return p, invalidParam("prefer_chunk", "must be a string", raw)
		}
		p.PreferChunk = types.ChunkType(str)
	}
	return p, nil
}

// handleIndexCatalog handles the index_catalog tool invocation
func (s *Server) handleIndexCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	if s.svc.Indexer.Busy() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "an import is already running", nil)
	}

	stats, err := s.svc.Indexer.IndexFile(ctx, path, &indexer.Config{
		Prune: getBoolDefault(args, "prune", false),
	})
	switch {
	case errors.Is(err, indexer.ErrIndexInProgress):
		return nil, newMCPError(ErrorCodeIndexingInProgress, "an import is already running", nil)
	case errors.Is(err, indexer.ErrInvalidCatalog):
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid catalog", map[string]interface{}{
			"error": err.Error(),
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "import failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":            true,
		"records_indexed":    stats.RecordsIndexed,
		"records_skipped":    stats.RecordsSkipped,
		"records_deleted":    stats.RecordsDeleted,
		"duplicates":         stats.Duplicates,
		"chunks_created":     stats.ChunksCreated,
		"embeddings_created": stats.EmbeddingsCreated,
		"duration_ms":        stats.Duration.Milliseconds(),
	}
	if n := len(stats.ErrorMessages); n > 0 {
		if n > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	s.logger.Info().Str("path", path).Int("records", stats.RecordsIndexed).Msg("catalog imported via mcp")
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.svc.Storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	documents := 0
	if ix := s.svc.Searcher.Index(); ix != nil {
		documents = ix.Len()
	}

	response := map[string]interface{}{
		"indexed": status.RecordsCount > 0,
		"statistics": map[string]interface{}{
			"records_count":    status.RecordsCount,
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"lexical_docs":     documents,
			"index_size_mb":    fmt.Sprintf("%.2f", status.SizeMB),
			"schema_version":   status.SchemaVersion,
		},
		"embedding": map[string]interface{}{
			"provider":  s.svc.Embedder.Provider(),
			"model":     s.svc.Embedder.Model(),
			"dimension": s.svc.Embedder.Dimension(),
			"pgvector":  s.svc.PGVector != nil,
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"embeddings_complete":  status.Health.EmbeddingsComplete,
		},
		"indexing_in_progress": s.svc.Indexer.Busy(),
	}
	if imp := status.LastImport; imp != nil {
		response["last_import"] = map[string]interface{}{
			"source":       imp.Source,
			"records":      imp.Records,
			"skipped":      imp.Skipped,
			"completed_at": imp.CompletedAt.Format(time.RFC3339),
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// searchError maps searcher errors to protocol errors
func searchError(err error) error {
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeInvalidParams, "query cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "empty",
		})
	case errors.Is(err, searcher.ErrInvalidConfig):
		return newMCPError(ErrorCodeInvalidParams, "invalid search parameters", map[string]interface{}{
			"reason": err.Error(),
		})
	case errors.Is(err, searcher.ErrNoIndex):
		return newMCPError(ErrorCodeNotIndexed, "catalog not indexed", nil)
	default:
		return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func invalidParam(param, reason string, value interface{}) error {
	return newMCPError(ErrorCodeInvalidParams, "invalid "+param, map[string]interface{}{
		"param":  param,
		"reason": reason,
		"value":  value,
	})
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path names a readable catalog file
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if info.IsDir() {
		return ErrIsDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// numberArg reads an optional numeric argument. JSON numbers arrive as float64.
func numberArg(args map[string]interface{}, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	default:
		return 0, false, invalidParam(key, "must be a number", raw)
	}
}

func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Validation errors

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrIsDirectory     = errors.New("path is a directory, expected a catalog file")
)
