package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/productrank-mcp/internal/config"
	"github.com/dshills/productrank-mcp/internal/embedder"
	"github.com/dshills/productrank-mcp/internal/service"
	"github.com/dshills/productrank-mcp/internal/storage"
)

const catalogJSON = `[
  {"product_id": "SP-1", "name": "防水藍牙喇叭", "category": "音頻設備", "features": ["防水", "長續航"], "price": 1990},
  {"product_id": "CH-1", "name": "人體工學椅", "category": "家具", "features": ["腰靠"], "price": "4500"},
  {"name": "PJ-9 家用投影機", "category": "家庭娛樂", "features": ["4K"]}
]`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = embedder.ProviderLocal
	cfg.Embedding.Dimension = 64
	cfg.Lexical.Workers = -1

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	svc, err := service.New(context.Background(), cfg, store, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	s, err := NewServer(svc, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON), 0o600))
	return path
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func TestIndexThenSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	res, err := s.handleIndexCatalog(ctx, callRequest("index_catalog", map[string]interface{}{
		"path": writeCatalog(t),
	}))
	require.NoError(t, err)
	stats := resultJSON(t, res)
	assert.Equal(t, float64(3), stats["records_indexed"])
	assert.Equal(t, float64(9), stats["chunks_created"])

	res, err = s.handleSearchProducts(ctx, callRequest("search_products", map[string]interface{}{
		"query": "防水喇叭",
		"limit": float64(2),
	}))
	require.NoError(t, err)
	out := resultJSON(t, res)

	results, ok := out["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)

	top := results[0].(map[string]interface{})
	assert.Equal(t, "SP-1", top["record_id"])
	assert.Equal(t, float64(1), top["rank"])
	breakdown := top["breakdown"].(map[string]interface{})
	assert.Equal(t, 2.0, breakdown["category_weight"])
	assert.Equal(t, false, out["degraded"])
	assert.Contains(t, out["categories"], "audio")
}

func TestSearchProductsErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"missing query", map[string]interface{}{}, ErrorCodeInvalidParams},
		{"blank query", map[string]interface{}{"query": "   "}, ErrorCodeInvalidParams},
		{"limit zero", map[string]interface{}{"query": "喇叭", "limit": float64(0)}, ErrorCodeInvalidParams},
		{"limit fractional", map[string]interface{}{"query": "喇叭", "limit": 2.5}, ErrorCodeInvalidParams},
		{"limit not a number", map[string]interface{}{"query": "喇叭", "limit": "ten"}, ErrorCodeInvalidParams},
		{"negative weight", map[string]interface{}{"query": "喇叭", "lexical_weight": -0.1}, ErrorCodeInvalidParams},
		{"both weights zero", map[string]interface{}{"query": "喇叭", "lexical_weight": 0.0, "vector_weight": 0.0}, ErrorCodeInvalidParams},
		{"threshold above one", map[string]interface{}{"query": "喇叭", "score_threshold": 1.5}, ErrorCodeInvalidParams},
		{"unknown chunk", map[string]interface{}{"query": "喇叭", "prefer_chunk": "title"}, ErrorCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleSearchProducts(ctx, callRequest("search_products", tt.args))
			requireMCPError(t, err, tt.code)
		})
	}
}

func TestSearchProductsReportsFirstBadNumber(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	args := map[string]interface{}{
		"query":           "喇叭",
		"score_threshold": "high",
		"vector_weight":   "most",
		"lexical_weight":  "some",
	}
	for i := 0; i < 20; i++ {
		_, err := s.handleSearchProducts(ctx, callRequest("search_products", args))
		mcpErr := requireMCPError(t, err, ErrorCodeInvalidParams)
		data, ok := mcpErr.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "lexical_weight", data["param"])
	}
}

func TestIndexCatalogErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not": "an array"}`), 0o600))

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"missing path", map[string]interface{}{}, ErrorCodeInvalidParams},
		{"relative path", map[string]interface{}{"path": "products.json"}, ErrorCodeInvalidParams},
		{"missing file", map[string]interface{}{"path": filepath.Join(t.TempDir(), "absent.json")}, ErrorCodeInvalidParams},
		{"directory", map[string]interface{}{"path": t.TempDir()}, ErrorCodeInvalidParams},
		{"malformed catalog", map[string]interface{}{"path": bad}, ErrorCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleIndexCatalog(ctx, callRequest("index_catalog", tt.args))
			requireMCPError(t, err, tt.code)
		})
	}
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	res, err := s.handleGetStatus(ctx, callRequest("get_status", nil))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, false, out["indexed"])
	assert.NotContains(t, out, "last_import")

	_, err = s.handleIndexCatalog(ctx, callRequest("index_catalog", map[string]interface{}{"path": writeCatalog(t)}))
	require.NoError(t, err)

	res, err = s.handleGetStatus(ctx, callRequest("get_status", nil))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Equal(t, true, out["indexed"])

	stats := out["statistics"].(map[string]interface{})
	assert.Equal(t, float64(3), stats["records_count"])
	assert.Equal(t, float64(9), stats["lexical_docs"])

	emb := out["embedding"].(map[string]interface{})
	assert.Equal(t, embedder.ProviderLocal, emb["provider"])
	assert.Equal(t, false, emb["pgvector"])
	assert.Contains(t, out, "last_import")
}

func TestMCPError(t *testing.T) {
	err := newMCPError(ErrorCodeInvalidParams, "invalid params", nil)
	assert.Equal(t, "MCP error -32602: invalid params", err.Error())
}

func TestNewServerRequiresService(t *testing.T) {
	_, err := NewServer(nil, zerolog.Nop())
	assert.Error(t, err)
}
