package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/productrank-mcp/internal/searcher"
)

// searchProductsTool returns the tool definition for search_products
func searchProductsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_products",
		Description: "Rank catalog products against a natural language query using lexical and semantic relevance with category weighting",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query, e.g. '適合戶外的防水藍牙喇叭'",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of distinct products to return",
					"default":     searcher.DefaultLimit,
					"minimum":     1,
					"maximum":     searcher.MaxLimit,
				},
				"lexical_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the normalized BM25 score",
					"default":     searcher.DefaultLexicalWeight,
					"minimum":     0.0,
				},
				"vector_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the vector similarity",
					"default":     searcher.DefaultVectorWeight,
					"minimum":     0.0,
				},
				"score_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Results scoring below this are dropped",
					"default":     searcher.DefaultScoreThreshold,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"enable_category_weight": map[string]interface{}{
					"type":        "boolean",
					"description": "Boost products in categories inferred from the query",
					"default":     true,
				},
				"prefer_chunk": map[string]interface{}{
					"type":        "string",
					"description": "Which chunk text to show per product; empty shows the best scoring chunk",
					"enum":        []string{"", "features", "usecases", "specs"},
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexCatalogTool returns the tool definition for index_catalog
func indexCatalogTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_catalog",
		Description: "Import a JSON product catalog: chunk, store and embed every product, then refresh the search corpus",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a JSON array of products",
				},
				"prune": map[string]interface{}{
					"type":        "boolean",
					"description": "Delete stored products that are absent from the file",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report catalog size, embedding coverage and the last import",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
