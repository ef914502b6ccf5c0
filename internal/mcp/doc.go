// Package mcp implements the Model Context Protocol (MCP) server for productrank.
//
// The server exposes three tools:
//   - search_products: rank catalog products against a query
//   - index_catalog: import a JSON product catalog
//   - get_status: report catalog size, embedding coverage and the last import
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Tool: search_products
//
//	Request:
//	{
//	  "name": "search_products",
//	  "arguments": {
//	    "query": "適合戶外的防水藍牙喇叭",
//	    "limit": 5,
//	    "lexical_weight": 0.35,
//	    "vector_weight": 0.65
//	  }
//	}
//
//	Response:
//	{
//	  "query_id": "5f0c…",
//	  "categories": ["audio"],
//	  "degraded": false,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "record_id": "SP-1",
//	      "name": "藍牙喇叭",
//	      "score": 1.73,
//	      "breakdown": {"lexical_norm": 1, "vector_norm": 0.79, "category_weight": 2}
//	    }
//	  ]
//	}
//
// When the vector source fails or times out the query is ranked on lexical
// scores alone and the response carries "degraded": true with a reason.
//
// # Tool: index_catalog
//
//	{"name": "index_catalog", "arguments": {"path": "/data/products.json", "prune": false}}
//
// Only one import runs at a time; a second call fails with -32002.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing arguments, empty query, out of range weights or limit)
//   - -32603: Internal error (storage, embedding provider)
//   - -32002: Import already in progress
//   - -32003: No lexical corpus loaded
//
// # Logging
//
// The server logs to stderr through zerolog; stdout is reserved for the protocol.
package mcp
