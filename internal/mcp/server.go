package mcp

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/productrank-mcp/internal/service"
)

const (
	// ServerName is the MCP server name
	ServerName = "productrank-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	svc    *service.Service
	logger zerolog.Logger
}

// NewServer creates a new MCP server instance over svc. The caller keeps
// ownership of svc.
func NewServer(svc *service.Service, logger zerolog.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("service is required")
	}

	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		svc:    svc,
		logger: logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve runs the MCP server on stdio and blocks until stdin closes or ctx
// is cancelled. Stdout carries the protocol, so nothing else may write to it.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(s.logger, "", 0))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(searchProductsTool(), s.handleSearchProducts)
	s.mcp.AddTool(indexCatalogTool(), s.handleIndexCatalog)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
