package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/searcher"
	"github.com/dshills/docrag-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "docrag-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Deps are the components the server exposes. Storage and Searcher are
// required; Embedder may be nil when no provider could be configured.
type Deps struct {
	Storage   storage.Storage
	Embedder  embedder.Embedder
	Searcher  *searcher.Searcher
	Suggester *searcher.Suggester
	Logger    zerolog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	storage   storage.Storage
	embedder  embedder.Embedder
	searcher  *searcher.Searcher
	suggester *searcher.Suggester
	logger    zerolog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps) (*Server, error) {
	if deps.Storage == nil {
		return nil, errors.New("storage is required")
	}
	if deps.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if deps.Suggester == nil {
		deps.Suggester = searcher.NewSuggester(deps.Storage, 0, 0)
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		storage:   deps.Storage,
		embedder:  deps.Embedder,
		searcher:  deps.Searcher,
		suggester: deps.Suggester,
		logger:    deps.Logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
// The caller owns the storage and closes it afterwards.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Str("server", ServerName).Str("version", ServerVersion).Msg("MCP server listening on stdio")
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(classifyQueryTool(), s.handleClassifyQuery)
	s.mcp.AddTool(suggestKeywordsTool(), s.handleSuggestKeywords)
	s.mcp.AddTool(listKeywordsTool(), s.handleListKeywords)
	s.mcp.AddTool(recentSearchesTool(), s.handleRecentSearches)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
