package mcpfx

import (
	"github.com/0x5457/fs-index/internal/indexer"
	appmcp "github.com/0x5457/fs-index/internal/mcp"
	"github.com/0x5457/fs-index/internal/search"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params represents dependencies for MCP server
type Params struct {
	fx.In

	SearchService *search.Service
	Indexer       indexer.Indexer
	Logger        *zap.Logger
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(params Params) *server.MCPServer {
	return appmcp.New(params.SearchService, params.Indexer, params.Logger.Named("mcp"))
}

// Module provides MCP server components
var Module = fx.Module("mcp",
	fx.Provide(NewMCPServer),
)
