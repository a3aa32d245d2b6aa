package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/0x5457/fs-index/internal/indexer"
	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/search"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const (
	serverName    = "fs-index/mcp"
	serverVersion = "0.1.0"
)

type Searcher interface {
	Search(ctx context.Context, q models.Query) (*models.SearchResponse, error)
}

// Server exposes search and indexing as MCP tools
type Server struct {
	searcher Searcher
	indexer  indexer.Indexer
	log      *zap.Logger
}

// New returns an MCP server exposing search_files, reindex and index_stats.
// Either dependency may be nil; its tools then report an error.
func New(searcher Searcher, idx indexer.Indexer, log *zap.Logger) *server.MCPServer {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &Server{searcher: searcher, indexer: idx, log: log}

	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)
	s.AddTool(newSearchFilesTool(), srv.handleSearchFiles)
	s.AddTool(newReindexTool(), srv.handleReindex)
	s.AddTool(newIndexStatsTool(), srv.handleIndexStats)
	return s
}

// Tool definitions
func newSearchFilesTool() mcp.Tool {
	return mcp.NewTool(
		"search_files",
		mcp.WithDescription("Semantic search over indexed files by natural language query"),
		mcp.WithString("query", mcp.Description("Natural language query"), mcp.Required()),
		mcp.WithString("file_type",
			mcp.Description("Kind (text, code, image, other) or extension without the dot")),
		mcp.WithString("min_date", mcp.Description("Earliest modification time, RFC 3339 or YYYY-MM-DD")),
		mcp.WithString("max_date", mcp.Description("Latest modification time, RFC 3339 or YYYY-MM-DD")),
		mcp.WithNumber("min_size", mcp.Description("Minimum size in bytes")),
		mcp.WithNumber("max_size", mcp.Description("Maximum size in bytes")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of results")),
	)
}

func newReindexTool() mcp.Tool {
	return mcp.NewTool(
		"reindex",
		mcp.WithDescription("Start an indexing pass over the root, or join the running one"),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the pass and return its result"), mcp.DefaultBool(false)),
	)
}

func newIndexStatsTool() mcp.Tool {
	return mcp.NewTool(
		"index_stats",
		mcp.WithDescription("Show index size, version, failures and the last pass"),
	)
}

// Handlers
func (srv *Server) handleSearchFiles(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	if srv.searcher == nil {
		return mcp.NewToolResultError("search service not initialized"), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw := search.RawFilters{
		FileType: req.GetString("file_type", ""),
		MinDate:  req.GetString("min_date", ""),
		MaxDate:  req.GetString("max_date", ""),
	}
	args := req.GetArguments()
	if _, ok := args["min_size"]; ok {
		v := int64(req.GetFloat("min_size", 0))
		raw.MinSize = &v
	}
	if _, ok := args["max_size"]; ok {
		v := int64(req.GetFloat("max_size", 0))
		raw.MaxSize = &v
	}
	filters, err := search.ParseFilters(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := srv.searcher.Search(ctx, models.Query{
		Text:    query,
		Filters: filters,
		TopK:    req.GetInt("top_k", 0),
	})
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		return mcp.NewToolResultError(err.Error()), nil
	case errors.Is(err, search.ErrServiceUnavailable):
		return mcp.NewToolResultError("embedding service unavailable"), nil
	case err != nil:
		srv.log.Error("search failed", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(resp), nil
}

func (srv *Server) handleReindex(
	ctx context.Context,
	req mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	if srv.indexer == nil {
		return mcp.NewToolResultError("indexer not initialized"), nil
	}
	if !req.GetBool("wait", false) {
		coalesced := srv.indexer.Trigger()
		return mcp.NewToolResultStructuredOnly(map[string]any{
			"status":    "accepted",
			"coalesced": coalesced,
			"timestamp": time.Now().UTC(),
		}), nil
	}
	res, err := srv.indexer.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(res), nil
}

func (srv *Server) handleIndexStats(
	_ context.Context,
	_ mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	if srv.indexer == nil {
		return mcp.NewToolResultError("indexer not initialized"), nil
	}
	return mcp.NewToolResultStructuredOnly(srv.indexer.Stats()), nil
}
