package cmdsfx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/0x5457/fs-index/internal/cache"
	"github.com/0x5457/fs-index/internal/config"
	"github.com/0x5457/fs-index/internal/indexer/pipeline"
	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/search"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
)

// CommandRunner provides methods to run different application commands
type CommandRunner struct {
	config        *config.Config
	searchService *search.Service
	indexer       *pipeline.Indexer
	cache         *cache.Cache
	mcpServer     *server.MCPServer
	out           io.Writer
}

// Params represents dependencies for command runner
type Params struct {
	fx.In

	Config        *config.Config
	SearchService *search.Service   `optional:"true"`
	Indexer       *pipeline.Indexer `optional:"true"`
	Cache         *cache.Cache      `optional:"true"`
	MCPServer     *server.MCPServer `optional:"true"`
	Out           io.Writer         `name:"stdout" optional:"true"`
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(params Params) *CommandRunner {
	out := params.Out
	if out == nil {
		out = os.Stdout
	}
	return &CommandRunner{
		config:        params.Config,
		searchService: params.SearchService,
		indexer:       params.Indexer,
		cache:         params.Cache,
		mcpServer:     params.MCPServer,
		out:           out,
	}
}

// RunIndex performs one pass in the foreground, printing its progress
func (r *CommandRunner) RunIndex(ctx context.Context) error {
	if r.indexer == nil {
		return fmt.Errorf("indexer not available")
	}

	stop := r.indexer.Watch(func(p models.Progress) {
		pct := 100.0
		if p.Total > 0 {
			pct = float64(p.Done) / float64(p.Total) * 100
		}
		fmt.Fprintf(r.out, "\r[%3.0f%%] stage=%-9s %d/%d %-40s",
			pct, p.Stage, p.Done, p.Total, p.CurrentFile)
	})
	res, err := r.indexer.Run(ctx)
	stop()
	fmt.Fprintln(r.out)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "index completed in %s: scanned=%d indexed=%d unchanged=%d removed=%d failed=%d version=%d\n",
		res.Duration.Round(time.Millisecond),
		res.Scanned, res.Indexed, res.Unchanged, res.Removed, res.Failed, res.Version)
	return nil
}

// RunSearch executes semantic search
func (r *CommandRunner) RunSearch(
	ctx context.Context,
	query string,
	raw search.RawFilters,
	topK int,
	asJSON bool,
) error {
	if r.searchService == nil {
		return fmt.Errorf("search service not available")
	}

	filters, err := search.ParseFilters(raw)
	if err != nil {
		return err
	}
	resp, err := r.searchService.Search(ctx, models.Query{Text: query, Filters: filters, TopK: topK})
	if err != nil {
		return err
	}
	if asJSON {
		return r.printJSON(resp)
	}

	if len(resp.Hits) == 0 {
		fmt.Fprintln(r.out, "no results")
		return nil
	}
	for _, hit := range resp.Hits {
		fmt.Fprintf(r.out, "[%.3f] %s (%s, %d bytes, %s)\n",
			hit.Score, hit.Path, hit.Kind, hit.SizeBytes, hit.ModifiedAt.Format(time.DateOnly))
		if hit.Summary != "" {
			fmt.Fprintf(r.out, "        %s\n", hit.Summary)
		}
	}
	return nil
}

type statsOutput struct {
	models.IndexStats
	CacheEntries int `json:"cache_entries"`
}

// RunStats prints the index statistics as JSON
func (r *CommandRunner) RunStats(context.Context) error {
	if r.indexer == nil {
		return fmt.Errorf("indexer not available")
	}
	return r.printJSON(statsOutput{IndexStats: r.indexer.Stats(), CacheEntries: r.cache.Len()})
}

// RunServe blocks until ctx is done; the HTTP server and the scheduler run
// on the application lifecycle.
func (r *CommandRunner) RunServe(ctx context.Context) error {
	fmt.Fprintf(r.out, "serving %s on http://%s\n", r.config.Root, r.config.Addr())
	<-ctx.Done()
	return nil
}

// RunMCPServer executes the MCP server
func (r *CommandRunner) RunMCPServer(transport, address string) error {
	if r.mcpServer == nil {
		return fmt.Errorf("MCP server not available")
	}

	switch transport {
	case "stdio":
		return server.ServeStdio(r.mcpServer)
	case "http":
		// Streamable HTTP server on address, default ":8080" if empty
		addr := address
		if addr == "" {
			addr = ":8080"
		}
		httpSrv := server.NewStreamableHTTPServer(r.mcpServer)
		return httpSrv.Start(addr)
	case "sse":
		// SSE server exposes two endpoints; default base path "/mcp"
		addr := address
		if addr == "" {
			addr = ":8080"
		}
		sseSrv := server.NewSSEServer(r.mcpServer,
			server.WithBaseURL(""),
			server.WithStaticBasePath("/mcp"),
		)
		return sseSrv.Start(addr)
	default:
		return fmt.Errorf(
			"unsupported transport: %s (supported: stdio, http, sse)",
			transport,
		)
	}
}

func (r *CommandRunner) printJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Module provides command runner
var Module = fx.Module("commands",
	fx.Provide(NewCommandRunner),
)
