package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dialer func(t *testing.T, ctx context.Context, s *server.MCPServer) transport.Interface

func dialInProcess(t *testing.T, ctx context.Context, s *server.MCPServer) transport.Interface {
	tr := transport.NewInProcessTransport(s)
	require.NoError(t, tr.Start(ctx))
	return tr
}

func dialStreamable(t *testing.T, ctx context.Context, s *server.MCPServer) transport.Interface {
	ts := httptest.NewServer(server.NewStreamableHTTPServer(s))
	t.Cleanup(ts.Close)
	tr, err := transport.NewStreamableHTTP(ts.URL)
	require.NoError(t, err)
	require.NoError(t, tr.Start(ctx))
	return tr
}

// dialSSE mounts the SSE endpoints under /mcp as the mcp command does.
func dialSSE(t *testing.T, _ context.Context, s *server.MCPServer) transport.Interface {
	sse := server.NewSSEServer(s, server.WithStaticBasePath("/mcp"))
	mux := http.NewServeMux()
	mux.Handle("/mcp/sse", sse.SSEHandler())
	mux.Handle("/mcp/message", sse.MessageHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	tr, err := transport.NewSSE(ts.URL + "/mcp/sse")
	require.NoError(t, err)
	// the client starts SSE transports itself
	return tr
}

func connect(t *testing.T, dial dialer, s *server.MCPServer) (*client.Client, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	cli := client.NewClient(dial(t, ctx, s))
	require.NoError(t, cli.Start(ctx))
	t.Cleanup(func() { _ = cli.Close() })

	var init mcp.InitializeRequest
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "fs-index-test", Version: "0.0.1"}
	_, err := cli.Initialize(ctx, init)
	require.NoError(t, err)
	return cli, ctx
}

func TestTransportsListTools(t *testing.T) {
	for name, dial := range map[string]dialer{
		"in-process": dialInProcess,
		"streamable": dialStreamable,
		"sse":        dialSSE,
	} {
		t.Run(name, func(t *testing.T) {
			cli, ctx := connect(t, dial, New(nil, nil, nil))

			res, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
			require.NoError(t, err)

			var names []string
			for _, tool := range res.Tools {
				names = append(names, tool.Name)
			}
			assert.ElementsMatch(t, []string{"search_files", "reindex", "index_stats"}, names)
		})
	}
}

func TestInProcessCallTool(t *testing.T) {
	cli, ctx := connect(t, dialInProcess, New(nil, &fakeIndexer{}, nil))

	res, err := cli.CallTool(ctx, call("index_stats", map[string]any{}))
	require.NoError(t, err)
	assert.False(t, res.IsError, "%+v", res.Content)

	// no search service is wired, which is reported as a tool error
	res, err = cli.CallTool(ctx, call("search_files", map[string]any{"query": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
