package appfx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/0x5457/fs-index/cmd/cmdsfx"
	"github.com/0x5457/fs-index/internal/indexer/indexerfx"
	"github.com/0x5457/fs-index/internal/search"
	"github.com/0x5457/fs-index/internal/server/serverfx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

// localConfig selects the offline embedder so no service is needed
func localConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "embedding:\n  provider: local\n  dimension: 16\nlog:\n  level: error\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func supply(t *testing.T, root, configPath string) fx.Option {
	return fx.Supply(
		fx.Annotate(configPath, fx.ResultTags(`name:"configPath"`)),
		fx.Annotate(root, fx.ResultTags(`name:"root"`)),
		fx.Annotate(filepath.Join(t.TempDir(), "index.db"), fx.ResultTags(`name:"dbPath"`)),
	)
}

func TestAppModule(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("# groceries\nmilk, eggs"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	var out bytes.Buffer
	var runner *cmdsfx.CommandRunner
	app := fx.New(
		Module,
		fx.NopLogger,
		supply(t, root, localConfig(t, "")),
		fx.Provide(fx.Annotate(func() io.Writer { return &out }, fx.ResultTags(`name:"stdout"`))),
		fx.Populate(&runner),
	)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()
	require.NotNil(t, runner)

	require.NoError(t, runner.RunIndex(ctx))
	assert.Contains(t, out.String(), "indexed=2")

	out.Reset()
	require.NoError(t, runner.RunSearch(ctx, "groceries", search.RawFilters{}, 5, true))
	var resp map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Len(t, resp["results"], 2)

	out.Reset()
	require.NoError(t, runner.RunStats(ctx))
	var stats map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.EqualValues(t, 2, stats["indexed_files"])
	assert.EqualValues(t, 1, stats["index_version"])
}

func TestServeModules(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	root := t.TempDir()
	cfg := localConfig(t, "server:\n  host: 127.0.0.1\n  port: "+strconv.Itoa(port)+"\nindex:\n  on_start: false\n")
	app := fx.New(
		Module,
		serverfx.Module,
		indexerfx.SchedulerModule,
		fx.NopLogger,
		supply(t, root, cfg),
	)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
