package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/0x5457/fs-index/internal/cache"
	"github.com/0x5457/fs-index/internal/metrics"
	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/search"
	"github.com/0x5457/fs-index/internal/server"
	"github.com/0x5457/fs-index/internal/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct{ err error }

func (f fixedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, f.err
}

func (f fixedEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (fixedEmbedder) ModelName() string { return "fixed" }

type fakeIndexer struct {
	triggered int
	running   bool
}

func (f *fakeIndexer) Run(context.Context) (models.PassResult, error) {
	return models.PassResult{}, nil
}

func (f *fakeIndexer) Trigger() bool {
	f.triggered++
	return f.running
}

func (f *fakeIndexer) Stats() models.IndexStats {
	return models.IndexStats{IndexedFiles: 2, Version: 1, EmbeddingModel: "fixed"}
}

type fixture struct {
	srv     *httptest.Server
	indexer *fakeIndexer
	cache   *cache.Cache
}

func newFixture(t *testing.T, embedErr error) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := memory.Open(ctx, nil, nil, nil)
	require.NoError(t, err)
	mod := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	b := store.Begin()
	b.Upsert(models.FileRecord{Path: "/data/a.md", Embedding: []float32{1, 0}, Kind: models.KindText, SizeBytes: 10, ModifiedAt: mod})
	b.Upsert(models.FileRecord{Path: "/data/b.go", Embedding: []float32{0.5, 0.5}, Kind: models.KindCode, SizeBytes: 90_000, ModifiedAt: mod})
	b.SetModel("fixed")
	_, err = b.Commit(ctx)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := cache.New(16, time.Minute, m)
	svc := &search.Service{
		Embedder: fixedEmbedder{err: embedErr},
		Store:    store,
		Cache:    c,
		Options:  search.Options{TopK: 10, MaxTopK: 50, MinScore: -1},
		Metrics:  m,
	}
	idx := &fakeIndexer{}
	h := server.NewHandlers(svc, idx, c, time.Second, nil)
	srv := httptest.NewServer(server.CORS([]string{"http://localhost:3000"}, server.NewMux(h, reg)))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, indexer: idx, cache: c}
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)

	resp, out := f.post(t, "/search", `{"query":"notes","top_k":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	results := out["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "/data/a.md", results[0].(map[string]any)["path"])
	assert.Equal(t, false, out["cached"])
	assert.EqualValues(t, 1, out["index_version"])

	_, out = f.post(t, "/search", `{"query":"  notes ","top_k":5}`)
	assert.Equal(t, true, out["cached"])
	assert.Equal(t, 1, f.cache.Len())
}

func TestSearchFilters(t *testing.T) {
	f := newFixture(t, nil)

	resp, out := f.post(t, "/search", `{"query":"notes","filters":{"max_size":50000}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := out["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "/data/a.md", results[0].(map[string]any)["path"])

	resp, out = f.post(t, "/search", `{"query":"notes","filters":{"file_type":"code"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["results"].([]any), 1)
}

func TestSearchRejectsBadRequests(t *testing.T) {
	f := newFixture(t, nil)

	for name, body := range map[string]string{
		"empty query":    `{"query":"   "}`,
		"unknown filter": `{"query":"x","filters":{"color":"red"}}`,
		"bad date":       `{"query":"x","filters":{"min_date":"yesterday"}}`,
		"inverted sizes": `{"query":"x","filters":{"min_size":10,"max_size":1}}`,
		"negative top_k": `{"query":"x","top_k":-1}`,
		"not json":       `query=x`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, out := f.post(t, "/search", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestSearchUnavailable(t *testing.T) {
	f := newFixture(t, errors.New("connection refused"))

	resp, out := f.post(t, "/search", `{"query":"notes"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "embedding service unavailable", out["error"])
}

func TestLegacyQuery(t *testing.T) {
	f := newFixture(t, nil)

	resp, out := f.post(t, "/query", `{"query":"notes"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"/data/a.md", "/data/b.go"}, out["result"])
}

func TestReindex(t *testing.T) {
	f := newFixture(t, nil)

	resp, out := f.post(t, "/reindex", ``)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "accepted", out["status"])
	assert.Equal(t, false, out["coalesced"])
	assert.NotEmpty(t, out["timestamp"])

	f.indexer.running = true
	_, out = f.post(t, "/reindex", ``)
	assert.Equal(t, true, out["coalesced"])
	assert.Equal(t, 2, f.indexer.triggered)
}

func TestStatsAndHealth(t *testing.T) {
	f := newFixture(t, nil)
	f.post(t, "/search", `{"query":"notes"}`)

	resp, err := http.Get(f.srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.EqualValues(t, 2, stats["indexed_files"])
	assert.EqualValues(t, 1, stats["cache_entries"])
	assert.Equal(t, "fixed", stats["embedding_model"])

	resp, err = http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.post(t, "/search", `{"query":"notes"}`)

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := new(strings.Builder)
	_, err = io.Copy(body, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "fs_index_queries_total")
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Get(f.srv.URL + "/search")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, nil)

	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/search", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, f.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
