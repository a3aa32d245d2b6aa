package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0x5457/fs-index/internal/cache"
	"github.com/0x5457/fs-index/internal/indexer"
	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/search"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Searcher interface {
	Search(ctx context.Context, q models.Query) (*models.SearchResponse, error)
}

type Handlers struct {
	searcher Searcher
	indexer  indexer.Indexer
	cache    *cache.Cache
	timeout  time.Duration
	log      *zap.Logger
}

func NewHandlers(
	searcher Searcher,
	idx indexer.Indexer,
	c *cache.Cache,
	timeout time.Duration,
	log *zap.Logger,
) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{searcher: searcher, indexer: idx, cache: c, timeout: timeout, log: log}
}

type searchRequest struct {
	Query   string             `json:"query"`
	Filters *search.RawFilters `json:"filters,omitempty"`
	TopK    int                `json:"top_k,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	resp, err := h.run(r, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type legacyRequest struct {
	Query string `json:"query"`
}

type legacyResponse struct {
	Result []string `json:"result"`
}

// HandleQuery serves the flat list of paths the web client renders.
func (h *Handlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req legacyRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	resp, err := h.run(r, searchRequest{Query: req.Query})
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := legacyResponse{Result: make([]string, len(resp.Hits))}
	for i, hit := range resp.Hits {
		out.Result[i] = hit.Path
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) run(r *http.Request, req searchRequest) (*models.SearchResponse, error) {
	q := models.Query{Text: req.Query, TopK: req.TopK}
	if req.Filters != nil {
		f, err := search.ParseFilters(*req.Filters)
		if err != nil {
			return nil, err
		}
		q.Filters = f
	}
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	return h.searcher.Search(ctx, q)
}

func (h *Handlers) HandleReindex(w http.ResponseWriter, r *http.Request) {
	coalesced := h.indexer.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "accepted",
		"coalesced": coalesced,
		"timestamp": time.Now().UTC(),
	})
}

type statsResponse struct {
	models.IndexStats
	CacheEntries int `json:"cache_entries"`
}

func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		IndexStats:   h.indexer.Stats(),
		CacheEntries: h.cache.Len(),
	})
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, search.ErrServiceUnavailable):
		status, msg = http.StatusServiceUnavailable, "embedding service unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "request timed out"
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("search failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a single JSON object, rejecting unknown keys.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed request: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("malformed request: trailing data after JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
