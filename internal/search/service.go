package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/0x5457/fs-index/internal/cache"
	"github.com/0x5457/fs-index/internal/embeddings"
	"github.com/0x5457/fs-index/internal/metrics"
	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/storage/memory"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const maxQueryRunes = 4096

type Options struct {
	TopK     int
	MaxTopK  int
	MinScore float64
}

// Service answers natural-language queries against the record store,
// consulting the result cache first.
type Service struct {
	Embedder embeddings.Embedder
	Store    *memory.Store
	Cache    *cache.Cache
	Options  Options
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	// Guide is optional and enables LLM guided image search
	Guide *Guide

	group singleflight.Group
}

// Normalize trims the query and collapses inner whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (s *Service) Search(ctx context.Context, q models.Query) (*models.SearchResponse, error) {
	start := time.Now()
	resp, outcome, err := s.search(ctx, q)
	s.Metrics.QueryFinished(outcome, time.Since(start).Seconds())
	return resp, err
}

func (s *Service) search(ctx context.Context, q models.Query) (*models.SearchResponse, string, error) {
	text := Normalize(q.Text)
	if text == "" {
		return nil, "invalid", invalid("query is empty")
	}
	if utf8.RuneCountInString(text) > maxQueryRunes {
		return nil, "invalid", invalid("query is longer than %d characters", maxQueryRunes)
	}
	topK, err := s.topK(q.TopK)
	if err != nil {
		return nil, "invalid", err
	}
	if err := ValidateFilters(q.Filters); err != nil {
		return nil, "invalid", err
	}

	snap := s.Store.Snapshot()
	s.Cache.InvalidateOnVersionChange(snap.Version)
	key := cache.NewKey(text, q.Filters, topK, snap.Version)
	if hits, ok := s.Cache.Get(key); ok {
		return &models.SearchResponse{Hits: hits, Version: snap.Version, Cached: true}, "cached", nil
	}

	// identical misses share one embedding call; a caller giving up must not
	// fail the others
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key.String(), func() (any, error) {
		hits, err := s.rank(shared, text, q.Filters, topK, snap)
		if err != nil {
			return nil, err
		}
		s.Cache.Put(key, hits)
		return hits, nil
	})
	select {
	case <-ctx.Done():
		return nil, "error", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			if errors.Is(r.Err, ErrServiceUnavailable) {
				return nil, "unavailable", r.Err
			}
			return nil, "error", r.Err
		}
		hits := append([]models.Hit{}, r.Val.([]models.Hit)...)
		return &models.SearchResponse{Hits: hits, Version: snap.Version}, "ok", nil
	}
}

func (s *Service) topK(requested int) (int, error) {
	def, limit := s.Options.TopK, s.Options.MaxTopK
	if def <= 0 {
		def = 10
	}
	if limit <= 0 {
		limit = 100
	}
	switch {
	case requested == 0:
		return def, nil
	case requested < 0 || requested > limit:
		return 0, invalid("top_k must be between 1 and %d", limit)
	default:
		return requested, nil
	}
}

func (s *Service) rank(ctx context.Context, text string, f models.Filters, topK int, snap *memory.Snapshot) ([]models.Hit, error) {
	vec, err := s.Embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	hits := Rank(snap, vec, f, s.Options.MinScore, topK)
	if s.Guide == nil {
		return hits, nil
	}
	guided, err := s.Guide.imageHits(ctx, s.Embedder, text, snap, f, s.Options.MinScore, topK)
	if err != nil {
		s.logger().Warn("guided search failed, using plain results", zap.String("query", text), zap.Error(err))
		return hits, nil
	}
	return merge(guided, hits, topK), nil
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// merge puts preferred hits first and drops later duplicates.
func merge(preferred, rest []models.Hit, topK int) []models.Hit {
	out := make([]models.Hit, 0, len(preferred)+len(rest))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]models.Hit{preferred, rest} {
		for _, h := range list {
			if _, ok := seen[h.Path]; ok {
				continue
			}
			seen[h.Path] = struct{}{}
			out = append(out, h)
		}
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
