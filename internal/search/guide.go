package search

import (
	"context"
	"fmt"

	"github.com/0x5457/fs-index/internal/embeddings"
	"github.com/0x5457/fs-index/internal/featurizer"
	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/storage/memory"
)

// Guide rewrites queries that look for pictures into caption style, so they
// land closer to the "A picture of ..." representations of images.
type Guide struct {
	Intent    *featurizer.Featurizer
	LLM       featurizer.LLM
	Model     string
	Threshold float64
}

// LooksForImage asks the intent featurizer whether query wants an image.
func (g *Guide) LooksForImage(ctx context.Context, query string) (bool, error) {
	emb, err := g.Intent.Embed(ctx, query, g.Model, 0, 1)
	if err != nil {
		return false, err
	}
	c, ok := emb.Coefficient(featurizer.FeatureLookingForImage)
	threshold := g.Threshold
	if threshold <= 0 {
		threshold = 0.5
	}
	return ok && c >= threshold, nil
}

// imageHits returns nothing when the query is not about images.
func (g *Guide) imageHits(
	ctx context.Context,
	e embeddings.Embedder,
	query string,
	snap *memory.Snapshot,
	f models.Filters,
	minScore float64,
	topK int,
) ([]models.Hit, error) {
	image, err := g.LooksForImage(ctx, query)
	if err != nil || !image {
		return nil, err
	}
	caption, err := featurizer.GeneralizeImageQuery(ctx, g.LLM, g.Model, query)
	if err != nil {
		return nil, err
	}
	vec, err := e.EmbedQuery(ctx, fmt.Sprintf("%s, which is %s", query, caption))
	if err != nil {
		return nil, err
	}
	if f.FileType == "" {
		f.FileType = string(models.KindImage)
	}
	return Rank(snap, vec, f, minScore, topK), nil
}
