package search

import (
	"math"
	"sort"

	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/storage/memory"
)

// Cosine returns the cosine similarity of a and b computed in float64, or 0
// when either vector has no magnitude.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := 0; i < len(a) && i < len(b); i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	den := math.Sqrt(na) * math.Sqrt(nb)
	if den == 0 {
		return 0
	}
	return dot / den
}

// Rank scores every matching record of the snapshot and returns the best
// topK, ordered by score, then most recently modified, then path.
func Rank(snap *memory.Snapshot, query []float32, f models.Filters, minScore float64, topK int) []models.Hit {
	hits := []models.Hit{}
	snap.Each(func(rec *models.FileRecord) bool {
		if len(rec.Embedding) != len(query) || !Match(f, rec) {
			return true
		}
		score := Cosine(query, rec.Embedding)
		if score < minScore {
			return true
		}
		hits = append(hits, models.Hit{
			Path:       rec.Path,
			Score:      score,
			Summary:    rec.Summary,
			Kind:       rec.Kind,
			SizeBytes:  rec.SizeBytes,
			ModifiedAt: rec.ModifiedAt,
		})
		return true
	})
	sortHits(hits)
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func sortHits(hits []models.Hit) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.After(b.ModifiedAt)
		}
		return a.Path < b.Path
	})
}
