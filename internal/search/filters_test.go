package search_test

import (
	"testing"
	"time"

	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestParseFilters(t *testing.T) {
	f, err := search.ParseFilters(search.RawFilters{
		FileType: " pdf ",
		MinDate:  "2024-01-01",
		MaxDate:  "2024-01-31",
		MinSize:  ptr(int64(10)),
	})
	require.NoError(t, err)
	assert.Equal(t, "pdf", f.FileType)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *f.MinDate)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), *f.MaxDate)

	f, err = search.ParseFilters(search.RawFilters{MaxDate: "2024-01-31T10:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC), f.MaxDate.UTC())
}

func TestParseFiltersRejects(t *testing.T) {
	tests := map[string]search.RawFilters{
		"bad date":      {MinDate: "yesterday"},
		"negative size": {MaxSize: ptr(int64(-5))},
		"size order":    {MinSize: ptr(int64(10)), MaxSize: ptr(int64(5))},
		"date order":    {MinDate: "2024-02-01", MaxDate: "2024-01-01"},
		"file type":     {FileType: "*.exe"},
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := search.ParseFilters(raw)
			assert.ErrorIs(t, err, search.ErrInvalidQuery)
		})
	}
}

func TestMatch(t *testing.T) {
	rec := &models.FileRecord{
		Path:       "/r/Report.PDF",
		Kind:       models.KindOther,
		SizeBytes:  2048,
		ModifiedAt: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC),
	}
	day, _ := search.ParseFilters(search.RawFilters{MinDate: "2024-01-15", MaxDate: "2024-01-15"})

	assert.True(t, search.Match(models.Filters{}, rec))
	assert.True(t, search.Match(models.Filters{FileType: "pdf"}, rec))
	assert.True(t, search.Match(models.Filters{FileType: ".pdf"}, rec))
	assert.True(t, search.Match(models.Filters{FileType: "other"}, rec))
	assert.False(t, search.Match(models.Filters{FileType: "image"}, rec))
	assert.True(t, search.Match(day, rec))
	assert.True(t, search.Match(models.Filters{MinSize: ptr(int64(2048)), MaxSize: ptr(int64(2048))}, rec))
	assert.False(t, search.Match(models.Filters{MaxSize: ptr(int64(2047))}, rec))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, search.Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, -1.0, search.Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, search.Cosine([]float32{0, 0}, []float32{1, 0}))
}
