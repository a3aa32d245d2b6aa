// Package storagetest holds the behaviour every persister must share.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Record builds a record with a small embedding derived from seed.
func Record(path string, seed float32) models.FileRecord {
	return models.FileRecord{
		Path:          path,
		Fingerprint:   models.Fingerprint{Size: int64(seed * 100), ModTime: 1700000000000000000},
		Embedding:     []float32{seed, 1 - seed, 0.5, -seed},
		Kind:          models.KindText,
		SizeBytes:     int64(seed * 100),
		ModifiedAt:    time.Unix(1700000000, 0),
		LastIndexedAt: time.Unix(1700000100, 0),
		Summary:       "summary of " + path,
	}
}

// Run exercises a persister. open is called with a database path and may be
// called again with the same path to reopen it.
func Run(t *testing.T, openPath func(path string) (storage.Persister, error)) {
	ctx := context.Background()
	newOpener := func(t *testing.T) func(t *testing.T) storage.Persister {
		path := filepath.Join(t.TempDir(), "index.db")
		return func(t *testing.T) storage.Persister {
			p, err := openPath(path)
			require.NoError(t, err)
			return p
		}
	}

	t.Run("empty", func(t *testing.T) {
		open := newOpener(t)
		p := open(t)
		st, err := p.Load(ctx)
		require.NoError(t, err)
		assert.Zero(t, st.Version)
		assert.Empty(t, st.Records)
		require.NoError(t, p.Close())
	})

	t.Run("apply and reload", func(t *testing.T) {
		open := newOpener(t)
		p := open(t)
		require.NoError(t, p.Apply(ctx, storage.Changes{
			Version:  1,
			Model:    "local-hash-4",
			SetModel: true,
			Upserts:  []models.FileRecord{Record("/r/a.txt", 0.1), Record("/r/b.txt", 0.2)},
			Failures: []models.Failure{{Path: "/r/bad.txt", Reason: "boom", Attempts: 1, FailedAt: time.Unix(5, 0)}},
		}))
		require.NoError(t, p.Apply(ctx, storage.Changes{
			Version:       2,
			Upserts:       []models.FileRecord{Record("/r/a.txt", 0.3)},
			Removes:       []string{"/r/b.txt"},
			ClearFailures: []string{"/r/bad.txt"},
		}))
		require.NoError(t, p.Close())

		p = open(t)
		defer func() { _ = p.Close() }()
		st, err := p.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), st.Version)
		assert.Equal(t, "local-hash-4", st.Model)
		assert.Empty(t, st.Failures)
		require.Len(t, st.Records, 1)
		assert.Equal(t, "/r/a.txt", st.Records[0].Path)
		assert.Equal(t, Record("/r/a.txt", 0.3).Embedding, st.Records[0].Embedding)
		assert.Empty(t, st.Corrupt)
	})

	t.Run("failures persist", func(t *testing.T) {
		open := newOpener(t)
		p := open(t)
		defer func() { _ = p.Close() }()
		require.NoError(t, p.Apply(ctx, storage.Changes{
			Version:  2,
			Failures: []models.Failure{{Path: "/r/c.txt", Reason: "timeout", Attempts: 2, FailedAt: time.Unix(9, 0)}},
		}))
		st, err := p.Load(ctx)
		require.NoError(t, err)
		require.Len(t, st.Failures, 1)
		assert.Equal(t, 2, st.Failures[0].Attempts)
		assert.Equal(t, "timeout", st.Failures[0].Reason)
	})
}
