package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/storage"
	"github.com/0x5457/fs-index/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersister(t *testing.T) {
	storagetest.Run(t, func(path string) (storage.Persister, error) {
		return New(path, nil)
	})
}

func TestCorruptRowsAreDropped(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.db")

	p, err := New(path, nil)
	require.NoError(t, err)
	require.NoError(t, p.Apply(ctx, storage.Changes{
		Version: 1,
		Upserts: []models.FileRecord{
			storagetest.Record("/r/good.txt", 0.1),
			storagetest.Record("/r/bad.txt", 0.2),
		},
	}))
	_, err = p.db.Exec(`UPDATE records SET checksum = checksum + 1 WHERE path = ?`, "/r/bad.txt")
	require.NoError(t, err)

	st, err := p.Load(ctx)
	require.NoError(t, err)
	require.Len(t, st.Records, 1)
	assert.Equal(t, "/r/good.txt", st.Records[0].Path)
	require.Len(t, st.Corrupt, 1)
	assert.Equal(t, "/r/bad.txt", st.Corrupt[0].Path)

	var n int
	require.NoError(t, p.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, p.Close())
}
