package memory_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/storage"
	"github.com/0x5457/fs-index/internal/storage/memory"
	"github.com/0x5457/fs-index/internal/storage/sqlite"
	"github.com/0x5457/fs-index/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPersister struct {
	storage.Persister
	fail bool
}

func (f *failingPersister) Apply(ctx context.Context, c storage.Changes) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Persister.Apply(ctx, c)
}

func openStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.Open(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	return s
}

func TestBatchCommitBumpsVersionOnce(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	assert.Zero(t, s.Version())

	b := s.Begin()
	b.Upsert(storagetest.Record("/r/a.txt", 0.1))
	b.Upsert(storagetest.Record("/r/b.txt", 0.2))
	b.Upsert(storagetest.Record("/r/c.txt", 0.3))
	v, err := b.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, 3, s.Len())

	_, err = b.Commit(ctx)
	assert.ErrorIs(t, err, memory.ErrBatchClosed)

	v, err = s.Remove(ctx, "/r/b.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
	_, ok := s.Get("/r/b.txt")
	assert.False(t, ok)
}

func TestEmptyBatchKeepsVersion(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := s.Upsert(ctx, storagetest.Record("/r/a.txt", 0.1))
	require.NoError(t, err)

	b := s.Begin()
	b.Remove("/r/missing.txt")
	b.MarkFailed("/r/x.txt", "boom", time.Now())
	v, err := b.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
	require.Len(t, s.Failures(), 1)
	assert.Equal(t, 1, s.Failures()[0].Attempts)

	b = s.Begin()
	b.MarkFailed("/r/x.txt", "boom again", time.Now())
	_, err = b.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Failures()[0].Attempts)

	b = s.Begin()
	b.ClearFailure("/r/x.txt")
	_, err = b.Commit(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.Failures())
	assert.Equal(t, uint64(1), s.Version())
}

func TestSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := s.Upsert(ctx, storagetest.Record("/r/a.txt", 0.1))
	require.NoError(t, err)

	before := s.Snapshot()
	b := s.Begin()
	b.Upsert(storagetest.Record("/r/b.txt", 0.2))
	b.Remove("/r/a.txt")
	assert.Equal(t, 1, s.Len(), "pending batch is invisible")
	_, err = b.Commit(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, before.Len())
	_, ok := before.Get("/r/a.txt")
	assert.True(t, ok)
	_, ok = s.Get("/r/a.txt")
	assert.False(t, ok)
}

func TestFailedCommitKeepsState(t *testing.T) {
	ctx := context.Background()
	p, err := sqlite.New(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	fp := &failingPersister{Persister: p}
	s, err := memory.Open(ctx, fp, nil, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Upsert(ctx, storagetest.Record("/r/a.txt", 0.1))
	require.NoError(t, err)

	fp.fail = true
	b := s.Begin()
	b.Upsert(storagetest.Record("/r/b.txt", 0.2))
	_, err = b.Commit(ctx)
	require.Error(t, err)
	assert.Equal(t, uint64(1), s.Version())
	assert.Equal(t, 1, s.Len())

	// the writer lock was released
	fp.fail = false
	v, err := s.Upsert(ctx, storagetest.Record("/r/b.txt", 0.2))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestReopenRestoresState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	p, err := sqlite.New(path, nil)
	require.NoError(t, err)
	s, err := memory.Open(ctx, p, nil, nil)
	require.NoError(t, err)
	b := s.Begin()
	b.SetModel("local-hash-4")
	b.Upsert(storagetest.Record("/r/b.txt", 0.2))
	b.Upsert(storagetest.Record("/r/a.txt", 0.1))
	_, err = b.Commit(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	p, err = sqlite.New(path, nil)
	require.NoError(t, err)
	s, err = memory.Open(ctx, p, nil, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Equal(t, uint64(1), s.Version())
	assert.Equal(t, "local-hash-4", s.Model())
	recs := s.ListUnder("/r")
	require.Len(t, recs, 2)
	assert.Equal(t, "/r/a.txt", recs[0].Path)
	fp, ok := s.GetFingerprint("/r/b.txt")
	require.True(t, ok)
	assert.Equal(t, storagetest.Record("/r/b.txt", 0.2).Fingerprint, fp)
}

func TestListUnder(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	b := s.Begin()
	for _, p := range []string{"/a/x.txt", "/ab/y.txt", "/a/sub/z.txt", "/b/w.txt"} {
		b.Upsert(models.FileRecord{Path: p, Kind: models.KindText, Embedding: []float32{1}})
	}
	_, err := b.Commit(ctx)
	require.NoError(t, err)

	var paths []string
	for _, r := range s.ListUnder("/a/") {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{"/a/sub/z.txt", "/a/x.txt"}, paths)
	assert.Len(t, s.ListUnder("/"), 4)
}

func TestConcurrentReadersDuringCommits(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				n := 0
				snap.Each(func(*models.FileRecord) bool { n++; return true })
				assert.Equal(t, snap.Len(), n)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		b := s.Begin()
		b.Upsert(storagetest.Record(filepath.Join("/r", string(rune('a'+i%26))+".txt"), 0.1))
		_, err := b.Commit(ctx)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}
