package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0x5457/fs-index/internal/metrics"
	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/storage"
	"go.uber.org/zap"
)

var ErrBatchClosed = errors.New("batch already committed or discarded")

// Store is the process-wide record store. Reads go to the current snapshot
// and never block; writes go through a single open Batch at a time.
type Store struct {
	persister storage.Persister
	log       *zap.Logger
	metrics   *metrics.Metrics

	current atomic.Pointer[Snapshot]
	writer  sync.Mutex
}

// Open loads the persisted state. A nil persister keeps everything in memory.
func Open(ctx context.Context, p storage.Persister, log *zap.Logger, m *metrics.Metrics) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{persister: p, log: log, metrics: m}
	snap := emptySnapshot()
	if p != nil {
		st, err := p.Load(ctx)
		if err != nil {
			return nil, err
		}
		snap.Version = st.Version
		snap.Model = st.Model
		for i := range st.Records {
			rec := st.Records[i]
			snap.records[rec.Path] = &rec
			snap.paths = append(snap.paths, rec.Path)
		}
		sort.Strings(snap.paths)
		for _, f := range st.Failures {
			snap.failures[f.Path] = f
		}
		if len(st.Corrupt) > 0 {
			log.Warn("dropped corrupt records on load", zap.Int("count", len(st.Corrupt)))
		}
	}
	s.current.Store(snap)
	m.SnapshotPublished(snap.Len(), snap.Version)
	log.Info("record store opened",
		zap.Int("records", snap.Len()),
		zap.Uint64("version", snap.Version),
		zap.String("model", snap.Model))
	return s, nil
}

func (s *Store) Snapshot() *Snapshot { return s.current.Load() }

func (s *Store) Get(path string) (models.FileRecord, bool) { return s.Snapshot().Get(path) }

func (s *Store) GetFingerprint(path string) (models.Fingerprint, bool) {
	rec, ok := s.Snapshot().records[path]
	if !ok {
		return models.Fingerprint{}, false
	}
	return rec.Fingerprint, true
}

func (s *Store) ListUnder(root string) []models.FileRecord { return s.Snapshot().ListUnder(root) }

func (s *Store) Len() int { return s.Snapshot().Len() }

func (s *Store) Version() uint64 { return s.Snapshot().Version }

func (s *Store) Model() string { return s.Snapshot().Model }

func (s *Store) Failures() []models.Failure { return s.Snapshot().Failures() }

// Upsert writes a single record as its own batch.
func (s *Store) Upsert(ctx context.Context, rec models.FileRecord) (uint64, error) {
	b := s.Begin()
	b.Upsert(rec)
	return b.Commit(ctx)
}

// Remove deletes a single record as its own batch.
func (s *Store) Remove(ctx context.Context, path string) (uint64, error) {
	b := s.Begin()
	b.Remove(path)
	return b.Commit(ctx)
}

// Begin opens the write batch, waiting for any other batch to finish.
func (s *Store) Begin() *Batch {
	s.writer.Lock()
	return &Batch{
		store:   s,
		base:    s.Snapshot(),
		upserts: map[string]models.FileRecord{},
		removes: map[string]struct{}{},
	}
}

func (s *Store) Close() error {
	if s.persister == nil {
		return nil
	}
	s.writer.Lock()
	defer s.writer.Unlock()
	return s.persister.Close()
}

// Batch collects changes that become visible together on Commit.
type Batch struct {
	store *Store
	base  *Snapshot
	done  bool

	upserts  map[string]models.FileRecord
	removes  map[string]struct{}
	failures []models.Failure
	clear    []string
	model    string
	setModel bool
}

func (b *Batch) Upsert(rec models.FileRecord) {
	delete(b.removes, rec.Path)
	b.upserts[rec.Path] = rec
}

func (b *Batch) Remove(path string) {
	delete(b.upserts, path)
	b.removes[path] = struct{}{}
}

// MarkFailed records a failure marker, counting consecutive attempts.
func (b *Batch) MarkFailed(path, reason string, at time.Time) {
	attempts := 1
	if prev, ok := b.base.failures[path]; ok {
		attempts = prev.Attempts + 1
	}
	b.failures = append(b.failures, models.Failure{Path: path, Reason: reason, Attempts: attempts, FailedAt: at})
}

func (b *Batch) ClearFailure(path string) {
	if _, ok := b.base.failures[path]; ok {
		b.clear = append(b.clear, path)
	}
}

func (b *Batch) SetModel(model string) {
	if model != b.base.Model {
		b.model = model
		b.setModel = true
	}
}

// Size is the number of pending record mutations.
func (b *Batch) Size() int { return len(b.upserts) + len(b.removes) }

// Commit persists the batch in one transaction and publishes the next
// snapshot. The version advances by one when records were added, changed or
// removed. On error the store keeps its last committed state.
func (b *Batch) Commit(ctx context.Context) (uint64, error) {
	if b.done {
		return 0, ErrBatchClosed
	}
	defer b.finish()

	s := b.store
	changes := b.changes()
	if changes.Empty() {
		return b.base.Version, nil
	}

	version := b.base.Version
	if changes.Mutates() {
		version++
	}
	changes.Version = version

	if s.persister != nil {
		if err := s.persister.Apply(ctx, changes); err != nil {
			return b.base.Version, err
		}
	}

	next := b.base.apply(version, changes)
	s.current.Store(next)
	s.metrics.SnapshotPublished(next.Len(), next.Version)
	s.log.Debug("snapshot published",
		zap.Uint64("version", version),
		zap.Int("upserts", len(changes.Upserts)),
		zap.Int("removes", len(changes.Removes)))
	return version, nil
}

// Discard drops the batch without writing anything.
func (b *Batch) Discard() {
	if !b.done {
		b.finish()
	}
}

func (b *Batch) finish() {
	b.done = true
	b.store.writer.Unlock()
}

func (b *Batch) changes() storage.Changes {
	c := storage.Changes{
		Model:         b.model,
		SetModel:      b.setModel,
		Failures:      b.failures,
		ClearFailures: b.clear,
	}
	for _, rec := range b.upserts {
		c.Upserts = append(c.Upserts, rec)
	}
	for p := range b.removes {
		if _, ok := b.base.records[p]; ok {
			c.Removes = append(c.Removes, p)
		}
	}
	sort.Slice(c.Upserts, func(i, j int) bool { return c.Upserts[i].Path < c.Upserts[j].Path })
	sort.Strings(c.Removes)
	return c
}
