package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0x5457/fs-index/internal/embeddings"
	"github.com/0x5457/fs-index/internal/extract"
	"github.com/0x5457/fs-index/internal/indexer"
	"github.com/0x5457/fs-index/internal/metrics"
	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/storage/memory"
	"github.com/0x5457/fs-index/internal/util"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Extractor interface {
	Extract(ctx context.Context, src extract.Source) (extract.Extraction, error)
}

type Options struct {
	Root           string
	Workers        int
	EmbedBatchSize int
}

type Indexer struct {
	ex     Extractor
	e      embeddings.Embedder
	store  *memory.Store
	walker *Walker
	opt    Options
	log    *zap.Logger
	m      *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group
	wg     sync.WaitGroup

	running   atomic.Bool
	triggered atomic.Bool
	mu        sync.Mutex
	last      *models.PassResult

	watchMu  sync.Mutex
	watchers map[int]func(models.Progress)
	nextID   int
}

func New(
	ex Extractor,
	e embeddings.Embedder,
	store *memory.Store,
	walker *Walker,
	opt Options,
	log *zap.Logger,
	m *metrics.Metrics,
) *Indexer {
	if opt.Workers <= 0 {
		opt.Workers = 4
	}
	if opt.EmbedBatchSize <= 0 {
		opt.EmbedBatchSize = 32
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		ex:     ex,
		e:      e,
		store:  store,
		walker: walker,
		opt:    opt,
		log:    log,
		m:      m,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run joins the pass in flight or starts one. The pass itself runs on the
// indexer's own context: ctx only bounds how long the caller waits.
func (i *Indexer) Run(ctx context.Context) (models.PassResult, error) {
	ch := i.group.DoChan("pass", func() (any, error) {
		return i.pass(i.ctx)
	})
	select {
	case r := <-ch:
		res, _ := r.Val.(models.PassResult)
		return res, r.Err
	case <-ctx.Done():
		return models.PassResult{}, ctx.Err()
	}
}

// Trigger reports a request as coalesced when a pass is already running or a
// previous trigger has not finished yet.
func (i *Indexer) Trigger() bool {
	if !i.triggered.CompareAndSwap(false, true) {
		return true
	}
	coalesced := i.running.Load()
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		defer i.triggered.Store(false)
		if _, err := i.Run(i.ctx); err != nil && !errors.Is(err, context.Canceled) {
			i.log.Error("background pass failed", zap.Error(err))
		}
	}()
	return coalesced
}

func (i *Indexer) Stats() models.IndexStats {
	snap := i.store.Snapshot()
	stats := models.IndexStats{
		IndexedFiles:   snap.Len(),
		Version:        snap.Version,
		InProgress:     i.running.Load(),
		EmbeddingModel: i.e.ModelName(),
		Failures:       len(snap.Failures()),
	}
	i.mu.Lock()
	if i.last != nil {
		last := *i.last
		stats.LastPass = &last
	}
	i.mu.Unlock()
	return stats
}

// Watch registers fn to receive the progress of passes until stop is called.
// Calls to fn are serialized.
func (i *Indexer) Watch(fn func(models.Progress)) (stop func()) {
	i.watchMu.Lock()
	defer i.watchMu.Unlock()
	if i.watchers == nil {
		i.watchers = make(map[int]func(models.Progress))
	}
	id := i.nextID
	i.nextID++
	i.watchers[id] = fn
	return func() {
		i.watchMu.Lock()
		delete(i.watchers, id)
		i.watchMu.Unlock()
	}
}

func (i *Indexer) report(p models.Progress) {
	i.watchMu.Lock()
	defer i.watchMu.Unlock()
	for _, fn := range i.watchers {
		fn(p)
	}
}

// Close cancels any pass in flight, discarding its batch, and waits for
// background work to finish.
func (i *Indexer) Close() {
	i.cancel()
	i.wg.Wait()
}

type job struct {
	entry Entry
	fp    models.Fingerprint
	ext   extract.Extraction
	vec   []float32
	err   error
}

func (i *Indexer) pass(ctx context.Context) (res models.PassResult, err error) {
	i.running.Store(true)
	defer i.running.Store(false)

	start := time.Now()
	res = models.PassResult{ID: util.NewPassID(), Started: start}
	log := i.log.With(zap.String("pass", res.ID))
	defer func() {
		res.Duration = time.Since(start)
		outcome := "ok"
		if err != nil {
			res.Error = err.Error()
			outcome = "failed"
			log.Error("index pass failed", zap.Error(err))
		}
		i.m.PassFinished(outcome, res.Duration.Seconds())
		i.mu.Lock()
		last := res
		i.last = &last
		i.mu.Unlock()
	}()

	root, err := CanonicalRoot(i.opt.Root)
	if err != nil {
		return res, err
	}
	entries, err := i.walker.Walk(ctx, root)
	if err != nil {
		return res, err
	}
	res.Scanned = len(entries)

	snap := i.store.Snapshot()
	model := i.e.ModelName()
	reembed := snap.Model != model && snap.Len() > 0
	if reembed {
		log.Info("embedding model changed, re-embedding everything",
			zap.String("from", snap.Model), zap.String("to", model))
	}

	seen := make(map[string]struct{}, len(entries))
	var jobs []*job
	for _, en := range entries {
		seen[en.Path] = struct{}{}
		fp := probe(en.Info)
		if rec, ok := snap.Get(en.Path); ok && !reembed && unchanged(en.Path, rec.Fingerprint, fp) {
			res.Unchanged++
			continue
		}
		jobs = append(jobs, &job{entry: en, fp: fp})
	}
	log.Info("enumerated files",
		zap.String("root", root),
		zap.Int("scanned", res.Scanned),
		zap.Int("changed", len(jobs)))
	i.report(models.Progress{Stage: models.StageEnumerate, Done: res.Scanned, Total: res.Scanned})

	if err := i.extractAll(ctx, jobs, start); err != nil {
		return res, err
	}
	if err := i.embedAll(ctx, jobs); err != nil {
		return res, err
	}

	b := i.store.Begin()
	now := time.Now()
	var failures error
	for _, j := range jobs {
		if j.err != nil {
			res.Failed++
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", j.entry.Path, j.err))
			b.MarkFailed(j.entry.Path, j.err.Error(), now)
			continue
		}
		b.Upsert(models.FileRecord{
			Path:          j.entry.Path,
			Fingerprint:   j.fp,
			Embedding:     j.vec,
			Kind:          j.ext.Kind,
			Language:      j.ext.Language,
			SizeBytes:     j.entry.Info.Size(),
			ModifiedAt:    j.entry.Info.ModTime(),
			LastIndexedAt: now,
			Summary:       j.ext.Summary,
		})
		b.ClearFailure(j.entry.Path)
		res.Indexed++
	}
	// the store serves one root: records left over from another root are
	// pruned along with deleted files
	snap.Each(func(rec *models.FileRecord) bool {
		if _, ok := seen[rec.Path]; !ok {
			b.Remove(rec.Path)
			res.Removed++
		}
		return true
	})
	for _, f := range snap.Failures() {
		if _, ok := seen[f.Path]; !ok {
			b.ClearFailure(f.Path)
		}
	}
	// a model switch is only complete once every file carries the new model
	if !reembed || res.Failed == 0 {
		b.SetModel(model)
	}
	if err := ctx.Err(); err != nil {
		b.Discard()
		return res, err
	}
	i.report(models.Progress{Stage: models.StageCommit, Done: b.Size(), Total: b.Size()})
	version, err := b.Commit(ctx)
	if err != nil {
		return res, fmt.Errorf("commit pass: %w", err)
	}
	res.Version = version

	i.m.FilesSeen("indexed", res.Indexed)
	i.m.FilesSeen("unchanged", res.Unchanged)
	i.m.FilesSeen("removed", res.Removed)
	i.m.FilesSeen("failed", res.Failed)
	if failures != nil {
		log.Warn("some files could not be indexed", zap.Int("failed", res.Failed), zap.Error(failures))
	}
	log.Info("index pass finished",
		zap.Int("indexed", res.Indexed),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("removed", res.Removed),
		zap.Int("failed", res.Failed),
		zap.Uint64("version", version),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

// extractAll fills in the extraction of every job with a bounded worker pool.
// Per-file failures are kept on the job; only cancellation aborts.
func (i *Indexer) extractAll(ctx context.Context, jobs []*job, passStart time.Time) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opt.Workers)
	var done atomic.Int64
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fp, err := seal(j.entry.Path, j.fp, passStart)
			if err != nil {
				j.err = &extract.Error{Path: j.entry.Path, Err: err}
				return nil
			}
			j.fp = fp
			j.ext, j.err = i.ex.Extract(gctx, extract.Source{
				Path:    j.entry.Path,
				Size:    j.entry.Info.Size(),
				ModTime: j.entry.Info.ModTime(),
			})
			n := done.Add(1)
			if n%100 == 0 {
				i.log.Info("extraction progress", zap.Int64("done", n), zap.Int("total", len(jobs)))
			}
			i.report(models.Progress{
				Stage:       models.StageExtract,
				Done:        int(n),
				Total:       len(jobs),
				CurrentFile: j.entry.Path,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// embedAll embeds extracted jobs in batches, in enumeration order. A failed
// batch is retried item by item so one bad input only fails itself.
func (i *Indexer) embedAll(ctx context.Context, jobs []*job) error {
	var pending []*job
	for _, j := range jobs {
		if j.err == nil {
			pending = append(pending, j)
		}
	}
	total := len(pending)
	for len(pending) > 0 {
		i.report(models.Progress{Stage: models.StageEmbed, Done: total - len(pending), Total: total})
		n := min(i.opt.EmbedBatchSize, len(pending))
		batch := pending[:n]
		pending = pending[n:]

		texts := make([]string, len(batch))
		for k, j := range batch {
			texts[k] = j.ext.Text
		}
		vecs, err := i.e.EmbedTexts(ctx, texts)
		if err == nil && len(vecs) == len(batch) {
			for k, j := range batch {
				if verr := checkVector(vecs[k]); verr != nil {
					j.err = verr
					continue
				}
				j.vec = vecs[k]
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		i.log.Warn("embedding batch failed, retrying per file", zap.Int("files", len(batch)), zap.Error(err))
		for _, j := range batch {
			vecs, err := i.e.EmbedTexts(ctx, []string{j.ext.Text})
			if err := ctx.Err(); err != nil {
				return err
			}
			switch {
			case err != nil:
				j.err = err
			case len(vecs) != 1:
				j.err = &embeddings.ServiceError{Op: "embed", Attempts: 1, Err: fmt.Errorf("got %d vectors for 1 input", len(vecs))}
			default:
				if j.err = checkVector(vecs[0]); j.err == nil {
					j.vec = vecs[0]
				}
			}
		}
	}
	if total > 0 {
		i.report(models.Progress{Stage: models.StageEmbed, Done: total, Total: total})
	}
	return nil
}

// checkVector rejects vectors the store would later refuse to load.
func checkVector(v []float32) error {
	if len(v) == 0 {
		return &embeddings.ServiceError{Op: "embed", Attempts: 1, Err: errors.New("empty embedding")}
	}
	for _, x := range v {
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return &embeddings.ServiceError{Op: "embed", Attempts: 1, Err: errors.New("non-finite embedding")}
		}
	}
	return nil
}

var _ indexer.Indexer = (*Indexer)(nil)
