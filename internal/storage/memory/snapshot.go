package memory

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/storage"
)

// Snapshot is an immutable view of the store at one index version.
// Records and their embeddings must not be modified by readers.
type Snapshot struct {
	Version  uint64
	Model    string
	records  map[string]*models.FileRecord
	paths    []string
	failures map[string]models.Failure
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		records:  map[string]*models.FileRecord{},
		failures: map[string]models.Failure{},
	}
}

func (s *Snapshot) Len() int { return len(s.paths) }

func (s *Snapshot) Get(path string) (models.FileRecord, bool) {
	rec, ok := s.records[path]
	if !ok {
		return models.FileRecord{}, false
	}
	return *rec, true
}

// Each calls fn for every record in path order until fn returns false.
func (s *Snapshot) Each(fn func(rec *models.FileRecord) bool) {
	for _, p := range s.paths {
		if !fn(s.records[p]) {
			return
		}
	}
}

// ListUnder returns the records at or below root, in path order.
func (s *Snapshot) ListUnder(root string) []models.FileRecord {
	root = strings.TrimSuffix(root, string(filepath.Separator))
	start := sort.SearchStrings(s.paths, root)
	var out []models.FileRecord
	for _, p := range s.paths[start:] {
		if !strings.HasPrefix(p, root) {
			break
		}
		if p == root || p[len(root)] == filepath.Separator || root == "" {
			out = append(out, *s.records[p])
		}
	}
	return out
}

func (s *Snapshot) Failures() []models.Failure {
	out := make([]models.Failure, 0, len(s.failures))
	for _, f := range s.failures {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (s *Snapshot) Failure(path string) (models.Failure, bool) {
	f, ok := s.failures[path]
	return f, ok
}

// apply derives the next snapshot, sharing unchanged records with s.
func (s *Snapshot) apply(version uint64, c storage.Changes) *Snapshot {
	next := &Snapshot{
		Version:  version,
		Model:    s.Model,
		records:  make(map[string]*models.FileRecord, len(s.records)+len(c.Upserts)),
		failures: make(map[string]models.Failure, len(s.failures)),
	}
	if c.SetModel {
		next.Model = c.Model
	}
	for p, r := range s.records {
		next.records[p] = r
	}
	for p, f := range s.failures {
		next.failures[p] = f
	}

	membership := false
	for _, p := range c.Removes {
		delete(next.records, p)
		membership = true
	}
	for i := range c.Upserts {
		rec := c.Upserts[i]
		if _, ok := next.records[rec.Path]; !ok {
			membership = true
		}
		next.records[rec.Path] = &rec
	}
	for _, p := range c.ClearFailures {
		delete(next.failures, p)
	}
	for _, f := range c.Failures {
		next.failures[f.Path] = f
	}

	if membership {
		next.paths = make([]string, 0, len(next.records))
		for p := range next.records {
			next.paths = append(next.paths, p)
		}
		sort.Strings(next.paths)
	} else {
		next.paths = s.paths
	}
	return next
}
