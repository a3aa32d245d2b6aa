package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/0x5457/fs-index/internal/indexer"
	"github.com/gobwas/glob"
)

// Entry is one regular file found under the root.
type Entry struct {
	Path string
	Info fs.FileInfo
}

// Walker lists indexable files in lexical order.
type Walker struct {
	excludedDirs map[string]struct{}
	patterns     []glob.Glob
	skipHidden   bool
	skip         []string
}

// NewWalker compiles the exclude patterns. Patterns match slash separated
// paths relative to the root, or bare file and directory names. skip lists
// absolute paths (and their children) that are never indexed.
func NewWalker(excludedDirs, patterns []string, skipHidden bool, skip ...string) (*Walker, error) {
	w := &Walker{
		excludedDirs: make(map[string]struct{}, len(excludedDirs)),
		skipHidden:   skipHidden,
	}
	for _, d := range excludedDirs {
		w.excludedDirs[d] = struct{}{}
	}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		w.patterns = append(w.patterns, g)
	}
	for _, s := range skip {
		if s == "" {
			continue
		}
		if abs, err := filepath.Abs(s); err == nil {
			s = abs
		}
		if real, err := filepath.EvalSymlinks(s); err == nil {
			s = real
		}
		w.skip = append(w.skip, s)
	}
	return w, nil
}

// CanonicalRoot resolves root to an absolute path without symlinks.
func CanonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &indexer.EnumerationError{Root: root, Err: err}
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", &indexer.EnumerationError{Root: root, Err: err}
	}
	return real, nil
}

// Walk enumerates root, which must be canonical. Any error, including an
// unreadable directory anywhere below root, fails the whole walk.
func (w *Walker) Walk(ctx context.Context, root string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			if !d.IsDir() {
				return fmt.Errorf("%s is not a directory", root)
			}
			return nil
		}
		if w.skipped(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		name := d.Name()
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if _, ok := w.excludedDirs[name]; ok || w.hidden(name) || w.excluded(rel, name) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || w.hidden(name) || w.excluded(rel, name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: path, Info: info})
		return nil
	})
	if err != nil {
		return nil, &indexer.EnumerationError{Root: root, Err: err}
	}
	return entries, nil
}

func (w *Walker) hidden(name string) bool {
	return w.skipHidden && strings.HasPrefix(name, ".")
}

func (w *Walker) excluded(rel, name string) bool {
	for _, g := range w.patterns {
		if g.Match(rel) || g.Match(name) {
			return true
		}
	}
	return false
}

var sqliteSideFiles = []string{"-wal", "-shm", "-journal"}

// skipped matches the skip paths, their children, and their sqlite side files
// such as index.db-wal.
func (w *Walker) skipped(path string) bool {
	for _, s := range w.skip {
		if path == s || strings.HasPrefix(path, s+string(filepath.Separator)) {
			return true
		}
		for _, suffix := range sqliteSideFiles {
			if path == s+suffix {
				return true
			}
		}
	}
	return false
}
