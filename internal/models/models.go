package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindCode  Kind = "code"
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindOther Kind = "other"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCode, KindText, KindImage, KindOther:
		return true
	}
	return false
}

func StringToKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}

// Fingerprint is the cheap change detector for a file. ContentHash is only
// populated when size and mtime alone were ambiguous at index time.
type Fingerprint struct {
	Size        int64
	ModTime     int64 // unix nanoseconds
	ContentHash uint64
	HasHash     bool
}

func (f Fingerprint) String() string {
	hash := "-"
	if f.HasHash {
		hash = strconv.FormatUint(f.ContentHash, 16)
	}
	return fmt.Sprintf("%d:%d:%s", f.Size, f.ModTime, hash)
}

func ParseFingerprint(s string) (Fingerprint, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Fingerprint{}, fmt.Errorf("malformed fingerprint %q", s)
	}
	size, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint size: %w", err)
	}
	mtime, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint mtime: %w", err)
	}
	fp := Fingerprint{Size: size, ModTime: mtime}
	if parts[2] != "-" {
		h, err := strconv.ParseUint(parts[2], 16, 64)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("fingerprint hash: %w", err)
		}
		fp.ContentHash = h
		fp.HasHash = true
	}
	return fp, nil
}

// SameStat reports whether size and mtime agree.
func (f Fingerprint) SameStat(o Fingerprint) bool {
	return f.Size == o.Size && f.ModTime == o.ModTime
}

// FileRecord is the persisted semantic representation of one file.
type FileRecord struct {
	Path          string
	Fingerprint   Fingerprint
	Embedding     []float32
	Kind          Kind
	Language      string
	SizeBytes     int64
	ModifiedAt    time.Time
	LastIndexedAt time.Time
	Summary       string
}

// Failure marks a file whose last extraction or embedding attempt failed.
type Failure struct {
	Path     string    `json:"path"`
	Reason   string    `json:"reason"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// Filters narrow a query. Zero values mean "no constraint"; bounds are inclusive.
type Filters struct {
	FileType string     `json:"file_type,omitempty"`
	MinDate  *time.Time `json:"min_date,omitempty"`
	MaxDate  *time.Time `json:"max_date,omitempty"`
	MinSize  *int64     `json:"min_size,omitempty"`
	MaxSize  *int64     `json:"max_size,omitempty"`
}

// Key renders the filters canonically for cache keys.
func (f Filters) Key() string {
	var b strings.Builder
	b.WriteString("type=")
	b.WriteString(strings.ToLower(f.FileType))
	if f.MinDate != nil {
		b.WriteString(";min_date=")
		b.WriteString(strconv.FormatInt(f.MinDate.UnixNano(), 10))
	}
	if f.MaxDate != nil {
		b.WriteString(";max_date=")
		b.WriteString(strconv.FormatInt(f.MaxDate.UnixNano(), 10))
	}
	if f.MinSize != nil {
		b.WriteString(";min_size=")
		b.WriteString(strconv.FormatInt(*f.MinSize, 10))
	}
	if f.MaxSize != nil {
		b.WriteString(";max_size=")
		b.WriteString(strconv.FormatInt(*f.MaxSize, 10))
	}
	return b.String()
}

type Query struct {
	Text    string
	Filters Filters
	TopK    int
}

type Hit struct {
	Path       string    `json:"path"`
	Score      float64   `json:"score"`
	Summary    string    `json:"summary"`
	Kind       Kind      `json:"kind"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

type SearchResponse struct {
	Hits    []Hit  `json:"results"`
	Version uint64 `json:"index_version"`
	Cached  bool   `json:"cached"`
}

// PassResult summarizes one indexing pass.
type PassResult struct {
	ID        string        `json:"id"`
	Started   time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Scanned   int           `json:"scanned"`
	Unchanged int           `json:"unchanged"`
	Indexed   int           `json:"indexed"`
	Removed   int           `json:"removed"`
	Failed    int           `json:"failed"`
	Version   uint64        `json:"index_version"`
	Error     string        `json:"error,omitempty"`
}

type IndexStats struct {
	IndexedFiles   int         `json:"indexed_files"`
	Version        uint64      `json:"index_version"`
	InProgress     bool        `json:"in_progress"`
	EmbeddingModel string      `json:"embedding_model"`
	Failures       int         `json:"failures"`
	LastPass       *PassResult `json:"last_pass,omitempty"`
}

type Stage string

const (
	StageEnumerate Stage = "enumerate"
	StageExtract   Stage = "extract"
	StageEmbed     Stage = "embed"
	StageCommit    Stage = "commit"
)

// Progress is reported while a pass runs.
type Progress struct {
	Stage       Stage
	Done        int
	Total       int
	CurrentFile string
}
