package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/0x5457/fs-index/internal/embeddings"
	"github.com/0x5457/fs-index/internal/models"
	"github.com/0x5457/fs-index/internal/parser"
	"go.uber.org/zap"
)

// ErrExtraction matches every per-file extraction failure.
var ErrExtraction = errors.New("extraction failed")

type Error struct {
	Path string
	Kind models.Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrExtraction, e.Err} }

type Source struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Extraction is the textual semantic representation of a file.
type Extraction struct {
	Kind     models.Kind
	Language string
	// Text is the embedding input
	Text    string
	Summary string
}

// CodeSummarizer describes what a piece of source code does.
type CodeSummarizer interface {
	SummarizeCode(ctx context.Context, language, code string) (string, error)
}

type Options struct {
	MaxChars      int
	SummaryChars  int
	MaxImageBytes int64
	MaxOutline    int
}

func (o Options) withDefaults() Options {
	if o.MaxChars <= 0 {
		o.MaxChars = 8000
	}
	if o.SummaryChars <= 0 {
		o.SummaryChars = 240
	}
	if o.MaxImageBytes <= 0 {
		o.MaxImageBytes = 10 << 20
	}
	if o.MaxOutline <= 0 {
		o.MaxOutline = 40
	}
	return o
}

type handler func(ctx context.Context, src Source, language string, head []byte) (Extraction, error)

// Extractor dispatches on file kind. Captioner and summarizer are optional.
type Extractor struct {
	opts       Options
	captioner  embeddings.Captioner
	summarizer CodeSummarizer
	outliners  []parser.Outliner
	log        *zap.Logger
	handlers   map[models.Kind]handler
}

func New(
	opts Options,
	captioner embeddings.Captioner,
	summarizer CodeSummarizer,
	outliners []parser.Outliner,
	log *zap.Logger,
) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Extractor{
		opts:       opts.withDefaults(),
		captioner:  captioner,
		summarizer: summarizer,
		outliners:  outliners,
		log:        log,
	}
	e.handlers = map[models.Kind]handler{
		models.KindCode:  e.extractCode,
		models.KindText:  e.extractText,
		models.KindImage: e.extractImage,
		models.KindOther: e.extractOther,
	}
	return e
}

func (e *Extractor) Extract(ctx context.Context, src Source) (Extraction, error) {
	head, err := readPrefix(src.Path, 512)
	if err != nil {
		return Extraction{}, &Error{Path: src.Path, Err: err}
	}
	kind, language := DetectKind(src.Path, head)
	h, ok := e.handlers[kind]
	if !ok {
		return Extraction{}, &Error{Path: src.Path, Kind: kind, Err: errors.New("no handler")}
	}
	out, err := h(ctx, src, language, head)
	if err != nil {
		return Extraction{}, &Error{Path: src.Path, Kind: kind, Err: err}
	}
	out.Kind = kind
	out.Language = language
	return out, nil
}

func readPrefix(path string, n int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(io.LimitReader(f, n))
}
