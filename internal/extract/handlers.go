package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/0x5457/fs-index/internal/embeddings"
	"github.com/0x5457/fs-index/internal/parser"
	"go.uber.org/zap"
)

const picturePrefix = "A picture of "

func (e *Extractor) extractText(_ context.Context, src Source, _ string, _ []byte) (Extraction, error) {
	content, err := e.readText(src.Path)
	if err != nil {
		return Extraction{}, err
	}
	base := filepath.Base(src.Path)
	return Extraction{
		Text:    truncate(base+"\n"+content, e.opts.MaxChars),
		Summary: snippet(content, e.opts.SummaryChars),
	}, nil
}

func (e *Extractor) extractCode(ctx context.Context, src Source, language string, _ []byte) (Extraction, error) {
	content, err := e.readText(src.Path)
	if err != nil {
		return Extraction{}, err
	}

	var b strings.Builder
	b.WriteString(language)
	b.WriteByte(' ')
	b.WriteString(filepath.Base(src.Path))
	b.WriteByte('\n')

	summary := ""
	if e.summarizer != nil {
		s, err := e.summarizer.SummarizeCode(ctx, language, content)
		if err != nil {
			e.log.Warn("code summary failed, using snippet",
				zap.String("path", src.Path), zap.Error(err))
		} else if s = strings.TrimSpace(s); s != "" {
			summary = s
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	if summary == "" {
		summary = snippet(content, e.opts.SummaryChars)
	}

	b.WriteString(e.outline(src.Path, content))
	b.WriteString(content)

	return Extraction{
		Text:    truncate(b.String(), e.opts.MaxChars),
		Summary: summary,
	}, nil
}

func (e *Extractor) outline(path, content string) string {
	for _, o := range e.outliners {
		if !o.Supports(path) {
			continue
		}
		decls, err := o.Outline(path, []byte(content))
		if err != nil {
			e.log.Debug("outline failed", zap.String("path", path), zap.Error(err))
			return ""
		}
		return parser.Render(decls, e.opts.MaxOutline)
	}
	return ""
}

func (e *Extractor) extractImage(ctx context.Context, src Source, _ string, head []byte) (Extraction, error) {
	if e.captioner == nil || src.Size > e.opts.MaxImageBytes {
		return e.extractOther(ctx, src, "", head)
	}
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return Extraction{}, err
	}
	caption, err := e.captioner.Caption(ctx, data, imageMIME(src.Path, head))
	if errors.Is(err, embeddings.ErrNoCaptioner) {
		return e.extractOther(ctx, src, "", head)
	}
	if err != nil {
		return Extraction{}, err
	}
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return Extraction{}, errors.New("empty caption")
	}
	text := picturePrefix + caption
	return Extraction{Text: text, Summary: text}, nil
}

func (e *Extractor) extractOther(_ context.Context, src Source, _ string, _ []byte) (Extraction, error) {
	name := filepath.Base(src.Path)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		ext = "unknown"
	}
	text := fmt.Sprintf("%s (%s file, %d bytes)", name, ext, src.Size)
	return Extraction{Text: text, Summary: text}, nil
}

// readText reads enough of the file to fill MaxChars runes.
func (e *Extractor) readText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, int64(4*e.opts.MaxChars)))
	if err != nil {
		return "", err
	}
	// a multi-byte rune may have been cut at the limit
	for i := 0; i < utf8.UTFMax && len(data) > 0 && !utf8.Valid(data); i++ {
		r, size := utf8.DecodeLastRune(data)
		if r != utf8.RuneError || size != 1 {
			break
		}
		data = data[:len(data)-1]
	}
	return truncate(strings.ToValidUTF8(string(data), "�"), e.opts.MaxChars), nil
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func snippet(s string, max int) string {
	return truncate(strings.Join(strings.Fields(s), " "), max)
}
