package parser

import "strings"

type DeclKind string

const (
	DeclFunction  DeclKind = "function"
	DeclClass     DeclKind = "class"
	DeclMethod    DeclKind = "method"
	DeclInterface DeclKind = "interface"
	DeclType      DeclKind = "type"
	DeclEnum      DeclKind = "enum"
	DeclVariable  DeclKind = "variable"
)

// Declaration is one named top-level construct found in a source file.
type Declaration struct {
	Kind      DeclKind
	Name      string
	Signature string
	Line      int
}

// Outliner lists the declarations of source files it understands.
type Outliner interface {
	Supports(path string) bool
	Outline(path string, code []byte) ([]Declaration, error)
}

// Render formats declarations one per line, at most max lines (0 = all).
func Render(decls []Declaration, max int) string {
	if max > 0 && len(decls) > max {
		decls = decls[:max]
	}
	var b strings.Builder
	for _, d := range decls {
		b.WriteString(string(d.Kind))
		b.WriteByte(' ')
		if d.Signature != "" {
			b.WriteString(d.Signature)
		} else {
			b.WriteString(d.Name)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
