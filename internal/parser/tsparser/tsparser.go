package tsparser

import (
	"strings"

	"github.com/0x5457/fs-index/internal/parser"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tstypes "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

type TSParser struct{}

func New() *TSParser { return &TSParser{} }

func (p *TSParser) Supports(path string) bool {
	lower := strings.ToLower(path)
	return (strings.HasSuffix(lower, ".ts") || strings.HasSuffix(lower, ".tsx")) &&
		!strings.HasSuffix(lower, ".d.ts")
}

func (p *TSParser) Outline(path string, code []byte) ([]parser.Declaration, error) {
	ts := tree_sitter.NewParser()
	defer ts.Close()

	lang := tree_sitter.NewLanguage(tstypes.LanguageTypescript())
	if strings.HasSuffix(strings.ToLower(path), ".tsx") {
		lang = tree_sitter.NewLanguage(tstypes.LanguageTSX())
	}
	if err := ts.SetLanguage(lang); err != nil {
		return nil, err
	}

	tree := ts.Parse(code, nil)
	defer tree.Close()

	var decls []parser.Declaration
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "function_declaration":
			decls = appendDecl(decls, n, code, parser.DeclFunction)
		case "class_declaration":
			decls = appendDecl(decls, n, code, parser.DeclClass)
		case "method_definition", "method_signature":
			decls = appendDecl(decls, n, code, parser.DeclMethod)
		case "interface_declaration":
			decls = appendDecl(decls, n, code, parser.DeclInterface)
		case "type_alias_declaration":
			decls = appendDecl(decls, n, code, parser.DeclType)
		case "enum_declaration":
			decls = appendDecl(decls, n, code, parser.DeclEnum)
		case "variable_declarator":
			// only module level bindings, locals add noise
			if isTopLevel(n) {
				decls = appendDecl(decls, n, code, parser.DeclVariable)
			}
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return decls, nil
}

func isTopLevel(n *tree_sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case "program":
			return true
		case "lexical_declaration", "variable_declaration", "export_statement":
			continue
		default:
			return false
		}
	}
	return false
}

func childIdentifier(n *tree_sitter.Node, code []byte) string {
	// Prefer named field `name` if available
	if c := n.ChildByFieldName("name"); c != nil {
		return string(code[c.StartByte():c.EndByte()])
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "identifier", "property_identifier", "type_identifier":
			return string(code[c.StartByte():c.EndByte()])
		}
	}
	return ""
}

func appendDecl(
	decls []parser.Declaration,
	n *tree_sitter.Node,
	code []byte,
	kind parser.DeclKind,
) []parser.Declaration {
	name := childIdentifier(n, code)
	if name == "" {
		return decls
	}
	return append(decls, parser.Declaration{
		Kind:      kind,
		Name:      name,
		Signature: signature(string(code[n.StartByte():n.EndByte()])),
		Line:      int(n.StartPosition().Row) + 1,
	})
}

// signature is the first line of a declaration without its opening body.
func signature(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "{")
	return strings.TrimSpace(s)
}

var _ parser.Outliner = (*TSParser)(nil)
