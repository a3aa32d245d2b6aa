package tsparser_test

import (
	"testing"

	"github.com/0x5457/fs-index/internal/parser"
	p "github.com/0x5457/fs-index/internal/parser/tsparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_TSParser_Supports(t *testing.T) {
	ts := p.New()
	assert.True(t, ts.Supports("/a/b.ts"))
	assert.True(t, ts.Supports("/a/B.TSX"))
	assert.False(t, ts.Supports("/a/b.d.ts"))
	assert.False(t, ts.Supports("/a/b.go"))
}

func Test_TSParser_Outline_TS(t *testing.T) {
	code := `
// interface
interface I { x: number }
// type alias
type Alias = string
// enum
export enum E { A, B }
// class with method
export class C {
  m(): void { }
}
// function
export function f(x: number): number {
  const local = x * 2
  return local
}
// variable
const v = 1
`
	decls, err := p.New().Outline("a.ts", []byte(code))
	require.NoError(t, err)

	byName := map[string]parser.Declaration{}
	for _, d := range decls {
		byName[d.Name] = d
	}
	assert.Equal(t, parser.DeclInterface, byName["I"].Kind)
	assert.Equal(t, parser.DeclType, byName["Alias"].Kind)
	assert.Equal(t, parser.DeclEnum, byName["E"].Kind)
	assert.Equal(t, parser.DeclClass, byName["C"].Kind)
	assert.Equal(t, parser.DeclMethod, byName["m"].Kind)
	assert.Equal(t, parser.DeclFunction, byName["f"].Kind)
	assert.Equal(t, parser.DeclVariable, byName["v"].Kind)
	assert.NotContains(t, byName, "local")

	assert.Equal(t, "function f(x: number): number", byName["f"].Signature)
	assert.Equal(t, 13, byName["f"].Line)
}

func Test_TSParser_Outline_TSX(t *testing.T) {
	code := `export function Component(): JSX.Element { return <div/> }`
	decls, err := p.New().Outline("b.tsx", []byte(code))
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "Component", decls[0].Name)
}

func Test_Render(t *testing.T) {
	decls := []parser.Declaration{
		{Kind: parser.DeclFunction, Name: "f", Signature: "function f()"},
		{Kind: parser.DeclClass, Name: "C"},
		{Kind: parser.DeclEnum, Name: "E"},
	}
	assert.Equal(t, "function function f()\nclass C\n", parser.Render(decls, 2))
}
