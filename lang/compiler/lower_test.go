package compiler_test

import (
	"testing"

	"github.com/mna/mehl/lang/ast"
	"github.com/mna/mehl/lang/compiler"
	"github.com/mna/mehl/lang/hir"
	"github.com/mna/mehl/lang/token"
	"github.com/stretchr/testify/require"
)

func TestCompileChunkLiteral(t *testing.T) {
	chunk := &ast.Chunk{Name: "t", Body: ast.Seq{
		&ast.IntLit{Pos: token.MakePosition("t", 1, 1), Value: 42},
	}}
	b, err := compiler.CompileChunk(chunk)
	require.NoError(t, err)
	require.NoError(t, b.Validate())
	require.Len(t, b.Stmts, 1)
	require.Equal(t, hir.IntOp{Value: 42}, b.Stmts[0].Op)
	require.Equal(t, b.Stmts[0].ID, b.Out)
}

func TestCompileChunkUnknownNameErrors(t *testing.T) {
	chunk := &ast.Chunk{Name: "t", Body: ast.Seq{
		&ast.IntLit{Pos: token.MakePosition("t", 1, 1), Value: 1},
		&ast.Name{Pos: token.MakePosition("t", 1, 2), Value: "nope"},
	}}
	_, err := compiler.CompileChunk(chunk)
	require.Error(t, err)
	var ce *compiler.CompileError
	require.ErrorAs(t, err, &ce)
}

func TestCompileChunkLetThenCall(t *testing.T) {
	// 1 wrap: Int(5); let x; x (calls the bound thunk, ignoring current dot)
	chunk := &ast.Chunk{Name: "t", Body: ast.Seq{
		&ast.IntLit{Pos: token.MakePosition("t", 1, 1), Value: 5},
		&ast.Let{Pos: token.MakePosition("t", 1, 2), Name: "x"},
		&ast.IntLit{Pos: token.MakePosition("t", 1, 3), Value: 99},
		&ast.Name{Pos: token.MakePosition("t", 1, 4), Value: "x"},
	}}
	b, err := compiler.CompileChunk(chunk)
	require.NoError(t, err)
	require.NoError(t, b.Validate())

	out, err := hir.Optimize(b)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	lit, ok := out.Stmts[len(out.Stmts)-1].Op.(hir.IntOp)
	require.True(t, ok, "expected final Int literal after inlining the thunk, got %#v", out.Stmts[len(out.Stmts)-1].Op)
	require.Equal(t, int64(5), lit.Value)
}

func TestCompileChunkMagicPrimitiveAddFolds(t *testing.T) {
	// [(2, 3) :add ✨]
	chunk := &ast.Chunk{Name: "t", Body: ast.Seq{
		&ast.ListLit{
			Pos: token.MakePosition("t", 1, 1),
			End: token.MakePosition("t", 1, 2),
			Elems: []ast.Seq{
				{&ast.SymbolLit{Pos: token.MakePosition("t", 1, 1), Value: "add"}},
				{
					&ast.ListLit{
						Pos: token.MakePosition("t", 1, 1),
						End: token.MakePosition("t", 1, 2),
						Elems: []ast.Seq{
							{&ast.IntLit{Pos: token.MakePosition("t", 1, 1), Value: 2}},
							{&ast.IntLit{Pos: token.MakePosition("t", 1, 1), Value: 3}},
						},
					},
				},
			},
		},
		&ast.Name{Pos: token.MakePosition("t", 1, 5), Value: "✨"},
	}}
	b, err := compiler.CompileChunk(chunk)
	require.NoError(t, err)
	require.NoError(t, b.Validate())

	out, err := hir.Optimize(b)
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	lit, ok := out.Stmts[len(out.Stmts)-1].Op.(hir.IntOp)
	require.True(t, ok, "expected folded Int literal, got %#v", out.Stmts[len(out.Stmts)-1].Op)
	require.Equal(t, int64(5), lit.Value)
}
