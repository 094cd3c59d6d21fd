package compiler_test

import (
	"testing"

	"github.com/mna/mehl/lang/compiler"
	"github.com/mna/mehl/lang/hir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// b.In=0, stmt1=Int(2), stmt2=Int(3), stmt3=List(1,2), Out=3. No captures,
// no nested blocks: a plain straight-line closure.
func TestLowerFlatBlockNoCaptures(t *testing.T) {
	b := &hir.Block{
		In:  0,
		Out: 3,
		Stmts: []hir.Stmt{
			{ID: 1, Op: hir.IntOp{Value: 2}},
			{ID: 2, Op: hir.IntOp{Value: 3}},
			{ID: 3, Op: hir.ListOp{Elems: []hir.Id{1, 2}}},
		},
	}
	require.NoError(t, b.Validate())

	c := compiler.Lower(b)
	assert.Empty(t, c.Captured)
	assert.Equal(t, hir.Id(0), c.In)
	assert.Equal(t, hir.Id(3), c.Out)

	require.Len(t, c.Code, 5)
	assert.Equal(t, compiler.Assignment{ID: 1, Expr: compiler.LitExpr{Kind: compiler.LitInt, IntValue: 2}}, c.Code[0])
	assert.Equal(t, compiler.Assignment{ID: 2, Expr: compiler.LitExpr{Kind: compiler.LitInt, IntValue: 3}}, c.Code[1])
	assert.Equal(t, compiler.Dup{Ids: []hir.Id{1, 2}}, c.Code[2])
	assert.Equal(t, compiler.Assignment{ID: 3, Expr: compiler.CompositeExpr{Elems: []hir.Id{1, 2}}}, c.Code[3])

	// end-of-scope drop: every assignment id except Out, plus In (since In != Out).
	drop, ok := c.Code[len(c.Code)-1].(compiler.Drop)
	require.True(t, ok)
	assert.ElementsMatch(t, []hir.Id{1, 2, 0}, drop.Ids)
}

// outer.In=0, stmt1=Int(10) (outer scope value captured by the nested block),
// nested block: In=2, Out=3, Stmts=[{3, Primitive{Add,1}}] referencing the
// outer id 1. stmt2=CodeOp(nested). Out=2.
func TestLowerNestedClosureCapturesOuterId(t *testing.T) {
	addKind := hir.Add
	inner := &hir.Block{
		In:  2,
		Out: 3,
		Stmts: []hir.Stmt{
			{ID: 3, Op: hir.PrimitiveOp{Kind: &addKind, Arg: 1}},
		},
	}
	outer := &hir.Block{
		In:  0,
		Out: 2,
		Stmts: []hir.Stmt{
			{ID: 1, Op: hir.IntOp{Value: 10}},
			{ID: 2, Op: hir.CodeOp{Block: inner}},
		},
	}
	require.NoError(t, outer.Validate())

	c := compiler.Lower(outer)
	require.Empty(t, c.Captured) // nothing in outer references an id below outer.In=0

	// find the ClosureExpr assignment for id 2
	var closureAsn compiler.Assignment
	for _, s := range c.Code {
		if a, ok := s.(compiler.Assignment); ok && a.ID == 2 {
			closureAsn = a
		}
	}
	ce, ok := closureAsn.Expr.(compiler.ClosureExpr)
	require.True(t, ok)
	assert.Equal(t, []hir.Id{1}, ce.Closure.Captured)
	assert.Equal(t, hir.Id(2), ce.Closure.In)
	assert.Equal(t, hir.Id(3), ce.Closure.Out)

	// the Dup{1} preceding the ClosureExpr assignment, for the captured id
	foundDupBeforeClosure := false
	for i, s := range c.Code {
		if a, ok := s.(compiler.Assignment); ok && a.ID == 2 {
			prev, ok := c.Code[i-1].(compiler.Dup)
			require.True(t, ok)
			assert.Equal(t, []hir.Id{1}, prev.Ids)
			foundDupBeforeClosure = true
		}
	}
	assert.True(t, foundDupBeforeClosure)

	// inner closure's own body: Dup(1) then Assignment{3, PrimitiveExpr{Add,1}}, then Drop.
	require.Len(t, ce.Closure.Code, 3)
	assert.Equal(t, compiler.Dup{Ids: []hir.Id{1}}, ce.Closure.Code[0])
	pe, ok := ce.Closure.Code[1].(compiler.Assignment)
	require.True(t, ok)
	assert.Equal(t, hir.Id(3), pe.ID)
	prim, ok := pe.Expr.(compiler.PrimitiveExpr)
	require.True(t, ok)
	assert.Equal(t, &addKind, prim.Kind)
	assert.Equal(t, hir.Id(1), prim.Arg)
}

// a Call statement inside a nested block: Dup(fun), Dup(arg),
// Assignment{CallExpr}, with fun captured from the enclosing scope.
func TestLowerCallDupsFunAndArg(t *testing.T) {
	inner := &hir.Block{
		In:  2,
		Out: 3,
		Stmts: []hir.Stmt{
			{ID: 3, Op: hir.CallOp{Fun: 1, Arg: 2}},
		},
	}
	outer := &hir.Block{
		In:  0,
		Out: 1,
		Stmts: []hir.Stmt{
			{ID: 1, Op: hir.CodeOp{Block: inner}},
		},
	}
	require.NoError(t, outer.Validate())

	c := compiler.Lower(outer)
	var inner2 *compiler.Closure
	for _, s := range c.Code {
		if a, ok := s.(compiler.Assignment); ok {
			if cx, ok := a.Expr.(compiler.ClosureExpr); ok {
				inner2 = cx.Closure
			}
		}
	}
	require.NotNil(t, inner2)
	assert.Equal(t, []hir.Id{1}, inner2.Captured)
	assert.Equal(t, compiler.Dup{Ids: []hir.Id{1, 2}}, inner2.Code[0])
	call, ok := inner2.Code[1].(compiler.Assignment)
	require.True(t, ok)
	assert.Equal(t, compiler.CallExpr{Fun: 1, Arg: 2}, call.Expr)
}
