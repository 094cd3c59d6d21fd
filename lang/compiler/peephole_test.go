package compiler_test

import (
	"testing"

	"github.com/mna/mehl/lang/compiler"
	"github.com/mna/mehl/lang/hir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Dup(1) immediately followed later by Drop(1) with nothing reading 1 in
// between cancels entirely.
func TestPeepholeCancelsDupDropWithNoInterveningUse(t *testing.T) {
	c := &compiler.Closure{
		In:  0,
		Out: 2,
		Code: []compiler.Stmt{
			compiler.Dup{Ids: []hir.Id{1}},
			compiler.Assignment{ID: 2, Expr: compiler.LitExpr{Kind: compiler.LitInt, IntValue: 9}},
			compiler.Drop{Ids: []hir.Id{1}},
		},
	}
	out := compiler.Peephole(c)

	for _, s := range out.Code {
		if d, ok := s.(compiler.Dup); ok {
			assert.NotContains(t, d.Ids, hir.Id(1))
		}
		if d, ok := s.(compiler.Drop); ok {
			assert.NotContains(t, d.Ids, hir.Id(1))
		}
	}
}

// Dup(1) directly precedes an Assignment that uses 1 in its expr, and 1 is
// later Drop'd with no other use: since the Dup immediately precedes the
// read and nothing else touches id 1's refcount in between, the whole
// Dup/Drop pair cancels, leaving only the assignment.
func TestPeepholeCancelsDupImmediatelyBeforeUsingAssignment(t *testing.T) {
	c := &compiler.Closure{
		In:  0,
		Out: 2,
		Code: []compiler.Stmt{
			compiler.Dup{Ids: []hir.Id{1}},
			compiler.Assignment{ID: 2, Expr: compiler.PrimitiveExpr{Arg: 1}},
			compiler.Drop{Ids: []hir.Id{1}},
		},
	}
	out := compiler.Peephole(c)

	require.Len(t, out.Code, 1)
	asn, ok := out.Code[0].(compiler.Assignment)
	require.True(t, ok)
	assert.Equal(t, hir.Id(2), asn.ID)
}

// A value assigned and never read before being dropped (self-drop case):
// Assignment{1,...}; Drop(1) immediately after.
func TestPeepholeSelfDropAfterAssignment(t *testing.T) {
	c := &compiler.Closure{
		In:  0,
		Out: 0,
		Code: []compiler.Stmt{
			compiler.Assignment{ID: 1, Expr: compiler.LitExpr{Kind: compiler.LitInt, IntValue: 1}},
			compiler.Drop{Ids: []hir.Id{1}},
		},
	}
	out := compiler.Peephole(c)

	require.Len(t, out.Code, 2)
	asn, ok := out.Code[0].(compiler.Assignment)
	require.True(t, ok)
	assert.Equal(t, hir.Id(1), asn.ID)
	drop, ok := out.Code[1].(compiler.Drop)
	require.True(t, ok)
	assert.Equal(t, []hir.Id{1}, drop.Ids)
}

// recurses into a nested ClosureExpr.
func TestPeepholeRecursesIntoNestedClosure(t *testing.T) {
	inner := &compiler.Closure{
		In:  1,
		Out: 2,
		Code: []compiler.Stmt{
			compiler.Dup{Ids: []hir.Id{1}},
			compiler.Assignment{ID: 2, Expr: compiler.PrimitiveExpr{Arg: 1}},
			compiler.Drop{Ids: []hir.Id{1}},
		},
	}
	outer := &compiler.Closure{
		In:  0,
		Out: 3,
		Code: []compiler.Stmt{
			compiler.Assignment{ID: 3, Expr: compiler.ClosureExpr{Closure: inner}},
		},
	}
	out := compiler.Peephole(outer)
	require.Len(t, out.Code, 1)
	asn := out.Code[0].(compiler.Assignment)
	ce := asn.Expr.(compiler.ClosureExpr)
	require.Len(t, ce.Closure.Code, 1) // the dup/drop around the read cancel entirely
	_, ok := ce.Closure.Code[0].(compiler.Assignment)
	assert.True(t, ok)
}
