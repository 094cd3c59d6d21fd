package compiler

import "github.com/mna/mehl/lang/hir"

// LitKind identifies which literal variant a LitExpr constructs.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitString
	LitSymbol
)

// Expr is the right-hand side of a LIR Assignment.
type Expr interface {
	usedIds() []hir.Id
}

// LitExpr constructs an Int, String, or Symbol value; only the field
// matching Kind is meaningful.
type LitExpr struct {
	Kind        LitKind
	IntValue    int64
	StringValue string
	SymbolValue string
}

func (LitExpr) usedIds() []hir.Id { return nil }

// CompositeExpr constructs a List (Map false, Elems set) or a Map (Map true,
// Pairs set) from already-Dup'd ids.
type CompositeExpr struct {
	Map   bool
	Pairs []hir.MapPair
	Elems []hir.Id
}

func (e CompositeExpr) usedIds() []hir.Id {
	if !e.Map {
		return e.Elems
	}
	ids := make([]hir.Id, 0, len(e.Pairs)*2)
	for _, p := range e.Pairs {
		ids = append(ids, p.Key, p.Value)
	}
	return ids
}

// ClosureExpr constructs a closure value from a lowered nested Closure.
type ClosureExpr struct{ Closure *Closure }

func (ClosureExpr) usedIds() []hir.Id { return nil }

// CallExpr invokes a closure value as a function.
type CallExpr struct{ Fun, Arg hir.Id }

func (e CallExpr) usedIds() []hir.Id { return []hir.Id{e.Fun, e.Arg} }

// PrimitiveExpr invokes a primitive.
type PrimitiveExpr struct {
	Kind *hir.PrimitiveKind
	Arg  hir.Id
}

func (e PrimitiveExpr) usedIds() []hir.Id { return []hir.Id{e.Arg} }

// Stmt is one entry of a Closure's Code: an Assignment, or an explicit
// refcount change (Dup/Drop), batched per statement.
type Stmt interface{ isStmt() }

// Assignment binds id to the value produced by Expr.
type Assignment struct {
	ID   hir.Id
	Expr Expr
}

// Dup increments the refcount of every id in Ids, in order.
type Dup struct{ Ids []hir.Id }

// Drop decrements the refcount of every id in Ids, in order.
type Drop struct{ Ids []hir.Id }

func (Assignment) isStmt() {}
func (Dup) isStmt()        {}
func (Drop) isStmt()       {}

// Closure is the lowered form of an hir.Block: a flat statement list with
// explicit dup/drop and an explicit, sorted capture set.
type Closure struct {
	Captured []hir.Id
	In, Out  hir.Id
	Code     []Stmt
}
