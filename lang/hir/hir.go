// Package hir implements the high-level intermediate representation: nested
// code blocks over a single-assignment, linearly-numbered statement list,
// the replace-range rewrite primitive that all HIR transformations are built
// on, and the optimizer passes (dead-code elimination, common sub-expression
// elimination, primitive specialization, pure-primitive folding, inlining)
// that run on it before lowering to LIR.
//
// Ids are drawn from a single strictly increasing sequence across an entire
// compiled chunk: a nested Code block's statements continue the same counter
// as their enclosing block, which is what lets a uniform id-rewrite function
// reach into nested blocks (see ReplaceRange).
package hir

import (
	"fmt"
	"sort"
)

// Id names a Block input or a Statement, drawn from a program-wide
// monotonically increasing sequence.
type Id uint32

// Block is a single-assignment, linearly-numbered sequence of statements. In
// is the id denoting the block's input (the dot on entry); it is never the
// id of a Stmt. Out names the block's result, either In itself or one of its
// Stmts' ids.
type Block struct {
	In    Id
	Out   Id
	Stmts []Stmt
}

// Stmt is one numbered entry of a Block.
type Stmt struct {
	ID Id
	Op StmtOp
}

// StmtOp is the operation performed by a Stmt: a literal constructor, a
// composite constructor, a nested code value, a call, or a primitive
// invocation.
type StmtOp interface {
	// refs returns, in positional order, the ids this operation references.
	// CodeOp is the one exception: it has no direct refs of its own (its
	// references live inside its nested Block and are reached by recursing
	// into it, not through refs/withRefs).
	refs() []Id

	// withRefs returns a copy of this op with its referenced ids replaced,
	// positionally, by newRefs (len(newRefs) == len(refs())).
	withRefs(newRefs []Id) StmtOp

	// pure reports whether evaluating this operation has no side effect
	// besides producing its value, making it eligible for dead-code removal,
	// common sub-expression elimination, and (if it's a Primitive) constant
	// folding.
	pure() bool
}

// IndexOf returns the position within b.Stmts of the statement with id id,
// or -1 if id is not a statement of this block (e.g. it is b.In, an id of
// a nested block, or out of range). Statement ids are strictly increasing
// but not necessarily contiguous: the ids of a nested Code block's own
// statements sit in the gap just before the Code statement's id.
func (b *Block) IndexOf(id Id) int {
	i := sort.Search(len(b.Stmts), func(i int) bool { return b.Stmts[i].ID >= id })
	if i < len(b.Stmts) && b.Stmts[i].ID == id {
		return i
	}
	return -1
}

// InScope reports whether id names b.In or one of b.Stmts' ids.
func (b *Block) InScope(id Id) bool {
	return id == b.In || b.IndexOf(id) >= 0
}

// Validate checks the well-formedness invariants from the data model:
// statement ids strictly increase and stay above In, every reference
// points strictly backward to an id in scope, and Out is in scope. Checks
// start at the root's own scope: an id referencing an ancestor of b itself
// cannot be validated here, since Block has no notion of its ancestors.
func (b *Block) Validate() error {
	return b.validate(nil)
}

// validate checks this block given the set of ids visible from enclosing
// blocks (inherited scope).
func (b *Block) validate(outer func(Id) bool) error {
	prev := b.In
	for _, s := range b.Stmts {
		if s.ID <= prev {
			return fmt.Errorf("hir: statement id %d not increasing after %d", s.ID, prev)
		}
		prev = s.ID
		for _, r := range s.Op.refs() {
			if r >= s.ID {
				return fmt.Errorf("hir: statement %d references non-prior id %d", s.ID, r)
			}
			if !b.InScope(r) && (outer == nil || !outer(r)) {
				return fmt.Errorf("hir: statement %d references out-of-scope id %d", s.ID, r)
			}
		}
		if co, ok := s.Op.(CodeOp); ok {
			childOuter := func(id Id) bool {
				return b.InScope(id) || (outer != nil && outer(id))
			}
			if err := co.Block.validate(childOuter); err != nil {
				return fmt.Errorf("hir: in nested code at %d: %w", s.ID, err)
			}
		}
	}
	if !b.InScope(b.Out) && (outer == nil || !outer(b.Out)) {
		return fmt.Errorf("hir: out %d is out of scope", b.Out)
	}
	return nil
}

// Size returns the number of statements in b, counted recursively into
// nested Code blocks. It is the metric the optimizer iterates passes
// against until a fixed point is reached.
func (b *Block) Size() int {
	n := len(b.Stmts)
	for _, s := range b.Stmts {
		if co, ok := s.Op.(CodeOp); ok {
			n += co.Block.Size()
		}
	}
	return n
}
