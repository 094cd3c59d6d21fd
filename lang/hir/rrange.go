package hir

import "fmt"

// ReplaceRange substitutes the contiguous range of length statements
// starting at start with replacement, remapping every forward reference to
// an id in that range via remap, and shifting every other forward reference
// by the resulting change in statement count. It is the single primitive
// every HIR rewrite (dead-code elimination, common
// sub-expression elimination, primitive specialization, pure-primitive
// folding, inlining) is built from.
//
// start need not belong to root directly: since ids are numbered from one
// program-wide sequence, start may name a statement nested arbitrarily
// deep inside a Code literal, and ReplaceRange locates the block that
// actually owns it. Every id in the tree, at any depth, is shifted by the
// same rule, which is what lets a single rewrite reach into nested scopes.
//
// replacement statements are given without explicit ids; ReplaceRange
// assigns them consecutive ids starting at start.
//
// remap must provide, for every id in [start, start+length), the id of the
// replacement statement (or an outer/earlier id) that now stands in for it;
// ReplaceRange fails if a forward reference into the range has no entry.
func ReplaceRange(root *Block, start Id, length int, replacement []StmtOp, remap map[Id]Id) (*Block, error) {
	delta := len(replacement) - length
	t := func(id Id) (Id, error) {
		switch {
		case id < start:
			return id, nil
		case id < start+Id(length):
			newID, ok := remap[id]
			if !ok {
				return 0, fmt.Errorf("hir: replace_range: no remap entry for id %d", id)
			}
			return newID, nil
		default:
			return Id(int64(id) + int64(delta)), nil
		}
	}

	newRoot, found, err := spliceBlock(root, start, length, replacement, t)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("hir: replace_range: start id %d not found", start)
	}
	return newRoot, nil
}

// spliceBlock rewrites b under the global id-shift function t, splicing
// replacement in at start if the range [start, start+length) lives directly
// in b's own statement list, or recursing into whichever nested Code
// statement owns it otherwise. found reports whether the range was located
// anywhere in b's subtree.
func spliceBlock(b *Block, start Id, length int, replacement []StmtOp, t func(Id) (Id, error)) (*Block, bool, error) {
	if idx := b.IndexOf(start); idx >= 0 {
		if idx+length > len(b.Stmts) {
			return nil, false, fmt.Errorf("hir: replace_range: range [%d,%d) exceeds its block", start, int(start)+length)
		}
		newStmts := make([]Stmt, 0, len(b.Stmts)-length+len(replacement))
		newStmts = append(newStmts, b.Stmts[:idx]...)
		for i, op := range replacement {
			newStmts = append(newStmts, Stmt{ID: start + Id(i), Op: op})
		}
		for _, s := range b.Stmts[idx+length:] {
			rs, err := rewriteStmt(s, t)
			if err != nil {
				return nil, false, err
			}
			newStmts = append(newStmts, rs)
		}
		newIn, err := t(b.In)
		if err != nil {
			return nil, false, err
		}
		newOut, err := t(b.Out)
		if err != nil {
			return nil, false, err
		}
		return &Block{In: newIn, Out: newOut, Stmts: newStmts}, true, nil
	}

	newStmts := make([]Stmt, len(b.Stmts))
	found := false
	for i, s := range b.Stmts {
		if co, ok := s.Op.(CodeOp); ok && !found {
			newInner, hit, err := spliceBlock(co.Block, start, length, replacement, t)
			if err != nil {
				return nil, false, err
			}
			if hit {
				newID, err := t(s.ID)
				if err != nil {
					return nil, false, err
				}
				newStmts[i] = Stmt{ID: newID, Op: CodeOp{Block: newInner}}
				found = true
				continue
			}
		}
		rs, err := rewriteStmt(s, t)
		if err != nil {
			return nil, false, err
		}
		newStmts[i] = rs
	}
	newIn, err := t(b.In)
	if err != nil {
		return nil, false, err
	}
	newOut, err := t(b.Out)
	if err != nil {
		return nil, false, err
	}
	return &Block{In: newIn, Out: newOut, Stmts: newStmts}, found, nil
}

// rewriteStmt applies t to s's own id and to every id it (transitively, for
// a nested CodeOp) references. It never splices; it is used for statements
// outside the range being replaced.
func rewriteStmt(s Stmt, t func(Id) (Id, error)) (Stmt, error) {
	newID, err := t(s.ID)
	if err != nil {
		return Stmt{}, err
	}

	if co, ok := s.Op.(CodeOp); ok {
		newBlock, err := rewriteBlock(co.Block, t)
		if err != nil {
			return Stmt{}, err
		}
		return Stmt{ID: newID, Op: CodeOp{Block: newBlock}}, nil
	}

	oldRefs := s.Op.refs()
	newRefs := make([]Id, len(oldRefs))
	for i, r := range oldRefs {
		nr, err := t(r)
		if err != nil {
			return Stmt{}, err
		}
		newRefs[i] = nr
	}
	return Stmt{ID: newID, Op: s.Op.withRefs(newRefs)}, nil
}

// rewriteBlock applies t to every id reachable from a nested code block: its
// own In/Out, and recursively every statement inside it.
func rewriteBlock(b *Block, t func(Id) (Id, error)) (*Block, error) {
	newIn, err := t(b.In)
	if err != nil {
		return nil, err
	}
	newOut, err := t(b.Out)
	if err != nil {
		return nil, err
	}
	newStmts := make([]Stmt, len(b.Stmts))
	for i, s := range b.Stmts {
		rs, err := rewriteStmt(s, t)
		if err != nil {
			return nil, err
		}
		newStmts[i] = rs
	}
	return &Block{In: newIn, Out: newOut, Stmts: newStmts}, nil
}
