package hir

// dceOnce removes the last pure, unreferenced statement in b, scanning
// backward so a dead statement goes before any dead statement it references,
// and recursing into nested Code blocks first so inner dead code is cleaned up
// before an outer CodeOp is itself considered for removal. It reports
// whether it made a change, since Optimize drives every pass to a fixed
// point rather than looping internally.
func dceOnce(b *Block) (*Block, bool, error) {
	for i, s := range b.Stmts {
		if co, ok := s.Op.(CodeOp); ok {
			newInner, changed, err := dceOnce(co.Block)
			if err != nil {
				return nil, false, err
			}
			if changed {
				newStmts := append([]Stmt(nil), b.Stmts...)
				newStmts[i] = Stmt{ID: s.ID, Op: CodeOp{Block: newInner}}
				return &Block{In: b.In, Out: b.Out, Stmts: newStmts}, true, nil
			}
		}
	}

	live := liveSet(b)
	for i := len(b.Stmts) - 1; i >= 0; i-- {
		s := b.Stmts[i]
		if live[s.ID] {
			continue
		}
		if !s.Op.pure() {
			continue
		}
		out, err := ReplaceRange(b, s.ID, 1, nil, nil)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}
	return b, false, nil
}

// liveSet computes the set of ids transitively referenced starting from
// b.Out and from every impure statement, since those are never removed and
// so keep their references in place. A live Code statement keeps alive everything its nested block
// references from enclosing scopes, including the nested block's own Out.
func liveSet(b *Block) map[Id]bool {
	live := map[Id]bool{b.Out: true}
	for i := len(b.Stmts) - 1; i >= 0; i-- {
		s := b.Stmts[i]
		if !live[s.ID] && s.Op.pure() {
			continue
		}
		markRefs(s.Op, live)
	}
	return live
}

func markRefs(op StmtOp, live map[Id]bool) {
	if co, ok := op.(CodeOp); ok {
		live[co.Block.Out] = true
		for _, s := range co.Block.Stmts {
			markRefs(s.Op, live)
		}
		return
	}
	for _, r := range op.refs() {
		live[r] = true
	}
}
