package hir

// inlineOnce resolves the first Call it finds whose callee traces to a
// known Code value and splices that code's body into the call site in
// place of the call. Bodies that themselves contain a nested Code literal
// are left uninlined: their internal ids would need a second, independent
// numbering budget that replace_range's single contiguous range cannot
// express in one step, so inlining such a call is skipped rather than risk
// an id collision.
func inlineOnce(root *Block) (*Block, bool, error) {
	return inlineBlock(root, nil)
}

func inlineBlock(b *Block, outer resolver) (*Block, bool, error) {
	self := chainResolver(b, outer)
	for i, s := range b.Stmts {
		if co, ok := s.Op.(CodeOp); ok {
			newInner, changed, err := inlineBlock(co.Block, self)
			if err != nil {
				return nil, false, err
			}
			if changed {
				newStmts := append([]Stmt(nil), b.Stmts...)
				newStmts[i] = Stmt{ID: s.ID, Op: CodeOp{Block: newInner}}
				return &Block{In: b.In, Out: b.Out, Stmts: newStmts}, true, nil
			}
		}

		call, ok := s.Op.(CallOp)
		if !ok {
			continue
		}
		calleeOp, ok := self(call.Fun)
		if !ok {
			continue
		}
		callee, ok := calleeOp.(CodeOp)
		if !ok || hasNestedCode(callee.Block) {
			continue
		}

		replacement, resultID, err := buildInlineReplacement(callee.Block, call.Arg, s.ID)
		if err != nil {
			return nil, false, err
		}
		out, err := ReplaceRange(b, s.ID, 1, replacement, map[Id]Id{s.ID: resultID})
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}
	return b, false, nil
}

func hasNestedCode(b *Block) bool {
	for _, s := range b.Stmts {
		if _, ok := s.Op.(CodeOp); ok {
			return true
		}
	}
	return false
}

// buildInlineReplacement renumbers inner's statements to the consecutive id
// range starting at callID (the call site being replaced), binding inner.In
// to arg and leaving any id inner doesn't itself define (a capture from an
// enclosing scope) unchanged. It returns the renumbered statements and the
// id that now stands in for the call's result.
func buildInlineReplacement(inner *Block, arg, callID Id) ([]StmtOp, Id, error) {
	idMap := map[Id]Id{inner.In: arg}
	for i, s := range inner.Stmts {
		idMap[s.ID] = callID + Id(i)
	}
	t := func(id Id) (Id, error) {
		if nid, ok := idMap[id]; ok {
			return nid, nil
		}
		return id, nil
	}

	replacement := make([]StmtOp, len(inner.Stmts))
	for i, s := range inner.Stmts {
		rs, err := rewriteStmt(s, t)
		if err != nil {
			return nil, 0, err
		}
		replacement[i] = rs.Op
	}
	resultID, err := t(inner.Out)
	if err != nil {
		return nil, 0, err
	}
	return replacement, resultID, nil
}
