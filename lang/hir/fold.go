package hir

// foldOnce resolves the first specialized, pure Primitive it finds whose
// operand(s) trace to known literal data and replaces it with the computed
// literal. The framework is general: Add started it, and Sub/Mul/Len plug in
// the same way. GetItem (pure) and GetAmbient (not pure) are not folded here:
// folding GetItem would require aliasing an existing id rather than
// constructing a fresh value, which replace_range does not model, and
// GetAmbient's value is only known once a Fiber is running.
func foldOnce(root *Block) (*Block, bool, error) {
	return foldBlock(root, nil)
}

func foldBlock(b *Block, outer resolver) (*Block, bool, error) {
	self := chainResolver(b, outer)
	for i, s := range b.Stmts {
		if co, ok := s.Op.(CodeOp); ok {
			newInner, changed, err := foldBlock(co.Block, self)
			if err != nil {
				return nil, false, err
			}
			if changed {
				newStmts := append([]Stmt(nil), b.Stmts...)
				newStmts[i] = Stmt{ID: s.ID, Op: CodeOp{Block: newInner}}
				return &Block{In: b.In, Out: b.Out, Stmts: newStmts}, true, nil
			}
		}

		p, ok := s.Op.(PrimitiveOp)
		if !ok || p.Kind == nil {
			continue
		}
		lit, ok := foldPrimitive(self, *p.Kind, p.Arg)
		if !ok {
			continue
		}
		out, err := ReplaceRange(b, s.ID, 1, []StmtOp{lit}, identityRemap(s.ID, 1))
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}
	return b, false, nil
}

func foldPrimitive(self resolver, kind PrimitiveKind, arg Id) (StmtOp, bool) {
	switch kind {
	case Add, Sub, Mul:
		a, b, ok := resolveIntPair(self, arg)
		if !ok {
			return nil, false
		}
		switch kind {
		case Add:
			return IntOp{Value: a + b}, true
		case Sub:
			return IntOp{Value: a - b}, true
		case Mul:
			return IntOp{Value: a * b}, true
		}
	case Len:
		op, ok := self(arg)
		if !ok {
			return nil, false
		}
		switch o := op.(type) {
		case ListOp:
			return IntOp{Value: int64(len(o.Elems))}, true
		case StringOp:
			return IntOp{Value: int64(len([]rune(o.Value)))}, true
		}
	}
	return nil, false
}

// resolveIntPair traces arg to a two-element List of Int literals.
func resolveIntPair(self resolver, arg Id) (int64, int64, bool) {
	op, ok := self(arg)
	if !ok {
		return 0, 0, false
	}
	list, ok := op.(ListOp)
	if !ok || len(list.Elems) != 2 {
		return 0, 0, false
	}
	aOp, ok := self(list.Elems[0])
	if !ok {
		return 0, 0, false
	}
	a, ok := aOp.(IntOp)
	if !ok {
		return 0, 0, false
	}
	bOp, ok := self(list.Elems[1])
	if !ok {
		return 0, 0, false
	}
	bv, ok := bOp.(IntOp)
	if !ok {
		return 0, 0, false
	}
	return a.Value, bv.Value, true
}
