package hir

// resolver looks up the operation that defines id, searching an enclosing
// chain of blocks. It returns ok=false for an id it cannot trace (e.g. a
// Fiber-bound value only known at run time).
type resolver func(id Id) (StmtOp, bool)

func chainResolver(b *Block, outer resolver) resolver {
	return func(id Id) (StmtOp, bool) {
		if op, ok := lookup(b, id); ok {
			return op, true
		}
		if outer != nil {
			return outer(id)
		}
		return nil, false
	}
}

// specializeOnce resolves the first Primitive{Kind: nil, arg} it finds whose
// arg traces to a two-element List[Symbol(tag), operand] with a recognized
// tag, rewriting it in place to Primitive{Kind: tag, operand}.
func specializeOnce(root *Block) (*Block, bool, error) {
	return specializeBlock(root, nil)
}

func specializeBlock(b *Block, outer resolver) (*Block, bool, error) {
	self := chainResolver(b, outer)
	for i, s := range b.Stmts {
		if co, ok := s.Op.(CodeOp); ok {
			newInner, changed, err := specializeBlock(co.Block, self)
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
		if !ok || p.Kind != nil {
			continue
		}
		kind, operand, ok := resolveTaggedArg(self, p.Arg)
		if !ok {
			continue
		}
		k := kind
		out, err := ReplaceRange(b, s.ID, 1, []StmtOp{PrimitiveOp{Kind: &k, Arg: operand}}, identityRemap(s.ID, 1))
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}
	return b, false, nil
}

// resolveTaggedArg traces argID to a List[Symbol(tag), operand] and resolves
// tag to a PrimitiveKind.
func resolveTaggedArg(self resolver, argID Id) (PrimitiveKind, Id, bool) {
	op, ok := self(argID)
	if !ok {
		return 0, 0, false
	}
	list, ok := op.(ListOp)
	if !ok || len(list.Elems) != 2 {
		return 0, 0, false
	}
	tagOp, ok := self(list.Elems[0])
	if !ok {
		return 0, 0, false
	}
	sym, ok := tagOp.(SymbolOp)
	if !ok {
		return 0, 0, false
	}
	kind, ok := ParsePrimitiveKind(sym.Value)
	if !ok {
		return 0, 0, false
	}
	return kind, list.Elems[1], true
}
