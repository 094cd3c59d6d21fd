package hir

import "fmt"

// cseOnce finds the first pure statement that is a structural duplicate of
// an earlier statement already in scope and replaces it with a reference to
// that earlier one. Candidate sets are snapshotted into nested Code blocks:
// a duplicate found inside a nested block never leaks back out to affect
// sibling statements once that block's scope ends.
func cseOnce(root *Block) (*Block, bool, error) {
	newRoot, changed, _, err := cseBlock(root, map[string]Id{})
	return newRoot, changed, err
}

func cseBlock(b *Block, seen map[string]Id) (*Block, bool, map[string]Id, error) {
	for i, s := range b.Stmts {
		if co, ok := s.Op.(CodeOp); ok {
			childSeen := cloneSeen(seen)
			newInner, changed, _, err := cseBlock(co.Block, childSeen)
			if err != nil {
				return nil, false, nil, err
			}
			if changed {
				newStmts := append([]Stmt(nil), b.Stmts...)
				newStmts[i] = Stmt{ID: s.ID, Op: CodeOp{Block: newInner}}
				return &Block{In: b.In, Out: b.Out, Stmts: newStmts}, true, seen, nil
			}
		}

		if !s.Op.pure() {
			continue
		}
		key, ok := canonicalKey(s.Op)
		if !ok {
			continue
		}
		if earlier, found := seen[key]; found {
			out, err := ReplaceRange(b, s.ID, 1, nil, map[Id]Id{s.ID: earlier})
			if err != nil {
				return nil, false, nil, err
			}
			return out, true, seen, nil
		}
		seen[key] = s.ID
	}
	return b, false, seen, nil
}

func cloneSeen(seen map[string]Id) map[string]Id {
	m := make(map[string]Id, len(seen))
	for k, v := range seen {
		m[k] = v
	}
	return m
}

// canonicalKey builds a structural equality key for ops that are candidates
// for common sub-expression elimination. CodeOp and CallOp are never keyed:
// two syntactically identical Code blocks aren't semantically
// interchangeable (each defines a distinct closure identity), and Call is
// never pure in the first place.
func canonicalKey(op StmtOp) (string, bool) {
	switch o := op.(type) {
	case IntOp:
		return fmt.Sprintf("int:%d", o.Value), true
	case StringOp:
		return fmt.Sprintf("string:%q", o.Value), true
	case SymbolOp:
		return fmt.Sprintf("symbol:%q", o.Value), true
	case ListOp:
		return fmt.Sprintf("list:%v", o.Elems), true
	case MapOp:
		return fmt.Sprintf("map:%v", o.Pairs), true
	case PrimitiveOp:
		if o.Kind == nil {
			return fmt.Sprintf("primitive:none:%d", o.Arg), true
		}
		return fmt.Sprintf("primitive:%s:%d", o.Kind, o.Arg), true
	default:
		return "", false
	}
}
