package compiler

import (
	"sort"

	"github.com/mna/mehl/lang/hir"
)

// Lower translates an (optimized) HIR code block into a LIR Closure: an
// explicit-refcount flat statement sequence with a computed capture set.
func Lower(b *hir.Block) *Closure {
	captured := computeCaptured(b)

	var code []Stmt
	for _, s := range b.Stmts {
		switch op := s.Op.(type) {
		case hir.IntOp:
			code = append(code, Assignment{ID: s.ID, Expr: LitExpr{Kind: LitInt, IntValue: op.Value}})

		case hir.StringOp:
			code = append(code, Assignment{ID: s.ID, Expr: LitExpr{Kind: LitString, StringValue: op.Value}})

		case hir.SymbolOp:
			code = append(code, Assignment{ID: s.ID, Expr: LitExpr{Kind: LitSymbol, SymbolValue: op.Value}})

		case hir.ListOp:
			if len(op.Elems) > 0 {
				code = append(code, Dup{Ids: append([]hir.Id(nil), op.Elems...)})
			}
			code = append(code, Assignment{ID: s.ID, Expr: CompositeExpr{Elems: append([]hir.Id(nil), op.Elems...)}})

		case hir.MapOp:
			var dups []hir.Id
			for _, p := range op.Pairs {
				dups = append(dups, p.Key, p.Value)
			}
			if len(dups) > 0 {
				code = append(code, Dup{Ids: dups})
			}
			code = append(code, Assignment{ID: s.ID, Expr: CompositeExpr{Map: true, Pairs: append([]hir.MapPair(nil), op.Pairs...)}})

		case hir.CodeOp:
			inner := Lower(op.Block)
			if len(inner.Captured) > 0 {
				code = append(code, Dup{Ids: append([]hir.Id(nil), inner.Captured...)})
			}
			code = append(code, Assignment{ID: s.ID, Expr: ClosureExpr{Closure: inner}})

		case hir.CallOp:
			code = append(code, Dup{Ids: []hir.Id{op.Fun, op.Arg}})
			code = append(code, Assignment{ID: s.ID, Expr: CallExpr{Fun: op.Fun, Arg: op.Arg}})

		case hir.PrimitiveOp:
			code = append(code, Dup{Ids: []hir.Id{op.Arg}})
			code = append(code, Assignment{ID: s.ID, Expr: PrimitiveExpr{Kind: op.Kind, Arg: op.Arg}})
		}
	}

	var drops []hir.Id
	for _, s := range b.Stmts {
		if s.ID != b.Out {
			drops = append(drops, s.ID)
		}
	}
	if b.In != b.Out {
		drops = append(drops, b.In)
	}
	if len(drops) > 0 {
		code = append(code, Drop{Ids: drops})
	}

	return &Closure{Captured: captured, In: b.In, Out: b.Out, Code: code}
}

// computeCaptured collects every id referenced anywhere in b, recursively
// into nested Code blocks, and retains only those strictly less than b.In
// (ids owned by an enclosing scope). b.In itself is excluded: the emitter
// places it on the stack separately from the captured set.
func computeCaptured(b *hir.Block) []hir.Id {
	seen := map[hir.Id]bool{}
	var walk func(*hir.Block)
	walk = func(blk *hir.Block) {
		for _, s := range blk.Stmts {
			if co, ok := s.Op.(hir.CodeOp); ok {
				walk(co.Block)
				seen[co.Block.Out] = true
				continue
			}
			for _, r := range hir.Refs(s.Op) {
				seen[r] = true
			}
		}
	}
	walk(b)
	seen[b.Out] = true

	var captured []hir.Id
	for id := range seen {
		if id < b.In {
			captured = append(captured, id)
		}
	}
	sort.Slice(captured, func(i, j int) bool { return captured[i] < captured[j] })
	return captured
}
