package compiler

import (
	"fmt"

	"github.com/mna/mehl/lang/ast"
	"github.com/mna/mehl/lang/hir"
)

// CompileChunk compiles a chunk's top-level pipeline to an (unoptimized) HIR
// code block. Call hir.Optimize on the result before lowering to LIR.
func CompileChunk(chunk *ast.Chunk) (*hir.Block, error) {
	in := hir.Id(0)
	next := in + 1
	var stmts []hir.Stmt
	funs := map[string]hir.Id{}

	out, err := compileSeq(chunk.Body, in, funs, &next, &stmts)
	if err != nil {
		return nil, err
	}
	return &hir.Block{In: in, Out: out, Stmts: stmts}, nil
}

// compileSeq compiles seq as a pipeline starting at dot, appending produced
// statements to out and allocating fresh ids from next. funs is mutated by
// Let/Fun and is expected to already be a private copy when compiling a
// nested Code body (the caller copies it, so bindings introduced inside a
// Code literal never leak into the enclosing scope).
func compileSeq(seq ast.Seq, dot hir.Id, funs map[string]hir.Id, next *hir.Id, out *[]hir.Stmt) (hir.Id, error) {
	for _, node := range seq {
		var err error
		dot, err = compileNode(node, dot, funs, next, out)
		if err != nil {
			return 0, err
		}
	}
	return dot, nil
}

func compileNode(node ast.Node, dot hir.Id, funs map[string]hir.Id, next *hir.Id, out *[]hir.Stmt) (hir.Id, error) {
	switch n := node.(type) {
	case *ast.IntLit:
		return emit(next, out, hir.IntOp{Value: n.Value}), nil

	case *ast.StringLit:
		return emit(next, out, hir.StringOp{Value: n.Value}), nil

	case *ast.SymbolLit:
		return emit(next, out, hir.SymbolOp{Value: n.Value}), nil

	case *ast.ListLit:
		elems := make([]hir.Id, len(n.Elems))
		for i, sub := range n.Elems {
			id, err := compileSeq(sub, dot, funs, next, out)
			if err != nil {
				return 0, err
			}
			elems[i] = id
		}
		return emit(next, out, hir.ListOp{Elems: elems}), nil

	case *ast.MapLit:
		pairs := make([]hir.MapPair, len(n.Pairs))
		for i, p := range n.Pairs {
			kID, err := compileSeq(p.Key, dot, funs, next, out)
			if err != nil {
				return 0, err
			}
			vID, err := compileSeq(p.Value, dot, funs, next, out)
			if err != nil {
				return 0, err
			}
			pairs[i] = hir.MapPair{Key: kID, Value: vID}
		}
		return emit(next, out, hir.MapOp{Pairs: pairs}), nil

	case *ast.CodeLit:
		innerIn := *next
		*next++
		innerFuns := copyFuns(funs)
		var innerStmts []hir.Stmt
		innerOut, err := compileSeq(n.Body, innerIn, innerFuns, next, &innerStmts)
		if err != nil {
			return 0, err
		}
		block := &hir.Block{In: innerIn, Out: innerOut, Stmts: innerStmts}
		return emit(next, out, hir.CodeOp{Block: block}), nil

	case *ast.Name:
		switch n.Value {
		case ".":
			return dot, nil
		case "✨":
			return emit(next, out, hir.PrimitiveOp{Kind: nil, Arg: dot}), nil
		default:
			fun, ok := funs[n.Value]
			if !ok {
				return 0, &CompileError{Msg: fmt.Sprintf("unknown name %q", n.Value), Pos: n.Pos}
			}
			return emit(next, out, hir.CallOp{Fun: fun, Arg: dot}), nil
		}

	case *ast.Let:
		// a thunk that ignores its argument and always yields the captured
		// dot, so looking the name up and calling it re-evaluates to the same
		// value every time.
		innerIn := *next
		*next++
		block := &hir.Block{In: innerIn, Out: dot}
		id := emit(next, out, hir.CodeOp{Block: block})
		funs[n.Name] = id
		return emit(next, out, hir.SymbolOp{Value: ""}), nil

	case *ast.Fun:
		funs[n.Name] = dot
		return emit(next, out, hir.SymbolOp{Value: ""}), nil

	default:
		return 0, fmt.Errorf("compiler: unhandled AST node type %T", node)
	}
}

func emit(next *hir.Id, out *[]hir.Stmt, op hir.StmtOp) hir.Id {
	id := *next
	*next++
	*out = append(*out, hir.Stmt{ID: id, Op: op})
	return id
}

func copyFuns(funs map[string]hir.Id) map[string]hir.Id {
	m := make(map[string]hir.Id, len(funs))
	for k, v := range funs {
		m[k] = v
	}
	return m
}
