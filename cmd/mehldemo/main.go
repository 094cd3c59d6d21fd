// Command mehldemo runs a small hand-built program through the complete
// pipeline: it constructs the AST directly (the textual front end is a
// separate project), compiles it and drives the VM with the stdio host.
// The program adds two ints, greets on the ambient out channel and
// finishes with the sum.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mna/mehl/internal/host"
	"github.com/mna/mehl/lang/ast"
)

func main() {
	cfg, err := host.ConfigFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	h := host.New(cfg, os.Stdout, os.Stdin, logger)

	v, err := h.Run(demoChunk())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(v)
}

// demoChunk builds the AST for:
//
//	("out" ambient) "hello from mehl" send, then (1, 2) add
func demoChunk() *ast.Chunk {
	return &ast.Chunk{
		Name: "demo",
		Body: concat(
			prim("send", ast.Seq{&ast.ListLit{Elems: []ast.Seq{
				prim("get-ambient", ast.Seq{&ast.SymbolLit{Value: "out"}}),
				{&ast.StringLit{Value: "hello from mehl"}},
			}}}),
			prim("add", ast.Seq{&ast.ListLit{Elems: []ast.Seq{
				{&ast.IntLit{Value: 1}},
				{&ast.IntLit{Value: 2}},
			}}}),
		),
	}
}

// prim wraps operand into the [symbol, operand] list the magic primitive
// name dispatches on, and invokes it on the result.
func prim(name string, operand ast.Seq) ast.Seq {
	return ast.Seq{
		&ast.ListLit{Elems: []ast.Seq{
			{&ast.SymbolLit{Value: name}},
			operand,
		}},
		&ast.Name{Value: "✨"},
	}
}

func concat(seqs ...ast.Seq) ast.Seq {
	var all ast.Seq
	for _, s := range seqs {
		all = append(all, s...)
	}
	return all
}
