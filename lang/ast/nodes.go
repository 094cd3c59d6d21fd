// Package ast defines the AST vocabulary that the core (hir, compiler,
// machine, vm packages) consumes as input. It is deliberately small: the
// front-end lexer/parser that produces these nodes from source text is an
// external collaborator and out of scope for this module.
package ast

import (
	"fmt"
	"strings"

	"github.com/mna/mehl/lang/token"
)

// Node represents any node of the AST. Every Node implements fmt.Formatter so
// it can print a short self-description (see Walk/Printer); the only
// supported verbs are 'v' and 's'.
type Node interface {
	fmt.Formatter

	// Span reports the start and end position of the node.
	Span() (start, end token.Position)

	// Walk lets v visit this node's children, implementing the Visitor
	// pattern together with the package-level Walk function.
	Walk(v Visitor)
}

// Seq is a pipeline: an ordered run of nodes, each one's result becoming the
// dot for the next (see the compiler package's AST-to-HIR stage). A Chunk's Body, a Code
// node's Body, and each element of a List or each side of a Map pair are all
// Seqs.
type Seq []Node

// Chunk is the root of a compiled unit: a single top-level pipeline.
type Chunk struct {
	// Name is typically the source filename, used in compiler error messages.
	Name string
	Body Seq
}

// Pair is one key/value entry of a MapLit. Both Key and Value are themselves
// pipelines (sub-sequences), each one run starting from the current dot.
type Pair struct {
	Key   Seq
	Value Seq
}

type (
	// IntLit is an integer literal.
	IntLit struct {
		Pos   token.Position
		Value int64
	}

	// StringLit is a string literal.
	StringLit struct {
		Pos   token.Position
		Value string
	}

	// SymbolLit is a symbol literal. The empty symbol ("") denotes the unit
	// value.
	SymbolLit struct {
		Pos   token.Position
		Value string
	}

	// MapLit constructs a map value from a list of key/value pipelines.
	MapLit struct {
		Pos   token.Position
		End   token.Position
		Pairs []Pair
	}

	// ListLit constructs a list value from a list of element pipelines.
	ListLit struct {
		Pos   token.Position
		End   token.Position
		Elems []Seq
	}

	// CodeLit constructs a code (closure) value whose body is a nested
	// pipeline, compiled in its own lexical scope.
	CodeLit struct {
		Pos  token.Position
		End  token.Position
		Body Seq
	}

	// Name references an identifier. Two names are magic: "." refers to the
	// current dot (a no-op pipeline step) and "✨" invokes the yet-unresolved
	// primitive on the current dot.
	Name struct {
		Pos   token.Position
		Value string
	}

	// Let binds the current dot to name as a reusable, re-evaluated code
	// value; the dot becomes unit afterward.
	Let struct {
		Pos  token.Position
		Name string
	}

	// Fun binds the current dot, which must be a code value, to name as a
	// callable function; the dot becomes unit afterward.
	Fun struct {
		Pos  token.Position
		Name string
	}
)

var (
	_ Node = (*IntLit)(nil)
	_ Node = (*StringLit)(nil)
	_ Node = (*SymbolLit)(nil)
	_ Node = (*MapLit)(nil)
	_ Node = (*ListLit)(nil)
	_ Node = (*CodeLit)(nil)
	_ Node = (*Name)(nil)
	_ Node = (*Let)(nil)
	_ Node = (*Fun)(nil)
)

func (n *IntLit) Span() (token.Position, token.Position)    { return n.Pos, n.Pos }
func (n *StringLit) Span() (token.Position, token.Position) { return n.Pos, n.Pos }
func (n *SymbolLit) Span() (token.Position, token.Position) { return n.Pos, n.Pos }
func (n *MapLit) Span() (token.Position, token.Position)    { return n.Pos, n.End }
func (n *ListLit) Span() (token.Position, token.Position)   { return n.Pos, n.End }
func (n *CodeLit) Span() (token.Position, token.Position)   { return n.Pos, n.End }
func (n *Name) Span() (token.Position, token.Position)      { return n.Pos, n.Pos }
func (n *Let) Span() (token.Position, token.Position)       { return n.Pos, n.Pos }
func (n *Fun) Span() (token.Position, token.Position)       { return n.Pos, n.Pos }

func (n *IntLit) Walk(Visitor)    {}
func (n *StringLit) Walk(Visitor) {}
func (n *SymbolLit) Walk(Visitor) {}
func (n *Name) Walk(Visitor)      {}
func (n *Let) Walk(Visitor)       {}
func (n *Fun) Walk(Visitor)       {}

func (n *MapLit) Walk(v Visitor) {
	for _, p := range n.Pairs {
		walkSeq(v, p.Key)
		walkSeq(v, p.Value)
	}
}

func (n *ListLit) Walk(v Visitor) {
	for _, e := range n.Elems {
		walkSeq(v, e)
	}
}

func (n *CodeLit) Walk(v Visitor) { walkSeq(v, n.Body) }

func walkSeq(v Visitor, seq Seq) {
	for _, n := range seq {
		Walk(v, n)
	}
}

func (n *IntLit) Format(f fmt.State, verb rune) { format(f, verb, fmt.Sprintf("int %d", n.Value)) }
func (n *StringLit) Format(f fmt.State, verb rune) {
	format(f, verb, fmt.Sprintf("string %q", n.Value))
}
func (n *SymbolLit) Format(f fmt.State, verb rune) {
	format(f, verb, fmt.Sprintf("symbol %q", n.Value))
}
func (n *MapLit) Format(f fmt.State, verb rune) {
	format(f, verb, fmt.Sprintf("map {%d pairs}", len(n.Pairs)))
}
func (n *ListLit) Format(f fmt.State, verb rune) {
	format(f, verb, fmt.Sprintf("list {%d elems}", len(n.Elems)))
}
func (n *CodeLit) Format(f fmt.State, verb rune) {
	format(f, verb, fmt.Sprintf("code {%d stmts}", len(n.Body)))
}
func (n *Name) Format(f fmt.State, verb rune) { format(f, verb, "name "+n.Value) }
func (n *Let) Format(f fmt.State, verb rune)  { format(f, verb, "let "+n.Name) }
func (n *Fun) Format(f fmt.State, verb rune)  { format(f, verb, "fun "+n.Name) }

func format(f fmt.State, verb rune, label string) {
	if verb != 'v' && verb != 's' {
		fmt.Fprintf(f, "%%!%c(%s)", verb, label)
		return
	}
	label = strings.ReplaceAll(label, "\n", "⏎")
	if w, ok := f.Width(); ok {
		runes := []rune(label)
		switch {
		case len(runes) >= w:
			runes = runes[:w]
		case f.Flag('-'):
			runes = append(runes, []rune(strings.Repeat(" ", w-len(runes)))...)
		default:
			runes = append([]rune(strings.Repeat(" ", w-len(runes))), runes...)
		}
		label = string(runes)
	}
	fmt.Fprint(f, label)
}
