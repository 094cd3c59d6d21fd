package compiler

import "github.com/mna/mehl/lang/token"

// CompileError is a compile-time failure surfaced by the AST-to-HIR stage:
// a name that no enclosing Let or Fun binds. Let and Fun placements
// themselves are not checked. It is not recoverable
// locally; the caller reports it to whatever produced the AST.
type CompileError struct {
	Msg string
	Pos token.Position
}

func (e *CompileError) Error() string {
	if e.Pos.Unknown() && e.Pos.Filename == "" {
		return e.Msg
	}
	return e.Pos.String() + ": " + e.Msg
}
