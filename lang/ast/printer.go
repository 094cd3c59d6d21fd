package ast

import (
	"fmt"
	"io"
	"strings"
)

// Printer pretty-prints an AST, indenting one level per nesting depth. It is
// a debugging aid, not part of the source-text round trip (there is none:
// Mehl's core never owns source text, see package doc).
type Printer struct {
	// Output is the io.Writer to print to.
	Output io.Writer

	// WithPos includes the node's position in the output when true.
	WithPos bool
}

// Print pretty-prints every node of seq.
func (p *Printer) Print(seq Seq) error {
	pp := &printer{w: p.Output, withPos: p.WithPos}
	WalkSeq(pp, seq)
	return pp.err
}

type printer struct {
	w       io.Writer
	withPos bool
	depth   int
	err     error
}

func (p *printer) Visit(n Node, dir VisitDirection) Visitor {
	if dir == VisitExit {
		p.depth--
		return nil
	}
	if p.err != nil {
		return nil
	}
	p.printNode(n)
	p.depth++
	return p
}

func (p *printer) printNode(n Node) {
	indent := strings.Repeat(". ", p.depth)
	if p.withPos {
		start, end := n.Span()
		_, p.err = fmt.Fprintf(p.w, "%s[%s:%s] %v\n", indent, start, end, n)
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%v\n", indent, n)
}
