// Package compiler takes the AST of a chunk and compiles it to bytecode
// that can be executed by the virtual machine: AST to HIR, HIR optimization
// (delegated to the hir package), HIR to LIR lowering with explicit
// dup/drop, a LIR peephole pass, and finally byte-code emission with a
// compile-time stack model. It also provides a pseudo-assembly
// serialization and deserialization to encode in textual form a program
// that closely matches the binary format of the compiled form.
package compiler

import (
	"encoding/binary"
	"fmt"

	"github.com/mna/mehl/lang/ast"
	"github.com/mna/mehl/lang/hir"
)

// Compile runs the complete pipeline on a chunk: AST to HIR, HIR
// optimization, lowering to LIR, peephole optimization and byte-code
// emission. It returns a CompileError (possibly wrapped) for bugs in the
// chunk itself, such as an unknown name.
func Compile(chunk *ast.Chunk) (*Program, error) {
	block, err := CompileChunk(chunk)
	if err != nil {
		return nil, err
	}
	block, err = hir.Optimize(block)
	if err != nil {
		return nil, err
	}
	cl := Peephole(Lower(block))
	return EmitProgram(chunk.Name, cl), nil
}

// EmitProgram emits the byte code for a lowered top-level closure. The
// top-level closure must capture nothing (there is no enclosing scope for
// it to capture from); violating that is a bug in the lowering, not in the
// compiled chunk, and panics.
func EmitProgram(filename string, cl *Closure) *Program {
	if len(cl.Captured) > 0 {
		panic(fmt.Sprintf("compiler: top-level closure captures %v", cl.Captured))
	}
	e := &emitter{}
	e.closureBody(cl, true)
	return &Program{Filename: filename, Code: e.code}
}

// modelEntry is one slot of the emitter's compile-time stack model: the id
// whose value the runtime stack will hold at this position, or a byte-code
// address entry (a closure body address or a return address).
type modelEntry struct {
	id   hir.Id
	addr bool
}

// emitter holds the byte code being built and the stack model describing
// what the runtime stack will hold at the current emit point. The model
// must mirror the runtime stack exactly: every instruction emitted updates
// it by the instruction's documented stack effect.
type emitter struct {
	code  []byte
	model []modelEntry
}

func (e *emitter) emit(ins Instr) {
	e.code = AppendInstr(e.code, ins)
}

// offsetOf returns the from-the-top offset of the topmost model slot
// holding id. The emitter only ever asks for ids the LIR guarantees are
// live, so a miss is an internal bug.
func (e *emitter) offsetOf(id hir.Id) uint64 {
	for i := len(e.model) - 1; i >= 0; i-- {
		if !e.model[i].addr && e.model[i].id == id {
			return uint64(len(e.model) - 1 - i)
		}
	}
	panic(fmt.Sprintf("compiler: id %d not in stack model %v", id, e.model))
}

func (e *emitter) push(id hir.Id) { e.model = append(e.model, modelEntry{id: id}) }
func (e *emitter) pushAddr()      { e.model = append(e.model, modelEntry{addr: true}) }
func (e *emitter) pop(n int)      { e.model = e.model[:len(e.model)-n] }

// pushFromStack emits a PUSHFROMSTACK of id's slot, selecting the near
// variant when the offset fits in a byte.
func (e *emitter) pushFromStack(id hir.Id) {
	off := e.offsetOf(id)
	if off <= 0xff {
		e.emit(Instr{Op: PUSHNEARFROMSTACK, Num: off})
	} else {
		e.emit(Instr{Op: PUSHFROMSTACK, Num: off})
	}
	e.push(id)
}

// refcount emits a DUP or DROP targeting id's slot; neither changes the
// stack model.
func (e *emitter) refcount(far, near Opcode, id hir.Id) {
	off := e.offsetOf(id)
	if off <= 0xff {
		e.emit(Instr{Op: near, Num: off})
	} else {
		e.emit(Instr{Op: far, Num: off})
	}
}

// closureBody emits cl's body. On entry the runtime stack holds cl's
// captured values in sorted order then the input value (for a called
// closure these sit above the return address, which the model does not
// track since offsets never reach below the input). On exit the stack
// holds only cl's output value; a non-top-level body then returns to its
// caller.
func (e *emitter) closureBody(cl *Closure, toplevel bool) {
	saved := e.model
	e.model = nil
	for _, c := range cl.Captured {
		e.push(c)
	}
	e.push(cl.In)

	for _, s := range cl.Code {
		switch s := s.(type) {
		case Dup:
			for _, id := range s.Ids {
				e.refcount(DUP, DUPNEAR, id)
			}
		case Drop:
			for _, id := range s.Ids {
				e.refcount(DROP, DROPNEAR, id)
			}
		case Assignment:
			e.assignment(s)
		}
	}

	e.pushFromStack(cl.Out)
	below := len(e.model) - 1
	for below > 0 {
		n := below
		if n > 0xff {
			n = 0xff
		}
		e.emit(Instr{Op: POPMULTIPLEBELOWTOP, Num: uint64(n)})
		below -= n
	}
	out := e.model[len(e.model)-1]
	e.model = append(saved, out)

	if !toplevel {
		e.emit(Instr{Op: RETURN})
	}
}

func (e *emitter) assignment(s Assignment) {
	switch x := s.Expr.(type) {
	case LitExpr:
		switch x.Kind {
		case LitInt:
			e.emit(Instr{Op: CREATEINT, Int: x.IntValue})
		case LitString:
			if len(x.StringValue) <= 0xff {
				e.emit(Instr{Op: CREATESMALLSTRING, Str: x.StringValue})
			} else {
				e.emit(Instr{Op: CREATESTRING, Str: x.StringValue})
			}
		case LitSymbol:
			e.emit(Instr{Op: CREATESYMBOL, Str: x.SymbolValue})
		}
		e.push(s.ID)

	case CompositeExpr:
		if x.Map {
			for _, p := range x.Pairs {
				e.pushFromStack(p.Key)
				e.pushFromStack(p.Value)
			}
			e.emit(Instr{Op: CREATEMAP, Num: uint64(len(x.Pairs))})
			e.pop(2 * len(x.Pairs))
		} else {
			for _, el := range x.Elems {
				e.pushFromStack(el)
			}
			e.emit(Instr{Op: CREATELIST, Num: uint64(len(x.Elems))})
			e.pop(len(x.Elems))
		}
		e.push(s.ID)

	case ClosureExpr:
		// the body is emitted inline, jumped over, and referenced by
		// address: JUMP past; body; past: PUSHADDRESS body-start; the
		// captured values; CREATECLOSURE.
		e.emit(Instr{Op: JUMP, Num: 0})
		patch := len(e.code) - 8
		bodyStart := uint64(len(e.code))
		e.closureBody(x.Closure, false)
		e.pop(1) // the nested body's out; it only exists in the callee frame
		binary.LittleEndian.PutUint64(e.code[patch:], uint64(len(e.code)))

		e.emit(Instr{Op: PUSHADDRESS, Num: bodyStart})
		e.pushAddr()
		for _, c := range x.Closure.Captured {
			e.pushFromStack(c)
		}
		e.emit(Instr{Op: CREATECLOSURE, Num: uint64(len(x.Closure.Captured))})
		e.pop(len(x.Closure.Captured) + 1)
		e.push(s.ID)

	case CallExpr:
		e.pushFromStack(x.Fun)
		e.pushFromStack(x.Arg)
		e.emit(Instr{Op: CALL})
		e.pop(2)
		e.push(s.ID)

	case PrimitiveExpr:
		e.pushFromStack(x.Arg)
		if x.Kind != nil {
			e.emit(Instr{Op: PRIMITIVEKIND, Kind: *x.Kind})
		} else {
			e.emit(Instr{Op: PRIMITIVE})
		}
		e.pop(1)
		e.push(s.ID)
	}
}
