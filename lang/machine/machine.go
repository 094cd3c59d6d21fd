// Package machine implements the virtual machine layer that executes the
// bytecode-compiled form of a chunk: the Value model exchanged with the
// host, the refcounted heap of tagged objects, and the Fiber byte-code
// interpreter with its primitive dispatch. Scheduling of multiple fibers
// and channel mediation live one level up, in the vm package.
package machine

import (
	"fmt"

	"github.com/mna/mehl/lang/compiler"
	"github.com/mna/mehl/lang/hir"
)

// A Fiber executes byte code. It is single-threaded, a pure state machine
// that advances only inside Run, and it communicates with the outside
// world exclusively through its status and the ambients provided at
// creation.
type Fiber struct {
	code         []byte
	ip           uint64
	stack        []stackEntry
	heap         map[uint64]*Object
	nextHeapAddr uint64
	ambients     map[string]Value
	status       Status
}

// stackEntry is one slot of the linear runtime stack: a heap pointer, or a
// byte-code address (a return address or a pre-closure body address).
type stackEntry struct {
	addr   uint64
	inCode bool
}

// NewFiber creates a fiber over the program's byte code, seeding the stack
// with the initial dot value. Ambients are the named values reachable by
// the get-ambient primitive; the map is read, not copied, and must not be
// mutated while the fiber runs.
func NewFiber(p *compiler.Program, ambients map[string]Value, dot Value) *Fiber {
	f := &Fiber{
		code:         p.Code,
		heap:         make(map[uint64]*Object),
		nextHeapAddr: 1,
		ambients:     ambients,
		status:       Running{},
	}
	f.stack = append(f.stack, stackEntry{addr: f.importValue(dot)})
	return f
}

// Status returns the fiber's execution state.
func (f *Fiber) Status() Status { return f.status }

// HeapLen returns the number of live heap objects, for leak assertions in
// tests.
func (f *Fiber) HeapLen() int { return len(f.heap) }

// Run advances the fiber by at most budget instructions. It returns early
// when the fiber's status leaves Running: the program finished (Done),
// panicked, or suspended on a channel operation that the enclosing VM must
// resolve. Calling Run on a fiber that is not running is a bug in the
// caller.
func (f *Fiber) Run(budget int) {
	if _, ok := f.status.(Running); !ok {
		panic("machine: Run called on a fiber that is not running")
	}
	for budget > 0 {
		if _, ok := f.status.(Running); !ok {
			return
		}
		// a resume can leave ip at the very end of the byte code, in which
		// case the resumed value is the program's result.
		if f.ip >= uint64(len(f.code)) {
			f.status = Done{Value: f.export(f.popPointer())}
			return
		}
		ins, next, err := compiler.DecodeInstr(f.code, f.ip)
		if err != nil {
			panic(fmt.Sprintf("machine: %v", err))
		}
		f.ip = next
		f.exec(ins)
		budget--

		if _, ok := f.status.(Running); ok && f.ip >= uint64(len(f.code)) {
			f.status = Done{Value: f.export(f.popPointer())}
		}
	}
}

// ResolveChannelCreated resumes a fiber suspended in CreatingChannel with
// the two ends of the freshly allocated channel; the suspended create
// evaluates to the pair [send-end, receive-end].
func (f *Fiber) ResolveChannelCreated(send SendEnd, receive ReceiveEnd) {
	if _, ok := f.status.(CreatingChannel); !ok {
		panic("machine: fiber is not creating a channel")
	}
	f.resume(NewList(send, receive))
}

// ResolveSending resumes a fiber whose pending send was accepted; the
// suspended send evaluates to unit.
func (f *Fiber) ResolveSending() {
	if _, ok := f.status.(Sending); !ok {
		panic("machine: fiber is not sending")
	}
	f.resume(Unit)
}

// ResolveReceiving resumes a fiber with the message its pending receive
// waited for.
func (f *Fiber) ResolveReceiving(msg Value) {
	if _, ok := f.status.(Receiving); !ok {
		panic("machine: fiber is not receiving")
	}
	f.resume(msg)
}

func (f *Fiber) resume(v Value) {
	f.pushValue(v)
	f.status = Running{}
}

func (f *Fiber) exec(ins compiler.Instr) {
	switch ins.Op {
	case compiler.NOP:

	case compiler.CREATEINT:
		f.pushPointer(f.createObject(IntData(ins.Int)))
	case compiler.CREATESTRING, compiler.CREATESMALLSTRING:
		f.pushPointer(f.createObject(StringData(ins.Str)))
	case compiler.CREATESYMBOL:
		f.pushPointer(f.createObject(SymbolData(ins.Str)))

	case compiler.CREATEMAP:
		entries := f.popN(2 * int(ins.Num))
		data := make(MapData, ins.Num)
		for i := range data {
			data[i] = [2]uint64{f.pointerOf(entries[2*i]), f.pointerOf(entries[2*i+1])}
		}
		f.pushPointer(f.createObject(data))

	case compiler.CREATELIST:
		entries := f.popN(int(ins.Num))
		data := make(ListData, len(entries))
		for i, e := range entries {
			data[i] = f.pointerOf(e)
		}
		f.pushPointer(f.createObject(data))

	case compiler.CREATECLOSURE:
		group := f.popN(int(ins.Num) + 1)
		if !group[0].inCode {
			panic("machine: closure body is not a byte-code address")
		}
		captured := make([]uint64, len(group)-1)
		for i, e := range group[1:] {
			captured[i] = f.pointerOf(e)
		}
		f.pushPointer(f.createObject(ClosureData{Body: group[0].addr, Captured: captured}))

	case compiler.DUP, compiler.DUPNEAR:
		f.dup(f.pointerOf(f.fromStack(ins.Num)))
	case compiler.DROP, compiler.DROPNEAR:
		f.drop(f.pointerOf(f.fromStack(ins.Num)))

	case compiler.POP:
		f.pop()
	case compiler.POPMULTIPLEBELOWTOP:
		top := f.pop()
		f.popN(int(ins.Num))
		f.stack = append(f.stack, top)
	case compiler.PUSHADDRESS:
		f.stack = append(f.stack, stackEntry{addr: ins.Num, inCode: true})
	case compiler.PUSHFROMSTACK, compiler.PUSHNEARFROMSTACK:
		f.stack = append(f.stack, f.fromStack(ins.Num))

	case compiler.JUMP:
		f.ip = ins.Num

	case compiler.CALL:
		arg := f.pop()
		closure, ok := f.object(f.popPointer()).data.(ClosureData)
		if !ok {
			f.wrongUsage("call", "called a value that is not a closure")
			return
		}
		f.stack = append(f.stack, stackEntry{addr: f.ip, inCode: true})
		for _, c := range closure.Captured {
			f.pushPointer(c)
		}
		f.stack = append(f.stack, arg)
		f.ip = closure.Body

	case compiler.RETURN:
		ret := f.pop()
		retAddr := f.pop()
		if !retAddr.inCode {
			panic("machine: return address is not a byte-code address")
		}
		f.stack = append(f.stack, ret)
		f.ip = retAddr.addr

	case compiler.PRIMITIVE:
		arg := f.export(f.popPointer())
		kind, operand, ok := splitTaggedArg(arg)
		if !ok {
			f.wrongUsage("primitive", "wants a two-element list [symbol, arg], got %s", arg)
			return
		}
		f.primitive(kind, operand)

	case compiler.PRIMITIVEKIND:
		f.primitive(ins.Kind, f.export(f.popPointer()))

	default:
		panic(fmt.Sprintf("machine: unknown opcode %s", ins.Op))
	}
}

// splitTaggedArg deconstructs the runtime-dispatch form of a primitive
// argument: a two-element list of a recognized tag symbol and the operand.
func splitTaggedArg(arg Value) (hir.PrimitiveKind, Value, bool) {
	list, ok := arg.(*List)
	if !ok || len(list.Elems) != 2 {
		return 0, nil, false
	}
	sym, ok := list.Elems[0].(Symbol)
	if !ok {
		return 0, nil, false
	}
	kind, ok := hir.ParsePrimitiveKind(string(sym))
	if !ok {
		return 0, nil, false
	}
	return kind, list.Elems[1], true
}

// Stack accessors. The emitter's compile-time stack model guarantees the
// shapes these helpers check; a violation is a bug in the compiler or the
// machine, not in the program being run.

func (f *Fiber) pop() stackEntry {
	if len(f.stack) == 0 {
		panic("machine: pop of empty stack")
	}
	e := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return e
}

// popN pops n entries and returns them in stack order, deepest first.
func (f *Fiber) popN(n int) []stackEntry {
	if len(f.stack) < n {
		panic("machine: pop of empty stack")
	}
	group := make([]stackEntry, n)
	copy(group, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return group
}

func (f *Fiber) popPointer() uint64 {
	return f.pointerOf(f.pop())
}

func (f *Fiber) pointerOf(e stackEntry) uint64 {
	if e.inCode {
		panic("machine: byte-code address where a heap pointer is expected")
	}
	return e.addr
}

func (f *Fiber) fromStack(offset uint64) stackEntry {
	if offset >= uint64(len(f.stack)) {
		panic(fmt.Sprintf("machine: stack offset %d out of range", offset))
	}
	return f.stack[uint64(len(f.stack))-offset-1]
}

func (f *Fiber) pushPointer(addr uint64) {
	f.stack = append(f.stack, stackEntry{addr: addr})
}

// pushValue imports v and pushes the resulting pointer.
func (f *Fiber) pushValue(v Value) {
	f.pushPointer(f.importValue(v))
}
