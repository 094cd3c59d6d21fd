package machine_test

import (
	"testing"

	"github.com/mna/mehl/lang/ast"
	"github.com/mna/mehl/lang/compiler"
	"github.com/mna/mehl/lang/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// asmFiber assembles src and returns a fiber for it, so the machine can be
// exercised without the higher-level compilation phases.
func asmFiber(t *testing.T, src string, ambients map[string]machine.Value) *machine.Fiber {
	t.Helper()
	prog, err := compiler.Asm([]byte("program: t\n" + src))
	require.NoError(t, err)
	return machine.NewFiber(prog, ambients, machine.Unit)
}

func requireDone(t *testing.T, f *machine.Fiber) machine.Value {
	t.Helper()
	st, ok := f.Status().(machine.Done)
	require.True(t, ok, "fiber status is %#v, want Done", f.Status())
	return st.Value
}

func requirePanicked(t *testing.T, f *machine.Fiber) machine.Value {
	t.Helper()
	st, ok := f.Status().(machine.Panicked)
	require.True(t, ok, "fiber status is %#v, want Panicked", f.Status())
	return st.Value
}

func TestFiberLiteral(t *testing.T) {
	f := asmFiber(t, `createint 42`, nil)
	f.Run(10)
	assert.Equal(t, machine.Int(42), requireDone(t, f))
}

func TestFiberAddPrimitive(t *testing.T) {
	f := asmFiber(t, `
		createint 1
		createint 2
		createlist 2
		primitivekind add
	`, nil)
	f.Run(10)
	assert.Equal(t, machine.Int(3), requireDone(t, f))
}

func TestFiberRuntimeDispatchedPrimitive(t *testing.T) {
	f := asmFiber(t, `
		createsymbol "mul"
		createint 6
		createint 7
		createlist 2
		createlist 2
		primitive
	`, nil)
	f.Run(10)
	assert.Equal(t, machine.Int(42), requireDone(t, f))
}

func TestFiberBudgetSuspendsAndResumes(t *testing.T) {
	f := asmFiber(t, `
		createint 1
		createint 2
		createlist 2
		primitivekind add
	`, nil)
	f.Run(2)
	_, running := f.Status().(machine.Running)
	require.True(t, running)
	f.Run(10)
	assert.Equal(t, machine.Int(3), requireDone(t, f))
}

func TestFiberGetItem(t *testing.T) {
	f := asmFiber(t, `
		createint 10
		createint 20
		createint 30
		createlist 3
		createint 1
		createlist 2
		primitivekind get-item
	`, nil)
	f.Run(10)
	assert.Equal(t, machine.Int(20), requireDone(t, f))
}

func TestFiberGetItemOutOfBoundsPanics(t *testing.T) {
	f := asmFiber(t, `
		createint 10
		createlist 1
		createint 5
		createlist 2
		primitivekind get-item
	`, nil)
	f.Run(10)
	v := requirePanicked(t, f)
	list, ok := v.(*machine.List)
	require.True(t, ok)
	require.Len(t, list.Elems, 2)
	assert.Equal(t, machine.Symbol("wrong-usage"), list.Elems[0])
	assert.IsType(t, machine.String(""), list.Elems[1])
}

func TestFiberGetAmbient(t *testing.T) {
	f := asmFiber(t, `
		createsymbol "answer"
		primitivekind get-ambient
	`, map[string]machine.Value{"answer": machine.Int(9)})
	f.Run(10)
	assert.Equal(t, machine.Int(9), requireDone(t, f))
}

func TestFiberGetAmbientMissingPanics(t *testing.T) {
	f := asmFiber(t, `
		createsymbol "nope"
		primitivekind get-ambient
	`, nil)
	f.Run(10)
	list, ok := requirePanicked(t, f).(*machine.List)
	require.True(t, ok)
	assert.Equal(t, machine.Symbol("wrong-usage"), list.Elems[0])
}

func TestFiberPanicPrimitive(t *testing.T) {
	f := asmFiber(t, `
		createsymbol "nope"
		primitivekind panic
	`, nil)
	f.Run(10)
	assert.Equal(t, machine.Symbol("nope"), requirePanicked(t, f))
}

func TestFiberWrongUsagePanic(t *testing.T) {
	f := asmFiber(t, `
		createint 1
		primitivekind add
	`, nil)
	f.Run(10)
	list, ok := requirePanicked(t, f).(*machine.List)
	require.True(t, ok)
	require.Len(t, list.Elems, 2)
	assert.Equal(t, machine.Symbol("wrong-usage"), list.Elems[0])
}

func TestFiberCreateChannelSuspendsAndResumes(t *testing.T) {
	f := asmFiber(t, `
		createint 4
		primitivekind create-channel
	`, nil)
	f.Run(10)
	st, ok := f.Status().(machine.CreatingChannel)
	require.True(t, ok)
	assert.Equal(t, uint64(4), st.Capacity)

	f.ResolveChannelCreated(machine.SendEnd(7), machine.ReceiveEnd(7))
	f.Run(10)
	v := requireDone(t, f)
	assert.True(t, machine.Equal(machine.NewList(machine.SendEnd(7), machine.ReceiveEnd(7)), v))
}

func TestFiberSendSuspendsAndResumes(t *testing.T) {
	f := asmFiber(t, `
		createsymbol "out"
		primitivekind get-ambient
		createsmallstring "hi"
		createlist 2
		primitivekind send
	`, map[string]machine.Value{"out": machine.SendEnd(0)})
	f.Run(10)
	st, ok := f.Status().(machine.Sending)
	require.True(t, ok)
	assert.Equal(t, machine.ChannelID(0), st.Channel)
	assert.Equal(t, machine.String("hi"), st.Message)

	f.ResolveSending()
	f.Run(10)
	assert.Equal(t, machine.Unit, requireDone(t, f))
}

func TestFiberReceiveSuspendsAndResumes(t *testing.T) {
	f := asmFiber(t, `
		createsymbol "in"
		primitivekind get-ambient
		primitivekind receive
	`, map[string]machine.Value{"in": machine.ReceiveEnd(3)})
	f.Run(10)
	st, ok := f.Status().(machine.Receiving)
	require.True(t, ok)
	assert.Equal(t, machine.ChannelID(3), st.Channel)

	f.ResolveReceiving(machine.String("msg"))
	f.Run(10)
	assert.Equal(t, machine.String("msg"), requireDone(t, f))
}

// a dropped value is freed; at the end only the initial dot (still on the
// bottom of the stack) remains on the heap.
func TestFiberDropFreesObject(t *testing.T) {
	f := asmFiber(t, `
		createsmallstring "scratch"
		dropnear 0
		pop
		createint 1
	`, nil)
	f.Run(10)
	assert.Equal(t, machine.Int(1), requireDone(t, f))
	assert.Equal(t, 1, f.HeapLen())
}

// a closure built over the full pipeline (minus the optimizer, so that the
// CALL/RETURN path actually executes) returns its argument unchanged.
func TestFiberClosureCallIdentity(t *testing.T) {
	chunk := &ast.Chunk{Name: "t", Body: ast.Seq{
		&ast.CodeLit{Body: ast.Seq{&ast.Name{Value: "."}}},
		&ast.Fun{Name: "id"},
		&ast.IntLit{Value: 7},
		&ast.Name{Value: "id"},
	}}
	b, err := compiler.CompileChunk(chunk)
	require.NoError(t, err)
	require.NoError(t, b.Validate())
	prog := compiler.EmitProgram(chunk.Name, compiler.Peephole(compiler.Lower(b)))

	f := machine.NewFiber(prog, nil, machine.Unit)
	f.Run(100)
	assert.Equal(t, machine.Int(7), requireDone(t, f))
}

// the argument is read twice in the callee: the emitted dups must keep it
// alive for both reads.
func TestFiberClosureCallArgUsedTwice(t *testing.T) {
	chunk := &ast.Chunk{Name: "t", Body: ast.Seq{
		&ast.CodeLit{Body: ast.Seq{
			&ast.ListLit{Elems: []ast.Seq{
				{&ast.SymbolLit{Value: "add"}},
				{&ast.ListLit{Elems: []ast.Seq{
					{&ast.Name{Value: "."}},
					{&ast.Name{Value: "."}},
				}}},
			}},
			&ast.Name{Value: "✨"},
		}},
		&ast.Fun{Name: "double"},
		&ast.IntLit{Value: 21},
		&ast.Name{Value: "double"},
	}}
	b, err := compiler.CompileChunk(chunk)
	require.NoError(t, err)
	prog := compiler.EmitProgram(chunk.Name, compiler.Peephole(compiler.Lower(b)))

	f := machine.NewFiber(prog, nil, machine.Unit)
	f.Run(100)
	assert.Equal(t, machine.Int(42), requireDone(t, f))
}
