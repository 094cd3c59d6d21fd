package vm_test

import (
	"math/rand"
	"testing"

	"github.com/mna/mehl/lang/ast"
	"github.com/mna/mehl/lang/compiler"
	"github.com/mna/mehl/lang/machine"
	"github.com/mna/mehl/lang/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileBody(t *testing.T, body ast.Seq) *compiler.Program {
	t.Helper()
	p, err := compiler.Compile(&ast.Chunk{Name: "t", Body: body})
	require.NoError(t, err)
	return p
}

// prim builds the pipeline fragment invoking the named primitive on the
// result of operand.
func prim(name string, operand ast.Seq) ast.Seq {
	return ast.Seq{
		&ast.ListLit{Elems: []ast.Seq{
			{&ast.SymbolLit{Value: name}},
			operand,
		}},
		&ast.Name{Value: "✨"},
	}
}

// runToEnd drives the VM until it finalizes, failing the test if it goes
// Waiting (no test here expects to block on the host) or runs away.
func runToEnd(t *testing.T, v *vm.Vm) vm.Status {
	t.Helper()
	for i := 0; i < 1000; i++ {
		v.Run(100)
		switch v.Status().(type) {
		case vm.Done, vm.Panicked:
			return v.Status()
		case vm.Waiting:
			t.Fatalf("VM is waiting on %v, expected it to finish on its own", v.PendingOperations())
		}
	}
	t.Fatal("VM did not finish")
	return nil
}

func TestVmLiteralIdentity(t *testing.T) {
	p := compileBody(t, ast.Seq{&ast.IntLit{Value: 42}})
	st := runToEnd(t, vm.New(p, nil))
	done, ok := st.(vm.Done)
	require.True(t, ok)
	assert.Equal(t, machine.Int(42), done.Value)
}

// (1, 2) :add ✨ folds at compile time: the byte code creates the sum
// directly and performs no primitive call at all.
func TestVmAdditionFoldsToLiteral(t *testing.T) {
	p := compileBody(t, prim("add", ast.Seq{&ast.ListLit{Elems: []ast.Seq{
		{&ast.IntLit{Value: 1}},
		{&ast.IntLit{Value: 2}},
	}}}))

	instrs, _, err := p.Instrs()
	require.NoError(t, err)
	for _, ins := range instrs {
		assert.NotEqual(t, compiler.PRIMITIVE, ins.Op)
		assert.NotEqual(t, compiler.PRIMITIVEKIND, ins.Op)
		assert.NotEqual(t, compiler.CREATELIST, ins.Op)
	}

	st := runToEnd(t, vm.New(p, nil))
	done, ok := st.(vm.Done)
	require.True(t, ok)
	assert.Equal(t, machine.Int(3), done.Value)
}

func TestVmClosureReturnsArgument(t *testing.T) {
	p := compileBody(t, ast.Seq{
		&ast.CodeLit{Body: ast.Seq{&ast.Name{Value: "."}}},
		&ast.Fun{Name: "id"},
		&ast.IntLit{Value: 7},
		&ast.Name{Value: "id"},
	})
	st := runToEnd(t, vm.New(p, nil))
	done, ok := st.(vm.Done)
	require.True(t, ok)
	assert.Equal(t, machine.Int(7), done.Value)
}

// a value constructed mid-stream but unused never reaches the byte code.
func TestVmDeadStringEliminated(t *testing.T) {
	p := compileBody(t, ast.Seq{
		&ast.StringLit{Value: "unused"},
		&ast.IntLit{Value: 1},
	})

	instrs, _, err := p.Instrs()
	require.NoError(t, err)
	for _, ins := range instrs {
		assert.NotEqual(t, compiler.CREATESTRING, ins.Op)
		assert.NotEqual(t, compiler.CREATESMALLSTRING, ins.Op)
	}

	st := runToEnd(t, vm.New(p, nil))
	done, ok := st.(vm.Done)
	require.True(t, ok)
	assert.Equal(t, machine.Int(1), done.Value)
}

func TestVmPanicPropagates(t *testing.T) {
	p := compileBody(t, prim("panic", ast.Seq{&ast.SymbolLit{Value: "nope"}}))
	st := runToEnd(t, vm.New(p, nil))
	panicked, ok := st.(vm.Panicked)
	require.True(t, ok)
	assert.Equal(t, machine.Symbol("nope"), panicked.Value)
}

// sending on an ambient channel surfaces a pending operation to the host;
// resolving it completes the program with unit.
func TestVmAmbientSendSurfacesToHost(t *testing.T) {
	p := compileBody(t, prim("send", ast.Seq{&ast.ListLit{Elems: []ast.Seq{
		prim("get-ambient", ast.Seq{&ast.SymbolLit{Value: "out"}}),
		{&ast.StringLit{Value: "hi"}},
	}}}))

	v := vm.New(p, map[string]machine.Value{"out": machine.SendEnd(0)})
	for i := 0; i < 100; i++ {
		v.Run(100)
		if _, ok := v.Status().(vm.Waiting); ok {
			break
		}
		if _, ok := v.Status().(vm.Running); !ok {
			t.Fatalf("unexpected status %#v", v.Status())
		}
	}

	ops := v.PendingOperations()
	require.Len(t, ops, 1)
	assert.Equal(t, vm.OpSend, ops[0].Kind)
	assert.Equal(t, machine.ChannelID(0), ops[0].Channel)
	assert.Equal(t, machine.String("hi"), ops[0].Message)

	v.ResolveSend(0, machine.String("hi"))
	st := runToEnd(t, v)
	done, ok := st.(vm.Done)
	require.True(t, ok)
	assert.Equal(t, machine.Unit, done.Value)
}

// an internal channel created and used within one program: two sends
// buffer, two receives take the messages back in send order.
func TestVmInternalChannelFIFO(t *testing.T) {
	// create a channel of capacity 2, keep the pair with a let, then send
	// 1 and 2 and receive twice into a list.
	ch := ast.Seq{&ast.Name{Value: "ch"}}
	sendEnd := prim("get-item", ast.Seq{&ast.ListLit{Elems: []ast.Seq{ch, {&ast.IntLit{Value: 0}}}}})
	recvEnd := prim("get-item", ast.Seq{&ast.ListLit{Elems: []ast.Seq{ch, {&ast.IntLit{Value: 1}}}}})

	var body ast.Seq
	body = append(body, prim("create-channel", ast.Seq{&ast.IntLit{Value: 2}})...)
	body = append(body, &ast.Let{Name: "ch"})
	for i := 1; i <= 2; i++ {
		body = append(body, prim("send", ast.Seq{&ast.ListLit{Elems: []ast.Seq{
			sendEnd,
			{&ast.IntLit{Value: int64(i)}},
		}}})...)
	}
	body = append(body, &ast.ListLit{Elems: []ast.Seq{
		prim("receive", recvEnd),
		prim("receive", recvEnd),
	}})

	p := compileBody(t, body)
	st := runToEnd(t, vm.New(p, nil))
	done, ok := st.(vm.Done)
	require.True(t, ok)
	assert.True(t, machine.Equal(machine.NewList(machine.Int(1), machine.Int(2)), done.Value),
		"messages delivered out of order: %s", done.Value)
}

// identical seeds give identical schedules.
func TestVmDeterministicWithSeededRand(t *testing.T) {
	run := func(seed int64) machine.Value {
		a := compileBody(t, ast.Seq{&ast.IntLit{Value: 1}})
		b := compileBody(t, ast.Seq{&ast.IntLit{Value: 2}})
		v := vm.New(a, nil)
		v.Rand = rand.New(rand.NewSource(seed))
		v.AddProgram(1, b, nil, machine.Unit)
		st := runToEnd(t, v)
		return st.(vm.Done).Value
	}
	first := run(7)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run(7))
	}
}
