package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFiber() *Fiber {
	return &Fiber{
		heap:         make(map[uint64]*Object),
		nextHeapAddr: 1,
		status:       Running{},
	}
}

// import then export reproduces the value; the export's final drop frees
// the whole tree, nested children included.
func TestImportExportRoundTrip(t *testing.T) {
	m := NewMap(2)
	m.Set(Symbol("k"), Int(1))
	m.Set(NewList(Int(1), Int(2)), String("v"))

	values := []Value{
		Int(-5),
		String("hello"),
		Symbol(""),
		NewList(Int(1), NewList(String("nested")), Unit),
		m,
		&Closure{Body: 99, Captured: []Value{Int(3), Symbol("c")}},
		SendEnd(2),
		ReceiveEnd(4),
	}
	for _, v := range values {
		f := testFiber()
		addr := f.importValue(v)
		got := f.export(addr)
		assert.True(t, Equal(v, got), "round-trip of %s gave %s", v, got)
		assert.Equal(t, 0, f.HeapLen(), "export of %s did not free the tree", v)
	}
}

func TestDupDropRefcounts(t *testing.T) {
	f := testFiber()
	addr := f.importValue(NewList(Int(1), Int(2)))
	require.Equal(t, 3, f.HeapLen()) // the list and its two items

	f.dup(addr)
	f.drop(addr)
	assert.Equal(t, 3, f.HeapLen())

	f.drop(addr)
	assert.Equal(t, 0, f.HeapLen())
}

// dropping a composite with a shared child only frees the child once every
// owner is gone.
func TestDropSharedChild(t *testing.T) {
	f := testFiber()
	child := f.importValue(Int(7))
	f.dup(child)
	list := f.createObject(ListData{child, child})
	require.Equal(t, 2, f.HeapLen())

	f.drop(list)
	assert.Equal(t, 0, f.HeapLen())
}
