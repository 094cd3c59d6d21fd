package machine

import "fmt"

// An Object is an entry on a fiber's heap: a reference count and the data.
// Composite objects reference their children by heap address, so the heap
// forms the same tree shape as the Value a subtree would export to.
type Object struct {
	refs uint64
	data ObjectData
}

// ObjectData mirrors the Value variants, with heap addresses in place of
// nested values.
type ObjectData interface{ isObjectData() }

type (
	IntData    int64
	StringData string
	SymbolData string

	// ListData holds the element addresses in order.
	ListData []uint64

	// MapData holds key/value address pairs in creation order. Structural
	// key semantics only apply once exported to a *Map value; on the heap a
	// map is just its pairs.
	MapData [][2]uint64

	// ClosureData pairs a byte-code body address with captured heap
	// addresses.
	ClosureData struct {
		Body     uint64
		Captured []uint64
	}

	SendEndData    ChannelID
	ReceiveEndData ChannelID
)

func (IntData) isObjectData()        {}
func (StringData) isObjectData()     {}
func (SymbolData) isObjectData()     {}
func (ListData) isObjectData()       {}
func (MapData) isObjectData()        {}
func (ClosureData) isObjectData()    {}
func (SendEndData) isObjectData()    {}
func (ReceiveEndData) isObjectData() {}

// createObject allocates an object with reference count 1 and returns its
// address.
func (f *Fiber) createObject(data ObjectData) uint64 {
	addr := f.nextHeapAddr
	f.nextHeapAddr++
	f.heap[addr] = &Object{refs: 1, data: data}
	return addr
}

func (f *Fiber) object(addr uint64) *Object {
	obj, ok := f.heap[addr]
	if !ok {
		panic(fmt.Sprintf("machine: no heap object at %d", addr))
	}
	return obj
}

// dup increments the reference count of the object at addr.
func (f *Fiber) dup(addr uint64) {
	f.object(addr).refs++
}

// drop decrements the reference count of the object at addr and, on
// reaching zero, recursively drops its children and frees it.
func (f *Fiber) drop(addr uint64) {
	obj := f.object(addr)
	obj.refs--
	if obj.refs > 0 {
		return
	}
	switch data := obj.data.(type) {
	case IntData, StringData, SymbolData, SendEndData, ReceiveEndData:
	case ListData:
		for _, el := range data {
			f.drop(el)
		}
	case MapData:
		for _, kv := range data {
			f.drop(kv[0])
			f.drop(kv[1])
		}
	case ClosureData:
		for _, c := range data.Captured {
			f.drop(c)
		}
	}
	delete(f.heap, addr)
}

// importValue materializes v as a tree of heap objects, every node starting
// at reference count 1, and returns the root address.
func (f *Fiber) importValue(v Value) uint64 {
	switch v := v.(type) {
	case Int:
		return f.createObject(IntData(v))
	case String:
		return f.createObject(StringData(v))
	case Symbol:
		return f.createObject(SymbolData(v))
	case *List:
		data := make(ListData, len(v.Elems))
		for i, el := range v.Elems {
			data[i] = f.importValue(el)
		}
		return f.createObject(data)
	case *Map:
		items := v.Items()
		data := make(MapData, len(items))
		for i, kv := range items {
			data[i] = [2]uint64{f.importValue(kv[0]), f.importValue(kv[1])}
		}
		return f.createObject(data)
	case *Closure:
		captured := make([]uint64, len(v.Captured))
		for i, c := range v.Captured {
			captured[i] = f.importValue(c)
		}
		return f.createObject(ClosureData{Body: v.Body, Captured: captured})
	case SendEnd:
		return f.createObject(SendEndData(v))
	case ReceiveEnd:
		return f.createObject(ReceiveEndData(v))
	default:
		panic(fmt.Sprintf("machine: cannot import value of type %T", v))
	}
}

// export materializes the object tree rooted at addr as a Value, then
// drops the root reference (freeing the subtree if that was the last one).
func (f *Fiber) export(addr uint64) Value {
	v := f.exportTree(addr)
	f.drop(addr)
	return v
}

func (f *Fiber) exportTree(addr uint64) Value {
	switch data := f.object(addr).data.(type) {
	case IntData:
		return Int(data)
	case StringData:
		return String(data)
	case SymbolData:
		return Symbol(data)
	case ListData:
		elems := make([]Value, len(data))
		for i, el := range data {
			elems[i] = f.exportTree(el)
		}
		return &List{Elems: elems}
	case MapData:
		m := NewMap(len(data))
		for _, kv := range data {
			m.Set(f.exportTree(kv[0]), f.exportTree(kv[1]))
		}
		return m
	case ClosureData:
		captured := make([]Value, len(data.Captured))
		for i, c := range data.Captured {
			captured[i] = f.exportTree(c)
		}
		return &Closure{Body: data.Body, Captured: captured}
	case SendEndData:
		return SendEnd(data)
	case ReceiveEndData:
		return ReceiveEnd(data)
	default:
		panic(fmt.Sprintf("machine: unknown object data %T", data))
	}
}
