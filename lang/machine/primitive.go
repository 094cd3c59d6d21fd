package machine

import (
	"fmt"

	"github.com/mna/mehl/lang/hir"
)

// primitive dispatches an invocation whose argument has already been
// exported off the heap. Pure primitives push their (imported) result;
// panic sets the panicked status; the channel primitives suspend the fiber
// for the enclosing VM to resolve.
func (f *Fiber) primitive(kind hir.PrimitiveKind, arg Value) {
	name := kind.String()
	switch kind {
	case hir.Add:
		ints, ok := intList(arg)
		if !ok {
			f.wrongUsage(name, "wants a list of ints, got %s", arg)
			return
		}
		var sum int64
		for _, n := range ints {
			sum += n
		}
		f.pushValue(Int(sum))

	case hir.Sub:
		ints, ok := intList(arg)
		if !ok || len(ints) != 2 {
			f.wrongUsage(name, "wants a list of two ints, got %s", arg)
			return
		}
		f.pushValue(Int(ints[0] - ints[1]))

	case hir.Mul:
		ints, ok := intList(arg)
		if !ok {
			f.wrongUsage(name, "wants a list of ints, got %s", arg)
			return
		}
		product := int64(1)
		for _, n := range ints {
			product *= n
		}
		f.pushValue(Int(product))

	case hir.Len:
		switch arg := arg.(type) {
		case *List:
			f.pushValue(Int(len(arg.Elems)))
		case String:
			f.pushValue(Int(len([]rune(string(arg)))))
		default:
			f.wrongUsage(name, "wants a list or a string, got %s", arg)
		}

	case hir.GetItem:
		list, ok := arg.(*List)
		if !ok || len(list.Elems) != 2 {
			f.wrongUsage(name, "wants a list [list, index], got %s", arg)
			return
		}
		items, ok := list.Elems[0].(*List)
		if !ok {
			f.wrongUsage(name, "wants a list as its first element, got %s", list.Elems[0])
			return
		}
		index, ok := list.Elems[1].(Int)
		if !ok {
			f.wrongUsage(name, "wants an int index, got %s", list.Elems[1])
			return
		}
		if index < 0 || int(index) >= len(items.Elems) {
			f.wrongUsage(name, "index %d out of bounds for a list of %d", index, len(items.Elems))
			return
		}
		f.pushValue(items.Elems[index])

	case hir.GetAmbient:
		sym, ok := arg.(Symbol)
		if !ok {
			f.wrongUsage(name, "wants a symbol, got %s", arg)
			return
		}
		v, ok := f.ambients[string(sym)]
		if !ok {
			f.wrongUsage(name, "no ambient named %s", sym)
			return
		}
		f.pushValue(v)

	case hir.Panic:
		f.status = Panicked{Value: arg}

	case hir.CreateChannel:
		capacity, ok := arg.(Int)
		if !ok || capacity < 0 {
			f.wrongUsage(name, "wants a non-negative int capacity, got %s", arg)
			return
		}
		f.status = CreatingChannel{Capacity: uint64(capacity)}

	case hir.Send:
		list, ok := arg.(*List)
		if !ok || len(list.Elems) != 2 {
			f.wrongUsage(name, "wants a list [send-end, message], got %s", arg)
			return
		}
		end, ok := list.Elems[0].(SendEnd)
		if !ok {
			f.wrongUsage(name, "wants a send-end as its first element, got %s", list.Elems[0])
			return
		}
		f.status = Sending{Channel: ChannelID(end), Message: list.Elems[1]}

	case hir.Receive:
		end, ok := arg.(ReceiveEnd)
		if !ok {
			f.wrongUsage(name, "wants a receive-end, got %s", arg)
			return
		}
		f.status = Receiving{Channel: ChannelID(end)}

	default:
		panic(fmt.Sprintf("machine: unknown primitive kind %d", kind))
	}
}

// wrongUsage panics the fiber with the structured value reserved for
// primitive misuse, which language programs can pattern-match on.
func (f *Fiber) wrongUsage(name, format string, args ...any) {
	msg := name + ": " + fmt.Sprintf(format, args...)
	f.status = Panicked{Value: NewList(Symbol("wrong-usage"), String(msg))}
}

func intList(arg Value) ([]int64, bool) {
	list, ok := arg.(*List)
	if !ok {
		return nil, false
	}
	ints := make([]int64, len(list.Elems))
	for i, el := range list.Elems {
		n, ok := el.(Int)
		if !ok {
			return nil, false
		}
		ints[i] = int64(n)
	}
	return ints, true
}
