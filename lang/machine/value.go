package machine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ChannelID identifies a channel within the VM that owns it.
type ChannelID uint64

// Value is the interface implemented by any value manipulated by the
// machine. It is the currency at the compiler and host boundaries and the
// form in which messages travel over channels; inside a fiber, values live
// as refcounted heap objects (see Object) and are imported and exported at
// the boundaries.
type Value interface {
	// String returns the string representation of the value.
	String() string

	// Type returns a short string describing the value's type.
	Type() string
}

// Int is a signed 64-bit integer value.
type Int int64

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (Int) Type() string     { return "int" }

// String is a byte sequence value, UTF-8 by convention.
type String string

func (s String) String() string { return strconv.Quote(string(s)) }
func (String) Type() string     { return "string" }

// Symbol is an interned-by-value byte sequence. The empty symbol is the
// unit value (see Unit).
type Symbol string

func (s Symbol) String() string { return ":" + string(s) }
func (Symbol) Type() string     { return "symbol" }

// List is an ordered finite sequence of values.
type List struct {
	Elems []Value
}

func (l *List) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, el := range l.Elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(el.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
func (*List) Type() string { return "list" }

// NewList returns a list value containing the given elements.
func NewList(elems ...Value) *List { return &List{Elems: elems} }

// Closure pairs a byte-code body address with the values captured from the
// scope the closure was created in.
type Closure struct {
	Body     uint64
	Captured []Value
}

func (c *Closure) String() string { return fmt.Sprintf("closure(%d)", c.Body) }
func (*Closure) Type() string     { return "closure" }

// SendEnd is a handle to the sending side of a channel.
type SendEnd ChannelID

func (e SendEnd) String() string { return fmt.Sprintf("send-end(%d)", uint64(e)) }
func (SendEnd) Type() string     { return "send-end" }

// ReceiveEnd is a handle to the receiving side of a channel.
type ReceiveEnd ChannelID

func (e ReceiveEnd) String() string { return fmt.Sprintf("receive-end(%d)", uint64(e)) }
func (ReceiveEnd) Type() string     { return "receive-end" }

// Equal reports whether x and y are equal. Equality is structural for the
// data variants; a Closure is equal to another if they share the same body
// address and equal captured values, and a channel end is equal to another
// end of the same direction referring to the same channel.
func Equal(x, y Value) bool {
	switch x := x.(type) {
	case Int:
		y, ok := y.(Int)
		return ok && x == y
	case String:
		y, ok := y.(String)
		return ok && x == y
	case Symbol:
		y, ok := y.(Symbol)
		return ok && x == y
	case *List:
		y, ok := y.(*List)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := y.(*Map)
		return ok && x.equal(y)
	case *Closure:
		y, ok := y.(*Closure)
		if !ok || x.Body != y.Body || len(x.Captured) != len(y.Captured) {
			return false
		}
		for i := range x.Captured {
			if !Equal(x.Captured[i], y.Captured[i]) {
				return false
			}
		}
		return true
	case SendEnd:
		y, ok := y.(SendEnd)
		return ok && x == y
	case ReceiveEnd:
		y, ok := y.(ReceiveEnd)
		return ok && x == y
	default:
		panic(fmt.Sprintf("machine: unknown value type %T", x))
	}
}

// sortedEntryStrings renders a map's entries as "key: value" strings in a
// deterministic order, for Map.String.
func sortedEntryStrings(items [][2]Value) []string {
	ss := make([]string, len(items))
	for i, kv := range items {
		ss[i] = kv[0].String() + ": " + kv[1].String()
	}
	sort.Strings(ss)
	return ss
}
