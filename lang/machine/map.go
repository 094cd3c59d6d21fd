package machine

import (
	"strings"

	"github.com/dolthub/swiss"
)

// A Map represents a map or dictionary with structural key equality. It is
// backed by a swiss table keyed by the keys' structural hash, each slot
// holding the entries whose keys share that hash. If you know the exact
// final number of entries, it is more efficient to call NewMap with it.
type Map struct {
	m *swiss.Map[uint64, []mapEntry]
	n int
}

type mapEntry struct {
	key, value Value
}

var _ Value = (*Map)(nil)

// NewMap returns a map with initial capacity for at least size items.
func NewMap(size int) *Map {
	return &Map{m: swiss.NewMap[uint64, []mapEntry](uint32(size))}
}

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, s := range sortedEntryStrings(m.Items()) {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s)
	}
	sb.WriteByte('}')
	return sb.String()
}
func (*Map) Type() string { return "map" }

// Len returns the number of entries in the map.
func (m *Map) Len() int { return m.n }

// Get returns the value corresponding to the specified key, or !found if
// the map does not contain the key.
func (m *Map) Get(k Value) (Value, bool) {
	bucket, ok := m.m.Get(Hash(k))
	if !ok {
		return nil, false
	}
	for _, e := range bucket {
		if Equal(e.key, k) {
			return e.value, true
		}
	}
	return nil, false
}

// Set inserts or replaces the entry for key k.
func (m *Map) Set(k, v Value) {
	h := Hash(k)
	bucket, _ := m.m.Get(h)
	for i, e := range bucket {
		if Equal(e.key, k) {
			bucket[i].value = v
			m.m.Put(h, bucket)
			return
		}
	}
	m.m.Put(h, append(bucket, mapEntry{key: k, value: v}))
	m.n++
}

// Items returns the entries as key/value pairs, in arbitrary order.
func (m *Map) Items() [][2]Value {
	items := make([][2]Value, 0, m.n)
	m.m.Iter(func(_ uint64, bucket []mapEntry) bool {
		for _, e := range bucket {
			items = append(items, [2]Value{e.key, e.value})
		}
		return false
	})
	return items
}

func (m *Map) equal(o *Map) bool {
	if m.n != o.n {
		return false
	}
	eq := true
	m.m.Iter(func(_ uint64, bucket []mapEntry) bool {
		for _, e := range bucket {
			ov, ok := o.Get(e.key)
			if !ok || !Equal(e.value, ov) {
				eq = false
				return true
			}
		}
		return false
	})
	return eq
}
