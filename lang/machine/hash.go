package machine

import (
	"fmt"

	"github.com/dolthub/maphash"
)

var strHasher = maphash.NewHasher[string]()

// type tags mixed into structural hashes so that e.g. Int(0) and the empty
// list do not collide trivially.
const (
	tagInt uint64 = iota + 1
	tagString
	tagSymbol
	tagList
	tagMap
	tagClosure
	tagSendEnd
	tagReceiveEnd
)

// Hash returns a structural hash of v, consistent with Equal: equal values
// hash equal. It is the bucketing function of Map.
func Hash(v Value) uint64 {
	switch v := v.(type) {
	case Int:
		return mix(tagInt, uint64(v))
	case String:
		return mix(tagString, strHasher.Hash(string(v)))
	case Symbol:
		return mix(tagSymbol, strHasher.Hash(string(v)))
	case *List:
		h := tagList
		for _, el := range v.Elems {
			h = mix(h, Hash(el))
		}
		return h
	case *Map:
		// xor of entry hashes: order-independent, as map iteration order is
		// arbitrary but equal maps must hash equal.
		h := uint64(0)
		for _, kv := range v.Items() {
			h ^= mix(Hash(kv[0]), Hash(kv[1]))
		}
		return mix(tagMap, h)
	case *Closure:
		h := mix(tagClosure, v.Body)
		for _, c := range v.Captured {
			h = mix(h, Hash(c))
		}
		return h
	case SendEnd:
		return mix(tagSendEnd, uint64(v))
	case ReceiveEnd:
		return mix(tagReceiveEnd, uint64(v))
	default:
		panic(fmt.Sprintf("machine: unknown value type %T", v))
	}
}

// mix folds b into a, fnv-style.
func mix(a, b uint64) uint64 {
	const prime = 1099511628211
	a ^= b
	a *= prime
	return a
}
