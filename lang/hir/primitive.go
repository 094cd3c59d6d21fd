package hir

// PrimitiveKind identifies which primitive a Primitive statement invokes.
// It starts out nil on a freshly compiled Primitive{kind: None, arg} and is
// resolved by the specialization pass once the primitive's tag symbol is
// known.
type PrimitiveKind uint8

// The set of primitives known to the core. Add, Sub, Mul, Len and GetItem
// are pure; the rest either panic, suspend the fiber, or read ambient state.
const (
	Add PrimitiveKind = iota
	Sub
	Mul
	Len
	GetItem
	GetAmbient
	Panic
	CreateChannel
	Send
	Receive
)

// primitiveNames maps the symbol tag a program uses (e.g. Symbol("add"))
// to the PrimitiveKind it selects. This is the universe of primitive names
// available to every program.
var primitiveNames = map[string]PrimitiveKind{
	"add":            Add,
	"sub":            Sub,
	"mul":            Mul,
	"len":            Len,
	"get-item":       GetItem,
	"get-ambient":    GetAmbient,
	"panic":          Panic,
	"create-channel": CreateChannel,
	"send":           Send,
	"receive":        Receive,
}

var primitiveKindNames = func() map[PrimitiveKind]string {
	m := make(map[PrimitiveKind]string, len(primitiveNames))
	for name, kind := range primitiveNames {
		m[kind] = name
	}
	return m
}()

// ParsePrimitiveKind resolves a primitive's tag symbol to its PrimitiveKind.
// It reports ok=false for an unrecognized tag.
func ParsePrimitiveKind(sym string) (PrimitiveKind, bool) {
	k, ok := primitiveNames[sym]
	return k, ok
}

func (k PrimitiveKind) String() string {
	if name, ok := primitiveKindNames[k]; ok {
		return name
	}
	return "unknown-primitive"
}

// IsPure reports whether invoking this primitive has no side effect beyond
// producing its result, i.e. it is safe to dead-code-eliminate, common
// sub-expression-eliminate, and constant-fold.
func (k PrimitiveKind) IsPure() bool {
	switch k {
	case Add, Sub, Mul, Len, GetItem:
		return true
	default:
		return false
	}
}
