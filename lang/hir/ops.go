package hir

// IntOp constructs an Int literal.
type IntOp struct{ Value int64 }

func (IntOp) refs() []Id             { return nil }
func (o IntOp) withRefs([]Id) StmtOp { return o }
func (IntOp) pure() bool             { return true }

// StringOp constructs a String literal.
type StringOp struct{ Value string }

func (StringOp) refs() []Id             { return nil }
func (o StringOp) withRefs([]Id) StmtOp { return o }
func (StringOp) pure() bool             { return true }

// SymbolOp constructs a Symbol literal. The empty symbol is the unit value.
type SymbolOp struct{ Value string }

func (SymbolOp) refs() []Id             { return nil }
func (o SymbolOp) withRefs([]Id) StmtOp { return o }
func (SymbolOp) pure() bool             { return true }

// MapPair is one key/value entry of a MapOp, each naming an earlier id.
type MapPair struct{ Key, Value Id }

// MapOp constructs a Map value from key/value id pairs.
type MapOp struct{ Pairs []MapPair }

func (o MapOp) refs() []Id {
	ids := make([]Id, 0, len(o.Pairs)*2)
	for _, p := range o.Pairs {
		ids = append(ids, p.Key, p.Value)
	}
	return ids
}

func (o MapOp) withRefs(newRefs []Id) StmtOp {
	pairs := make([]MapPair, len(o.Pairs))
	for i := range pairs {
		pairs[i] = MapPair{Key: newRefs[2*i], Value: newRefs[2*i+1]}
	}
	return MapOp{Pairs: pairs}
}

func (MapOp) pure() bool { return true }

// ListOp constructs a List value from element ids.
type ListOp struct{ Elems []Id }

func (o ListOp) refs() []Id { return o.Elems }

func (o ListOp) withRefs(newRefs []Id) StmtOp {
	elems := make([]Id, len(newRefs))
	copy(elems, newRefs)
	return ListOp{Elems: elems}
}

func (ListOp) pure() bool { return true }

// CodeOp holds a nested code block value. It has no refs of its own; its
// references are reached by recursing into Block (see ReplaceRange and
// Block.validate).
type CodeOp struct{ Block *Block }

func (CodeOp) refs() []Id             { return nil }
func (o CodeOp) withRefs([]Id) StmtOp { return o }
func (CodeOp) pure() bool             { return true }

// CallOp invokes a code value as a function.
type CallOp struct{ Fun, Arg Id }

func (o CallOp) refs() []Id { return []Id{o.Fun, o.Arg} }

func (o CallOp) withRefs(newRefs []Id) StmtOp {
	return CallOp{Fun: newRefs[0], Arg: newRefs[1]}
}

// Call is never pure: even though the callee might be, the HIR has no
// general way to prove a Code block's body always terminates without
// observable effect, and calling an unknown value may panic.
func (CallOp) pure() bool { return false }

// PrimitiveOp invokes a primitive. Kind is nil until specialization (pass 3)
// resolves it from a symbol-tagged list argument.
type PrimitiveOp struct {
	Kind *PrimitiveKind
	Arg  Id
}

func (o PrimitiveOp) refs() []Id { return []Id{o.Arg} }

func (o PrimitiveOp) withRefs(newRefs []Id) StmtOp {
	return PrimitiveOp{Kind: o.Kind, Arg: newRefs[0]}
}

func (o PrimitiveOp) pure() bool {
	return o.Kind != nil && o.Kind.IsPure()
}
