package hir

// Refs exposes a statement operation's referenced ids for use by later
// compiler stages (e.g. LIR capture-set computation), since refs itself is
// unexported.
func Refs(op StmtOp) []Id { return op.refs() }

// lookup returns the operation that defines id within b, if id names one of
// b's own statements (not its In, and not an ancestor's statement).
func lookup(b *Block, id Id) (StmtOp, bool) {
	i := b.IndexOf(id)
	if i < 0 {
		return nil, false
	}
	return b.Stmts[i].Op, true
}

// identityRemap builds the remap required by an in-place ReplaceRange: every
// id in [start, start+n) maps to itself, since the replacement occupies the
// same ids it replaces.
func identityRemap(start Id, n int) map[Id]Id {
	m := make(map[Id]Id, n)
	for i := 0; i < n; i++ {
		m[start+Id(i)] = start + Id(i)
	}
	return m
}
