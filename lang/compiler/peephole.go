package compiler

import (
	"sort"

	"github.com/mna/mehl/lang/hir"
)

// Peephole cancels matched Dup/Drop pairs that straddle a read. It walks
// the closure's statements in reverse, carrying a
// multiset of ids pending a drop forward from where they were dropped to
// where (if anywhere) they are produced or used, and recurses into nested
// closures.
func Peephole(c *Closure) *Closure {
	pending := multiset{}
	var rev []Stmt

	for i := len(c.Code) - 1; i >= 0; i-- {
		switch s := c.Code[i].(type) {
		case Drop:
			pending.addAll(s.Ids)

		case Dup:
			remaining := pending.cancelAll(s.Ids)
			if len(remaining) > 0 {
				rev = append(rev, Dup{Ids: remaining})
			}

		case Assignment:
			// rev is built in reverse-of-final order, so the pieces below are
			// appended last-final-position-first: self-drop, crossing-drop,
			// the assignment itself, then the (possibly shrunk) preceding Dup.
			var dupRemaining []hir.Id
			haveDup := false
			if dupBefore, ok := peekDup(c.Code, i); ok {
				dupRemaining = pending.cancelAll(dupBefore.Ids)
				haveDup = true
				i--
			}

			if nested, ok := s.Expr.(ClosureExpr); ok {
				s.Expr = ClosureExpr{Closure: Peephole(nested.Closure)}
			}

			var crossing []hir.Id
			for _, used := range s.Expr.usedIds() {
				if pending.take(used) {
					crossing = append(crossing, used)
				}
			}
			selfDropped := pending.take(s.ID)

			if selfDropped {
				rev = append(rev, Drop{Ids: []hir.Id{s.ID}})
			}
			if len(crossing) > 0 {
				rev = append(rev, Drop{Ids: crossing})
			}
			rev = append(rev, s)
			if haveDup && len(dupRemaining) > 0 {
				rev = append(rev, Dup{Ids: dupRemaining})
			}
		}
	}

	if leftover := pending.all(); len(leftover) > 0 {
		rev = append(rev, Drop{Ids: leftover})
	}

	code := make([]Stmt, len(rev))
	for i, s := range rev {
		code[len(rev)-1-i] = s
	}
	return &Closure{Captured: c.Captured, In: c.In, Out: c.Out, Code: code}
}

// peekDup reports whether c.Code[i-1] is a Dup, i.e. the statement
// immediately preceding the Assignment at i in forward order (the
// next-in-reverse statement from the walk's perspective).
func peekDup(code []Stmt, i int) (Dup, bool) {
	if i == 0 {
		return Dup{}, false
	}
	d, ok := code[i-1].(Dup)
	return d, ok
}

// multiset counts pending drops per id, preserving no particular order;
// end-of-scope drops are order-insensitive, which makes a count-based
// representation sufficient.
type multiset map[hir.Id]int

func (m multiset) addAll(ids []hir.Id) {
	for _, id := range ids {
		m[id]++
	}
}

// take removes one occurrence of id, reporting whether one was present.
func (m multiset) take(id hir.Id) bool {
	if m[id] <= 0 {
		return false
	}
	m[id]--
	if m[id] == 0 {
		delete(m, id)
	}
	return true
}

// cancelAll removes one occurrence of each id in ids that is pending,
// returning the ids for which none was pending (i.e. the surviving Dup).
func (m multiset) cancelAll(ids []hir.Id) []hir.Id {
	var remaining []hir.Id
	for _, id := range ids {
		if !m.take(id) {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

// all returns every id with a positive pending count, each repeated once
// per remaining occurrence, in ascending id order.
func (m multiset) all() []hir.Id {
	var ids []hir.Id
	for id, n := range m {
		for ; n > 0; n-- {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
