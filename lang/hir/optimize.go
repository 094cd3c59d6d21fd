package hir

// pass is one optimizer transformation, applied once; callers drain it to
// its own fixed point with drain before moving to the next pass.
type pass func(*Block) (*Block, bool, error)

// Optimize runs dead-code elimination, common sub-expression elimination,
// primitive specialization, pure-primitive folding, and inlining, in that
// order, repeating the whole sequence until a full sweep makes no further
// change. Every individual rewrite is a ReplaceRange application; Optimize
// is just the scheduling of those applications.
func Optimize(b *Block) (*Block, error) {
	passes := []pass{dceOnce, cseOnce, specializeOnce, foldOnce, inlineOnce}
	for {
		sweepChanged := false
		for _, p := range passes {
			nb, changed, err := drain(b, p)
			if err != nil {
				return nil, err
			}
			if changed {
				b = nb
				sweepChanged = true
			}
		}
		if !sweepChanged {
			return b, nil
		}
	}
}

func drain(b *Block, p pass) (*Block, bool, error) {
	changedAny := false
	for {
		nb, changed, err := p(b)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return b, changedAny, nil
		}
		b = nb
		changedAny = true
	}
}
