package expression

// Equal reports whether two expression trees are structurally equal: same
// kinds, same node attributes, pairwise equal children.
func Equal(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || !a.shallowEqual(b) {
		return false
	}
	ac, bc := a.Children(), b.Children()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !Equal(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

// EqualLists compares two expression lists element-wise.
func EqualLists[E Expression](a, b []E) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Walk visits e in pre-order. Children of a node are skipped when fn returns
// false for it.
func Walk(e Expression, fn func(Expression) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children() {
		Walk(c, fn)
	}
}

// Rewrite rebuilds e bottom-up. fn is applied to every node after its children
// have been rewritten. Nodes whose children did not change are reused, so an
// identity rewrite returns e itself.
func Rewrite(e Expression, fn func(Expression) (Expression, error)) (Expression, error) {
	children := e.Children()
	if len(children) > 0 {
		var newChildren []Expression
		for i, c := range children {
			nc, err := Rewrite(c, fn)
			if err != nil {
				return nil, err
			}
			if nc != c && newChildren == nil {
				newChildren = make([]Expression, len(children))
				copy(newChildren, children[:i])
			}
			if newChildren != nil {
				newChildren[i] = nc
			}
		}
		if newChildren != nil {
			var err error
			if e, err = e.WithChildren(newChildren); err != nil {
				return nil, err
			}
		}
	}
	return fn(e)
}

// ContainsUnbound reports whether any node in e is unbound.
func ContainsUnbound(e Expression) bool {
	found := false
	Walk(e, func(n Expression) bool {
		if n.Kind().IsUnbound() {
			found = true
		}
		return !found
	})
	return found
}

// ContainsAggregate reports whether e calls an aggregate function.
func ContainsAggregate(e Expression) bool {
	found := false
	Walk(e, func(n Expression) bool {
		if n.Kind() == AggregateFunctionKind {
			found = true
		}
		return !found
	})
	return found
}

// InputSlots returns the distinct slots referenced by e, in first-seen order.
func InputSlots(e Expression) []*SlotReference {
	var slots []*SlotReference
	seen := make(map[ExprID]bool)
	Walk(e, func(n Expression) bool {
		if s, ok := n.(*SlotReference); ok && !seen[s.ID()] {
			seen[s.ID()] = true
			slots = append(slots, s)
		}
		return true
	})
	return slots
}

// SplitConjuncts flattens a tree of ANDs into its conjuncts.
func SplitConjuncts(e Expression) []Expression {
	if e == nil {
		return nil
	}
	if and, ok := e.(*And); ok {
		return append(SplitConjuncts(and.Left()), SplitConjuncts(and.Right())...)
	}
	return []Expression{e}
}

// CombineConjuncts builds a left-deep AND of the given predicates. It returns
// nil for an empty list.
func CombineConjuncts(conjuncts []Expression) Expression {
	if len(conjuncts) == 0 {
		return nil
	}
	result := conjuncts[0]
	for _, c := range conjuncts[1:] {
		result = NewAnd(result, c)
	}
	return result
}
