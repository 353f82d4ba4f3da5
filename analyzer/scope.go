package analyzer

import (
	"strings"

	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/expression"
)

// scope is the set of columns an expression may reference: the outputs of the
// operator's children. hidden holds columns produced further down that were
// projected away; referencing one of those is an out-of-scope error rather
// than an unknown name.
type scope struct {
	cols   []*expression.SlotReference
	hidden []*expression.SlotReference
}

func newScope(cols, all []*expression.SlotReference) *scope {
	s := &scope{cols: cols}
	visible := make(map[expression.ExprID]bool, len(cols))
	for _, c := range cols {
		visible[c.ID()] = true
	}
	for _, c := range all {
		if !visible[c.ID()] {
			s.hidden = append(s.hidden, c)
		}
	}
	return s
}

// matches reports whether the slot answers to a name written as nameParts.
// The qualifier written in the query must be a suffix of the slot's.
func matches(slot *expression.SlotReference, nameParts []string) bool {
	name, _ := slot.Name()
	if !strings.EqualFold(name, nameParts[len(nameParts)-1]) {
		return false
	}
	written := nameParts[:len(nameParts)-1]
	qualifier, _ := slot.Qualifier()
	if len(written) > len(qualifier) {
		return false
	}
	tail := qualifier[len(qualifier)-len(written):]
	for i := range written {
		if !strings.EqualFold(written[i], tail[i]) {
			return false
		}
	}
	return true
}

func (s *scope) resolve(nameParts []string) (*expression.SlotReference, error) {
	var found *expression.SlotReference
	for _, c := range s.cols {
		if !matches(c, nameParts) {
			continue
		}
		if found != nil && found.ID() != c.ID() {
			return nil, common.NewError(common.AmbiguousReferenceError,
				"%s matches both %s and %s", expression.QualifiedName(nameParts...), found, c)
		}
		found = c
	}
	if found != nil {
		return found, nil
	}
	for _, c := range s.hidden {
		if matches(c, nameParts) {
			return nil, common.NewError(common.ReferenceOutOfScopeError,
				"%s is not visible here", expression.QualifiedName(nameParts...))
		}
	}
	return nil, common.NewError(common.UnresolvedReferenceError,
		"unknown column %s", expression.QualifiedName(nameParts...))
}

// check makes sure a slot that is already bound is visible in the scope.
func (s *scope) check(slot *expression.SlotReference) error {
	for _, c := range s.cols {
		if c.ID() == slot.ID() {
			return nil
		}
	}
	for _, c := range s.hidden {
		if c.ID() == slot.ID() {
			return common.NewError(common.ReferenceOutOfScopeError, "%s is not visible here", slot)
		}
	}
	return common.NewError(common.UnresolvedReferenceError, "%s is not produced by any input", slot)
}

// expand returns the columns a star with the given qualifier stands for.
func (s *scope) expand(qualifier []string) ([]*expression.SlotReference, error) {
	if len(qualifier) == 0 {
		return s.cols, nil
	}
	var result []*expression.SlotReference
	for _, c := range s.cols {
		name, _ := c.Name()
		if matches(c, append(qualifier[:len(qualifier):len(qualifier)], name)) {
			result = append(result, c)
		}
	}
	if len(result) == 0 {
		return nil, common.NewError(common.UnresolvedReferenceError,
			"unknown table %s", expression.QualifiedName(qualifier...))
	}
	return result, nil
}
