package memo

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/planner"
)

// GroupExpression is one operator whose children are memo groups rather than
// plans. Many group expressions may share the same child group.
type GroupExpression struct {
	id       common.GroupExpressionID
	op       planner.Operator
	children []common.GroupID
	// group is the owning group. It is kept canonical across merges.
	group common.GroupID
	// dropped is set when a merge made the expression a duplicate of an older
	// one. Dropped expressions stay addressable but belong to no group.
	dropped bool
	memo    *Memo
}

func (e *GroupExpression) ID() common.GroupExpressionID {
	return e.id
}

func (e *GroupExpression) Operator() planner.Operator {
	return e.op
}

// ChildGroups returns the ids of the child groups. The slice must not be
// modified.
func (e *GroupExpression) ChildGroups() []common.GroupID {
	return e.children
}

// Group returns the id of the owning group.
func (e *GroupExpression) Group() common.GroupID {
	return e.group
}

// OwnerProperties returns the logical properties of the owning group.
func (e *GroupExpression) OwnerProperties() *planner.LogicalProperties {
	return e.memo.groups[e.group].props
}

func (e *GroupExpression) IsPhysical() bool {
	return e.op.Type().IsPhysical()
}

func (e *GroupExpression) IsDropped() bool {
	return e.dropped
}

func (e *GroupExpression) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ge%d: %s", e.id, e.op)
	if len(e.children) > 0 {
		b.WriteString(" [")
		for i, c := range e.children {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(c.String())
		}
		b.WriteString("]")
	}
	return b.String()
}

// matches reports whether e is the expression op over children.
func (e *GroupExpression) matches(op planner.Operator, children []common.GroupID) bool {
	if e.dropped || len(e.children) != len(children) || !e.op.Equal(op) {
		return false
	}
	for i := range children {
		if e.children[i] != children[i] {
			return false
		}
	}
	return true
}

// fingerprint hashes the dedup key of a group expression: the operator with
// its payload and the child group ids.
func fingerprint(op planner.Operator, children []common.GroupID) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(op.String())
	var buf [4]byte
	for _, c := range children {
		binary.LittleEndian.PutUint32(buf[:], uint32(c))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
