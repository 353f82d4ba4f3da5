package planner

import (
	"fmt"

	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/expression"
)

// GroupRef is a leaf that stands for an existing memo group. Rules use it to
// build new expressions over groups that are already in the memo; inserting a
// GroupRef plan does not create anything.
type GroupRef struct {
	Group common.GroupID
}

func NewGroupRef(group common.GroupID) *GroupRef {
	return &GroupRef{Group: group}
}

func (o *GroupRef) Type() OperatorType {
	return GroupRefOp
}

func (o *GroupRef) Expressions() []expression.Expression {
	return nil
}

func (o *GroupRef) ComputeLeafOutputs(props *LogicalProperties) ([]*expression.SlotReference, error) {
	return ownProperties(o, props)
}

func (o *GroupRef) Equal(other Operator) bool {
	x, ok := other.(*GroupRef)
	return ok && o.Group == x.Group
}

func (o *GroupRef) String() string {
	return fmt.Sprintf("GroupRef(%s)", o.Group)
}
