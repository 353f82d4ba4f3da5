package planner

import (
	"fmt"
	"slices"

	"mit.edu/dsg/godbopt/expression"
)

// LogicalSort orders its input.
type LogicalSort struct {
	OrderBy Ordering
}

func NewLogicalSort(orderBy Ordering) *LogicalSort {
	return &LogicalSort{OrderBy: slices.Clone(orderBy)}
}

func (o *LogicalSort) Type() OperatorType {
	return LogicalSortOp
}

func (o *LogicalSort) Expressions() []expression.Expression {
	return orderingExpressions(o.OrderBy)
}

func (o *LogicalSort) ComputeUnaryOutputs(_ *LogicalProperties, child *LogicalProperties) ([]*expression.SlotReference, error) {
	if err := o.OrderBy.checkKeys(); err != nil {
		return nil, err
	}
	return child.Output(), nil
}

func (o *LogicalSort) Equal(other Operator) bool {
	x, ok := other.(*LogicalSort)
	return ok && o.OrderBy.Equal(x.OrderBy)
}

func (o *LogicalSort) String() string {
	return fmt.Sprintf("LogicalSort(%s)", o.OrderBy)
}

// PhysicalSort sorts its input. It is the only operator that provides an
// ordering.
type PhysicalSort struct {
	OrderBy Ordering
}

func NewPhysicalSort(orderBy Ordering) *PhysicalSort {
	return &PhysicalSort{OrderBy: slices.Clone(orderBy)}
}

func (o *PhysicalSort) Type() OperatorType {
	return PhysicalSortOp
}

func (o *PhysicalSort) Expressions() []expression.Expression {
	return orderingExpressions(o.OrderBy)
}

func (o *PhysicalSort) ComputeUnaryOutputs(props *LogicalProperties, _ *LogicalProperties) ([]*expression.SlotReference, error) {
	return ownProperties(o, props)
}

func (o *PhysicalSort) ToTreeNode(ge GroupExpressionRef) (*Plan, error) {
	return NewSkeleton(o, ge)
}

func (o *PhysicalSort) ProvidedOrdering() Ordering {
	return o.OrderBy
}

func (o *PhysicalSort) Equal(other Operator) bool {
	x, ok := other.(*PhysicalSort)
	return ok && o.OrderBy.Equal(x.OrderBy)
}

func (o *PhysicalSort) String() string {
	return fmt.Sprintf("Sort(%s)", o.OrderBy)
}

func orderingExpressions(ordering Ordering) []expression.Expression {
	exprs := make([]expression.Expression, len(ordering))
	for i, k := range ordering {
		exprs[i] = k.Expr
	}
	return exprs
}
