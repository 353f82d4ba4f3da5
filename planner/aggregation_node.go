package planner

import (
	"fmt"
	"slices"

	"mit.edu/dsg/godbopt/expression"
)

// LogicalAggregate groups its input by GroupBy and computes Outputs per group.
// Outputs may only reference grouping expressions and aggregate functions.
type LogicalAggregate struct {
	GroupBy []expression.Expression
	Outputs []expression.NamedExpression
}

func NewLogicalAggregate(groupBy []expression.Expression, outputs []expression.NamedExpression) *LogicalAggregate {
	return &LogicalAggregate{GroupBy: slices.Clone(groupBy), Outputs: slices.Clone(outputs)}
}

func (o *LogicalAggregate) Type() OperatorType {
	return LogicalAggregateOp
}

func (o *LogicalAggregate) Expressions() []expression.Expression {
	return append(slices.Clone(o.GroupBy), namedToExpressions(o.Outputs)...)
}

func (o *LogicalAggregate) ComputeUnaryOutputs(_ *LogicalProperties, _ *LogicalProperties) ([]*expression.SlotReference, error) {
	if err := checkBound(o.GroupBy...); err != nil {
		return nil, err
	}
	return namedToSlots(o.Outputs)
}

func (o *LogicalAggregate) Equal(other Operator) bool {
	x, ok := other.(*LogicalAggregate)
	return ok && expression.EqualLists(o.GroupBy, x.GroupBy) && expression.EqualLists(o.Outputs, x.Outputs)
}

func (o *LogicalAggregate) String() string {
	return fmt.Sprintf("LogicalAggregate(groupBy=%s, outputs=%s)", formatList(o.GroupBy), formatList(o.Outputs))
}

// PhysicalHashAggregate aggregates with a hash table keyed by GroupBy.
type PhysicalHashAggregate struct {
	GroupBy []expression.Expression
	Outputs []expression.NamedExpression
}

func NewPhysicalHashAggregate(groupBy []expression.Expression, outputs []expression.NamedExpression) *PhysicalHashAggregate {
	return &PhysicalHashAggregate{GroupBy: slices.Clone(groupBy), Outputs: slices.Clone(outputs)}
}

func (o *PhysicalHashAggregate) Type() OperatorType {
	return PhysicalHashAggregateOp
}

func (o *PhysicalHashAggregate) Expressions() []expression.Expression {
	return append(slices.Clone(o.GroupBy), namedToExpressions(o.Outputs)...)
}

func (o *PhysicalHashAggregate) ComputeUnaryOutputs(props *LogicalProperties, _ *LogicalProperties) ([]*expression.SlotReference, error) {
	return ownProperties(o, props)
}

func (o *PhysicalHashAggregate) ToTreeNode(ge GroupExpressionRef) (*Plan, error) {
	return NewSkeleton(o, ge)
}

func (o *PhysicalHashAggregate) ProvidedOrdering() Ordering {
	return nil
}

func (o *PhysicalHashAggregate) Equal(other Operator) bool {
	x, ok := other.(*PhysicalHashAggregate)
	return ok && expression.EqualLists(o.GroupBy, x.GroupBy) && expression.EqualLists(o.Outputs, x.Outputs)
}

func (o *PhysicalHashAggregate) String() string {
	return fmt.Sprintf("HashAggregate(groupBy=%s, outputs=%s)", formatList(o.GroupBy), formatList(o.Outputs))
}
