package planner

import (
	"fmt"

	"mit.edu/dsg/godbopt/expression"
)

// LogicalFilter keeps the rows of its child for which Predicate is true.
type LogicalFilter struct {
	Predicate expression.Expression
}

func NewLogicalFilter(predicate expression.Expression) *LogicalFilter {
	return &LogicalFilter{Predicate: predicate}
}

func (o *LogicalFilter) Type() OperatorType {
	return LogicalFilterOp
}

func (o *LogicalFilter) Expressions() []expression.Expression {
	return []expression.Expression{o.Predicate}
}

func (o *LogicalFilter) ComputeUnaryOutputs(_ *LogicalProperties, child *LogicalProperties) ([]*expression.SlotReference, error) {
	if err := checkRowPredicate(o.Predicate); err != nil {
		return nil, err
	}
	return child.Output(), nil
}

func (o *LogicalFilter) Equal(other Operator) bool {
	x, ok := other.(*LogicalFilter)
	return ok && expression.Equal(o.Predicate, x.Predicate)
}

func (o *LogicalFilter) String() string {
	return fmt.Sprintf("LogicalFilter(%s)", o.Predicate)
}

// PhysicalFilter evaluates its predicate row by row.
type PhysicalFilter struct {
	Predicate expression.Expression
}

func NewPhysicalFilter(predicate expression.Expression) *PhysicalFilter {
	return &PhysicalFilter{Predicate: predicate}
}

func (o *PhysicalFilter) Type() OperatorType {
	return PhysicalFilterOp
}

func (o *PhysicalFilter) Expressions() []expression.Expression {
	return []expression.Expression{o.Predicate}
}

func (o *PhysicalFilter) ComputeUnaryOutputs(props *LogicalProperties, _ *LogicalProperties) ([]*expression.SlotReference, error) {
	return ownProperties(o, props)
}

func (o *PhysicalFilter) ToTreeNode(ge GroupExpressionRef) (*Plan, error) {
	return NewSkeleton(o, ge)
}

func (o *PhysicalFilter) ProvidedOrdering() Ordering {
	return nil
}

func (o *PhysicalFilter) forwardsOrdering(Ordering) bool {
	return true
}

func (o *PhysicalFilter) Equal(other Operator) bool {
	x, ok := other.(*PhysicalFilter)
	return ok && expression.Equal(o.Predicate, x.Predicate)
}

func (o *PhysicalFilter) String() string {
	return fmt.Sprintf("Filter(%s)", o.Predicate)
}
