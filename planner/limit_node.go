package planner

import (
	"fmt"

	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/expression"
)

// LogicalLimit skips Offset rows and returns at most Limit of the rest.
type LogicalLimit struct {
	Limit  int64
	Offset int64
}

func NewLogicalLimit(limit, offset int64) *LogicalLimit {
	common.Assert(limit >= 0 && offset >= 0, "negative limit or offset")
	return &LogicalLimit{Limit: limit, Offset: offset}
}

func (o *LogicalLimit) Type() OperatorType {
	return LogicalLimitOp
}

func (o *LogicalLimit) Expressions() []expression.Expression {
	return nil
}

func (o *LogicalLimit) ComputeUnaryOutputs(_ *LogicalProperties, child *LogicalProperties) ([]*expression.SlotReference, error) {
	return child.Output(), nil
}

func (o *LogicalLimit) Equal(other Operator) bool {
	x, ok := other.(*LogicalLimit)
	return ok && *o == *x
}

func (o *LogicalLimit) String() string {
	return fmt.Sprintf("LogicalLimit(%d, offset=%d)", o.Limit, o.Offset)
}

type PhysicalLimit struct {
	Limit  int64
	Offset int64
}

func NewPhysicalLimit(limit, offset int64) *PhysicalLimit {
	common.Assert(limit >= 0 && offset >= 0, "negative limit or offset")
	return &PhysicalLimit{Limit: limit, Offset: offset}
}

func (o *PhysicalLimit) Type() OperatorType {
	return PhysicalLimitOp
}

func (o *PhysicalLimit) Expressions() []expression.Expression {
	return nil
}

func (o *PhysicalLimit) ComputeUnaryOutputs(props *LogicalProperties, _ *LogicalProperties) ([]*expression.SlotReference, error) {
	return ownProperties(o, props)
}

func (o *PhysicalLimit) ToTreeNode(ge GroupExpressionRef) (*Plan, error) {
	return NewSkeleton(o, ge)
}

func (o *PhysicalLimit) ProvidedOrdering() Ordering {
	return nil
}

func (o *PhysicalLimit) forwardsOrdering(Ordering) bool {
	return true
}

func (o *PhysicalLimit) Equal(other Operator) bool {
	x, ok := other.(*PhysicalLimit)
	return ok && *o == *x
}

func (o *PhysicalLimit) String() string {
	return fmt.Sprintf("Limit(%d, offset=%d)", o.Limit, o.Offset)
}
