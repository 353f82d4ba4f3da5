package planner

import (
	"fmt"
	"slices"

	"mit.edu/dsg/godbopt/expression"
)

// LogicalProject computes a new list of named columns from its child. Columns
// of the child that are not projected are not visible above it.
type LogicalProject struct {
	Projections []expression.NamedExpression
}

func NewLogicalProject(projections ...expression.NamedExpression) *LogicalProject {
	return &LogicalProject{Projections: slices.Clone(projections)}
}

func (o *LogicalProject) Type() OperatorType {
	return LogicalProjectOp
}

func (o *LogicalProject) Expressions() []expression.Expression {
	return namedToExpressions(o.Projections)
}

func (o *LogicalProject) ComputeUnaryOutputs(_ *LogicalProperties, _ *LogicalProperties) ([]*expression.SlotReference, error) {
	return namedToSlots(o.Projections)
}

func (o *LogicalProject) Equal(other Operator) bool {
	x, ok := other.(*LogicalProject)
	return ok && expression.EqualLists(o.Projections, x.Projections)
}

func (o *LogicalProject) String() string {
	return fmt.Sprintf("LogicalProject(%s)", formatList(o.Projections))
}

type PhysicalProject struct {
	Projections []expression.NamedExpression
}

func NewPhysicalProject(projections ...expression.NamedExpression) *PhysicalProject {
	return &PhysicalProject{Projections: slices.Clone(projections)}
}

func (o *PhysicalProject) Type() OperatorType {
	return PhysicalProjectOp
}

func (o *PhysicalProject) Expressions() []expression.Expression {
	return namedToExpressions(o.Projections)
}

func (o *PhysicalProject) ComputeUnaryOutputs(props *LogicalProperties, _ *LogicalProperties) ([]*expression.SlotReference, error) {
	return ownProperties(o, props)
}

func (o *PhysicalProject) ToTreeNode(ge GroupExpressionRef) (*Plan, error) {
	return NewSkeleton(o, ge)
}

func (o *PhysicalProject) ProvidedOrdering() Ordering {
	return nil
}

// forwardsOrdering holds when every key is projected unchanged.
func (o *PhysicalProject) forwardsOrdering(required Ordering) bool {
	for _, k := range required {
		kept := slices.ContainsFunc(o.Projections, func(e expression.NamedExpression) bool {
			s, ok := e.(*expression.SlotReference)
			return ok && s.ID() == k.id()
		})
		if !kept {
			return false
		}
	}
	return true
}

func (o *PhysicalProject) Equal(other Operator) bool {
	x, ok := other.(*PhysicalProject)
	return ok && expression.EqualLists(o.Projections, x.Projections)
}

func (o *PhysicalProject) String() string {
	return fmt.Sprintf("Project(%s)", formatList(o.Projections))
}
