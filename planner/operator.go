package planner

import (
	"fmt"

	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/expression"
)

// OperatorType tags the concrete variant of a plan operator.
type OperatorType uint8

const (
	UnknownOp OperatorType = iota

	// -- Logical operators --

	UnboundRelationOp
	LogicalScanOp
	LogicalFilterOp
	LogicalProjectOp
	LogicalJoinOp
	LogicalAggregateOp
	LogicalSortOp
	LogicalLimitOp
	GroupRefOp

	// -- Physical operators --

	PhysicalSeqScanOp
	PhysicalFilterOp
	PhysicalProjectOp
	PhysicalHashJoinOp
	PhysicalNestedLoopJoinOp
	PhysicalHashAggregateOp
	PhysicalSortOp
	PhysicalLimitOp

	// This should be last.
	numOperators
)

// Arity classifies operators by the number of child plans they take.
type Arity int

const (
	LeafArity   Arity = 0
	UnaryArity  Arity = 1
	BinaryArity Arity = 2
)

type opInfo struct {
	name     string
	arity    Arity
	physical bool
}

var operatorTab = [numOperators]opInfo{
	UnknownOp: {name: "Unknown"},

	UnboundRelationOp:  {name: "UnboundRelation", arity: LeafArity},
	LogicalScanOp:      {name: "LogicalScan", arity: LeafArity},
	LogicalFilterOp:    {name: "LogicalFilter", arity: UnaryArity},
	LogicalProjectOp:   {name: "LogicalProject", arity: UnaryArity},
	LogicalJoinOp:      {name: "LogicalJoin", arity: BinaryArity},
	LogicalAggregateOp: {name: "LogicalAggregate", arity: UnaryArity},
	LogicalSortOp:      {name: "LogicalSort", arity: UnaryArity},
	LogicalLimitOp:     {name: "LogicalLimit", arity: UnaryArity},
	GroupRefOp:         {name: "GroupRef", arity: LeafArity},

	PhysicalSeqScanOp:        {name: "PhysicalSeqScan", arity: LeafArity, physical: true},
	PhysicalFilterOp:         {name: "PhysicalFilter", arity: UnaryArity, physical: true},
	PhysicalProjectOp:        {name: "PhysicalProject", arity: UnaryArity, physical: true},
	PhysicalHashJoinOp:       {name: "PhysicalHashJoin", arity: BinaryArity, physical: true},
	PhysicalNestedLoopJoinOp: {name: "PhysicalNestedLoopJoin", arity: BinaryArity, physical: true},
	PhysicalHashAggregateOp:  {name: "PhysicalHashAggregate", arity: UnaryArity, physical: true},
	PhysicalSortOp:           {name: "PhysicalSort", arity: UnaryArity, physical: true},
	PhysicalLimitOp:          {name: "PhysicalLimit", arity: UnaryArity, physical: true},
}

func (t OperatorType) String() string {
	if t >= numOperators {
		return fmt.Sprintf("OperatorType(%d)", t)
	}
	return operatorTab[t].name
}

// Arity returns the number of children an operator of this type takes.
func (t OperatorType) Arity() Arity {
	return operatorTab[t].arity
}

// IsPhysical reports whether the type belongs to the physical family.
func (t OperatorType) IsPhysical() bool {
	return operatorTab[t].physical
}

// Operator is a stateless descriptor of a plan node. It holds the node's own
// payload (table, predicate, projections) but never its children: the same
// operator is shared between a concrete Plan and a memo group expression.
type Operator interface {
	Type() OperatorType

	// Expressions returns the scalar expressions the operator evaluates, in a
	// fixed order.
	Expressions() []expression.Expression

	// Equal reports whether other is the same operator with the same payload.
	Equal(other Operator) bool

	// String renders the operator and its payload. The rendering is canonical:
	// two operators with equal payloads render identically.
	String() string
}

// LeafOperator is implemented by operators without children.
type LeafOperator interface {
	Operator
	ComputeLeafOutputs(props *LogicalProperties) ([]*expression.SlotReference, error)
}

// UnaryOperator is implemented by operators with exactly one child.
type UnaryOperator interface {
	Operator
	ComputeUnaryOutputs(props *LogicalProperties, child *LogicalProperties) ([]*expression.SlotReference, error)
}

// BinaryOperator is implemented by operators with exactly two children.
type BinaryOperator interface {
	Operator
	ComputeBinaryOutputs(props *LogicalProperties, left, right *LogicalProperties) ([]*expression.SlotReference, error)
}

// PhysicalOperator is an operator that can be handed to an executor.
type PhysicalOperator interface {
	Operator

	// ToTreeNode builds a one-level plan for ge: this operator with the owning
	// group's logical properties and one placeholder per child group.
	ToTreeNode(ge GroupExpressionRef) (*Plan, error)

	// ProvidedOrdering returns the order the operator's output is guaranteed to
	// have, or nil.
	ProvidedOrdering() Ordering
}

// GroupExpressionRef is the view of a memo group expression that physical
// operators need to build a plan skeleton.
type GroupExpressionRef interface {
	ID() common.GroupExpressionID
	Operator() Operator
	ChildGroups() []common.GroupID
	// OwnerProperties returns the logical properties of the group the
	// expression belongs to.
	OwnerProperties() *LogicalProperties
}

// ComputeOutputs derives the output slots of op from its children's logical
// properties. props are the node's own properties when they are already known;
// physical operators and group references require them and return them
// unchanged.
func ComputeOutputs(op Operator, props *LogicalProperties, children ...*LogicalProperties) ([]*expression.SlotReference, error) {
	if err := checkArity(op, len(children)); err != nil {
		return nil, err
	}
	switch o := op.(type) {
	case LeafOperator:
		return o.ComputeLeafOutputs(props)
	case UnaryOperator:
		return o.ComputeUnaryOutputs(props, children[0])
	case BinaryOperator:
		return o.ComputeBinaryOutputs(props, children[0], children[1])
	}
	panic(fmt.Sprintf("operator %s implements no arity interface", op.Type()))
}

func checkArity(op Operator, n int) error {
	if want := op.Type().Arity(); int(want) != n {
		return common.NewError(common.ArityError, "%s expects %d children, got %d", op.Type(), want, n)
	}
	return nil
}

// ownProperties is shared by operators that cannot derive their output and
// instead report the properties they were given.
func ownProperties(op Operator, props *LogicalProperties) ([]*expression.SlotReference, error) {
	if props == nil {
		return nil, common.NewError(common.LogicalPropertiesMismatchError,
			"%s needs the logical properties of its group to compute outputs", op.Type())
	}
	return props.Output(), nil
}

// NewSkeleton builds the one-level plan for a group expression: op with the
// owning group's logical properties and one placeholder per child group.
// Physical operators implement ToTreeNode with it; the memo also uses it for
// logical expressions.
func NewSkeleton(op Operator, ge GroupExpressionRef) (*Plan, error) {
	if ge == nil {
		return nil, common.NewError(common.LogicalPropertiesMismatchError, "%s: no group expression", op.Type())
	}
	if err := checkArity(op, len(ge.ChildGroups())); err != nil {
		return nil, err
	}
	props := ge.OwnerProperties()
	if props == nil {
		return nil, common.NewError(common.LogicalPropertiesMismatchError,
			"group expression %d has no owning group properties", ge.ID())
	}
	children := make([]*Plan, len(ge.ChildGroups()))
	for i := range children {
		children[i] = NewPlaceholder()
	}
	return &Plan{op: op, children: children, props: props, groupExpr: ge}, nil
}

// checkBound makes sure every expression the operator carries is bound. It
// evaluates DataType, which fails on the first unbound node.
func checkBound(exprs ...expression.Expression) error {
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if _, err := e.DataType(); err != nil {
			return err
		}
	}
	return nil
}

// checkRowPredicate makes sure a predicate evaluated per input row is bound
// and calls no aggregate function.
func checkRowPredicate(pred expression.Expression) error {
	if err := checkBound(pred); err != nil {
		return err
	}
	if pred != nil && expression.ContainsAggregate(pred) {
		return common.NewError(common.UnresolvedReferenceError, "aggregate in row predicate %s", pred)
	}
	return nil
}

func namedToSlots(exprs []expression.NamedExpression) ([]*expression.SlotReference, error) {
	slots := make([]*expression.SlotReference, len(exprs))
	for i, e := range exprs {
		s, err := e.ToSlot()
		if err != nil {
			return nil, err
		}
		slots[i] = s
	}
	return slots, nil
}

func namedToExpressions(exprs []expression.NamedExpression) []expression.Expression {
	result := make([]expression.Expression, len(exprs))
	for i, e := range exprs {
		result[i] = e
	}
	return result
}

func formatList[E fmt.Stringer](items []E) string {
	s := "["
	for i, it := range items {
		if i > 0 {
			s += ", "
		}
		s += it.String()
	}
	return s + "]"
}
