package planner

import (
	"fmt"
	"slices"

	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/expression"
)

type JoinType int

const (
	InnerJoin JoinType = iota
	LeftOuterJoin
	CrossJoin
)

func (t JoinType) String() string {
	switch t {
	case InnerJoin:
		return "INNER"
	case LeftOuterJoin:
		return "LEFT OUTER"
	case CrossJoin:
		return "CROSS"
	}
	return "???"
}

// joinOutputs concatenates the outputs of both sides. A left outer join pads
// unmatched left rows with NULLs, so every right column becomes nullable.
func joinOutputs(joinType JoinType, left, right *LogicalProperties) []*expression.SlotReference {
	out := make([]*expression.SlotReference, 0, len(left.Output())+len(right.Output()))
	out = append(out, left.Output()...)
	for _, s := range right.Output() {
		if joinType == LeftOuterJoin {
			s = s.WithNullable(true)
		}
		out = append(out, s)
	}
	return out
}

func formatJoin(name string, joinType JoinType, condition expression.Expression) string {
	if condition == nil {
		return fmt.Sprintf("%s(%s)", name, joinType)
	}
	return fmt.Sprintf("%s(%s, %s)", name, joinType, condition)
}

func conditionList(condition expression.Expression) []expression.Expression {
	if condition == nil {
		return nil
	}
	return []expression.Expression{condition}
}

// LogicalJoin combines the rows of its two children. Condition is nil for a
// cross join.
type LogicalJoin struct {
	JoinType  JoinType
	Condition expression.Expression
}

func NewLogicalJoin(joinType JoinType, condition expression.Expression) *LogicalJoin {
	common.Assert(joinType != CrossJoin || condition == nil, "cross join with a condition")
	return &LogicalJoin{JoinType: joinType, Condition: condition}
}

func (o *LogicalJoin) Type() OperatorType {
	return LogicalJoinOp
}

func (o *LogicalJoin) Expressions() []expression.Expression {
	return conditionList(o.Condition)
}

func (o *LogicalJoin) ComputeBinaryOutputs(_ *LogicalProperties, left, right *LogicalProperties) ([]*expression.SlotReference, error) {
	if err := checkRowPredicate(o.Condition); err != nil {
		return nil, err
	}
	return joinOutputs(o.JoinType, left, right), nil
}

func (o *LogicalJoin) Equal(other Operator) bool {
	x, ok := other.(*LogicalJoin)
	return ok && o.JoinType == x.JoinType && expression.Equal(o.Condition, x.Condition)
}

func (o *LogicalJoin) String() string {
	return formatJoin("LogicalJoin", o.JoinType, o.Condition)
}

// PhysicalHashJoin builds a hash table on the right input keyed by RightKeys
// and looks up each left row in it by LeftKeys. Condition holds the remaining non-equi
// conjuncts, or nil.
type PhysicalHashJoin struct {
	JoinType  JoinType
	LeftKeys  []expression.Expression
	RightKeys []expression.Expression
	Condition expression.Expression
}

func NewPhysicalHashJoin(joinType JoinType, leftKeys, rightKeys []expression.Expression, condition expression.Expression) *PhysicalHashJoin {
	common.Assert(len(leftKeys) == len(rightKeys) && len(leftKeys) > 0, "hash join needs matching, non-empty key lists")
	return &PhysicalHashJoin{
		JoinType:  joinType,
		LeftKeys:  slices.Clone(leftKeys),
		RightKeys: slices.Clone(rightKeys),
		Condition: condition,
	}
}

func (o *PhysicalHashJoin) Type() OperatorType {
	return PhysicalHashJoinOp
}

func (o *PhysicalHashJoin) Expressions() []expression.Expression {
	exprs := make([]expression.Expression, 0, len(o.LeftKeys)+len(o.RightKeys)+1)
	exprs = append(exprs, o.LeftKeys...)
	exprs = append(exprs, o.RightKeys...)
	return append(exprs, conditionList(o.Condition)...)
}

func (o *PhysicalHashJoin) ComputeBinaryOutputs(props *LogicalProperties, _, _ *LogicalProperties) ([]*expression.SlotReference, error) {
	return ownProperties(o, props)
}

func (o *PhysicalHashJoin) ToTreeNode(ge GroupExpressionRef) (*Plan, error) {
	return NewSkeleton(o, ge)
}

func (o *PhysicalHashJoin) ProvidedOrdering() Ordering {
	return nil
}

func (o *PhysicalHashJoin) Equal(other Operator) bool {
	x, ok := other.(*PhysicalHashJoin)
	return ok && o.JoinType == x.JoinType &&
		expression.EqualLists(o.LeftKeys, x.LeftKeys) &&
		expression.EqualLists(o.RightKeys, x.RightKeys) &&
		expression.Equal(o.Condition, x.Condition)
}

func (o *PhysicalHashJoin) String() string {
	s := fmt.Sprintf("HashJoin(%s, %s = %s", o.JoinType, formatList(o.LeftKeys), formatList(o.RightKeys))
	if o.Condition != nil {
		s += ", " + o.Condition.String()
	}
	return s + ")"
}

// PhysicalNestedLoopJoin compares every pair of rows. It handles any join
// condition, including none.
type PhysicalNestedLoopJoin struct {
	JoinType  JoinType
	Condition expression.Expression
}

func NewPhysicalNestedLoopJoin(joinType JoinType, condition expression.Expression) *PhysicalNestedLoopJoin {
	return &PhysicalNestedLoopJoin{JoinType: joinType, Condition: condition}
}

func (o *PhysicalNestedLoopJoin) Type() OperatorType {
	return PhysicalNestedLoopJoinOp
}

func (o *PhysicalNestedLoopJoin) Expressions() []expression.Expression {
	return conditionList(o.Condition)
}

func (o *PhysicalNestedLoopJoin) ComputeBinaryOutputs(props *LogicalProperties, _, _ *LogicalProperties) ([]*expression.SlotReference, error) {
	return ownProperties(o, props)
}

func (o *PhysicalNestedLoopJoin) ToTreeNode(ge GroupExpressionRef) (*Plan, error) {
	return NewSkeleton(o, ge)
}

func (o *PhysicalNestedLoopJoin) ProvidedOrdering() Ordering {
	return nil
}

func (o *PhysicalNestedLoopJoin) Equal(other Operator) bool {
	x, ok := other.(*PhysicalNestedLoopJoin)
	return ok && o.JoinType == x.JoinType && expression.Equal(o.Condition, x.Condition)
}

func (o *PhysicalNestedLoopJoin) String() string {
	return formatJoin("NestedLoopJoin", o.JoinType, o.Condition)
}
