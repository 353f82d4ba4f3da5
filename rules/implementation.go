// Package rules holds the transformation rules applied to a memo and the
// driver that applies them until nothing changes.
package rules

import (
	"context"

	"mit.edu/dsg/godbopt/expression"
	"mit.edu/dsg/godbopt/memo"
	"mit.edu/dsg/godbopt/planner"
)

// childPlans returns group plans standing for the children of e.
func childPlans(m *memo.Memo, e *memo.GroupExpression) ([]*planner.Plan, error) {
	children := make([]*planner.Plan, len(e.ChildGroups()))
	for i, c := range e.ChildGroups() {
		p, err := m.GroupPlan(c)
		if err != nil {
			return nil, err
		}
		children[i] = p
	}
	return children, nil
}

// alternatives builds one plan per operator, each over the children of e and
// in e's group.
func alternatives(m *memo.Memo, e *memo.GroupExpression, ops ...planner.Operator) ([]*planner.Plan, error) {
	children, err := childPlans(m, e)
	if err != nil {
		return nil, err
	}
	result := make([]*planner.Plan, len(ops))
	for i, op := range ops {
		if result[i], err = planner.NewPlanWithProperties(op, e.OwnerProperties(), children...); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// implementation turns one logical operator type into physical operators.
type implementation struct {
	name      string
	operator  planner.OperatorType
	implement func(m *memo.Memo, e *memo.GroupExpression) ([]planner.Operator, error)
}

func (r *implementation) Name() string {
	return r.name
}

func (r *implementation) Match(e *memo.GroupExpression) bool {
	return e.Operator().Type() == r.operator
}

func (r *implementation) Apply(_ context.Context, m *memo.Memo, e *memo.GroupExpression) ([]*planner.Plan, error) {
	ops, err := r.implement(m, e)
	if err != nil {
		return nil, err
	}
	return alternatives(m, e, ops...)
}

// ImplementationRules returns one rule per logical operator type.
func ImplementationRules() []memo.Rule {
	return []memo.Rule{
		&implementation{
			name:     "ImplementScan",
			operator: planner.LogicalScanOp,
			implement: func(_ *memo.Memo, e *memo.GroupExpression) ([]planner.Operator, error) {
				return []planner.Operator{planner.NewPhysicalSeqScan(e.Operator().(*planner.LogicalScan))}, nil
			},
		},
		&implementation{
			name:     "ImplementFilter",
			operator: planner.LogicalFilterOp,
			implement: func(_ *memo.Memo, e *memo.GroupExpression) ([]planner.Operator, error) {
				return []planner.Operator{planner.NewPhysicalFilter(e.Operator().(*planner.LogicalFilter).Predicate)}, nil
			},
		},
		&implementation{
			name:     "ImplementProject",
			operator: planner.LogicalProjectOp,
			implement: func(_ *memo.Memo, e *memo.GroupExpression) ([]planner.Operator, error) {
				return []planner.Operator{planner.NewPhysicalProject(e.Operator().(*planner.LogicalProject).Projections...)}, nil
			},
		},
		&implementation{
			name:      "ImplementJoin",
			operator:  planner.LogicalJoinOp,
			implement: implementJoin,
		},
		&implementation{
			name:     "ImplementAggregate",
			operator: planner.LogicalAggregateOp,
			implement: func(_ *memo.Memo, e *memo.GroupExpression) ([]planner.Operator, error) {
				agg := e.Operator().(*planner.LogicalAggregate)
				return []planner.Operator{planner.NewPhysicalHashAggregate(agg.GroupBy, agg.Outputs)}, nil
			},
		},
		&implementation{
			name:     "ImplementSort",
			operator: planner.LogicalSortOp,
			implement: func(_ *memo.Memo, e *memo.GroupExpression) ([]planner.Operator, error) {
				return []planner.Operator{planner.NewPhysicalSort(e.Operator().(*planner.LogicalSort).OrderBy)}, nil
			},
		},
		&implementation{
			name:     "ImplementLimit",
			operator: planner.LogicalLimitOp,
			implement: func(_ *memo.Memo, e *memo.GroupExpression) ([]planner.Operator, error) {
				limit := e.Operator().(*planner.LogicalLimit)
				return []planner.Operator{planner.NewPhysicalLimit(limit.Limit, limit.Offset)}, nil
			},
		},
	}
}

// implementJoin offers a hash join when the condition has at least one
// equality between the two sides, and a nested loop join always.
func implementJoin(m *memo.Memo, e *memo.GroupExpression) ([]planner.Operator, error) {
	join := e.Operator().(*planner.LogicalJoin)
	nlj := planner.NewPhysicalNestedLoopJoin(join.JoinType, join.Condition)
	if join.Condition == nil {
		return []planner.Operator{nlj}, nil
	}
	left, err := m.Group(e.ChildGroups()[0])
	if err != nil {
		return nil, err
	}
	right, err := m.Group(e.ChildGroups()[1])
	if err != nil {
		return nil, err
	}
	leftKeys, rightKeys, rest := splitEquiConjuncts(join.Condition, left.LogicalProperties(), right.LogicalProperties())
	if len(leftKeys) == 0 {
		return []planner.Operator{nlj}, nil
	}
	hj := planner.NewPhysicalHashJoin(join.JoinType, leftKeys, rightKeys, expression.CombineConjuncts(rest))
	return []planner.Operator{hj, nlj}, nil
}

// splitEquiConjuncts separates the equalities whose sides each read from only
// one input from the other conjuncts.
func splitEquiConjuncts(cond expression.Expression, left, right *planner.LogicalProperties) (leftKeys, rightKeys, rest []expression.Expression) {
	for _, c := range expression.SplitConjuncts(cond) {
		eq, ok := c.(*expression.EqualTo)
		if !ok {
			rest = append(rest, c)
			continue
		}
		l, r := eq.Left(), eq.Right()
		switch {
		case readsOnly(l, left) && readsOnly(r, right):
			leftKeys, rightKeys = append(leftKeys, l), append(rightKeys, r)
		case readsOnly(l, right) && readsOnly(r, left):
			leftKeys, rightKeys = append(leftKeys, r), append(rightKeys, l)
		default:
			rest = append(rest, c)
		}
	}
	return leftKeys, rightKeys, rest
}

// readsOnly reports whether e reads at least one column and only columns of
// props.
func readsOnly(e expression.Expression, props *planner.LogicalProperties) bool {
	slots := expression.InputSlots(e)
	if len(slots) == 0 {
		return false
	}
	ids := make(map[expression.ExprID]bool, len(props.Output()))
	for _, id := range props.OutputExprIDs() {
		ids[id] = true
	}
	for _, s := range slots {
		if !ids[s.ID()] {
			return false
		}
	}
	return true
}
