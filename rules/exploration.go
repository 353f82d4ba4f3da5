package rules

import (
	"context"

	"mit.edu/dsg/godbopt/expression"
	"mit.edu/dsg/godbopt/memo"
	"mit.edu/dsg/godbopt/planner"
)

// JoinCommute swaps the inputs of inner and cross joins. The swapped join
// produces its columns in a different order, so it lands in a group of its
// own and a projection restores the original order.
type JoinCommute struct{}

var _ memo.Rule = JoinCommute{}

func (JoinCommute) Name() string {
	return "JoinCommute"
}

func (JoinCommute) Match(e *memo.GroupExpression) bool {
	join, ok := e.Operator().(*planner.LogicalJoin)
	return ok && (join.JoinType == planner.InnerJoin || join.JoinType == planner.CrossJoin)
}

func (JoinCommute) Apply(_ context.Context, m *memo.Memo, e *memo.GroupExpression) ([]*planner.Plan, error) {
	join := e.Operator().(*planner.LogicalJoin)
	children, err := childPlans(m, e)
	if err != nil {
		return nil, err
	}
	swapped, err := planner.NewPlan(planner.NewLogicalJoin(join.JoinType, join.Condition), children[1], children[0])
	if err != nil {
		return nil, err
	}
	output := e.OwnerProperties().Output()
	projections := make([]expression.NamedExpression, len(output))
	for i, s := range output {
		projections[i] = s
	}
	p, err := planner.NewPlan(planner.NewLogicalProject(projections...), swapped)
	if err != nil {
		return nil, err
	}
	return []*planner.Plan{p}, nil
}
