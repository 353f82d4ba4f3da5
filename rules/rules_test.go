package rules

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/config"
	"mit.edu/dsg/godbopt/expression"
	"mit.edu/dsg/godbopt/memo"
	"mit.edu/dsg/godbopt/planner"
)

// Scans of a(x int NOT NULL, y string NULL) and b(x int NULL, z int NOT NULL).
func makeScans(gen *expression.ExprIDGenerator) (a, b *planner.Plan) {
	qa := []string{"db", "a"}
	qb := []string{"db", "b"}
	a = planner.MustPlan(planner.NewLogicalScan(1, qa, []*expression.SlotReference{
		expression.NewSlotReference(gen.Next(), "x", common.IntType, false, qa),
		expression.NewSlotReference(gen.Next(), "y", common.StringType, true, qa),
	}))
	b = planner.MustPlan(planner.NewLogicalScan(2, qb, []*expression.SlotReference{
		expression.NewSlotReference(gen.Next(), "x", common.IntType, true, qb),
		expression.NewSlotReference(gen.Next(), "z", common.IntType, false, qb),
	}))
	return a, b
}

func intLit(v int64) *expression.Literal {
	return expression.NewLiteral(common.NewIntValue(v))
}

func optimizerConfig(maxIterations int) config.OptimizerConfig {
	cfg := config.Default().Optimizer
	cfg.MaxIterations = maxIterations
	return cfg
}

// insert loads p into a fresh memo.
func insert(t *testing.T, p *planner.Plan) (*memo.Memo, common.GroupID) {
	m := memo.NewMemo(config.Default().Memo)
	root, err := m.InsertPlan(p)
	require.NoError(t, err)
	return m, root
}

func group(t *testing.T, m *memo.Memo, id common.GroupID) *memo.Group {
	g, err := m.Group(id)
	require.NoError(t, err)
	return g
}

func physical(g *memo.Group, op planner.OperatorType) []*memo.GroupExpression {
	var result []*memo.GroupExpression
	for _, e := range g.PhysicalExpressions() {
		if e.Operator().Type() == op {
			result = append(result, e)
		}
	}
	return result
}

func opTypes(p *planner.Plan) []planner.OperatorType {
	types := []planner.OperatorType{p.Operator().Type()}
	for _, c := range p.Children() {
		types = append(types, opTypes(c)...)
	}
	return types
}

func TestImplementationRules(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a, b := makeScans(gen)
	join := planner.MustPlan(planner.NewLogicalJoin(planner.InnerJoin,
		expression.NewEqualTo(a.Output()[0], b.Output()[0])), a, b)
	filter := planner.MustPlan(planner.NewLogicalFilter(expression.NewGreaterThan(a.Output()[0], intLit(10))), join)
	limit := planner.MustPlan(planner.NewLogicalLimit(5, 0), filter)
	m, root := insert(t, limit)

	res, err := Optimize(context.Background(), m, ImplementationRules(), optimizerConfig(8))
	require.NoError(t, err)
	assert.Equal(t, Result{Iterations: 2, Fixpoint: true}, res)

	// Every group got exactly one implementation, except the join with two.
	for _, g := range m.Groups() {
		want := 1
		if g.LogicalExpressions()[0].Operator().Type() == planner.LogicalJoinOp {
			want = 2
		}
		assert.Len(t, g.PhysicalExpressions(), want, "group %s", g.ID())
	}

	p, err := m.Materialize(root, planner.AnyPhysical)
	require.NoError(t, err)
	assert.Equal(t, []planner.OperatorType{
		planner.PhysicalLimitOp,
		planner.PhysicalFilterOp,
		planner.PhysicalHashJoinOp,
		planner.PhysicalSeqScanOp,
		planner.PhysicalSeqScanOp,
	}, opTypes(p))

	// The logical plan is still there, unchanged.
	logical, err := m.Materialize(root, planner.AnyLogical)
	require.NoError(t, err)
	assert.True(t, planner.Equal(limit, logical))
	if diff := cmp.Diff(limit.Explain(), logical.Explain()); diff != "" {
		t.Errorf("logical plan changed (-want +got):\n%s", diff)
	}
}

func TestImplementJoin(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a, b := makeScans(gen)
	ax, ay := a.Output()[0], a.Output()[1]
	bx, bz := b.Output()[0], b.Output()[1]

	tests := []struct {
		name      string
		joinType  planner.JoinType
		condition expression.Expression
		hash      bool
		leftKeys  []expression.Expression
		rightKeys []expression.Expression
		residual  expression.Expression
	}{
		{
			name:      "equi join",
			joinType:  planner.InnerJoin,
			condition: expression.NewEqualTo(ax, bx),
			hash:      true,
			leftKeys:  []expression.Expression{ax},
			rightKeys: []expression.Expression{bx},
		},
		{
			name:      "sides written in reverse",
			joinType:  planner.InnerJoin,
			condition: expression.NewEqualTo(bx, ax),
			hash:      true,
			leftKeys:  []expression.Expression{ax},
			rightKeys: []expression.Expression{bx},
		},
		{
			name:      "keys on expressions",
			joinType:  planner.LeftOuterJoin,
			condition: expression.NewEqualTo(expression.NewAdd(ax, intLit(1)), bz),
			hash:      true,
			leftKeys:  []expression.Expression{expression.NewAdd(ax, intLit(1))},
			rightKeys: []expression.Expression{bz},
		},
		{
			name:     "residual conjuncts",
			joinType: planner.InnerJoin,
			condition: expression.NewAnd(
				expression.NewAnd(expression.NewEqualTo(ax, bx), expression.NewGreaterThan(ax, bz)),
				expression.NewEqualTo(ay, ay)),
			hash:      true,
			leftKeys:  []expression.Expression{ax},
			rightKeys: []expression.Expression{bx},
			residual:  expression.NewAnd(expression.NewGreaterThan(ax, bz), expression.NewEqualTo(ay, ay)),
		},
		{
			name:      "equality with a constant",
			joinType:  planner.InnerJoin,
			condition: expression.NewEqualTo(ax, intLit(3)),
		},
		{
			name:      "no equality",
			joinType:  planner.InnerJoin,
			condition: expression.NewLessThan(ax, bz),
		},
		{
			name:     "cross join",
			joinType: planner.CrossJoin,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			join := planner.MustPlan(planner.NewLogicalJoin(tt.joinType, tt.condition), a, b)
			m, root := insert(t, join)
			_, err := Optimize(context.Background(), m, ImplementationRules(), optimizerConfig(8))
			require.NoError(t, err)

			g := group(t, m, root)
			nlj := physical(g, planner.PhysicalNestedLoopJoinOp)
			require.Len(t, nlj, 1)
			assert.True(t, expression.Equal(tt.condition, nlj[0].Operator().(*planner.PhysicalNestedLoopJoin).Condition))

			hj := physical(g, planner.PhysicalHashJoinOp)
			if !tt.hash {
				assert.Empty(t, hj)
				return
			}
			require.Len(t, hj, 1)
			op := hj[0].Operator().(*planner.PhysicalHashJoin)
			assert.Equal(t, tt.joinType, op.JoinType)
			assert.True(t, expression.EqualLists(tt.leftKeys, op.LeftKeys), "left keys %v", op.LeftKeys)
			assert.True(t, expression.EqualLists(tt.rightKeys, op.RightKeys), "right keys %v", op.RightKeys)
			assert.True(t, expression.Equal(tt.residual, op.Condition), "residual %v", op.Condition)
		})
	}
}

func TestJoinCommute(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a, b := makeScans(gen)
	join := planner.MustPlan(planner.NewLogicalJoin(planner.InnerJoin,
		expression.NewEqualTo(a.Output()[0], b.Output()[0])), a, b)
	m, root := insert(t, join)

	res, err := Optimize(context.Background(), m, DefaultRules(), optimizerConfig(8))
	require.NoError(t, err)
	assert.True(t, res.Fixpoint)

	// a, b, the join and the swapped join.
	assert.Equal(t, 4, m.NumGroups())

	g := group(t, m, root)
	require.Len(t, g.LogicalExpressions(), 2)
	project, ok := g.LogicalExpressions()[1].Operator().(*planner.LogicalProject)
	require.True(t, ok)
	assert.Len(t, project.Projections, 4)

	swapped := group(t, m, g.LogicalExpressions()[1].ChildGroups()[0])
	swappedJoin := swapped.LogicalExpressions()[0]
	require.Equal(t, planner.LogicalJoinOp, swappedJoin.Operator().Type())
	assert.Equal(t, []common.GroupID{
		g.LogicalExpressions()[0].ChildGroups()[1],
		g.LogicalExpressions()[0].ChildGroups()[0],
	}, swappedJoin.ChildGroups())
	// The swapped group produces b's columns first.
	assert.Equal(t, b.Output()[0].ID(), swapped.LogicalProperties().Output()[0].ID())

	// Commuting the swapped join leads back to the original group.
	require.Len(t, swapped.LogicalExpressions(), 2)
	assert.Equal(t, []common.GroupID{root}, swapped.LogicalExpressions()[1].ChildGroups())

	logical, err := m.Materialize(root, planner.AnyLogical)
	require.NoError(t, err)
	assert.True(t, planner.Equal(join, logical))

	// Nothing is left to do on a second run.
	res, err = Optimize(context.Background(), m, DefaultRules(), optimizerConfig(8))
	require.NoError(t, err)
	assert.Equal(t, Result{Iterations: 1, Fixpoint: true}, res)

	// Make the swapped hash join the cheapest way to compute the original
	// join.
	hj := physical(swapped, planner.PhysicalHashJoinOp)
	require.Len(t, hj, 1)
	_, err = m.RecordBest(swapped.ID(), planner.AnyPhysical, hj[0].ID(), 10)
	require.NoError(t, err)
	var top *memo.GroupExpression
	for _, e := range physical(g, planner.PhysicalProjectOp) {
		if e.ChildGroups()[0] == swapped.ID() {
			top = e
		}
	}
	require.NotNil(t, top)
	changed, err := m.RecordBest(root, planner.AnyPhysical, top.ID(), 11)
	require.NoError(t, err)
	assert.True(t, changed)

	p, err := m.Materialize(root, planner.AnyPhysical)
	require.NoError(t, err)
	assert.Equal(t, []planner.OperatorType{
		planner.PhysicalProjectOp,
		planner.PhysicalHashJoinOp,
		planner.PhysicalSeqScanOp,
		planner.PhysicalSeqScanOp,
	}, opTypes(p))
	assert.True(t, p.LogicalProperties().Equal(join.LogicalProperties()))
	hashJoin := p.Child(0).Operator().(*planner.PhysicalHashJoin)
	assert.True(t, expression.EqualLists([]expression.Expression{b.Output()[0]}, hashJoin.LeftKeys))
	assert.Equal(t, b.Output(), p.Child(0).Child(0).Output())
}

func TestOrderingPassesThroughOrderPreservingOperators(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a, _ := makeScans(gen)
	x, y := a.Output()[0], a.Output()[1]
	byX := planner.Ordering{{Expr: x}}
	sorted := planner.MustPlan(planner.NewLogicalSort(byX), a)
	limited := planner.MustPlan(planner.NewLogicalLimit(5, 0), sorted)
	filtered := planner.MustPlan(planner.NewLogicalFilter(expression.NewIsNull(y)), limited)
	projected := planner.MustPlan(planner.NewLogicalProject(x), filtered)
	m, root := insert(t, projected)

	res, err := Optimize(context.Background(), m, ImplementationRules(), optimizerConfig(8))
	require.NoError(t, err)
	require.True(t, res.Fixpoint)

	p, err := m.Materialize(root, planner.RequireOrdering(byX))
	require.NoError(t, err)
	assert.Equal(t, []planner.OperatorType{
		planner.PhysicalProjectOp,
		planner.PhysicalFilterOp,
		planner.PhysicalLimitOp,
		planner.PhysicalSortOp,
		planner.PhysicalSeqScanOp,
	}, opTypes(p))

	// Only the sort can produce an order, so asking the limit for descending x
	// fails until something else in the memo provides it.
	limitGroup := group(t, m, root).LogicalExpressions()[0].ChildGroups()[0]
	limitGroup = group(t, m, limitGroup).LogicalExpressions()[0].ChildGroups()[0]
	_, err = m.Materialize(limitGroup, planner.RequireOrdering(planner.Ordering{{Expr: x, Descending: true}}))
	assert.True(t, common.IsError(err, common.IncompleteSearchError), "%v", err)
}

func TestJoinCommuteSkipsOuterJoins(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a, b := makeScans(gen)
	join := planner.MustPlan(planner.NewLogicalJoin(planner.LeftOuterJoin,
		expression.NewEqualTo(a.Output()[0], b.Output()[0])), a, b)
	m, root := insert(t, join)

	_, err := Optimize(context.Background(), m, []memo.Rule{JoinCommute{}}, optimizerConfig(8))
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumGroups())
	assert.Len(t, group(t, m, root).Expressions(), 1)
}

func TestOptimizeStopsAtMaxIterations(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a, b := makeScans(gen)
	join := planner.MustPlan(planner.NewLogicalJoin(planner.CrossJoin, nil), a, b)
	m, _ := insert(t, join)

	res, err := Optimize(context.Background(), m, DefaultRules(), optimizerConfig(1))
	require.NoError(t, err)
	assert.Equal(t, Result{Iterations: 1, Fixpoint: false}, res)

	res, err = Optimize(context.Background(), m, DefaultRules(), optimizerConfig(8))
	require.NoError(t, err)
	assert.True(t, res.Fixpoint)
}

func TestOptimizeCanceled(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a, _ := makeScans(gen)
	m, _ := insert(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Optimize(ctx, m, DefaultRules(), optimizerConfig(8))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, len(group(t, m, m.Root()).PhysicalExpressions()))
}

type failingRule struct{}

func (failingRule) Name() string { return "failing" }

func (failingRule) Match(*memo.GroupExpression) bool { return true }

func (failingRule) Apply(context.Context, *memo.Memo, *memo.GroupExpression) ([]*planner.Plan, error) {
	return nil, common.NewError(common.BindingStateError, "rule gave up")
}

func TestOptimizeReportsRuleErrors(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a, _ := makeScans(gen)
	m, _ := insert(t, a)

	_, err := Optimize(context.Background(), m, []memo.Rule{failingRule{}}, optimizerConfig(8))
	require.Error(t, err)
	assert.True(t, common.IsError(err, common.BindingStateError))
	assert.Contains(t, err.Error(), "failing")
}
