package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/expression"
)

// Helper to create a scan of a two-column table t(x int NOT NULL, y string NULL)
func makeTestScan(gen *expression.ExprIDGenerator, oid common.ObjectID, table string) *LogicalScan {
	q := []string{"db", table}
	return NewLogicalScan(oid, q, []*expression.SlotReference{
		expression.NewSlotReference(gen.Next(), "x", common.IntType, false, q),
		expression.NewSlotReference(gen.Next(), "y", common.StringType, true, q),
	})
}

type fakeGroupExpr struct {
	op       Operator
	children []common.GroupID
	props    *LogicalProperties
}

func (f *fakeGroupExpr) ID() common.GroupExpressionID { return 7 }

func (f *fakeGroupExpr) Operator() Operator { return f.op }

func (f *fakeGroupExpr) ChildGroups() []common.GroupID { return f.children }

func (f *fakeGroupExpr) OwnerProperties() *LogicalProperties { return f.props }

func TestComputeOutputsArity(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a := makeTestScan(gen, 1, "a")
	props := NewLogicalProperties(a.Columns)

	tests := []struct {
		name     string
		op       Operator
		children []*LogicalProperties
	}{
		{"leaf with child", a, []*LogicalProperties{props}},
		{"unary without child", NewLogicalLimit(1, 0), nil},
		{"unary with two", NewLogicalSort(nil), []*LogicalProperties{props, props}},
		{"binary with one", NewLogicalJoin(CrossJoin, nil), []*LogicalProperties{props}},
		{"physical binary with three", NewPhysicalNestedLoopJoin(CrossJoin, nil), []*LogicalProperties{props, props, props}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeOutputs(tt.op, props, tt.children...)
			assert.True(t, common.IsError(err, common.ArityError), "got %v", err)
		})
	}
}

func TestJoinOutputs(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a := MustPlan(makeTestScan(gen, 1, "a"))
	b := MustPlan(makeTestScan(gen, 2, "b"))

	cond := expression.NewEqualTo(a.Output()[0], b.Output()[0])
	inner := MustPlan(NewLogicalJoin(InnerJoin, cond), a, b)
	require.Len(t, inner.Output(), 4)
	assert.Equal(t, []expression.ExprID{1, 2, 3, 4}, inner.LogicalProperties().OutputExprIDs())
	assert.False(t, inner.Output()[2].IsNullable())

	outer := MustPlan(NewLogicalJoin(LeftOuterJoin, cond), a, b)
	assert.False(t, outer.Output()[0].IsNullable())
	assert.True(t, outer.Output()[2].IsNullable())
	assert.True(t, outer.Output()[3].IsNullable())
	// The scan's own slots are untouched.
	assert.False(t, b.Output()[0].IsNullable())
}

func TestUnboundOperators(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a := MustPlan(makeTestScan(gen, 1, "a"))

	_, err := NewPlan(NewUnboundRelation("db", "a"))
	assert.True(t, common.IsError(err, common.BindingStateError))

	pred := expression.NewGreaterThan(expression.NewUnboundSlot("x"), expression.NewLiteral(common.NewIntValue(1)))
	_, err = NewPlan(NewLogicalFilter(pred), a)
	assert.True(t, common.IsError(err, common.BindingStateError))

	_, err = NewPlan(NewLogicalProject(expression.NewUnboundAlias(expression.NewUnboundSlot("x"))), a)
	assert.True(t, common.IsError(err, common.BindingStateError))

	unboundKey := Ordering{{Expr: expression.NewUnboundSlot("x")}}
	_, err = NewPlan(NewLogicalSort(unboundKey), a)
	assert.True(t, common.IsError(err, common.BindingStateError))
	assert.Nil(t, unboundKey[0].Slot())

	x := a.Output()[0]
	computed := Ordering{{Expr: expression.NewAdd(x, expression.NewLiteral(common.NewIntValue(1)))}}
	_, err = NewPlan(NewLogicalSort(computed), a)
	assert.True(t, common.IsError(err, common.TypeMismatchError))

	count, err := expression.NewAggregateFunction(expression.AggCount, false)
	require.NoError(t, err)
	_, err = NewPlan(NewLogicalFilter(expression.NewGreaterThan(count, expression.NewLiteral(common.NewIntValue(1)))), a)
	assert.True(t, common.IsError(err, common.UnresolvedReferenceError))

	_, err = NewPlan(NewLogicalFilter(pred), NewPlaceholder())
	assert.True(t, common.IsError(err, common.LogicalPropertiesMismatchError))
}

func TestProjectOutputs(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a := MustPlan(makeTestScan(gen, 1, "a"))
	x := a.Output()[0]
	plusID := gen.Next()
	plus := expression.NewAlias(plusID, expression.NewAdd(x, expression.NewLiteral(common.NewIntValue(1))), "x1")

	p := MustPlan(NewLogicalProject(plus, x), a)
	require.Len(t, p.Output(), 2)
	assert.Equal(t, "x1", p.Output()[0].ColumnName())
	assert.Equal(t, common.IntType, p.Output()[0].Type())
	assert.Equal(t, plusID, p.Output()[0].ID())
	assert.Same(t, x, p.Output()[1])
}

func TestPhysicalOutputsUseGroupProperties(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	scan := makeTestScan(gen, 1, "a")
	props := NewLogicalProperties(scan.Columns)

	ops := []Operator{
		NewPhysicalSeqScan(scan),
		NewPhysicalFilter(expression.NewIsNull(scan.Columns[1])),
		NewPhysicalSort(Ordering{{Expr: scan.Columns[0]}}),
		NewPhysicalLimit(10, 0),
		NewPhysicalNestedLoopJoin(CrossJoin, nil),
		NewGroupRef(3),
	}
	for _, op := range ops {
		t.Run(op.Type().String(), func(t *testing.T) {
			children := make([]*LogicalProperties, op.Type().Arity())
			for i := range children {
				children[i] = props
			}
			out, err := ComputeOutputs(op, props, children...)
			require.NoError(t, err)
			assert.Equal(t, props.Output(), out)

			_, err = ComputeOutputs(op, nil, children...)
			assert.True(t, common.IsError(err, common.LogicalPropertiesMismatchError))
		})
	}
}

func TestToTreeNode(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a := makeTestScan(gen, 1, "a")
	b := makeTestScan(gen, 2, "b")
	props := NewLogicalProperties(append(append([]*expression.SlotReference{}, a.Columns...), b.Columns...))

	join := NewPhysicalHashJoin(InnerJoin,
		[]expression.Expression{a.Columns[0]}, []expression.Expression{b.Columns[0]}, nil)
	ge := &fakeGroupExpr{op: join, children: []common.GroupID{1, 2}, props: props}

	p, err := join.ToTreeNode(ge)
	require.NoError(t, err)
	assert.Same(t, props, p.LogicalProperties())
	assert.Equal(t, ge, p.GroupExpression())
	require.Len(t, p.Children(), 2)
	assert.True(t, p.Child(0).IsPlaceholder())
	assert.True(t, p.Child(1).IsPlaceholder())
	assert.True(t, p.HasPlaceholders())

	ge.children = []common.GroupID{1}
	_, err = join.ToTreeNode(ge)
	assert.True(t, common.IsError(err, common.ArityError))

	scanGE := &fakeGroupExpr{op: NewPhysicalSeqScan(a), props: NewLogicalProperties(a.Columns)}
	leaf, err := NewPhysicalSeqScan(a).ToTreeNode(scanGE)
	require.NoError(t, err)
	assert.Empty(t, leaf.Children())
	assert.False(t, leaf.HasPlaceholders())
}

func TestOrdering(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a := makeTestScan(gen, 1, "a")
	x, y := a.Columns[0], a.Columns[1]

	xy := Ordering{{Expr: x}, {Expr: y, Descending: true}}
	assert.True(t, xy.Satisfies(nil))
	assert.True(t, xy.Satisfies(Ordering{{Expr: x}}))
	assert.True(t, xy.Satisfies(xy))
	assert.False(t, xy.Satisfies(Ordering{{Expr: y, Descending: true}}))
	assert.False(t, xy.Satisfies(Ordering{{Expr: x, Descending: true}}))
	assert.False(t, Ordering(nil).Satisfies(Ordering{{Expr: x}}))

	sort := NewPhysicalSort(xy)
	filter := NewPhysicalFilter(expression.NewIsNull(y))
	assert.True(t, AnyPhysical.ProvidedBy(sort))
	assert.True(t, AnyPhysical.ProvidedBy(filter))
	assert.True(t, RequireOrdering(Ordering{{Expr: x}}).ProvidedBy(sort))
	assert.False(t, RequireOrdering(Ordering{{Expr: x}}).ProvidedBy(NewPhysicalNestedLoopJoin(CrossJoin, nil)))
	assert.False(t, AnyPhysical.ProvidedBy(a))
	assert.True(t, AnyLogical.ProvidedBy(a))
	assert.False(t, AnyLogical.ProvidedBy(sort))

	assert.Equal(t, "physical ordering=+#1,-#2", RequireOrdering(xy).Fingerprint())
	assert.Equal(t, "x#1, y#2 DESC", xy[0].String()+", "+xy[1].String())
}

func TestOrderingForwarding(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	a := makeTestScan(gen, 1, "a")
	x, y := a.Columns[0], a.Columns[1]
	byX := RequireOrdering(Ordering{{Expr: x}})
	byY := RequireOrdering(Ordering{{Expr: y}})
	renamed := expression.NewAlias(gen.Next(), y, "z")

	tests := []struct {
		name     string
		op       Operator
		required PhysicalProperties
		provided bool
		child    PhysicalProperties
	}{
		{"sort provides its own order", NewPhysicalSort(Ordering{{Expr: x}}), byX, true, AnyPhysical},
		{"sort on another key", NewPhysicalSort(Ordering{{Expr: x}}), byY, false, AnyPhysical},
		{"filter forwards", NewPhysicalFilter(expression.NewIsNull(y)), byX, true, byX},
		{"limit forwards", NewPhysicalLimit(5, 0), byY, true, byY},
		{"project keeps the key", NewPhysicalProject(x, renamed), byX, true, byX},
		{"project renames the key", NewPhysicalProject(x, renamed), byY, false, AnyPhysical},
		{"no order needed", NewPhysicalLimit(5, 0), AnyPhysical, true, AnyPhysical},
		{"join does not forward", NewPhysicalNestedLoopJoin(CrossJoin, nil), byX, false, AnyPhysical},
		{"logical input", NewLogicalLimit(5, 0), AnyLogical, true, AnyLogical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.provided, tt.required.ProvidedBy(tt.op))
			if tt.provided {
				assert.Equal(t, tt.child.Fingerprint(), tt.required.ChildRequirement(tt.op).Fingerprint())
			}
		})
	}
	assert.Equal(t, "logical", AnyLogical.Fingerprint())
}

func TestPlanEqualAndExplain(t *testing.T) {
	gen := expression.NewExprIDGenerator()
	scanA := makeTestScan(gen, 1, "a")
	a := MustPlan(scanA)
	ten := expression.NewLiteral(common.NewIntValue(10))

	f1 := MustPlan(NewLogicalFilter(expression.NewGreaterThan(a.Output()[0], ten)), a)
	f2 := MustPlan(NewLogicalFilter(expression.NewGreaterThan(a.Output()[0], ten)), MustPlan(scanA))
	f3 := MustPlan(NewLogicalFilter(expression.NewLessThan(a.Output()[0], ten)), a)
	assert.True(t, Equal(f1, f2))
	assert.False(t, Equal(f1, f3))
	assert.False(t, Equal(f1, a))

	limited := MustPlan(NewLogicalLimit(5, 0), f1)
	out := limited.Explain()
	assert.Contains(t, out, "LogicalLimit(5, offset=0)")
	assert.Contains(t, out, "└── LogicalFilter((x#1 > 10))")
	assert.Contains(t, out, "LogicalScan(db.a, oid=1, [x#1, y#2])")

	_, err := limited.WithChildren(f1, f1)
	assert.True(t, common.IsError(err, common.ArityError))
	swapped, err := limited.WithChildren(f3)
	require.NoError(t, err)
	assert.Same(t, limited.LogicalProperties(), swapped.LogicalProperties())
	assert.Same(t, f1, limited.Child(0))
}
