package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/godbopt/common"
)

// Helper to create a standard set of bound columns for testing
// Schema: t(id int NOT NULL, name string NOT NULL, age int NULL, bio string NULL)
func makeTestSlots() (id, name, age, bio *SlotReference) {
	q := []string{"t"}
	id = NewSlotReference(1, "id", common.IntType, false, q)
	name = NewSlotReference(2, "name", common.StringType, false, q)
	age = NewSlotReference(3, "age", common.IntType, true, q)
	bio = NewSlotReference(4, "bio", common.StringType, true, q)
	return
}

func comparisonKinds() []Kind {
	return []Kind{EqualToKind, NotEqualToKind, GreaterThanKind, GreaterThanEqualKind, LessThanKind, LessThanEqualKind}
}

// TestComparisonNullability checks the either-side rule for every comparison.
func TestComparisonNullability(t *testing.T) {
	id, _, age, _ := makeTestSlots()
	const5 := NewLiteral(common.NewIntValue(5))
	nullInt := NewLiteral(common.NewNull(common.IntType))

	operands := []struct {
		name  string
		left  Expression
		right Expression
	}{
		{"notnull-notnull", id, const5},
		{"notnull-null", id, age},
		{"null-notnull", age, id},
		{"null-null", age, age},
		{"literal-null", const5, nullInt},
	}

	for _, k := range comparisonKinds() {
		for _, op := range operands {
			t.Run(k.String()+"/"+op.name, func(t *testing.T) {
				e, err := NewComparison(k, op.left, op.right)
				require.NoError(t, err)

				ln, err := op.left.Nullable()
				require.NoError(t, err)
				rn, err := op.right.Nullable()
				require.NoError(t, err)

				n, err := e.Nullable()
				require.NoError(t, err)
				assert.Equal(t, ln || rn, n)

				typ, err := e.DataType()
				require.NoError(t, err)
				assert.Equal(t, common.BoolType, typ)
			})
		}
	}
}

func TestNullSafeEqualNeverNull(t *testing.T) {
	_, _, age, _ := makeTestSlots()
	e := NewNullSafeEqual(age, age)
	n, err := e.Nullable()
	require.NoError(t, err)
	assert.False(t, n)
	assert.Equal(t, "(age#3 <=> age#3)", e.String())
}

func TestNullability(t *testing.T) {
	id, name, age, bio := makeTestSlots()
	pattern := NewLiteral(common.NewStringValue("a%"))
	one := NewLiteral(common.NewIntValue(1))
	count, err := NewAggregateFunction(AggCount, false, age)
	require.NoError(t, err)
	sum, err := NewAggregateFunction(AggSum, false, id)
	require.NoError(t, err)

	tests := []struct {
		name     string
		expr     Expression
		nullable bool
	}{
		{"add notnull", NewAdd(id, one), false},
		{"add null", NewAdd(id, age), true},
		{"divide notnull", NewDivide(id, one), true},
		{"mod notnull", NewMod(id, one), true},
		{"and", NewAnd(NewGreaterThan(id, one), NewLessThan(id, one)), false},
		{"or null", NewOr(NewGreaterThan(age, one), NewLessThan(id, one)), true},
		{"not", NewNot(NewGreaterThan(age, one)), true},
		{"is null", NewIsNull(age), false},
		{"like notnull", NewLike(name, pattern), false},
		{"like null", NewLike(bio, pattern), true},
		{"count", count, false},
		{"sum", sum, true},
		{"alias", NewAlias(10, age, "a"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.expr.Nullable()
			require.NoError(t, err)
			assert.Equal(t, tt.nullable, n)
		})
	}
}

func allKindsSample() []Expression {
	id, name, age, _ := makeTestSlots()
	one := NewLiteral(common.NewIntValue(1))
	pattern := NewLiteral(common.NewStringValue("a%"))
	gt := NewGreaterThan(id, one)
	count, _ := NewAggregateFunction(AggCount, false)
	maxAge, _ := NewAggregateFunction(AggMax, true, age)

	return []Expression{
		NewUnboundSlot("t", "x"),
		NewUnboundAlias(NewUnboundSlot("x")),
		NewUnboundAliasWithName(NewUnboundSlot("x"), "y"),
		NewUnboundStar("t"),
		NewUnboundFunction("count", false, NewUnboundSlot("x")),
		id,
		NewAlias(11, NewAdd(id, one), "plus_one"),
		one,
		NewEqualTo(id, one),
		NewNotEqualTo(id, one),
		NewNullSafeEqual(id, one),
		gt,
		NewGreaterThanEqual(id, one),
		NewLessThan(id, one),
		NewLessThanEqual(id, one),
		NewAnd(gt, gt),
		NewOr(gt, gt),
		NewNot(gt),
		NewIsNull(age),
		NewLike(name, pattern),
		NewAdd(id, one),
		NewSubtract(id, one),
		NewMultiply(id, one),
		NewDivide(id, one),
		NewMod(id, one),
		count,
		maxAge,
	}
}

// TestWithChildrenRoundTrip checks that replacing the children with the
// original children yields a structurally equal node, and that a wrong child
// count is rejected for every fixed-arity kind.
func TestWithChildrenRoundTrip(t *testing.T) {
	extra := NewLiteral(common.NewIntValue(42))
	for _, e := range allKindsSample() {
		t.Run(e.Kind().String()+"/"+e.String(), func(t *testing.T) {
			same, err := e.WithChildren(e.Children())
			require.NoError(t, err)
			assert.True(t, Equal(e, same), "round trip of %s produced %s", e, same)
			assert.Equal(t, e.String(), same.String())

			if e.Kind().Arity() == VariadicArity {
				return
			}
			_, err = e.WithChildren(append(e.Children(), extra))
			assert.True(t, common.IsError(err, common.ArityError), "got %v", err)
			if len(e.Children()) > 0 {
				_, err = e.WithChildren(e.Children()[1:])
				assert.True(t, common.IsError(err, common.ArityError), "got %v", err)
			}
		})
	}
}

func TestAggregateArity(t *testing.T) {
	id, _, _, _ := makeTestSlots()
	_, err := NewAggregateFunction(AggSum, false)
	assert.True(t, common.IsError(err, common.ArityError))
	_, err = NewAggregateFunction(AggCount, false, id, id)
	assert.True(t, common.IsError(err, common.ArityError))

	count, err := NewAggregateFunction(AggCount, false)
	require.NoError(t, err)
	_, err = count.WithChildren([]Expression{id, id})
	assert.True(t, common.IsError(err, common.ArityError))
	assert.Equal(t, "count(*)", count.String())
}

// TestUnboundAccessors verifies that every semantic accessor of every unbound
// variant fails with a binding-state error instead of returning a default.
func TestUnboundAccessors(t *testing.T) {
	named := []NamedExpression{
		NewUnboundSlot("a"),
		NewUnboundAlias(NewUnboundSlot("a")),
		NewUnboundAliasWithName(NewLiteral(common.NewIntValue(1)), "one"),
		NewUnboundStar(),
	}
	for _, e := range named {
		t.Run(e.String(), func(t *testing.T) {
			name, err := e.Name()
			assert.True(t, common.IsError(err, common.BindingStateError))
			assert.Empty(t, name)

			id, err := e.ExprID()
			assert.True(t, common.IsError(err, common.BindingStateError))
			assert.Zero(t, id)

			q, err := e.Qualifier()
			assert.True(t, common.IsError(err, common.BindingStateError))
			assert.Nil(t, q)

			_, err = e.ToSlot()
			assert.True(t, common.IsError(err, common.BindingStateError))
			_, err = e.SQL()
			assert.True(t, common.IsError(err, common.BindingStateError))
			_, err = e.Nullable()
			assert.True(t, common.IsError(err, common.BindingStateError))
			_, err = e.DataType()
			assert.True(t, common.IsError(err, common.BindingStateError))
		})
	}

	fn := NewUnboundFunction("sum", false, NewUnboundSlot("a"))
	_, err := fn.SQL()
	assert.True(t, common.IsError(err, common.BindingStateError))
	_, err = fn.Nullable()
	assert.True(t, common.IsError(err, common.BindingStateError))
}

// TestUnboundChildPropagates covers a bound predicate over an unbound column:
// the column's identity is unavailable and the predicate's nullability fails
// rather than defaulting.
func TestUnboundChildPropagates(t *testing.T) {
	colA := NewUnboundSlot("col_a")
	_, _, colB, _ := makeTestSlots()
	lt := NewLessThan(colA, colB)

	_, err := lt.Left().(NamedExpression).ExprID()
	assert.True(t, common.IsError(err, common.BindingStateError))

	_, err = lt.Nullable()
	assert.True(t, common.IsError(err, common.BindingStateError))
	_, err = lt.DataType()
	assert.True(t, common.IsError(err, common.BindingStateError))
	_, err = lt.SQL()
	assert.True(t, common.IsError(err, common.BindingStateError))

	assert.Equal(t, "('col_a < age#3)", lt.String())
	assert.True(t, ContainsUnbound(lt))
}

func TestRendering(t *testing.T) {
	id, name, age, _ := makeTestSlots()
	one := NewLiteral(common.NewIntValue(1))
	hello := NewLiteral(common.NewStringValue("hello"))

	tests := []struct {
		expr Expression
		str  string
		sql  string
	}{
		{NewGreaterThan(id, one), "(id#1 > 1)", "id > 1"},
		{NewEqualTo(name, hello), "(name#2 = 'hello')", "name = 'hello'"},
		{NewAnd(NewGreaterThan(id, one), NewIsNull(age)), "((id#1 > 1) AND (age#3 IS NULL))", "(id > 1 AND age IS NULL)"},
		{NewAlias(7, NewAdd(id, one), "x"), "(id#1 + 1) AS `x`#7", "(id + 1) AS `x`"},
		{NewNot(NewLessThanEqual(id, one)), "(NOT (id#1 <= 1))", "NOT id <= 1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.str, tt.expr.String())
		sql, err := tt.expr.SQL()
		require.NoError(t, err)
		assert.Equal(t, tt.sql, sql)
	}

	assert.Equal(t, "UnboundAlias('t.x, None)", NewUnboundAlias(NewUnboundSlot("t", "x")).String())
	assert.Equal(t, "'count(DISTINCT 'x)", NewUnboundFunction("count", true, NewUnboundSlot("x")).String())
}

func TestTypeChecking(t *testing.T) {
	id, name, _, _ := makeTestSlots()

	_, err := NewGreaterThan(id, name).DataType()
	assert.True(t, common.IsError(err, common.TypeMismatchError))

	_, err = NewAdd(id, name).DataType()
	assert.True(t, common.IsError(err, common.TypeMismatchError))

	_, err = NewAnd(id, id).DataType()
	assert.True(t, common.IsError(err, common.TypeMismatchError))

	sum, err := NewAggregateFunction(AggSum, false, name)
	require.NoError(t, err)
	_, err = sum.DataType()
	assert.True(t, common.IsError(err, common.TypeMismatchError))

	minName, err := NewAggregateFunction(AggMin, false, name)
	require.NoError(t, err)
	typ, err := minName.DataType()
	require.NoError(t, err)
	assert.Equal(t, common.StringType, typ)
}

func TestRewrite(t *testing.T) {
	id, _, age, _ := makeTestSlots()
	one := NewLiteral(common.NewIntValue(1))
	pred := NewAnd(NewGreaterThan(id, one), NewLessThan(age, one))

	// Identity rewrites reuse the original tree.
	same, err := Rewrite(pred, func(e Expression) (Expression, error) { return e, nil })
	require.NoError(t, err)
	assert.Same(t, pred, same)

	// Replace age by id everywhere.
	replaced, err := Rewrite(pred, func(e Expression) (Expression, error) {
		if s, ok := e.(*SlotReference); ok && s.ID() == age.ID() {
			return id, nil
		}
		return e, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "((id#1 > 1) AND (id#1 < 1))", replaced.String())
	// The original is untouched.
	assert.Equal(t, "((id#1 > 1) AND (age#3 < 1))", pred.String())

	slots := InputSlots(pred)
	require.Len(t, slots, 2)
	assert.Equal(t, id.ID(), slots[0].ID())
	assert.Equal(t, age.ID(), slots[1].ID())
}

func TestConjuncts(t *testing.T) {
	id, _, age, _ := makeTestSlots()
	one := NewLiteral(common.NewIntValue(1))
	a := NewGreaterThan(id, one)
	b := NewLessThan(age, one)
	c := NewIsNull(age)

	combined := CombineConjuncts([]Expression{a, b, c})
	parts := SplitConjuncts(combined)
	require.Len(t, parts, 3)
	assert.True(t, EqualLists(parts, []Expression{a, b, c}))
	assert.Nil(t, CombineConjuncts(nil))
	assert.Nil(t, SplitConjuncts(nil))
}

func TestEqual(t *testing.T) {
	id, _, age, _ := makeTestSlots()
	one := NewLiteral(common.NewIntValue(1))
	two := NewLiteral(common.NewIntValue(2))

	assert.True(t, Equal(NewGreaterThan(id, one), NewGreaterThan(id, one)))
	assert.False(t, Equal(NewGreaterThan(id, one), NewGreaterThan(id, two)))
	assert.False(t, Equal(NewGreaterThan(id, one), NewLessThan(id, one)))
	assert.False(t, Equal(id, age))
	assert.False(t, Equal(id, id.WithNullable(true)))
	assert.False(t, Equal(NewAdd(id, one), NewSubtract(id, one)))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(id, nil))
}

func TestExprIDGenerator(t *testing.T) {
	g := NewExprIDGenerator()
	a, b := g.Next(), g.Next()
	assert.Equal(t, ExprID(1), a)
	assert.Equal(t, ExprID(2), b)
}
