// Package analyzer binds parsed plans against the catalog. Binding replaces
// every unbound relation, column reference, alias, star and function call by
// its bound counterpart and never modifies the input plan.
package analyzer

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang/glog"
	"mit.edu/dsg/godbopt/catalog"
	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/expression"
	"mit.edu/dsg/godbopt/planner"
)

// SchemaProvider resolves table names during binding. Providers may allow
// concurrent schema changes; Validate then tells whether a table resolved
// earlier is still current.
type SchemaProvider interface {
	ResolveTable(ctx context.Context, nameParts []string) (*catalog.TableRef, error)
	Validate(ctx context.Context, ref *catalog.TableRef) error
}

var _ SchemaProvider = (*catalog.Provider)(nil)

type Option func(*binder)

// WithExprIDGenerator makes the binder draw ExprIDs from gen. It is needed
// when the plan already contains bound expressions from the same generator.
func WithExprIDGenerator(gen *expression.ExprIDGenerator) Option {
	return func(b *binder) {
		b.gen = gen
	}
}

type binder struct {
	ctx      context.Context
	provider SchemaProvider
	gen      *expression.ExprIDGenerator
	refs     []*catalog.TableRef
	path     []string
}

// Bind returns a fully bound copy of plan. It fails with a *BindError when a
// name does not resolve uniquely, a reference escapes its scope, an
// expression is ill-typed, or a table changed while binding was in progress.
func Bind(ctx context.Context, plan *planner.Plan, provider SchemaProvider, opts ...Option) (*planner.Plan, error) {
	b := &binder{ctx: ctx, provider: provider, gen: expression.NewExprIDGenerator()}
	for _, opt := range opts {
		opt(b)
	}
	bound, err := b.bindPlan(plan)
	if err != nil {
		glog.V(1).Infof("binding failed: %v", err)
		return nil, err
	}
	for _, ref := range b.refs {
		if err := provider.Validate(ctx, ref); err != nil {
			glog.V(1).Infof("binding failed: %v", err)
			return nil, b.fail(err, ref.String())
		}
	}
	return bound, nil
}

// fail wraps err into a BindError located at the current operator.
func (b *binder) fail(err error, name string) error {
	var be *BindError
	if errors.As(err, &be) {
		return err
	}
	code, ok := common.CodeOf(err)
	if !ok {
		return err
	}
	if code == common.NoSuchObjectError {
		code = common.UnresolvedReferenceError
		err = common.NewError(code, "%v", err)
	}
	return &BindError{Code: code, Location: strings.Join(b.path, "/"), Name: name, cause: err}
}

func (b *binder) bindPlan(p *planner.Plan) (*planner.Plan, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	b.path = append(b.path, p.Operator().Type().String())
	defer func() { b.path = b.path[:len(b.path)-1] }()

	children := make([]*planner.Plan, len(p.Children()))
	for i, c := range p.Children() {
		bound, err := b.bindPlan(c)
		if err != nil {
			return nil, err
		}
		children[i] = bound
	}

	op, err := b.bindOperator(p.Operator(), children)
	if err != nil {
		return nil, err
	}
	bound, err := planner.NewPlan(op, children...)
	if err != nil {
		return nil, b.fail(err, "")
	}
	return bound, nil
}

func (b *binder) bindOperator(op planner.Operator, children []*planner.Plan) (planner.Operator, error) {
	switch o := op.(type) {
	case *planner.UnboundRelation:
		return b.bindRelation(o)

	case *planner.LogicalScan, *planner.LogicalLimit:
		return op, nil

	case *planner.LogicalFilter:
		s := b.scopeOf(children...)
		pred, err := b.bindPredicate(s, o.Predicate)
		if err != nil {
			return nil, err
		}
		return planner.NewLogicalFilter(pred), nil

	case *planner.LogicalJoin:
		if o.Condition == nil {
			return op, nil
		}
		s := b.scopeOf(children...)
		cond, err := b.bindPredicate(s, o.Condition)
		if err != nil {
			return nil, err
		}
		return planner.NewLogicalJoin(o.JoinType, cond), nil

	case *planner.LogicalProject:
		s := b.scopeOf(children...)
		var projections []expression.NamedExpression
		for _, e := range o.Projections {
			bound, err := b.bindProjection(s, e, false)
			if err != nil {
				return nil, err
			}
			projections = append(projections, bound...)
		}
		return planner.NewLogicalProject(projections...), nil

	case *planner.LogicalAggregate:
		return b.bindAggregate(o, b.scopeOf(children...))

	case *planner.LogicalSort:
		s := b.scopeOf(children...)
		keys := make(planner.Ordering, len(o.OrderBy))
		for i, k := range o.OrderBy {
			bound, err := b.bindExpr(s, k.Expr, false)
			if err != nil {
				return nil, err
			}
			if _, ok := bound.(*expression.SlotReference); !ok {
				return nil, b.fail(common.NewError(common.TypeMismatchError,
					"sort key %s is not a column", k.Expr), k.Expr.String())
			}
			keys[i] = planner.OrderKey{Expr: bound, Descending: k.Descending}
		}
		return planner.NewLogicalSort(keys), nil
	}
	return nil, b.fail(common.NewError(common.BindingStateError, "cannot bind %s", op.Type()), "")
}

// scopeOf builds the scope formed by the outputs of children.
func (b *binder) scopeOf(children ...*planner.Plan) *scope {
	var cols, all []*expression.SlotReference
	for _, c := range children {
		cols = append(cols, c.Output()...)
		all = append(all, producedSlots(c)...)
	}
	return newScope(cols, all)
}

// producedSlots lists every slot produced anywhere in p.
func producedSlots(p *planner.Plan) []*expression.SlotReference {
	result := append([]*expression.SlotReference(nil), p.Output()...)
	for _, c := range p.Children() {
		result = append(result, producedSlots(c)...)
	}
	return result
}

func (b *binder) bindRelation(o *planner.UnboundRelation) (planner.Operator, error) {
	name := expression.QualifiedName(o.NameParts...)
	ref, err := b.provider.ResolveTable(b.ctx, o.NameParts)
	if err != nil {
		return nil, b.fail(err, name)
	}
	b.refs = append(b.refs, ref)
	qualifier := ref.Qualifier()
	cols := make([]*expression.SlotReference, len(ref.Table.Columns))
	for i, c := range ref.Table.Columns {
		cols[i] = expression.NewSlotReference(b.gen.Next(), c.Name, c.Type, c.Nullable, qualifier)
	}
	return planner.NewLogicalScan(ref.Table.Oid, qualifier, cols), nil
}

func (b *binder) bindPredicate(s *scope, e expression.Expression) (expression.Expression, error) {
	bound, err := b.bindExpr(s, e, false)
	if err != nil {
		return nil, err
	}
	t, err := bound.DataType()
	if err != nil {
		return nil, b.fail(err, e.String())
	}
	if t != common.BoolType {
		return nil, b.fail(common.NewError(common.TypeMismatchError, "predicate %s is of type %s", bound, t), e.String())
	}
	return bound, nil
}

// bindExpr binds every node of e. Aggregate calls are accepted only when
// allowAgg is set, and never nested.
func (b *binder) bindExpr(s *scope, e expression.Expression, allowAgg bool) (expression.Expression, error) {
	switch n := e.(type) {
	case *expression.UnboundSlot:
		slot, err := s.resolve(n.NameParts())
		if err != nil {
			return nil, b.fail(err, expression.QualifiedName(n.NameParts()...))
		}
		return slot, nil

	case *expression.SlotReference:
		if err := s.check(n); err != nil {
			return nil, b.fail(err, n.String())
		}
		return n, nil

	case *expression.UnboundFunction:
		return b.bindFunction(s, n, allowAgg)

	case *expression.AggregateFunction:
		if !allowAgg {
			return nil, b.fail(common.NewError(common.UnresolvedReferenceError,
				"aggregate %s is not allowed here", n), n.String())
		}
		allowAgg = false

	case *expression.UnboundStar:
		return nil, b.fail(common.NewError(common.UnresolvedReferenceError, "%s is not allowed here", n), n.String())

	case *expression.UnboundAlias:
		return nil, b.fail(common.NewError(common.UnresolvedReferenceError, "alias %s is not allowed here", n), n.String())
	}

	children := e.Children()
	if len(children) == 0 {
		return e, nil
	}
	bound := make([]expression.Expression, len(children))
	changed := false
	for i, c := range children {
		bc, err := b.bindExpr(s, c, allowAgg)
		if err != nil {
			return nil, err
		}
		bound[i] = bc
		changed = changed || bc != c
	}
	if !changed {
		return e, nil
	}
	result, err := e.WithChildren(bound)
	if err != nil {
		return nil, b.fail(err, e.String())
	}
	return result, nil
}

func (b *binder) bindFunction(s *scope, f *expression.UnboundFunction, allowAgg bool) (expression.Expression, error) {
	aggType, ok := expression.LookupAggregator(f.FunctionName())
	if !ok {
		return nil, b.fail(common.NewError(common.UnresolvedReferenceError,
			"unknown function %s", f.FunctionName()), f.FunctionName())
	}
	if !allowAgg {
		return nil, b.fail(common.NewError(common.UnresolvedReferenceError,
			"aggregate %s is not allowed here", f), f.String())
	}
	args := f.Children()
	// count(*) counts rows and takes no argument.
	if len(args) == 1 && aggType == expression.AggCount {
		if star, ok := args[0].(*expression.UnboundStar); ok && len(star.TargetQualifier()) == 0 {
			args = nil
		}
	}
	bound := make([]expression.Expression, len(args))
	for i, a := range args {
		ba, err := b.bindExpr(s, a, false)
		if err != nil {
			return nil, err
		}
		bound[i] = ba
	}
	agg, err := expression.NewAggregateFunction(aggType, f.IsDistinct(), bound...)
	if err != nil {
		return nil, b.fail(err, f.String())
	}
	if _, err := agg.DataType(); err != nil {
		return nil, b.fail(err, f.String())
	}
	return agg, nil
}

// bindProjection binds one select-list item. Stars expand to several columns.
func (b *binder) bindProjection(s *scope, e expression.NamedExpression, allowAgg bool) ([]expression.NamedExpression, error) {
	switch n := e.(type) {
	case *expression.UnboundStar:
		cols, err := s.expand(n.TargetQualifier())
		if err != nil {
			return nil, b.fail(err, n.String())
		}
		result := make([]expression.NamedExpression, len(cols))
		for i, c := range cols {
			result[i] = c
		}
		return result, nil

	case *expression.UnboundAlias:
		child, err := b.bindExpr(s, n.Child(), allowAgg)
		if err != nil {
			return nil, err
		}
		name := n.AliasName()
		if name == "" {
			if named, ok := child.(expression.NamedExpression); ok {
				return []expression.NamedExpression{named}, nil
			}
			if name, err = child.SQL(); err != nil {
				return nil, b.fail(err, n.String())
			}
		}
		if _, err := child.DataType(); err != nil {
			return nil, b.fail(err, n.String())
		}
		return []expression.NamedExpression{expression.NewAlias(b.gen.Next(), child, name)}, nil
	}

	bound, err := b.bindExpr(s, e, allowAgg)
	if err != nil {
		return nil, err
	}
	named, ok := bound.(expression.NamedExpression)
	common.Assert(ok, "binding changed a named expression into an unnamed one")
	if _, err := named.DataType(); err != nil {
		return nil, b.fail(err, e.String())
	}
	return []expression.NamedExpression{named}, nil
}

func (b *binder) bindAggregate(o *planner.LogicalAggregate, s *scope) (planner.Operator, error) {
	groupBy := make([]expression.Expression, len(o.GroupBy))
	for i, g := range o.GroupBy {
		bound, err := b.bindExpr(s, g, false)
		if err != nil {
			return nil, err
		}
		groupBy[i] = bound
	}
	var outputs []expression.NamedExpression
	for _, e := range o.Outputs {
		bound, err := b.bindProjection(s, e, true)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, bound...)
	}
	for _, out := range outputs {
		if err := checkGrouped(out, groupBy); err != nil {
			return nil, b.fail(err, out.String())
		}
	}
	return planner.NewLogicalAggregate(groupBy, outputs), nil
}

// checkGrouped verifies that e reads its input only through grouping
// expressions or inside aggregate calls.
func checkGrouped(e expression.Expression, groupBy []expression.Expression) error {
	var err error
	expression.Walk(e, func(n expression.Expression) bool {
		if err != nil || n.Kind() == expression.AggregateFunctionKind {
			return false
		}
		for _, g := range groupBy {
			if expression.Equal(n, g) {
				return false
			}
		}
		if slot, ok := n.(*expression.SlotReference); ok {
			err = common.NewError(common.ReferenceOutOfScopeError,
				"%s must appear in the grouping list or be used in an aggregate", slot)
			return false
		}
		return true
	})
	return err
}
