package memo

import (
	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/planner"
)

// Group is a set of logically equivalent expressions. All of its expressions
// produce the same LogicalProperties.
type Group struct {
	id    common.GroupID
	props *planner.LogicalProperties

	// Expression ids in insertion order. The first logical expression is the
	// one the group was created for.
	logical  []common.GroupExpressionID
	physical []common.GroupExpressionID

	// best maps the fingerprint of a physical requirement to the cheapest
	// expression recorded for it.
	best map[string]*bestExpr

	memo *Memo
}

type bestExpr struct {
	required planner.PhysicalProperties
	expr     common.GroupExpressionID
	cost     float64
}

func newGroup(m *Memo, id common.GroupID, props *planner.LogicalProperties) *Group {
	return &Group{
		id:    id,
		props: props,
		best:  make(map[string]*bestExpr),
		memo:  m,
	}
}

func (g *Group) ID() common.GroupID {
	return g.id
}

func (g *Group) LogicalProperties() *planner.LogicalProperties {
	return g.props
}

// LogicalExpressions returns the group's logical expressions in insertion
// order.
func (g *Group) LogicalExpressions() []*GroupExpression {
	return g.memo.lookupAll(g.logical)
}

// PhysicalExpressions returns the group's physical expressions in insertion
// order.
func (g *Group) PhysicalExpressions() []*GroupExpression {
	return g.memo.lookupAll(g.physical)
}

// Expressions returns all expressions of the group, logical ones first.
func (g *Group) Expressions() []*GroupExpression {
	return append(g.LogicalExpressions(), g.PhysicalExpressions()...)
}

// Best returns the expression recorded as cheapest for required, if any.
func (g *Group) Best(required planner.PhysicalProperties) (*GroupExpression, float64, bool) {
	be, ok := g.best[required.Fingerprint()]
	if !ok {
		return nil, 0, false
	}
	return g.memo.exprs[be.expr], be.cost, true
}

func (g *Group) add(e *GroupExpression) {
	if e.IsPhysical() {
		g.physical = append(g.physical, e.id)
	} else {
		g.logical = append(g.logical, e.id)
	}
}

func (g *Group) remove(e *GroupExpression) {
	list := &g.logical
	if e.IsPhysical() {
		list = &g.physical
	}
	for i, id := range *list {
		if id == e.id {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			break
		}
	}
	for key, be := range g.best {
		if be.expr == e.id {
			delete(g.best, key)
		}
	}
}

// absorb moves every expression and best-expression entry of other into g.
func (g *Group) absorb(other *Group) {
	for _, e := range other.Expressions() {
		e.group = g.id
		g.add(e)
	}
	for key, be := range other.best {
		if cur, ok := g.best[key]; !ok || be.cost < cur.cost {
			g.best[key] = be
		}
	}
}
