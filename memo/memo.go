// Package memo implements the Cascades search space: groups of logically
// equivalent expressions whose children are groups, not plans.
//
// Groups and group expressions live in arenas indexed by integer ids. Nothing
// outside the arenas holds a pointer to a group; everything refers to groups by
// GroupID. Merging two groups is therefore an update of the redirect table plus
// a rewrite of child ids, and a caller holding an id of a merged group finds out
// through the redirect table instead of reading stale data.
//
// A Memo is not safe for concurrent mutation. Callers either drive it from a
// single goroutine or serialize InsertPlan, InsertInto, MergeGroups, ApplyRule
// and RecordBest themselves. Read-only calls may run concurrently with each
// other.
package memo

import (
	"context"
	"fmt"
	"slices"

	"github.com/golang/glog"
	"github.com/xlab/treeprint"
	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/config"
	"mit.edu/dsg/godbopt/planner"
)

type appliedKey struct {
	expr common.GroupExpressionID
	rule string
}

type Memo struct {
	cfg config.MemoConfig

	// groups is indexed by GroupID. Slot 0 is reserved and merged groups are
	// nil.
	groups []*Group
	// exprs is indexed by GroupExpressionID. Slot 0 is reserved.
	exprs []*GroupExpression

	// exprMap maps a fingerprint to the live expressions with that
	// fingerprint. Hash collisions are resolved with GroupExpression.matches.
	exprMap map[uint64][]common.GroupExpressionID

	// redirect maps a merged group to the group it was merged into.
	redirect map[common.GroupID]common.GroupID

	root    common.GroupID
	applied map[appliedKey]struct{}
}

// NewMemo creates an empty memo for one query.
func NewMemo(cfg config.MemoConfig) *Memo {
	return &Memo{
		cfg:      cfg,
		groups:   make([]*Group, 1),
		exprs:    make([]*GroupExpression, 1),
		exprMap:  make(map[uint64][]common.GroupExpressionID),
		redirect: make(map[common.GroupID]common.GroupID),
		applied:  make(map[appliedKey]struct{}),
	}
}

// Root returns the canonical id of the root group, or InvalidGroupID if no
// plan was inserted yet.
func (m *Memo) Root() common.GroupID {
	if m.root == common.InvalidGroupID {
		return m.root
	}
	return m.resolve(m.root)
}

// NumGroups returns the number of live groups.
func (m *Memo) NumGroups() int {
	n := 0
	for _, g := range m.groups[1:] {
		if g != nil {
			n++
		}
	}
	return n
}

// NumGroupExpressions returns the number of live group expressions.
func (m *Memo) NumGroupExpressions() int {
	n := 0
	for _, e := range m.exprs[1:] {
		if !e.dropped {
			n++
		}
	}
	return n
}

// Groups returns the live groups in id order.
func (m *Memo) Groups() []*Group {
	result := make([]*Group, 0, len(m.groups))
	for _, g := range m.groups[1:] {
		if g != nil {
			result = append(result, g)
		}
	}
	return result
}

// Resolve returns the canonical id of the group that id refers to, following
// merges.
func (m *Memo) Resolve(id common.GroupID) (common.GroupID, error) {
	if err := m.checkGroupID(id); err != nil {
		return common.InvalidGroupID, err
	}
	return m.resolve(id), nil
}

func (m *Memo) resolve(id common.GroupID) common.GroupID {
	for {
		next, ok := m.redirect[id]
		if !ok {
			return id
		}
		id = next
	}
}

func (m *Memo) checkGroupID(id common.GroupID) error {
	if id == common.InvalidGroupID || int(id) >= len(m.groups) {
		return common.NewError(common.NoSuchObjectError, "group %s does not exist", id)
	}
	return nil
}

// Group returns the group with the given id. It fails with
// StaleGroupReferenceError if the group was merged away; the caller must
// Resolve the id and retry.
func (m *Memo) Group(id common.GroupID) (*Group, error) {
	if err := m.checkGroupID(id); err != nil {
		return nil, err
	}
	if _, merged := m.redirect[id]; merged {
		return nil, common.NewError(common.StaleGroupReferenceError,
			"group %s was merged into %s", id, m.resolve(id))
	}
	return m.groups[id], nil
}

// GroupExpression returns the group expression with the given id.
func (m *Memo) GroupExpression(id common.GroupExpressionID) (*GroupExpression, error) {
	if id == common.InvalidGroupExpressionID || int(id) >= len(m.exprs) {
		return nil, common.NewError(common.NoSuchObjectError, "group expression %d does not exist", id)
	}
	return m.exprs[id], nil
}

func (m *Memo) lookupAll(ids []common.GroupExpressionID) []*GroupExpression {
	result := make([]*GroupExpression, len(ids))
	for i, id := range ids {
		result[i] = m.exprs[id]
	}
	return result
}

// GroupPlan returns a leaf plan that stands for the group. Rules use it as the
// child of the alternatives they build.
func (m *Memo) GroupPlan(id common.GroupID) (*planner.Plan, error) {
	g, err := m.Group(id)
	if err != nil {
		return nil, err
	}
	return planner.NewPlanWithProperties(planner.NewGroupRef(g.id), g.props)
}

// InsertPlan copies a bound logical plan into the memo, child first, and makes
// its group the root. Sub-plans that are already in the memo are reused.
func (m *Memo) InsertPlan(p *planner.Plan) (common.GroupID, error) {
	id, err := m.insert(p, common.InvalidGroupID)
	if err != nil {
		return common.InvalidGroupID, err
	}
	m.root = id
	return id, nil
}

// InsertInto adds p as an alternative of the given group and returns the ids of
// the group expressions that were created. The plan's logical properties must
// match the group's. If the top of p already exists in another group, the two
// groups are merged.
func (m *Memo) InsertInto(id common.GroupID, p *planner.Plan) ([]common.GroupExpressionID, error) {
	if _, err := m.Group(id); err != nil {
		return nil, err
	}
	first := len(m.exprs)
	if _, err := m.insert(p, id); err != nil {
		return nil, err
	}
	var created []common.GroupExpressionID
	for _, e := range m.exprs[first:] {
		if !e.dropped {
			created = append(created, e.id)
		}
	}
	return created, nil
}

// insert adds p to the memo. If target is valid, the top of p is placed in
// that group; otherwise it goes to the group of an identical existing
// expression or to a new group. It returns the canonical id of the group
// holding the top of p.
func (m *Memo) insert(p *planner.Plan, target common.GroupID) (common.GroupID, error) {
	if p == nil || p.IsPlaceholder() {
		return common.InvalidGroupID, common.NewError(common.LogicalPropertiesMismatchError, "cannot insert a placeholder into the memo")
	}
	if ref, ok := p.Operator().(*planner.GroupRef); ok {
		id, err := m.Resolve(ref.Group)
		if err != nil {
			return common.InvalidGroupID, err
		}
		if target == common.InvalidGroupID {
			return id, nil
		}
		return m.MergeGroups(target, id)
	}

	children := make([]common.GroupID, len(p.Children()))
	childProps := make([]*planner.LogicalProperties, len(p.Children()))
	for i, c := range p.Children() {
		id, err := m.insert(c, common.InvalidGroupID)
		if err != nil {
			return common.InvalidGroupID, err
		}
		children[i] = id
		childProps[i] = m.groups[id].props
	}
	// Earlier children may have been merged while inserting later ones.
	for i := range children {
		children[i] = m.resolve(children[i])
	}
	if target != common.InvalidGroupID {
		target = m.resolve(target)
	}

	fp := fingerprint(p.Operator(), children)
	if existing := m.lookup(fp, p.Operator(), children); existing != nil {
		if target == common.InvalidGroupID || target == existing.group {
			return existing.group, nil
		}
		// The rule proved target equivalent to a group we already know.
		return m.MergeGroups(target, existing.group)
	}

	output, err := planner.ComputeOutputs(p.Operator(), p.LogicalProperties(), childProps...)
	if err != nil {
		return common.InvalidGroupID, err
	}
	props := planner.NewLogicalProperties(output)

	if limit := m.cfg.MaxGroupExpressions; limit > 0 && len(m.exprs)-1 >= limit {
		return common.InvalidGroupID, common.NewError(common.SearchSpaceLimitError,
			"memo reached its limit of %d group expressions", limit)
	}

	var g *Group
	if target == common.InvalidGroupID {
		g = newGroup(m, common.GroupID(len(m.groups)), props)
		m.groups = append(m.groups, g)
		glog.V(2).Infof("memo: new group %s %s", g.id, props)
	} else {
		g = m.groups[target]
		if !g.props.Equal(props) {
			return common.InvalidGroupID, common.NewError(common.LogicalPropertiesMismatchError,
				"%s produces %s, group %s produces %s", p.Operator(), props, g.id, g.props)
		}
	}

	e := &GroupExpression{
		id:       common.GroupExpressionID(len(m.exprs)),
		op:       p.Operator(),
		children: children,
		group:    g.id,
		memo:     m,
	}
	m.exprs = append(m.exprs, e)
	m.exprMap[fp] = append(m.exprMap[fp], e.id)
	g.add(e)
	glog.V(2).Infof("memo: %s added to %s", e, g.id)
	return g.id, nil
}

func (m *Memo) lookup(fp uint64, op planner.Operator, children []common.GroupID) *GroupExpression {
	for _, id := range m.exprMap[fp] {
		if e := m.exprs[id]; e.matches(op, children) {
			return e
		}
	}
	return nil
}

// MergeGroups records that groups a and b are equivalent. The group with the
// smaller id survives and absorbs the other; references to the other group are
// rewritten everywhere. Expressions that become identical after the rewrite
// are deduplicated, which can in turn merge further groups. Merging is
// idempotent and symmetric. It returns the canonical id of the merged group.
func (m *Memo) MergeGroups(a, b common.GroupID) (common.GroupID, error) {
	if err := m.checkGroupID(a); err != nil {
		return common.InvalidGroupID, err
	}
	if err := m.checkGroupID(b); err != nil {
		return common.InvalidGroupID, err
	}
	pending := [][2]common.GroupID{{a, b}}
	for len(pending) > 0 {
		ra, rb := m.resolve(pending[0][0]), m.resolve(pending[0][1])
		pending = pending[1:]
		if ra == rb {
			continue
		}
		survivor, victim := m.groups[min(ra, rb)], m.groups[max(ra, rb)]
		if !survivor.props.Equal(victim.props) {
			return common.InvalidGroupID, common.NewError(common.LogicalPropertiesMismatchError,
				"cannot merge %s %s with %s %s", survivor.id, survivor.props, victim.id, victim.props)
		}
		glog.V(2).Infof("memo: merging %s into %s", victim.id, survivor.id)

		survivor.absorb(victim)
		m.groups[victim.id] = nil
		m.redirect[victim.id] = survivor.id
		m.rewriteChildren(victim.id, survivor.id)
		pending = append(pending, m.reindex()...)
	}
	return m.resolve(a), nil
}

func (m *Memo) rewriteChildren(from, to common.GroupID) {
	for _, e := range m.exprs[1:] {
		if e.dropped || !slices.Contains(e.children, from) {
			continue
		}
		children := slices.Clone(e.children)
		for i, c := range children {
			if c == from {
				children[i] = to
			}
		}
		e.children = children
	}
}

// reindex rebuilds the fingerprint map after child ids changed. Duplicates
// within a group are dropped, keeping the older expression. Duplicates across
// groups prove those groups equivalent; they are returned for merging.
func (m *Memo) reindex() [][2]common.GroupID {
	var merges [][2]common.GroupID
	m.exprMap = make(map[uint64][]common.GroupExpressionID, len(m.exprMap))
	for _, e := range m.exprs[1:] {
		if e.dropped {
			continue
		}
		fp := fingerprint(e.op, e.children)
		if dup := m.lookup(fp, e.op, e.children); dup != nil {
			if dup.group == e.group {
				glog.V(2).Infof("memo: dropping %s, duplicate of ge%d", e, dup.id)
				e.dropped = true
				m.groups[e.group].remove(e)
				continue
			}
			merges = append(merges, [2]common.GroupID{dup.group, e.group})
		}
		m.exprMap[fp] = append(m.exprMap[fp], e.id)
	}
	return merges
}

// RecordBest is the hook of the cost model: it offers e as the plan for
// required at the given cost. The offer is kept only if it is cheaper than the
// current best. It reports whether the best expression changed.
func (m *Memo) RecordBest(id common.GroupID, required planner.PhysicalProperties,
	exprID common.GroupExpressionID, cost float64) (bool, error) {
	g, err := m.Group(id)
	if err != nil {
		return false, err
	}
	e, err := m.GroupExpression(exprID)
	if err != nil {
		return false, err
	}
	if e.dropped || e.group != g.id {
		return false, common.NewError(common.LogicalPropertiesMismatchError,
			"ge%d does not belong to group %s", exprID, g.id)
	}
	if !required.ProvidedBy(e.op) {
		return false, common.NewError(common.PropertyNotProvidedError,
			"%s does not provide %s", e, required)
	}
	key := required.Fingerprint()
	if cur, ok := g.best[key]; ok && cur.cost <= cost {
		return false, nil
	}
	g.best[key] = &bestExpr{required: required, expr: exprID, cost: cost}
	glog.V(2).Infof("memo: best for %s %s is ge%d (cost %.2f)", g.id, required, exprID, cost)
	return true, nil
}

// Materialize builds a plan tree for the group that satisfies required. For
// every group on the way down it picks the recorded best expression, or else
// the first expression that provides the requirement, and fills the
// expression's skeleton with the plans of its child groups.
//
// It fails with IncompleteSearchError when some group has no expression for
// the requirement yet. Materialize never modifies the memo.
func (m *Memo) Materialize(id common.GroupID, required planner.PhysicalProperties) (*planner.Plan, error) {
	gid, err := m.Resolve(id)
	if err != nil {
		return nil, err
	}
	return m.materialize(gid, required, make(map[goal]bool))
}

// goal is a (group, requirement) pair being materialized. An expression may
// refer to its own group under a different requirement, as a sort over its
// unsorted input does, but not under the same one.
type goal struct {
	group    common.GroupID
	required string
}

func (m *Memo) materialize(gid common.GroupID, required planner.PhysicalProperties,
	path map[goal]bool) (*planner.Plan, error) {
	g := m.groups[gid]
	here := goal{group: gid, required: required.Fingerprint()}
	path[here] = true
	defer delete(path, here)

	for _, e := range m.candidates(g, required) {
		if m.cycles(e, required, path) {
			continue
		}
		p, err := m.materializeExpr(e, required, path)
		if err == nil {
			return p, nil
		}
		if !common.IsError(err, common.IncompleteSearchError) {
			return nil, err
		}
	}
	return nil, common.NewError(common.IncompleteSearchError,
		"no expression in group %s provides %s", gid, required)
}

// candidates lists the expressions of g that may satisfy required, best
// first.
func (m *Memo) candidates(g *Group, required planner.PhysicalProperties) []*GroupExpression {
	if required.Convention == planner.LogicalConvention {
		return g.LogicalExpressions()
	}
	var result []*GroupExpression
	best, _, hasBest := g.Best(required)
	if hasBest {
		result = append(result, best)
	}
	for _, e := range g.PhysicalExpressions() {
		if (hasBest && e == best) || !required.ProvidedBy(e.op) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// cycles reports whether materializing e for required would revisit a goal on
// the path.
func (m *Memo) cycles(e *GroupExpression, required planner.PhysicalProperties, path map[goal]bool) bool {
	req := required.ChildRequirement(e.op).Fingerprint()
	for _, c := range e.children {
		if path[goal{group: c, required: req}] {
			return true
		}
	}
	return false
}

func (m *Memo) materializeExpr(e *GroupExpression, required planner.PhysicalProperties,
	path map[goal]bool) (*planner.Plan, error) {
	var skeleton *planner.Plan
	var err error
	if phys, ok := e.op.(planner.PhysicalOperator); ok {
		skeleton, err = phys.ToTreeNode(e)
	} else {
		skeleton, err = planner.NewSkeleton(e.op, e)
	}
	if err != nil {
		return nil, err
	}
	if len(e.children) == 0 {
		return skeleton, nil
	}
	childRequired := required.ChildRequirement(e.op)
	children := make([]*planner.Plan, len(e.children))
	for i, c := range e.children {
		if children[i], err = m.materialize(c, childRequired, path); err != nil {
			return nil, err
		}
	}
	return skeleton.WithChildren(children...)
}

// Rule is a transformation of a group expression into equivalent
// alternatives. Rules are applied through Memo.ApplyRule.
type Rule interface {
	// Name identifies the rule. It must be unique among the rules applied to a
	// memo.
	Name() string
	// Match reports whether the rule applies to e.
	Match(e *GroupExpression) bool
	// Apply returns the alternatives for e. Their children are usually
	// GroupPlans of e's child groups.
	Apply(ctx context.Context, m *Memo, e *GroupExpression) ([]*planner.Plan, error)
}

// ApplyRule fires rule on every matching expression of the group that it has
// not fired on before, inserts the alternatives into the group and returns
// the ids of the new group expressions.
func (m *Memo) ApplyRule(ctx context.Context, id common.GroupID, rule Rule) (_ []common.GroupExpressionID, err error) {
	g, err := m.Group(id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = catchRuleError(rule, r)
		}
	}()

	var created []common.GroupExpressionID
	for _, e := range g.Expressions() {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		key := appliedKey{expr: e.id, rule: rule.Name()}
		if _, done := m.applied[key]; done || e.dropped || !rule.Match(e) {
			continue
		}
		m.applied[key] = struct{}{}

		alternatives, err := rule.Apply(ctx, m, e)
		if err != nil {
			return created, err
		}
		for _, alt := range alternatives {
			// Earlier alternatives may have merged the group away.
			ids, err := m.InsertInto(m.resolve(e.group), alt)
			if err != nil {
				return created, err
			}
			created = append(created, ids...)
		}
		if len(alternatives) > 0 {
			glog.V(2).Infof("memo: %s fired on %s, %d alternatives", rule.Name(), e, len(alternatives))
		}
	}
	return created, nil
}

// String renders every live group with its expressions and best plans.
func (m *Memo) String() string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("memo (root %s)", m.Root()))
	for _, g := range m.Groups() {
		branch := tree.AddBranch(fmt.Sprintf("%s %s", g.id, g.props))
		for _, e := range g.Expressions() {
			branch.AddNode(e.String())
		}
		keys := make([]string, 0, len(g.best))
		for k := range g.best {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			be := g.best[k]
			branch.AddNode(fmt.Sprintf("best %s: ge%d (cost %.2f)", k, be.expr, be.cost))
		}
	}
	return tree.String()
}
