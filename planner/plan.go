package planner

import (
	"slices"

	"github.com/xlab/treeprint"
	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/expression"
)

// Plan is a node of a concrete plan tree: an operator, its child plans and the
// node's logical properties. Plans are immutable.
//
// A plan built from a memo group expression starts out as a skeleton whose
// children are placeholders; the memo replaces them once the child groups have
// been materialized.
type Plan struct {
	op          Operator
	children    []*Plan
	props       *LogicalProperties
	groupExpr   GroupExpressionRef
	placeholder bool
}

// NewPlan builds a plan node and derives its logical properties from the
// children. The children must be complete plans, not placeholders.
func NewPlan(op Operator, children ...*Plan) (*Plan, error) {
	childProps := make([]*LogicalProperties, len(children))
	for i, c := range children {
		if c == nil || c.placeholder {
			return nil, common.NewError(common.LogicalPropertiesMismatchError,
				"child %d of %s has no logical properties", i, op.Type())
		}
		childProps[i] = c.props
	}
	output, err := ComputeOutputs(op, nil, childProps...)
	if err != nil {
		return nil, err
	}
	return &Plan{op: op, children: slices.Clone(children), props: NewLogicalProperties(output)}, nil
}

// MustPlan is like NewPlan but panics on error. It is intended for tests and
// for plans whose shape is known to be valid.
func MustPlan(op Operator, children ...*Plan) *Plan {
	p, err := NewPlan(op, children...)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPlanWithProperties builds a plan node with properties supplied by the
// caller instead of derived ones.
func NewPlanWithProperties(op Operator, props *LogicalProperties, children ...*Plan) (*Plan, error) {
	if err := checkArity(op, len(children)); err != nil {
		return nil, err
	}
	return &Plan{op: op, children: slices.Clone(children), props: props}, nil
}

// NewUnboundPlan builds a plan node as a parser produces it: its operators may
// still be unbound, so no logical properties are derived.
func NewUnboundPlan(op Operator, children ...*Plan) (*Plan, error) {
	return NewPlanWithProperties(op, nil, children...)
}

// NewPlaceholder returns a stand-in for a child plan that will be supplied
// later.
func NewPlaceholder() *Plan {
	return &Plan{placeholder: true}
}

func (p *Plan) Operator() Operator {
	return p.op
}

func (p *Plan) Children() []*Plan {
	return p.children
}

func (p *Plan) Child(i int) *Plan {
	return p.children[i]
}

// LogicalProperties returns the node's properties, or nil for a placeholder.
func (p *Plan) LogicalProperties() *LogicalProperties {
	return p.props
}

// Output is a shorthand for LogicalProperties().Output().
func (p *Plan) Output() []*expression.SlotReference {
	if p.props == nil {
		return nil
	}
	return p.props.Output()
}

// GroupExpression returns the memo expression the plan was built from, if any.
func (p *Plan) GroupExpression() GroupExpressionRef {
	return p.groupExpr
}

func (p *Plan) IsPlaceholder() bool {
	return p.placeholder
}

// WithChildren returns a copy of the plan with the children replaced. The
// logical properties are kept.
func (p *Plan) WithChildren(children ...*Plan) (*Plan, error) {
	common.Assert(!p.placeholder, "WithChildren on a placeholder")
	if err := checkArity(p.op, len(children)); err != nil {
		return nil, err
	}
	c := *p
	c.children = slices.Clone(children)
	return &c, nil
}

// HasPlaceholders reports whether any node below p is still a placeholder.
func (p *Plan) HasPlaceholders() bool {
	if p.placeholder {
		return true
	}
	for _, c := range p.children {
		if c.HasPlaceholders() {
			return true
		}
	}
	return false
}

// Equal compares two plan trees: same operators, same properties, same shape.
// The originating group expressions are ignored.
func Equal(a, b *Plan) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.placeholder || b.placeholder {
		return a.placeholder == b.placeholder
	}
	if !a.op.Equal(b.op) || !a.props.Equal(b.props) || len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !Equal(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}

func (p *Plan) String() string {
	if p.placeholder {
		return "Placeholder"
	}
	return p.op.String()
}

// Explain renders the plan as an indented tree.
func (p *Plan) Explain() string {
	return p.asTree(nil).String()
}

func (p *Plan) asTree(root treeprint.Tree) treeprint.Tree {
	var branch treeprint.Tree
	if root == nil {
		branch = treeprint.NewWithRoot(p.String())
	} else {
		branch = root.AddBranch(p.String())
	}
	for _, c := range p.children {
		c.asTree(branch)
	}
	return branch
}
