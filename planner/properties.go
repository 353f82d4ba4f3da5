package planner

import (
	"slices"
	"strings"

	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/expression"
)

// LogicalProperties describe what a plan produces independently of how it is
// computed. Every plan in a memo group shares the same LogicalProperties.
type LogicalProperties struct {
	output []*expression.SlotReference
}

func NewLogicalProperties(output []*expression.SlotReference) *LogicalProperties {
	return &LogicalProperties{output: slices.Clone(output)}
}

// Output returns the ordered output slots.
func (p *LogicalProperties) Output() []*expression.SlotReference {
	return p.output
}

// OutputExprIDs returns the ExprIDs of the output slots in order.
func (p *LogicalProperties) OutputExprIDs() []expression.ExprID {
	ids := make([]expression.ExprID, len(p.output))
	for i, s := range p.output {
		ids[i] = s.ID()
	}
	return ids
}

// Equal compares two sets of properties structurally.
func (p *LogicalProperties) Equal(other *LogicalProperties) bool {
	if p == nil || other == nil {
		return p == other
	}
	return expression.EqualLists(p.output, other.output)
}

func (p *LogicalProperties) String() string {
	if p == nil {
		return "<none>"
	}
	return formatList(p.output)
}

// OrderKey is one column of a sort order. Expr is an UnboundSlot until the
// binder resolves it to a SlotReference.
type OrderKey struct {
	Expr       expression.Expression
	Descending bool
}

// Slot returns the bound column the key sorts on, or nil if the key is not
// bound.
func (k OrderKey) Slot() *expression.SlotReference {
	s, _ := k.Expr.(*expression.SlotReference)
	return s
}

func (k OrderKey) id() expression.ExprID {
	s := k.Slot()
	common.Assert(s != nil, "sort key %s is not bound", k.Expr)
	return s.ID()
}

func (k OrderKey) String() string {
	if k.Descending {
		return k.Expr.String() + " DESC"
	}
	return k.Expr.String()
}

// Ordering is a sort order, most significant key first.
type Ordering []OrderKey

func (o Ordering) String() string {
	return formatList(o)
}

// Equal compares two orderings key by key.
func (o Ordering) Equal(other Ordering) bool {
	return slices.EqualFunc(o, other, func(a, b OrderKey) bool {
		return a.Descending == b.Descending && expression.Equal(a.Expr, b.Expr)
	})
}

// Satisfies reports whether data sorted by o is also sorted by required. That
// holds when required is a prefix of o. Keys are compared by ExprID, so both
// orderings must be bound.
func (o Ordering) Satisfies(required Ordering) bool {
	if len(required) > len(o) {
		return false
	}
	for i, k := range required {
		if o[i].Descending != k.Descending || o[i].id() != k.id() {
			return false
		}
	}
	return true
}

// checkKeys makes sure every key is a bound column.
func (o Ordering) checkKeys() error {
	for _, k := range o {
		if err := checkBound(k.Expr); err != nil {
			return err
		}
		if k.Slot() == nil {
			return common.NewError(common.TypeMismatchError, "sort key %s is not a column", k.Expr)
		}
	}
	return nil
}

// Convention selects which family of expressions a materialization request is
// after.
type Convention int

const (
	// LogicalConvention requests a logical plan. The memo answers it with the
	// first logical expression of each group, which is the shape the plan was
	// inserted with.
	LogicalConvention Convention = iota
	// PhysicalConvention requests an executable plan.
	PhysicalConvention
)

func (c Convention) String() string {
	if c == LogicalConvention {
		return "logical"
	}
	return "physical"
}

// PhysicalProperties are the requirements a parent places on a child plan.
type PhysicalProperties struct {
	Convention Convention
	Ordering   Ordering
}

var (
	// AnyLogical requests any logical plan.
	AnyLogical = PhysicalProperties{Convention: LogicalConvention}
	// AnyPhysical requests any physical plan, in any order.
	AnyPhysical = PhysicalProperties{Convention: PhysicalConvention}
)

// RequireOrdering returns a physical requirement for the given order.
func RequireOrdering(ordering Ordering) PhysicalProperties {
	return PhysicalProperties{Convention: PhysicalConvention, Ordering: ordering}
}

// Fingerprint returns a string that identifies the requirement. Two
// requirements with the same fingerprint are interchangeable.
func (p PhysicalProperties) Fingerprint() string {
	var b strings.Builder
	b.WriteString(p.Convention.String())
	if len(p.Ordering) > 0 {
		b.WriteString(" ordering=")
		for i, k := range p.Ordering {
			if i > 0 {
				b.WriteString(",")
			}
			if k.Descending {
				b.WriteString("-")
			} else {
				b.WriteString("+")
			}
			b.WriteString(k.id().String())
		}
	}
	return b.String()
}

func (p PhysicalProperties) String() string {
	return p.Fingerprint()
}

// ProvidedBy reports whether op produces output that meets the requirement,
// either by itself or by passing the requirement on to its input.
func (p PhysicalProperties) ProvidedBy(op Operator) bool {
	if p.Convention == LogicalConvention {
		return !op.Type().IsPhysical()
	}
	phys, ok := op.(PhysicalOperator)
	if !ok {
		return false
	}
	return phys.ProvidedOrdering().Satisfies(p.Ordering) || forwards(op, p.Ordering)
}

// ChildRequirement is what op asks of its children so that its output meets
// p. Physical operators need physical inputs, sorted when op keeps the order
// of its input instead of producing the required one itself. Logical
// operators need logical inputs.
func (p PhysicalProperties) ChildRequirement(op Operator) PhysicalProperties {
	phys, ok := op.(PhysicalOperator)
	if !ok {
		return AnyLogical
	}
	if p.Convention == PhysicalConvention && !phys.ProvidedOrdering().Satisfies(p.Ordering) && forwards(op, p.Ordering) {
		return RequireOrdering(p.Ordering)
	}
	return AnyPhysical
}

// orderForwarder is implemented by physical operators whose output keeps the
// order of their single input.
type orderForwarder interface {
	forwardsOrdering(required Ordering) bool
}

func forwards(op Operator, required Ordering) bool {
	f, ok := op.(orderForwarder)
	return ok && len(required) > 0 && f.forwardsOrdering(required)
}
