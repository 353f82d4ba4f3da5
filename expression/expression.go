package expression

import (
	"mit.edu/dsg/godbopt/common"
)

// Expression represents a node in a scalar expression tree.
//
// Expressions are immutable. Rewrites never modify a node in place; they build a
// new node of the same kind with WithChildren. The set of implementations is
// closed to this package so that rules can switch over Kind exhaustively.
//
// Semantic accessors (Nullable, DataType, SQL and, for named expressions, Name,
// ExprID and Qualifier) are only meaningful once an expression has been bound.
// On unbound nodes they return a BindingStateError instead of a default value.
type Expression interface {
	// Kind returns the tag of the concrete node variant.
	Kind() Kind

	// Children returns the ordered child expressions. The length always matches
	// the arity of Kind.
	Children() []Expression

	// WithChildren returns a new node of the same kind with the children
	// replaced. It returns an ArityError if len(children) does not match the
	// node's arity.
	WithChildren(children []Expression) (Expression, error)

	// Nullable reports whether the expression may evaluate to NULL.
	Nullable() (bool, error)

	// DataType returns the type of the value the expression produces.
	DataType() (common.Type, error)

	// SQL renders the bound expression as SQL text.
	SQL() (string, error)

	// String renders a canonical form used for logging and plan diffs. It
	// never fails, including on unbound nodes.
	String() string

	// shallowEqual compares the node-local attributes of two nodes of the same
	// kind, ignoring children.
	shallowEqual(other Expression) bool
}

// NamedExpression is an expression that produces a named output column.
type NamedExpression interface {
	Expression

	Name() (string, error)
	ExprID() (ExprID, error)
	Qualifier() ([]string, error)

	// ToSlot returns the slot a parent operator sees when this expression
	// appears in an output list.
	ToSlot() (*SlotReference, error)
}

// LeafExpression is implemented by expressions without children.
type LeafExpression interface {
	Expression
	isLeaf()
}

// UnaryExpression is implemented by expressions with exactly one child.
type UnaryExpression interface {
	Expression
	Child() Expression
}

// BinaryExpression is implemented by expressions with exactly two children.
type BinaryExpression interface {
	Expression
	Left() Expression
	Right() Expression
}

type leaf struct{}

func (leaf) Children() []Expression {
	return nil
}

func (leaf) isLeaf() {}

type unary struct {
	child Expression
}

func (u unary) Child() Expression {
	return u.child
}

func (u unary) Children() []Expression {
	return []Expression{u.child}
}

type binary struct {
	left  Expression
	right Expression
}

func (b binary) Left() Expression {
	return b.left
}

func (b binary) Right() Expression {
	return b.right
}

func (b binary) Children() []Expression {
	return []Expression{b.left, b.right}
}

func checkArity(k Kind, n int) error {
	if want := k.Arity(); want != VariadicArity && want != n {
		return common.NewError(common.ArityError, "%s expects %d children, got %d", k, want, n)
	}
	return nil
}

func unboundError(e Expression, accessor string) error {
	return common.NewError(common.BindingStateError, "%s is not available on unbound expression %s", accessor, e.String())
}

// eitherNullable implements the SQL three-valued-logic rule shared by all
// binary predicates: the result may be NULL iff either input may be NULL. Both
// sides are always consulted so that an unbound child is reported even when
// the other side is already known to be nullable.
func eitherNullable(left, right Expression) (bool, error) {
	ln, err := left.Nullable()
	if err != nil {
		return false, err
	}
	rn, err := right.Nullable()
	if err != nil {
		return false, err
	}
	return ln || rn, nil
}

// requireType checks that e is bound and produces the wanted type.
func requireType(parent Kind, e Expression, want common.Type) error {
	t, err := e.DataType()
	if err != nil {
		return err
	}
	if t != want {
		return common.NewError(common.TypeMismatchError, "%s expects %s operand, got %s (%s)", parent, want, t, e.String())
	}
	return nil
}
