package expression

import (
	"fmt"

	"mit.edu/dsg/godbopt/common"
)

// Arithmetic is a binary integer operator. The kind selects the operator.
type Arithmetic struct {
	binary
	kind Kind
}

func NewArithmetic(k Kind, left, right Expression) *Arithmetic {
	common.Assert(k.IsArithmetic(), "%s is not an arithmetic kind", k)
	return &Arithmetic{binary: binary{left, right}, kind: k}
}

func NewAdd(left, right Expression) *Arithmetic {
	return NewArithmetic(AddKind, left, right)
}

func NewSubtract(left, right Expression) *Arithmetic {
	return NewArithmetic(SubtractKind, left, right)
}

func NewMultiply(left, right Expression) *Arithmetic {
	return NewArithmetic(MultiplyKind, left, right)
}

func NewDivide(left, right Expression) *Arithmetic {
	return NewArithmetic(DivideKind, left, right)
}

func NewMod(left, right Expression) *Arithmetic {
	return NewArithmetic(ModKind, left, right)
}

func (e *Arithmetic) Kind() Kind {
	return e.kind
}

// Nullable follows the either-side rule, except that division and modulo
// yield NULL on a zero divisor and are therefore always nullable.
func (e *Arithmetic) Nullable() (bool, error) {
	n, err := eitherNullable(e.left, e.right)
	if err != nil {
		return false, err
	}
	if e.kind == DivideKind || e.kind == ModKind {
		return true, nil
	}
	return n, nil
}

func (e *Arithmetic) DataType() (common.Type, error) {
	if err := requireType(e.kind, e.left, common.IntType); err != nil {
		return common.DefaultType, err
	}
	if err := requireType(e.kind, e.right, common.IntType); err != nil {
		return common.DefaultType, err
	}
	return common.IntType, nil
}

func (e *Arithmetic) SQL() (string, error) {
	l, err := e.left.SQL()
	if err != nil {
		return "", err
	}
	r, err := e.right.SQL()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", l, e.kind.Symbol(), r), nil
}

func (e *Arithmetic) String() string {
	return fmt.Sprintf("(%s %s %s)", e.left.String(), e.kind.Symbol(), e.right.String())
}

func (e *Arithmetic) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(e.kind, len(children)); err != nil {
		return nil, err
	}
	return NewArithmetic(e.kind, children[0], children[1]), nil
}

func (e *Arithmetic) shallowEqual(other Expression) bool {
	o, ok := other.(*Arithmetic)
	return ok && e.kind == o.kind
}
