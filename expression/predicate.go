package expression

import (
	"fmt"

	"mit.edu/dsg/godbopt/common"
)

// compoundPredicate is the shared shape of AND and OR.
type compoundPredicate struct {
	binary
}

func (c compoundPredicate) Nullable() (bool, error) {
	return eitherNullable(c.left, c.right)
}

func (c compoundPredicate) dataType(k Kind) (common.Type, error) {
	if err := requireType(k, c.left, common.BoolType); err != nil {
		return common.DefaultType, err
	}
	if err := requireType(k, c.right, common.BoolType); err != nil {
		return common.DefaultType, err
	}
	return common.BoolType, nil
}

func (c compoundPredicate) sql(k Kind) (string, error) {
	l, err := c.left.SQL()
	if err != nil {
		return "", err
	}
	r, err := c.right.SQL()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", l, k.Symbol(), r), nil
}

func (c compoundPredicate) format(k Kind) string {
	return fmt.Sprintf("(%s %s %s)", c.left.String(), k.Symbol(), c.right.String())
}

func (c compoundPredicate) shallowEqual(other Expression) bool {
	return true
}

type And struct {
	compoundPredicate
}

func NewAnd(left, right Expression) *And {
	return &And{compoundPredicate{binary{left, right}}}
}

func (e *And) Kind() Kind { return AndKind }

func (e *And) DataType() (common.Type, error) { return e.dataType(AndKind) }

func (e *And) SQL() (string, error) { return e.sql(AndKind) }

func (e *And) String() string { return e.format(AndKind) }

func (e *And) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(AndKind, len(children)); err != nil {
		return nil, err
	}
	return NewAnd(children[0], children[1]), nil
}

type Or struct {
	compoundPredicate
}

func NewOr(left, right Expression) *Or {
	return &Or{compoundPredicate{binary{left, right}}}
}

func (e *Or) Kind() Kind { return OrKind }

func (e *Or) DataType() (common.Type, error) { return e.dataType(OrKind) }

func (e *Or) SQL() (string, error) { return e.sql(OrKind) }

func (e *Or) String() string { return e.format(OrKind) }

func (e *Or) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(OrKind, len(children)); err != nil {
		return nil, err
	}
	return NewOr(children[0], children[1]), nil
}

type Not struct {
	unary
}

func NewNot(child Expression) *Not {
	return &Not{unary{child: child}}
}

func (e *Not) Kind() Kind { return NotKind }

func (e *Not) Nullable() (bool, error) {
	return e.child.Nullable()
}

func (e *Not) DataType() (common.Type, error) {
	if err := requireType(NotKind, e.child, common.BoolType); err != nil {
		return common.DefaultType, err
	}
	return common.BoolType, nil
}

func (e *Not) SQL() (string, error) {
	s, err := e.child.SQL()
	if err != nil {
		return "", err
	}
	return "NOT " + s, nil
}

func (e *Not) String() string {
	return fmt.Sprintf("(NOT %s)", e.child.String())
}

func (e *Not) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(NotKind, len(children)); err != nil {
		return nil, err
	}
	return NewNot(children[0]), nil
}

func (e *Not) shallowEqual(other Expression) bool {
	return true
}

// IsNull is "a IS NULL". It is never NULL itself.
type IsNull struct {
	unary
}

func NewIsNull(child Expression) *IsNull {
	return &IsNull{unary{child: child}}
}

func (e *IsNull) Kind() Kind { return IsNullKind }

func (e *IsNull) Nullable() (bool, error) {
	if _, err := e.child.Nullable(); err != nil {
		return false, err
	}
	return false, nil
}

func (e *IsNull) DataType() (common.Type, error) {
	if _, err := e.child.DataType(); err != nil {
		return common.DefaultType, err
	}
	return common.BoolType, nil
}

func (e *IsNull) SQL() (string, error) {
	s, err := e.child.SQL()
	if err != nil {
		return "", err
	}
	return s + " IS NULL", nil
}

func (e *IsNull) String() string {
	return fmt.Sprintf("(%s IS NULL)", e.child.String())
}

func (e *IsNull) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(IsNullKind, len(children)); err != nil {
		return nil, err
	}
	return NewIsNull(children[0]), nil
}

func (e *IsNull) shallowEqual(other Expression) bool {
	return true
}

// Like is "value LIKE pattern".
type Like struct {
	binary
}

func NewLike(left, right Expression) *Like {
	return &Like{binary{left, right}}
}

func (e *Like) Kind() Kind { return LikeKind }

func (e *Like) Nullable() (bool, error) {
	return eitherNullable(e.left, e.right)
}

func (e *Like) DataType() (common.Type, error) {
	if err := requireType(LikeKind, e.left, common.StringType); err != nil {
		return common.DefaultType, err
	}
	if err := requireType(LikeKind, e.right, common.StringType); err != nil {
		return common.DefaultType, err
	}
	return common.BoolType, nil
}

func (e *Like) SQL() (string, error) {
	l, err := e.left.SQL()
	if err != nil {
		return "", err
	}
	r, err := e.right.SQL()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s LIKE %s", l, r), nil
}

func (e *Like) String() string {
	return fmt.Sprintf("(%s LIKE %s)", e.left.String(), e.right.String())
}

func (e *Like) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(LikeKind, len(children)); err != nil {
		return nil, err
	}
	return NewLike(children[0], children[1]), nil
}

func (e *Like) shallowEqual(other Expression) bool {
	return true
}
