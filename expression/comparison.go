package expression

import (
	"fmt"

	"mit.edu/dsg/godbopt/common"
)

// comparisonPredicate is shared by every binary comparison. It fixes the
// nullability rule (NULL if either side is NULL) and the result type, so a new
// comparison kind only supplies its tag, rendering and constructor.
type comparisonPredicate struct {
	binary
}

func (c comparisonPredicate) Nullable() (bool, error) {
	return eitherNullable(c.left, c.right)
}

func (c comparisonPredicate) DataType() (common.Type, error) {
	lt, err := c.left.DataType()
	if err != nil {
		return common.DefaultType, err
	}
	rt, err := c.right.DataType()
	if err != nil {
		return common.DefaultType, err
	}
	if lt != rt {
		return common.DefaultType, common.NewError(common.TypeMismatchError,
			"cannot compare %s with %s", lt, rt)
	}
	return common.BoolType, nil
}

func (c comparisonPredicate) sql(k Kind) (string, error) {
	l, err := c.left.SQL()
	if err != nil {
		return "", err
	}
	r, err := c.right.SQL()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", l, k.Symbol(), r), nil
}

func (c comparisonPredicate) format(k Kind) string {
	return fmt.Sprintf("(%s %s %s)", c.left.String(), k.Symbol(), c.right.String())
}

func (c comparisonPredicate) shallowEqual(other Expression) bool {
	return true
}

// EqualTo is "a = b".
type EqualTo struct {
	comparisonPredicate
}

func NewEqualTo(left, right Expression) *EqualTo {
	return &EqualTo{comparisonPredicate{binary{left, right}}}
}

func (e *EqualTo) Kind() Kind { return EqualToKind }

func (e *EqualTo) SQL() (string, error) { return e.sql(EqualToKind) }

func (e *EqualTo) String() string { return e.format(EqualToKind) }

func (e *EqualTo) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(EqualToKind, len(children)); err != nil {
		return nil, err
	}
	return NewEqualTo(children[0], children[1]), nil
}

// NotEqualTo is "a != b".
type NotEqualTo struct {
	comparisonPredicate
}

func NewNotEqualTo(left, right Expression) *NotEqualTo {
	return &NotEqualTo{comparisonPredicate{binary{left, right}}}
}

func (e *NotEqualTo) Kind() Kind { return NotEqualToKind }

func (e *NotEqualTo) SQL() (string, error) { return e.sql(NotEqualToKind) }

func (e *NotEqualTo) String() string { return e.format(NotEqualToKind) }

func (e *NotEqualTo) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(NotEqualToKind, len(children)); err != nil {
		return nil, err
	}
	return NewNotEqualTo(children[0], children[1]), nil
}

// NullSafeEqual is "a <=> b". Unlike the other comparisons it treats two NULLs
// as equal and therefore never produces NULL.
type NullSafeEqual struct {
	comparisonPredicate
}

func NewNullSafeEqual(left, right Expression) *NullSafeEqual {
	return &NullSafeEqual{comparisonPredicate{binary{left, right}}}
}

func (e *NullSafeEqual) Kind() Kind { return NullSafeEqualKind }

func (e *NullSafeEqual) Nullable() (bool, error) {
	if _, err := eitherNullable(e.left, e.right); err != nil {
		return false, err
	}
	return false, nil
}

func (e *NullSafeEqual) SQL() (string, error) { return e.sql(NullSafeEqualKind) }

func (e *NullSafeEqual) String() string { return e.format(NullSafeEqualKind) }

func (e *NullSafeEqual) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(NullSafeEqualKind, len(children)); err != nil {
		return nil, err
	}
	return NewNullSafeEqual(children[0], children[1]), nil
}

// GreaterThan is "a > b".
type GreaterThan struct {
	comparisonPredicate
}

func NewGreaterThan(left, right Expression) *GreaterThan {
	return &GreaterThan{comparisonPredicate{binary{left, right}}}
}

func (e *GreaterThan) Kind() Kind { return GreaterThanKind }

func (e *GreaterThan) SQL() (string, error) { return e.sql(GreaterThanKind) }

func (e *GreaterThan) String() string { return e.format(GreaterThanKind) }

func (e *GreaterThan) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(GreaterThanKind, len(children)); err != nil {
		return nil, err
	}
	return NewGreaterThan(children[0], children[1]), nil
}

// GreaterThanEqual is "a >= b".
type GreaterThanEqual struct {
	comparisonPredicate
}

func NewGreaterThanEqual(left, right Expression) *GreaterThanEqual {
	return &GreaterThanEqual{comparisonPredicate{binary{left, right}}}
}

func (e *GreaterThanEqual) Kind() Kind { return GreaterThanEqualKind }

func (e *GreaterThanEqual) SQL() (string, error) { return e.sql(GreaterThanEqualKind) }

func (e *GreaterThanEqual) String() string { return e.format(GreaterThanEqualKind) }

func (e *GreaterThanEqual) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(GreaterThanEqualKind, len(children)); err != nil {
		return nil, err
	}
	return NewGreaterThanEqual(children[0], children[1]), nil
}

// LessThan is "a < b".
type LessThan struct {
	comparisonPredicate
}

func NewLessThan(left, right Expression) *LessThan {
	return &LessThan{comparisonPredicate{binary{left, right}}}
}

func (e *LessThan) Kind() Kind { return LessThanKind }

func (e *LessThan) SQL() (string, error) { return e.sql(LessThanKind) }

func (e *LessThan) String() string { return e.format(LessThanKind) }

func (e *LessThan) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(LessThanKind, len(children)); err != nil {
		return nil, err
	}
	return NewLessThan(children[0], children[1]), nil
}

// LessThanEqual is "a <= b".
type LessThanEqual struct {
	comparisonPredicate
}

func NewLessThanEqual(left, right Expression) *LessThanEqual {
	return &LessThanEqual{comparisonPredicate{binary{left, right}}}
}

func (e *LessThanEqual) Kind() Kind { return LessThanEqualKind }

func (e *LessThanEqual) SQL() (string, error) { return e.sql(LessThanEqualKind) }

func (e *LessThanEqual) String() string { return e.format(LessThanEqualKind) }

func (e *LessThanEqual) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(LessThanEqualKind, len(children)); err != nil {
		return nil, err
	}
	return NewLessThanEqual(children[0], children[1]), nil
}

// NewComparison builds the comparison of the given kind.
func NewComparison(k Kind, left, right Expression) (Expression, error) {
	switch k {
	case EqualToKind:
		return NewEqualTo(left, right), nil
	case NotEqualToKind:
		return NewNotEqualTo(left, right), nil
	case NullSafeEqualKind:
		return NewNullSafeEqual(left, right), nil
	case GreaterThanKind:
		return NewGreaterThan(left, right), nil
	case GreaterThanEqualKind:
		return NewGreaterThanEqual(left, right), nil
	case LessThanKind:
		return NewLessThan(left, right), nil
	case LessThanEqualKind:
		return NewLessThanEqual(left, right), nil
	}
	return nil, common.NewError(common.TypeMismatchError, "%s is not a comparison", k)
}
