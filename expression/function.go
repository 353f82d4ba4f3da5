package expression

import (
	"slices"
	"strings"

	"mit.edu/dsg/godbopt/common"
)

type AggregatorType int

const (
	AggCount AggregatorType = iota
	AggSum
	AggMin
	AggMax
)

func (a AggregatorType) String() string {
	switch a {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	}
	return "???"
}

// LookupAggregator maps a function name to its aggregator, ignoring case.
func LookupAggregator(name string) (AggregatorType, bool) {
	switch strings.ToLower(name) {
	case "count":
		return AggCount, true
	case "sum":
		return AggSum, true
	case "min":
		return AggMin, true
	case "max":
		return AggMax, true
	}
	return 0, false
}

// AggregateFunction is a bound aggregate call. count takes zero arguments
// (count(*)) or one; the others take exactly one.
type AggregateFunction struct {
	aggType  AggregatorType
	distinct bool
	args     []Expression
}

func NewAggregateFunction(aggType AggregatorType, distinct bool, args ...Expression) (*AggregateFunction, error) {
	if err := checkAggregateArity(aggType, len(args)); err != nil {
		return nil, err
	}
	return &AggregateFunction{aggType: aggType, distinct: distinct, args: slices.Clone(args)}, nil
}

func checkAggregateArity(aggType AggregatorType, n int) error {
	if n == 1 || (n == 0 && aggType == AggCount) {
		return nil
	}
	return common.NewError(common.ArityError, "%s does not accept %d arguments", aggType, n)
}

func (e *AggregateFunction) Kind() Kind {
	return AggregateFunctionKind
}

func (e *AggregateFunction) Aggregator() AggregatorType {
	return e.aggType
}

func (e *AggregateFunction) IsDistinct() bool {
	return e.distinct
}

func (e *AggregateFunction) Children() []Expression {
	return e.args
}

func (e *AggregateFunction) WithChildren(children []Expression) (Expression, error) {
	f, err := NewAggregateFunction(e.aggType, e.distinct, children...)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (e *AggregateFunction) Nullable() (bool, error) {
	for _, a := range e.args {
		if _, err := a.Nullable(); err != nil {
			return false, err
		}
	}
	// count of an empty input is 0; the others are NULL.
	return e.aggType != AggCount, nil
}

func (e *AggregateFunction) DataType() (common.Type, error) {
	switch e.aggType {
	case AggCount:
		for _, a := range e.args {
			if _, err := a.DataType(); err != nil {
				return common.DefaultType, err
			}
		}
		return common.IntType, nil
	case AggSum:
		if err := requireType(AggregateFunctionKind, e.args[0], common.IntType); err != nil {
			return common.DefaultType, err
		}
		return common.IntType, nil
	default:
		return e.args[0].DataType()
	}
}

func (e *AggregateFunction) SQL() (string, error) {
	var b strings.Builder
	b.WriteString(e.aggType.String())
	b.WriteString("(")
	if e.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(e.args) == 0 {
		b.WriteString("*")
	}
	for i, a := range e.args {
		if i > 0 {
			b.WriteString(", ")
		}
		s, err := a.SQL()
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteString(")")
	return b.String(), nil
}

func (e *AggregateFunction) String() string {
	if len(e.args) == 0 {
		return e.aggType.String() + "(*)"
	}
	return formatCall(e.aggType.String(), e.distinct, e.args)
}

func (e *AggregateFunction) shallowEqual(other Expression) bool {
	o, ok := other.(*AggregateFunction)
	return ok && e.aggType == o.aggType && e.distinct == o.distinct
}
