package expression

import "fmt"

// Kind tags the concrete variant of an expression node.
type Kind uint8

const (
	UnknownKind Kind = iota

	// -- Unbound expressions, produced by the parser --

	UnboundSlotKind
	UnboundAliasKind
	UnboundStarKind
	UnboundFunctionKind

	// -- Bound expressions --

	SlotReferenceKind
	AliasKind
	LiteralKind

	EqualToKind
	NotEqualToKind
	NullSafeEqualKind
	GreaterThanKind
	GreaterThanEqualKind
	LessThanKind
	LessThanEqualKind

	AndKind
	OrKind
	NotKind
	IsNullKind
	LikeKind

	AddKind
	SubtractKind
	MultiplyKind
	DivideKind
	ModKind

	AggregateFunctionKind

	// This should be last.
	numKinds
)

// VariadicArity is the arity of kinds whose child count depends on the
// instance (functions).
const VariadicArity = -1

type kindInfo struct {
	name    string
	arity   int
	symbol  string
	unbound bool
}

var kindTab = [numKinds]kindInfo{
	UnknownKind: {name: "unknown"},

	UnboundSlotKind:     {name: "UnboundSlot", arity: 0, unbound: true},
	UnboundAliasKind:    {name: "UnboundAlias", arity: 1, unbound: true},
	UnboundStarKind:     {name: "UnboundStar", arity: 0, unbound: true},
	UnboundFunctionKind: {name: "UnboundFunction", arity: VariadicArity, unbound: true},

	SlotReferenceKind: {name: "SlotReference", arity: 0},
	AliasKind:         {name: "Alias", arity: 1},
	LiteralKind:       {name: "Literal", arity: 0},

	EqualToKind:          {name: "EqualTo", arity: 2, symbol: "="},
	NotEqualToKind:       {name: "NotEqualTo", arity: 2, symbol: "!="},
	NullSafeEqualKind:    {name: "NullSafeEqual", arity: 2, symbol: "<=>"},
	GreaterThanKind:      {name: "GreaterThan", arity: 2, symbol: ">"},
	GreaterThanEqualKind: {name: "GreaterThanEqual", arity: 2, symbol: ">="},
	LessThanKind:         {name: "LessThan", arity: 2, symbol: "<"},
	LessThanEqualKind:    {name: "LessThanEqual", arity: 2, symbol: "<="},

	AndKind:    {name: "And", arity: 2, symbol: "AND"},
	OrKind:     {name: "Or", arity: 2, symbol: "OR"},
	NotKind:    {name: "Not", arity: 1, symbol: "NOT"},
	IsNullKind: {name: "IsNull", arity: 1, symbol: "IS NULL"},
	LikeKind:   {name: "Like", arity: 2, symbol: "LIKE"},

	AddKind:      {name: "Add", arity: 2, symbol: "+"},
	SubtractKind: {name: "Subtract", arity: 2, symbol: "-"},
	MultiplyKind: {name: "Multiply", arity: 2, symbol: "*"},
	DivideKind:   {name: "Divide", arity: 2, symbol: "/"},
	ModKind:      {name: "Mod", arity: 2, symbol: "%"},

	AggregateFunctionKind: {name: "AggregateFunction", arity: VariadicArity},
}

func (k Kind) String() string {
	if k >= numKinds {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return kindTab[k].name
}

// Arity returns the fixed number of children of the kind, or VariadicArity.
func (k Kind) Arity() int {
	return kindTab[k].arity
}

// Symbol returns the operator symbol used when rendering the kind, if any.
func (k Kind) Symbol() string {
	return kindTab[k].symbol
}

// IsUnbound reports whether the kind only exists before binding.
func (k Kind) IsUnbound() bool {
	return kindTab[k].unbound
}

// IsComparison reports whether the kind is a binary comparison predicate.
func (k Kind) IsComparison() bool {
	return k >= EqualToKind && k <= LessThanEqualKind
}

// IsArithmetic reports whether the kind is a binary arithmetic operator.
func (k Kind) IsArithmetic() bool {
	return k >= AddKind && k <= ModKind
}
