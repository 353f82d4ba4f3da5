package expression

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"mit.edu/dsg/godbopt/common"
)

// ExprID is the stable identity the binder assigns to every named expression.
// Two slots with the same ExprID refer to the same column, no matter how many
// operators the column passes through. 0 is never assigned.
type ExprID uint64

func (id ExprID) String() string {
	return fmt.Sprintf("#%d", uint64(id))
}

// ExprIDGenerator hands out ExprIDs. One generator is shared by everything that
// creates named expressions for a single query.
type ExprIDGenerator struct {
	last atomic.Uint64
}

func NewExprIDGenerator() *ExprIDGenerator {
	return &ExprIDGenerator{}
}

// Next returns a fresh ExprID.
func (g *ExprIDGenerator) Next() ExprID {
	return ExprID(g.last.Add(1))
}

// SlotReference is a bound reference to a column produced by some operator.
type SlotReference struct {
	leaf
	exprID    ExprID
	name      string
	dataType  common.Type
	nullable  bool
	qualifier []string
}

func NewSlotReference(id ExprID, name string, dataType common.Type, nullable bool, qualifier []string) *SlotReference {
	return &SlotReference{
		exprID:    id,
		name:      name,
		dataType:  dataType,
		nullable:  nullable,
		qualifier: slices.Clone(qualifier),
	}
}

func (e *SlotReference) Kind() Kind {
	return SlotReferenceKind
}

func (e *SlotReference) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(SlotReferenceKind, len(children)); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *SlotReference) Name() (string, error) {
	return e.name, nil
}

func (e *SlotReference) ExprID() (ExprID, error) {
	return e.exprID, nil
}

func (e *SlotReference) Qualifier() ([]string, error) {
	return slices.Clone(e.qualifier), nil
}

func (e *SlotReference) ToSlot() (*SlotReference, error) {
	return e, nil
}

func (e *SlotReference) Nullable() (bool, error) {
	return e.nullable, nil
}

func (e *SlotReference) DataType() (common.Type, error) {
	return e.dataType, nil
}

// ID returns the slot's ExprID. Slots are always bound, so unlike ExprID it
// cannot fail.
func (e *SlotReference) ID() ExprID {
	return e.exprID
}

// ColumnName returns the unqualified column name.
func (e *SlotReference) ColumnName() string {
	return e.name
}

// Type returns the slot's data type.
func (e *SlotReference) Type() common.Type {
	return e.dataType
}

// IsNullable reports whether the column may hold NULL.
func (e *SlotReference) IsNullable() bool {
	return e.nullable
}

// Qualifiers returns the slot's qualifier path, e.g. [db, table].
func (e *SlotReference) Qualifiers() []string {
	return e.qualifier
}

// WithNullable returns a copy of the slot with the given nullability. Outer
// joins use it to widen the columns of their null-extended side.
func (e *SlotReference) WithNullable(nullable bool) *SlotReference {
	if e.nullable == nullable {
		return e
	}
	c := *e
	c.nullable = nullable
	return &c
}

// WithQualifier returns a copy of the slot with a new qualifier path.
func (e *SlotReference) WithQualifier(qualifier []string) *SlotReference {
	c := *e
	c.qualifier = slices.Clone(qualifier)
	return &c
}

func (e *SlotReference) SQL() (string, error) {
	return e.name, nil
}

func (e *SlotReference) String() string {
	return e.name + e.exprID.String()
}

func (e *SlotReference) shallowEqual(other Expression) bool {
	o, ok := other.(*SlotReference)
	return ok && e.exprID == o.exprID && e.name == o.name && e.dataType == o.dataType &&
		e.nullable == o.nullable && slices.Equal(e.qualifier, o.qualifier)
}

// Alias names the result of its child, e.g. "a + 1 AS b".
type Alias struct {
	unary
	exprID    ExprID
	name      string
	qualifier []string
}

func NewAlias(id ExprID, child Expression, name string) *Alias {
	return &Alias{
		unary:  unary{child: child},
		exprID: id,
		name:   name,
	}
}

func (e *Alias) Kind() Kind {
	return AliasKind
}

func (e *Alias) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(AliasKind, len(children)); err != nil {
		return nil, err
	}
	return &Alias{
		unary:     unary{child: children[0]},
		exprID:    e.exprID,
		name:      e.name,
		qualifier: e.qualifier,
	}, nil
}

func (e *Alias) Name() (string, error) {
	return e.name, nil
}

func (e *Alias) ExprID() (ExprID, error) {
	return e.exprID, nil
}

func (e *Alias) Qualifier() ([]string, error) {
	return slices.Clone(e.qualifier), nil
}

func (e *Alias) ToSlot() (*SlotReference, error) {
	t, err := e.child.DataType()
	if err != nil {
		return nil, err
	}
	n, err := e.child.Nullable()
	if err != nil {
		return nil, err
	}
	return NewSlotReference(e.exprID, e.name, t, n, e.qualifier), nil
}

func (e *Alias) Nullable() (bool, error) {
	return e.child.Nullable()
}

func (e *Alias) DataType() (common.Type, error) {
	return e.child.DataType()
}

func (e *Alias) SQL() (string, error) {
	s, err := e.child.SQL()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s AS `%s`", s, e.name), nil
}

func (e *Alias) String() string {
	return fmt.Sprintf("%s AS `%s`%s", e.child.String(), e.name, e.exprID)
}

func (e *Alias) shallowEqual(other Expression) bool {
	o, ok := other.(*Alias)
	return ok && e.exprID == o.exprID && e.name == o.name && slices.Equal(e.qualifier, o.qualifier)
}

// Literal is a constant.
type Literal struct {
	leaf
	value common.Value
}

func NewLiteral(v common.Value) *Literal {
	common.Assert(!v.IsNil(), "literal of uninitialized value")
	return &Literal{value: v}
}

func (e *Literal) Kind() Kind {
	return LiteralKind
}

func (e *Literal) Value() common.Value {
	return e.value
}

func (e *Literal) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(LiteralKind, len(children)); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Literal) Nullable() (bool, error) {
	return e.value.IsNull(), nil
}

func (e *Literal) DataType() (common.Type, error) {
	return e.value.Type(), nil
}

func (e *Literal) SQL() (string, error) {
	return e.value.String(), nil
}

func (e *Literal) String() string {
	return e.value.String()
}

func (e *Literal) shallowEqual(other Expression) bool {
	o, ok := other.(*Literal)
	return ok && e.value.Equal(o.value)
}

// QualifiedName joins name parts with dots.
func QualifiedName(parts ...string) string {
	return strings.Join(parts, ".")
}
