package expression

import (
	"fmt"
	"slices"
	"strings"

	"mit.edu/dsg/godbopt/common"
)

// UnboundSlot is a column reference as written in the query, e.g. "t.x". The
// binder replaces it with a SlotReference.
type UnboundSlot struct {
	leaf
	nameParts []string
}

func NewUnboundSlot(nameParts ...string) *UnboundSlot {
	common.Assert(len(nameParts) > 0, "unbound slot without a name")
	return &UnboundSlot{nameParts: slices.Clone(nameParts)}
}

func (e *UnboundSlot) Kind() Kind {
	return UnboundSlotKind
}

// NameParts returns the syntactic name of the reference. It is the only
// accessor available before binding.
func (e *UnboundSlot) NameParts() []string {
	return e.nameParts
}

func (e *UnboundSlot) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(UnboundSlotKind, len(children)); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *UnboundSlot) Name() (string, error) {
	return "", unboundError(e, "Name")
}

func (e *UnboundSlot) ExprID() (ExprID, error) {
	return 0, unboundError(e, "ExprID")
}

func (e *UnboundSlot) Qualifier() ([]string, error) {
	return nil, unboundError(e, "Qualifier")
}

func (e *UnboundSlot) ToSlot() (*SlotReference, error) {
	return nil, unboundError(e, "ToSlot")
}

func (e *UnboundSlot) Nullable() (bool, error) {
	return false, unboundError(e, "Nullable")
}

func (e *UnboundSlot) DataType() (common.Type, error) {
	return common.DefaultType, unboundError(e, "DataType")
}

func (e *UnboundSlot) SQL() (string, error) {
	return "", unboundError(e, "SQL")
}

func (e *UnboundSlot) String() string {
	return "'" + QualifiedName(e.nameParts...)
}

func (e *UnboundSlot) shallowEqual(other Expression) bool {
	o, ok := other.(*UnboundSlot)
	return ok && slices.Equal(e.nameParts, o.nameParts)
}

// UnboundAlias is a select-list item before binding. The alias name is empty
// when the query did not give one; the binder then derives it from the child.
type UnboundAlias struct {
	unary
	alias string
}

func NewUnboundAlias(child Expression) *UnboundAlias {
	return &UnboundAlias{unary: unary{child: child}}
}

func NewUnboundAliasWithName(child Expression, alias string) *UnboundAlias {
	return &UnboundAlias{unary: unary{child: child}, alias: alias}
}

func (e *UnboundAlias) Kind() Kind {
	return UnboundAliasKind
}

// AliasName returns the alias as written, or "" if none was given.
func (e *UnboundAlias) AliasName() string {
	return e.alias
}

func (e *UnboundAlias) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(UnboundAliasKind, len(children)); err != nil {
		return nil, err
	}
	return &UnboundAlias{unary: unary{child: children[0]}, alias: e.alias}, nil
}

func (e *UnboundAlias) Name() (string, error) {
	return "", unboundError(e, "Name")
}

func (e *UnboundAlias) ExprID() (ExprID, error) {
	return 0, unboundError(e, "ExprID")
}

func (e *UnboundAlias) Qualifier() ([]string, error) {
	return nil, unboundError(e, "Qualifier")
}

func (e *UnboundAlias) ToSlot() (*SlotReference, error) {
	return nil, unboundError(e, "ToSlot")
}

func (e *UnboundAlias) Nullable() (bool, error) {
	return false, unboundError(e, "Nullable")
}

func (e *UnboundAlias) DataType() (common.Type, error) {
	return common.DefaultType, unboundError(e, "DataType")
}

func (e *UnboundAlias) SQL() (string, error) {
	return "", unboundError(e, "SQL")
}

func (e *UnboundAlias) String() string {
	alias := e.alias
	if alias == "" {
		alias = "None"
	}
	return fmt.Sprintf("UnboundAlias(%s, %s)", e.child.String(), alias)
}

func (e *UnboundAlias) shallowEqual(other Expression) bool {
	o, ok := other.(*UnboundAlias)
	return ok && e.alias == o.alias
}

// UnboundStar is "*" or "t.*" in a select list.
type UnboundStar struct {
	leaf
	qualifier []string
}

func NewUnboundStar(qualifier ...string) *UnboundStar {
	return &UnboundStar{qualifier: slices.Clone(qualifier)}
}

func (e *UnboundStar) Kind() Kind {
	return UnboundStarKind
}

// TargetQualifier returns the syntactic qualifier, empty for a bare "*".
func (e *UnboundStar) TargetQualifier() []string {
	return e.qualifier
}

func (e *UnboundStar) WithChildren(children []Expression) (Expression, error) {
	if err := checkArity(UnboundStarKind, len(children)); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *UnboundStar) Name() (string, error) {
	return "", unboundError(e, "Name")
}

func (e *UnboundStar) ExprID() (ExprID, error) {
	return 0, unboundError(e, "ExprID")
}

func (e *UnboundStar) Qualifier() ([]string, error) {
	return nil, unboundError(e, "Qualifier")
}

func (e *UnboundStar) ToSlot() (*SlotReference, error) {
	return nil, unboundError(e, "ToSlot")
}

func (e *UnboundStar) Nullable() (bool, error) {
	return false, unboundError(e, "Nullable")
}

func (e *UnboundStar) DataType() (common.Type, error) {
	return common.DefaultType, unboundError(e, "DataType")
}

func (e *UnboundStar) SQL() (string, error) {
	return "", unboundError(e, "SQL")
}

func (e *UnboundStar) String() string {
	if len(e.qualifier) == 0 {
		return "*"
	}
	return QualifiedName(e.qualifier...) + ".*"
}

func (e *UnboundStar) shallowEqual(other Expression) bool {
	o, ok := other.(*UnboundStar)
	return ok && slices.Equal(e.qualifier, o.qualifier)
}

// UnboundFunction is a function call whose name has not been looked up yet.
type UnboundFunction struct {
	name     string
	distinct bool
	args     []Expression
}

func NewUnboundFunction(name string, distinct bool, args ...Expression) *UnboundFunction {
	return &UnboundFunction{name: name, distinct: distinct, args: slices.Clone(args)}
}

func (e *UnboundFunction) Kind() Kind {
	return UnboundFunctionKind
}

func (e *UnboundFunction) FunctionName() string {
	return e.name
}

func (e *UnboundFunction) IsDistinct() bool {
	return e.distinct
}

func (e *UnboundFunction) Children() []Expression {
	return e.args
}

func (e *UnboundFunction) WithChildren(children []Expression) (Expression, error) {
	return NewUnboundFunction(e.name, e.distinct, children...), nil
}

func (e *UnboundFunction) Nullable() (bool, error) {
	return false, unboundError(e, "Nullable")
}

func (e *UnboundFunction) DataType() (common.Type, error) {
	return common.DefaultType, unboundError(e, "DataType")
}

func (e *UnboundFunction) SQL() (string, error) {
	return "", unboundError(e, "SQL")
}

func (e *UnboundFunction) String() string {
	return "'" + formatCall(e.name, e.distinct, e.args)
}

func (e *UnboundFunction) shallowEqual(other Expression) bool {
	o, ok := other.(*UnboundFunction)
	return ok && e.name == o.name && e.distinct == o.distinct
}

func formatCall(name string, distinct bool, args []Expression) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteString("(")
	if distinct {
		b.WriteString("DISTINCT ")
	}
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteString(")")
	return b.String()
}
