package common

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

type Type int8

const (
	DefaultType Type = iota
	IntType
	StringType
	BoolType
)

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	case BoolType:
		return "bool"
	}
	return "unknown"
}

// ObjectID identifies a catalog object: a table, an index or a database.
type ObjectID uint32

const InvalidObjectID ObjectID = 0

// GroupID identifies a memo group. Groups have numbers greater than 0; a
// GroupID of 0 indicates an unknown group.
type GroupID uint32

const InvalidGroupID GroupID = 0

func (g GroupID) String() string {
	return fmt.Sprintf("G%d", uint32(g))
}

// GroupExpressionID identifies a group expression within a memo. As with
// groups, 0 is reserved.
type GroupExpressionID uint32

const InvalidGroupExpressionID GroupExpressionID = 0

// Value is a constant: the payload of a literal. The zero Value is
// uninitialized and distinct from a SQL NULL.
type Value struct {
	t    Type
	null bool
	i    int64
	s    string
	b    bool
}

func (v Value) IsNil() bool {
	return v.t == DefaultType
}

func NewIntValue(v int64) Value {
	return Value{t: IntType, i: v}
}

func NewStringValue(v string) Value {
	return Value{t: StringType, s: v}
}

func NewBoolValue(v bool) Value {
	return Value{t: BoolType, b: v}
}

// NewNull returns the NULL of type t.
func NewNull(t Type) Value {
	Assert(t != DefaultType, "NULL without a type")
	return Value{t: t, null: true}
}

func (v Value) Type() Type {
	return v.t
}

func (v Value) IsNull() bool {
	return v.null
}

func (v Value) IntValue() int64 {
	Assert(v.t == IntType && !v.null, "IntValue on %s", v)
	return v.i
}

func (v Value) StringValue() string {
	Assert(v.t == StringType && !v.null, "StringValue on %s", v)
	return v.s
}

func (v Value) BoolValue() bool {
	Assert(v.t == BoolType && !v.null, "BoolValue on %s", v)
	return v.b
}

// Equal reports whether two values have the same type, nullness and payload.
// Unlike SQL equality, two NULLs of the same type are equal.
func (v Value) Equal(other Value) bool {
	return v.t == other.t && v.Compare(other) == 0
}

// Compare orders two values of the same type. NULL sorts before everything
// else.
func (v Value) Compare(other Value) int {
	Assert(v.t == other.t, "comparing %s with %s", v.t, other.t)
	switch {
	case v.null || other.null:
		return boolCompare(!v.null, !other.null)
	case v.t == IntType:
		return cmp.Compare(v.i, other.i)
	case v.t == StringType:
		return strings.Compare(v.s, other.s)
	case v.t == BoolType:
		return boolCompare(v.b, other.b)
	}
	return 0
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

// String renders the value the way it would appear in SQL text.
func (v Value) String() string {
	switch {
	case v.null:
		return "NULL"
	case v.t == IntType:
		return strconv.FormatInt(v.i, 10)
	case v.t == StringType:
		return "'" + v.s + "'"
	case v.t == BoolType:
		return strings.ToUpper(strconv.FormatBool(v.b))
	}
	return "<nil>"
}
