package common

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestValueCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int less", NewIntValue(1), NewIntValue(2), -1},
		{"int equal", NewIntValue(7), NewIntValue(7), 0},
		{"string greater", NewStringValue("b"), NewStringValue("a"), 1},
		{"bool", NewBoolValue(false), NewBoolValue(true), -1},
		{"null first", NewNull(IntType), NewIntValue(-100), -1},
		{"both null", NewNull(StringType), NewNull(StringType), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestValueEqualAndString(t *testing.T) {
	assert.True(t, NewNull(IntType).Equal(NewNull(IntType)))
	assert.False(t, NewNull(IntType).Equal(NewNull(StringType)))
	assert.False(t, NewNull(IntType).Equal(NewIntValue(0)))
	assert.True(t, NewStringValue("x").Equal(NewStringValue("x")))

	assert.Equal(t, "NULL", NewNull(BoolType).String())
	assert.Equal(t, "42", NewIntValue(42).String())
	assert.Equal(t, "'x'", NewStringValue("x").String())
	assert.Equal(t, "TRUE", NewBoolValue(true).String())
	assert.True(t, Value{}.IsNil())
}

func TestErrorCodes(t *testing.T) {
	err := NewError(StaleGroupReferenceError, "group %s was merged", GroupID(3))
	assert.True(t, IsError(err, StaleGroupReferenceError))
	assert.False(t, IsError(err, IncompleteSearchError))
	assert.Contains(t, err.Error(), "StaleGroupReferenceError")
	assert.Contains(t, err.Error(), "G3")

	// Codes survive wrapping.
	wrapped := errors.Wrap(fmt.Errorf("outer: %w", err), "context")
	code, ok := CodeOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, StaleGroupReferenceError, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsError(nil, ArityError))
}

func TestAssert(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "fine") })
	assert.PanicsWithValue(t, "bad 1", func() { Assert(false, "bad %d", 1) })
}
