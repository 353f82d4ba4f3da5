package common

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

type GoDBErrorCode int

const (
	// DuplicateObjectError indicates an attempt to create a table or index
	// that already exists in the catalog.
	DuplicateObjectError GoDBErrorCode = iota
	// NoSuchObjectError indicates a request for a table, index or database that
	// does not exist in the catalog.
	NoSuchObjectError
	// BindingStateError indicates that a semantic accessor (name, expression id,
	// qualifier, type, nullability) was invoked on an unbound node. It is always
	// a defect in the caller: the binder was not run, or a rewrite reintroduced
	// an unbound node.
	BindingStateError
	// ArityError indicates that an expression or operator was given the wrong
	// number of children.
	ArityError
	// UnresolvedReferenceError indicates that a referenced name did not resolve
	// against the schema or the current scope.
	UnresolvedReferenceError
	// AmbiguousReferenceError indicates that a referenced name resolved to more
	// than one column.
	AmbiguousReferenceError
	// ReferenceOutOfScopeError indicates a reference to a column that exists in
	// the query but is not visible where it is used.
	ReferenceOutOfScopeError
	// TypeMismatchError indicates an ill-typed bound expression.
	TypeMismatchError
	// StaleGroupReferenceError indicates that a memo group id was used after its
	// group was merged into another. The caller must re-resolve the id.
	StaleGroupReferenceError
	// IncompleteSearchError indicates that no group expression satisfies the
	// requested properties yet. More optimization passes are needed.
	IncompleteSearchError
	// LogicalPropertiesMismatchError indicates an attempt to place an expression
	// into a group whose logical properties differ from its own.
	LogicalPropertiesMismatchError
	// PropertyNotProvidedError indicates that a group expression was recorded
	// as the best plan for physical properties it does not provide.
	PropertyNotProvidedError
	// SearchSpaceLimitError indicates that the memo reached its configured
	// group expression budget.
	SearchSpaceLimitError
	// LockTimeoutError is returned when a database lock could not be acquired
	// in time.
	LockTimeoutError
	// SchemaChangedError indicates that a table resolved during binding changed
	// before the binding pass completed.
	SchemaChangedError
)

func (ec GoDBErrorCode) String() string {
	switch ec {
	case DuplicateObjectError:
		return "DuplicateObjectError"
	case NoSuchObjectError:
		return "NoSuchObjectError"
	case BindingStateError:
		return "BindingStateError"
	case ArityError:
		return "ArityError"
	case UnresolvedReferenceError:
		return "UnresolvedReferenceError"
	case AmbiguousReferenceError:
		return "AmbiguousReferenceError"
	case ReferenceOutOfScopeError:
		return "ReferenceOutOfScopeError"
	case TypeMismatchError:
		return "TypeMismatchError"
	case StaleGroupReferenceError:
		return "StaleGroupReferenceError"
	case IncompleteSearchError:
		return "IncompleteSearchError"
	case LogicalPropertiesMismatchError:
		return "LogicalPropertiesMismatchError"
	case PropertyNotProvidedError:
		return "PropertyNotProvidedError"
	case SearchSpaceLimitError:
		return "SearchSpaceLimitError"
	case LockTimeoutError:
		return "LockTimeoutError"
	case SchemaChangedError:
		return "SchemaChangedError"
	}
	return "unknown"
}

// GoDBError is the custom error type for the database engine.
// It wraps a specific GoDBErrorCode with a detailed message.
//
// Callers classify errors by code (see IsError) so that the rule engine and
// the binder can tell "your code is wrong" (BindingStateError, ArityError)
// from "the query is invalid" (reference errors) from "keep searching"
// (IncompleteSearchError).
type GoDBError struct {
	Code      GoDBErrorCode
	ErrString string
}

func (e GoDBError) Error() string {
	return fmt.Sprintf("err: %s; msg: %s", e.Code.String(), e.ErrString)
}

// NewError builds a GoDBError with the given code and annotates it with a
// stack trace.
func NewError(code GoDBErrorCode, format string, args ...any) error {
	return errors.WithStackDepth(GoDBError{
		Code:      code,
		ErrString: fmt.Sprintf(format, args...),
	}, 1)
}

// CodeOf extracts the GoDBErrorCode from err. The second result is false when
// err does not wrap a GoDBError.
func CodeOf(err error) (GoDBErrorCode, bool) {
	var gerr GoDBError
	if errors.As(err, &gerr) {
		return gerr.Code, true
	}
	return 0, false
}

// IsError reports whether err wraps a GoDBError with the given code.
func IsError(err error, code GoDBErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
