package analyzer

import (
	"fmt"

	"mit.edu/dsg/godbopt/common"
)

// BindError reports why a plan could not be bound. It wraps a GoDBError, so
// common.IsError classifies it by Code.
type BindError struct {
	Code common.GoDBErrorCode
	// Location is the path of operators from the root of the plan to the one
	// that failed, e.g. "LogicalProject/LogicalFilter".
	Location string
	// Name is the offending name as written, if any.
	Name string

	cause error
}

func (e *BindError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("cannot bind %s at %s: %v", e.Name, e.Location, e.cause)
	}
	return fmt.Sprintf("cannot bind %s: %v", e.Location, e.cause)
}

func (e *BindError) Unwrap() error {
	return e.cause
}
