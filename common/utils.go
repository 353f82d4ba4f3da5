package common

import "fmt"

// Assert panics with the formatted message if cond is false. It guards
// internal invariants; conditions a caller can act on are returned as errors.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
