package memo

import (
	"runtime"

	"github.com/cockroachdb/errors"
)

// catchRuleError converts a panic raised by a rule into an error. Values that
// are not errors are re-raised: they come from broken invariants, and the memo
// may be in an inconsistent state.
func catchRuleError(rule Rule, r any) error {
	err, ok := r.(error)
	if !ok {
		panic(r)
	}
	if errors.HasInterface(err, (*runtime.Error)(nil)) {
		err = errors.HandleAsAssertionFailure(err)
	}
	return errors.Wrapf(err, "rule %s", rule.Name())
}
