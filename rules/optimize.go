package rules

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/golang/glog"
	"mit.edu/dsg/godbopt/config"
	"mit.edu/dsg/godbopt/memo"
)

// Result summarizes an Optimize run.
type Result struct {
	// Iterations is the number of passes over the memo that were started.
	Iterations int
	// Fixpoint is true when the last pass created no new group expression.
	Fixpoint bool
}

// DefaultRules returns the exploration rules followed by the implementation
// rules.
func DefaultRules() []memo.Rule {
	return append([]memo.Rule{JoinCommute{}}, ImplementationRules()...)
}

// Optimize applies rules to every group of m, repeating until a pass adds
// nothing or cfg.MaxIterations passes have run. Groups created during a pass
// are visited by the next one.
func Optimize(ctx context.Context, m *memo.Memo, rules []memo.Rule, cfg config.OptimizerConfig) (Result, error) {
	var res Result
	for res.Iterations < cfg.MaxIterations {
		res.Iterations++
		created := 0
		for _, g := range m.Groups() {
			for _, rule := range rules {
				if err := ctx.Err(); err != nil {
					return res, err
				}
				// A rule fired earlier in this pass may have merged g away.
				id, err := m.Resolve(g.ID())
				if err != nil {
					return res, err
				}
				ids, err := m.ApplyRule(ctx, id, rule)
				if err != nil {
					return res, errors.Wrapf(err, "applying %s to %s", rule.Name(), id)
				}
				created += len(ids)
			}
		}
		glog.V(1).Infof("optimize: pass %d created %d expressions, memo has %d groups",
			res.Iterations, created, m.NumGroups())
		if created == 0 {
			res.Fixpoint = true
			return res, nil
		}
	}
	glog.Warningf("optimize: no fixpoint after %d passes", res.Iterations)
	return res, nil
}
