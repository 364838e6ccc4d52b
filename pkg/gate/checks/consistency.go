// Package checks implements the four gate dimensions. Each check is a pure
// reader over the run context; findings surface as diagnostics, never as
// mutations or early exits.
package checks

import (
	"context"
	"fmt"

	"github.com/Ledgerline-Labs/greenlight/pkg/gate"
	"github.com/Ledgerline-Labs/greenlight/pkg/schema"
)

// Consistency re-derives the structural and policy verdicts for every
// artifact from the shared inputs. It does not trust the pipeline's recorded
// outcomes: the same pure functions are evaluated again, so a pass here means
// the set is clean under independent evaluation.
type Consistency struct{}

// NewConsistency returns the consistency dimension.
func NewConsistency() *Consistency { return &Consistency{} }

func (*Consistency) ID() string   { return "consistency" }
func (*Consistency) Name() string { return "Consistency" }

func (c *Consistency) Run(ctx context.Context, rc *gate.RunContext) *gate.CheckResult {
	res := &gate.CheckResult{ID: c.ID(), Name: c.Name(), Passed: true}

	for i := range rc.Pipeline.Outcomes {
		out := &rc.Pipeline.Outcomes[i]

		if out.Err != nil {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s: evaluation error: %v", out.Subject(), out.Err))
			continue
		}
		if out.Descriptor == nil {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s: no descriptor derived", out.Subject()))
			continue
		}

		if contract := rc.Contracts[out.Descriptor.Kind]; contract != nil {
			v := schema.Validate(out.Merge.Merged, contract)
			for _, fe := range v.Errors {
				res.Diagnostics = append(res.Diagnostics,
					fmt.Sprintf("%s: %s", out.Subject(), fe.Error()))
			}
		}

		for _, violation := range rc.Evaluator.Evaluate(out.Descriptor) {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s: %s", out.Subject(), violation.String()))
		}
	}

	res.Passed = len(res.Diagnostics) == 0
	return res
}
