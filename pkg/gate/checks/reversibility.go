package checks

import (
	"context"
	"fmt"

	"github.com/Ledgerline-Labs/greenlight/pkg/gate"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy"
)

// RollbackAnnotationSuffix names the annotation that documents a rollback
// plan for a resource.
const RollbackAnnotationSuffix = "/rollback-plan"

// Reversibility verifies that every artifact documents how it can be rolled
// back: either a non-empty rollback-plan annotation or a rollback mapping
// with a named strategy in the document body. Presence only; the plan is
// never executed.
type Reversibility struct {
	annotation string
}

// NewReversibility scopes the annotation key to an org namespace. Empty uses
// the default.
func NewReversibility(org string) *Reversibility {
	if org == "" {
		org = policy.DefaultOrg
	}
	return &Reversibility{annotation: org + RollbackAnnotationSuffix}
}

func (*Reversibility) ID() string   { return "reversibility" }
func (*Reversibility) Name() string { return "Reversibility" }

func (r *Reversibility) Run(ctx context.Context, rc *gate.RunContext) *gate.CheckResult {
	res := &gate.CheckResult{ID: r.ID(), Name: r.Name(), Passed: true}

	for i := range rc.Pipeline.Outcomes {
		out := &rc.Pipeline.Outcomes[i]
		if out.Descriptor == nil {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s: no descriptor to inspect for rollback metadata", out.Subject()))
			continue
		}

		if out.Descriptor.Annotations[r.annotation] != "" {
			continue
		}
		if hasRollbackMapping(out.Merge.Merged) {
			continue
		}

		res.Diagnostics = append(res.Diagnostics,
			fmt.Sprintf("%s: no rollback plan (annotation %q or rollback.strategy)", out.Subject(), r.annotation))
	}

	res.Passed = len(res.Diagnostics) == 0
	return res
}

func hasRollbackMapping(doc map[string]any) bool {
	rollback, ok := doc["rollback"].(map[string]any)
	if !ok {
		return false
	}
	strategy, _ := rollback["strategy"].(string)
	return strategy != ""
}
