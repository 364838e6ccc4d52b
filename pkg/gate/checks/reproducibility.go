package checks

import (
	"context"
	"fmt"

	"github.com/Ledgerline-Labs/greenlight/pkg/canonicalize"
	"github.com/Ledgerline-Labs/greenlight/pkg/gate"
	"github.com/Ledgerline-Labs/greenlight/pkg/normalize"
)

// Reproducibility re-derives each artifact from its original inputs twice
// and compares canonical content hashes. A divergence means some stage is
// not a pure function of its inputs, which would make the gate verdict
// unrepeatable.
type Reproducibility struct{}

// NewReproducibility returns the reproducibility dimension.
func NewReproducibility() *Reproducibility { return &Reproducibility{} }

func (*Reproducibility) ID() string   { return "reproducibility" }
func (*Reproducibility) Name() string { return "Reproducibility" }

func (r *Reproducibility) Run(ctx context.Context, rc *gate.RunContext) *gate.CheckResult {
	res := &gate.CheckResult{ID: r.ID(), Name: r.Name(), Passed: true}
	env := rc.Pipeline.Env

	for i := range rc.Pipeline.Outcomes {
		out := &rc.Pipeline.Outcomes[i]
		if out.Err != nil {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s: not derivable: %v", out.Subject(), out.Err))
			continue
		}

		first := normalize.Merge(out.Artifact.Base, out.Artifact.Overlay, env)
		second := normalize.Merge(out.Artifact.Base, out.Artifact.Overlay, env)

		h1, err := canonicalize.Hash(first.Merged)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s: hash derivation failed: %v", out.Subject(), err))
			continue
		}
		h2, err := canonicalize.Hash(second.Merged)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s: hash derivation failed: %v", out.Subject(), err))
			continue
		}

		if h1 != h2 {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s: derivations diverge: %s != %s", out.Subject(), h1, h2))
		}
	}

	res.Passed = len(res.Diagnostics) == 0
	return res
}
