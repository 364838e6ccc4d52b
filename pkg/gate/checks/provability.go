package checks

import (
	"context"
	"fmt"

	"github.com/Ledgerline-Labs/greenlight/pkg/evidence"
	"github.com/Ledgerline-Labs/greenlight/pkg/gate"
)

// Provability audits the evidence trail: every artifact must have the full
// stage chain recorded in strictly ascending timestamp order, with no
// incomplete evaluations. A gap anywhere means the run cannot be proven
// after the fact, so the dimension fails.
type Provability struct{}

// NewProvability returns the provability dimension.
func NewProvability() *Provability { return &Provability{} }

func (*Provability) ID() string   { return "provability" }
func (*Provability) Name() string { return "Provability" }

func (p *Provability) Run(ctx context.Context, rc *gate.RunContext) *gate.CheckResult {
	res := &gate.CheckResult{ID: p.ID(), Name: p.Name(), Passed: true}

	for i := range rc.Pipeline.Outcomes {
		out := &rc.Pipeline.Outcomes[i]
		subject := out.Subject()

		if out.Incomplete {
			reason := "evaluation incomplete"
			if out.Err != nil {
				reason = fmt.Sprintf("evaluation incomplete: %v", out.Err)
			}
			res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("%s: %s", subject, reason))
			continue
		}

		records, err := rc.Evidence.List(ctx, evidence.Filter{Subject: subject})
		if err != nil {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s: evidence read failed: %v", subject, err))
			continue
		}

		chain := []evidence.Stage{evidence.StageValidator, evidence.StagePolicy}
		if out.Artifact.HasOverlay() {
			chain = append([]evidence.Stage{evidence.StageNormalizer}, chain...)
		}
		res.Diagnostics = append(res.Diagnostics, auditChain(subject, chain, records)...)
	}

	res.Passed = len(res.Diagnostics) == 0
	return res
}

// auditChain verifies each expected stage left a record and that the latest
// record of each stage strictly precedes the next stage's.
func auditChain(subject string, chain []evidence.Stage, records []evidence.Record) []string {
	var diags []string

	latest := map[evidence.Stage]*evidence.Record{}
	for i := range records {
		rec := &records[i]
		prev, ok := latest[rec.Stage]
		if !ok || rec.Timestamp.After(prev.Timestamp) {
			latest[rec.Stage] = rec
		}
	}

	for _, stage := range chain {
		if latest[stage] == nil {
			diags = append(diags, fmt.Sprintf("%s: no %s record in evidence trail", subject, stage))
		}
	}
	if len(diags) > 0 {
		return diags
	}

	for i := 1; i < len(chain); i++ {
		prev, cur := latest[chain[i-1]], latest[chain[i]]
		if !prev.Timestamp.Before(cur.Timestamp) {
			diags = append(diags, fmt.Sprintf("%s: %s record does not precede %s record",
				subject, chain[i-1], chain[i]))
		}
	}
	return diags
}
