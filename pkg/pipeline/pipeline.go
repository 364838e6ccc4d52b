// Package pipeline drives the per-artifact validation sequence: normalize
// layered configuration, validate structure, evaluate policy, each stage
// leaving an evidence record. Distinct artifacts run in parallel; the shared
// recorder is the only cross-artifact state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/evidence"
	"github.com/Ledgerline-Labs/greenlight/pkg/logging"
	"github.com/Ledgerline-Labs/greenlight/pkg/normalize"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy"
	"github.com/Ledgerline-Labs/greenlight/pkg/schema"
)

// DefaultWorkers bounds concurrent artifact evaluations.
const DefaultWorkers = 4

// DefaultTimeout bounds one artifact's full stage sequence.
const DefaultTimeout = 30 * time.Second

// Outcome is the complete evaluation record for one artifact. A set Err marks
// a system failure; Incomplete means the stage sequence did not finish, which
// downstream provability checking treats as a broken trail.
type Outcome struct {
	Artifact   artifact.Artifact
	Descriptor *artifact.Descriptor
	Merge      normalize.MergeResult
	Validation schema.ValidationResult
	Violations []policy.Violation
	Err        error
	Incomplete bool
}

// Subject returns the evidence subject id, or the artifact name when the
// descriptor never materialized.
func (o *Outcome) Subject() string {
	if o.Descriptor != nil {
		return o.Descriptor.Subject()
	}
	return o.Artifact.Name
}

// Clean reports whether the artifact passed every stage.
func (o *Outcome) Clean() bool {
	return o.Err == nil && !o.Incomplete && o.Validation.Valid && len(o.Violations) == 0
}

// Result aggregates one run over an artifact set.
type Result struct {
	Env      string
	Outcomes []Outcome
}

// SystemErrors returns every per-artifact system error.
func (r *Result) SystemErrors() []error {
	var errs []error
	for i := range r.Outcomes {
		if err := r.Outcomes[i].Err; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Outcomes[i].Subject(), err))
		}
	}
	return errs
}

// Violations returns every policy violation across the set.
func (r *Result) Violations() []policy.Violation {
	var out []policy.Violation
	for i := range r.Outcomes {
		out = append(out, r.Outcomes[i].Violations...)
	}
	return out
}

// StructuralErrors returns schema findings keyed by subject.
func (r *Result) StructuralErrors() map[string][]schema.FieldError {
	out := map[string][]schema.FieldError{}
	for i := range r.Outcomes {
		if errs := r.Outcomes[i].Validation.Errors; len(errs) > 0 {
			out[r.Outcomes[i].Subject()] = errs
		}
	}
	return out
}

// Clean reports whether every artifact passed every stage.
func (r *Result) Clean() bool {
	for i := range r.Outcomes {
		if !r.Outcomes[i].Clean() {
			return false
		}
	}
	return true
}

// Runner owns the shared, read-only stage inputs. Contracts and rules are
// loaded once and shared across workers without locking.
type Runner struct {
	contracts map[string]*schema.Contract
	validator *schema.Validator
	evaluator *policy.Evaluator
	recorder  *evidence.Recorder
	workers   int
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers caps parallel artifact evaluations.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithTimeout bounds each artifact's stage sequence. A timed-out artifact is
// flagged incomplete, not dropped.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRunner wires the stages around a shared recorder.
func NewRunner(contracts map[string]*schema.Contract, evaluator *policy.Evaluator, rec *evidence.Recorder, opts ...Option) *Runner {
	r := &Runner{
		contracts: contracts,
		validator: schema.NewValidator(rec),
		evaluator: evaluator,
		recorder:  rec,
		workers:   DefaultWorkers,
		timeout:   DefaultTimeout,
		logger:    logging.New("pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates every artifact in the set. Worker errors are captured per
// outcome rather than cancelling siblings, so one bad artifact never hides
// findings on the others. The returned error reflects only caller-side
// cancellation.
func (r *Runner) Run(ctx context.Context, set *artifact.Set) (*Result, error) {
	outcomes := make([]Outcome, len(set.Artifacts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range set.Artifacts {
		i := i
		g.Go(func() error {
			outcomes[i] = r.evaluate(gctx, set.Env, set.Artifacts[i])
			return nil
		})
	}
	_ = g.Wait() // errors captured per outcome

	res := &Result{Env: set.Env, Outcomes: outcomes}
	r.logger.Info("pipeline run complete",
		"env", set.Env,
		"artifacts", len(outcomes),
		"violations", len(res.Violations()),
		"errors", len(res.SystemErrors()),
	)
	return res, ctx.Err()
}

// evaluate runs the three stages for one artifact under the per-artifact
// timeout. Every early return flags the outcome incomplete so the evidence
// gap is attributable instead of silent.
func (r *Runner) evaluate(ctx context.Context, env string, art artifact.Artifact) Outcome {
	actx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out := Outcome{Artifact: art, Incomplete: true}

	out.Merge = normalize.Merge(art.Base, art.Overlay, env)

	desc, err := artifact.Describe(out.Merge.Merged)
	if err != nil {
		out.Err = fmt.Errorf("describe artifact %s: %w", art.Name, err)
		return out
	}
	out.Descriptor = desc
	subject := desc.Subject()

	if art.HasOverlay() {
		details := map[string]any{
			"env":       env,
			"overrides": len(out.Merge.Overrides),
		}
		if len(out.Merge.Overrides) > 0 {
			details["paths"] = overridePaths(out.Merge.Overrides)
		}
		if _, err := r.recorder.Append(actx, evidence.StageNormalizer, subject, evidence.ResultPass, details); err != nil {
			out.Err = fmt.Errorf("append normalizer evidence for %s: %w", subject, err)
			return out
		}
	}

	if err := actx.Err(); err != nil {
		out.Err = fmt.Errorf("artifact %s: %w", subject, err)
		return out
	}

	out.Validation, err = r.validator.Validate(actx, subject, out.Merge.Merged, r.contracts[desc.Kind])
	if err != nil {
		out.Err = fmt.Errorf("validate %s: %w", subject, err)
		return out
	}

	if err := actx.Err(); err != nil {
		out.Err = fmt.Errorf("artifact %s: %w", subject, err)
		return out
	}

	out.Violations = r.evaluator.Evaluate(desc)
	result := evidence.ResultPass
	details := map[string]any{"violations": len(out.Violations)}
	if len(out.Violations) > 0 {
		result = evidence.ResultFail
		details["rules"] = violationRules(out.Violations)
	}
	if _, err := r.recorder.Append(actx, evidence.StagePolicy, subject, result, details); err != nil {
		out.Err = fmt.Errorf("append policy evidence for %s: %w", subject, err)
		return out
	}

	out.Incomplete = false
	return out
}

func overridePaths(overrides []normalize.OverrideRecord) []string {
	paths := make([]string, len(overrides))
	for i, o := range overrides {
		paths[i] = o.Path
	}
	return paths
}

func violationRules(violations []policy.Violation) []string {
	rules := make([]string, len(violations))
	for i, v := range violations {
		rules[i] = v.RuleID
	}
	return rules
}
