// Package gate aggregates four independent quality dimensions over a
// completed pipeline run into one blocking verdict. Checks run concurrently,
// none cancels another, and the report is complete even when every dimension
// fails.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Ledgerline-Labs/greenlight/pkg/evidence"
	"github.com/Ledgerline-Labs/greenlight/pkg/logging"
	"github.com/Ledgerline-Labs/greenlight/pkg/pipeline"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy"
	"github.com/Ledgerline-Labs/greenlight/pkg/schema"
)

// RunContext is the read-only material a check evaluates: the pipeline's
// outcomes plus the shared stage inputs for independent re-derivation and the
// evidence log for trail inspection.
type RunContext struct {
	Pipeline  *pipeline.Result
	Contracts map[string]*schema.Contract
	Evaluator *policy.Evaluator
	Evidence  evidence.Store
}

// CheckResult is one dimension's verdict. Diagnostics name every finding so
// a failing gate is always explainable.
type CheckResult struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Passed      bool          `json:"passed"`
	Diagnostics []string      `json:"diagnostics,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Check is one quality dimension. Run must evaluate to completion and report
// findings through the result, never through a panic or shared state.
type Check interface {
	ID() string
	Name() string
	Run(ctx context.Context, rc *RunContext) *CheckResult
}

// Report is the aggregate gate verdict for one run.
type Report struct {
	RunID       string        `json:"runId"`
	Env         string        `json:"env"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Checks      []CheckResult `json:"checks"`
	Pass        bool          `json:"pass"`
}

// Check returns the named dimension's result, or nil if absent.
func (r *Report) Check(id string) *CheckResult {
	for i := range r.Checks {
		if r.Checks[i].ID == id {
			return &r.Checks[i]
		}
	}
	return nil
}

// Failed returns the dimensions that did not pass.
func (r *Report) Failed() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Engine fans the registered checks out over a run context and joins them
// into a report. One gate evidence record is appended per run, pass or fail.
type Engine struct {
	checks   []Check
	recorder *evidence.Recorder
	clock    func() time.Time
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock substitutes the report timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// NewEngine registers the checks in report order.
func NewEngine(rec *evidence.Recorder, checks []Check, opts ...Option) *Engine {
	e := &Engine{
		checks:   checks,
		recorder: rec,
		clock:    time.Now,
		logger:   logging.New("gate"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates every dimension concurrently and appends the summary record.
// A check failure never suppresses another check; only a failed evidence
// append surfaces as an error, since an unrecorded gate verdict is a system
// failure.
func (e *Engine) Run(ctx context.Context, rc *RunContext) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Env:       rc.Pipeline.Env,
		StartedAt: e.clock().UTC(),
		Checks:    make([]CheckResult, len(e.checks)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, check := range e.checks {
		i, check := i, check
		g.Go(func() error {
			started := time.Now()
			res := check.Run(gctx, rc)
			res.Elapsed = time.Since(started)
			report.Checks[i] = *res
			return nil
		})
	}
	_ = g.Wait() // verdicts captured per check

	report.CompletedAt = e.clock().UTC()
	report.Pass = true
	for _, c := range report.Checks {
		if !c.Passed {
			report.Pass = false
		}
	}

	result := evidence.ResultPass
	if !report.Pass {
		result = evidence.ResultFail
	}
	details := map[string]any{
		"runId":  report.RunID,
		"checks": checkSummary(report.Checks),
	}
	if failed := report.Failed(); len(failed) > 0 {
		var ids []string
		for _, c := range failed {
			ids = append(ids, c.ID)
		}
		details["failed"] = ids
	}

	subject := "release/" + report.Env
	if _, err := e.recorder.Append(ctx, evidence.StageGate, subject, result, details); err != nil {
		e.logger.Error("gate evidence append failed", "subject", subject, "error", err)
		return report, fmt.Errorf("append gate evidence: %w", err)
	}

	e.logger.Info("gate run complete",
		"runId", report.RunID,
		"env", report.Env,
		"pass", report.Pass,
		"failed", len(report.Failed()),
	)
	return report, nil
}

func checkSummary(checks []CheckResult) map[string]any {
	out := make(map[string]any, len(checks))
	for _, c := range checks {
		out[c.ID] = c.Passed
	}
	return out
}
