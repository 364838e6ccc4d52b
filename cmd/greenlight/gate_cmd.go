package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Ledgerline-Labs/greenlight/pkg/archive"
	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/attest"
	"github.com/Ledgerline-Labs/greenlight/pkg/config"
	"github.com/Ledgerline-Labs/greenlight/pkg/evidence"
	"github.com/Ledgerline-Labs/greenlight/pkg/gate"
	"github.com/Ledgerline-Labs/greenlight/pkg/gate/checks"
	"github.com/Ledgerline-Labs/greenlight/pkg/observability"
	"github.com/Ledgerline-Labs/greenlight/pkg/pipeline"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy"
	"github.com/Ledgerline-Labs/greenlight/pkg/schema"
)

// gateOutput is the combined document `gate --json` emits.
type gateOutput struct {
	Report      *gate.Report                   `json:"report"`
	Violations  []policy.Violation             `json:"violations,omitempty"`
	Structural  map[string][]schema.FieldError `json:"structural,omitempty"`
	Errors      []string                       `json:"errors,omitempty"`
	Attestation *attest.Attestation            `json:"attestation,omitempty"`
	ArchiveAddr string                         `json:"archiveAddr,omitempty"`
}

// runGateCmd implements `greenlight gate`. It runs with no required flags so
// a bare invocation works pre-commit and in CI.
//
// Exit codes:
//
//	0 = every check passed
//	1 = violations found or any gate dimension failed
//	2 = runtime error
//
// There is deliberately no bypass flag; skipping the gate belongs to the
// invoking layer, not to the gate itself.
func runGateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("gate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dir         string
		env         string
		rulesDir    string
		schemasDir  string
		profilesDir string
		org         string
		jsonOutput  bool
		sign        bool
		archiveOut  bool
		tokenOut    string
		workers     int
		timeout     time.Duration
	)

	cmd.StringVar(&dir, "dir", ".", "Directory of deployment artifacts")
	cmd.StringVar(&env, "env", "dev", "Target environment: dev, staging, prod")
	cmd.StringVar(&rulesDir, "rules", defaultRulesDir, "Policy rules directory")
	cmd.StringVar(&schemasDir, "schemas", defaultSchemasDir, "Schema contracts directory")
	cmd.StringVar(&profilesDir, "profiles", "", "Environment profiles directory")
	cmd.StringVar(&org, "org", "", "Label namespace org (default: ledgerline.dev)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output report as JSON")
	cmd.BoolVar(&sign, "sign", false, "Sign the gate report with the env-derived key")
	cmd.BoolVar(&archiveOut, "archive", false, "Archive the report bundle to content-addressed storage")
	cmd.StringVar(&tokenOut, "token-out", "", "Write a signed gate token (JWT) to this file; implies --sign")
	cmd.IntVar(&workers, "workers", 0, "Parallel artifact evaluations (default 4)")
	cmd.DurationVar(&timeout, "timeout", 0, "Per-artifact evaluation timeout (default 30s)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if err := checkEnv(env); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cfg := config.Load()
	initLogging(cfg, stderr)

	// Profile values fill whatever the flags left unset.
	if profilesDir == "" {
		profilesDir = cfg.ProfilesDir
	}
	var profile *config.Profile
	if profilesDir != "" {
		p, err := config.LoadProfile(profilesDir, env)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		profile = p
	}

	var registries []string
	if profile != nil {
		if org == "" {
			org = profile.Org
		}
		registries = profile.Registries
		if workers == 0 {
			workers = profile.Pipeline.Workers
		}
		if timeout == 0 {
			timeout = profile.Pipeline.Timeout()
		}
		sign = sign || profile.Gate.Sign
		archiveOut = archiveOut || profile.Gate.Archive
	}
	if org == "" {
		org = cfg.Org
	}
	if workers == 0 {
		workers = cfg.Workers
	}
	if timeout == 0 {
		timeout = cfg.Timeout
	}
	if tokenOut != "" {
		sign = true
	}

	contracts, err := loadContracts(schemasDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	evaluator, err := loadEvaluator(rulesDir, policy.Options{Org: org, Registries: registries})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	set, err := artifact.LoadSet(dir, env)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()

	obs, err := observability.New(ctx, observability.ConfigFromEnv(env))
	if err != nil {
		// A broken collector must not block the gate.
		_, _ = fmt.Fprintf(stderr, "warning: telemetry init failed: %v\n", err)
		obs, _ = observability.New(ctx, nil)
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	store, err := evidence.NewStoreFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: open evidence store: %v\n", err)
		return 2
	}
	rec := evidence.NewRecorder(store)

	var opts []pipeline.Option
	if workers > 0 {
		opts = append(opts, pipeline.WithWorkers(workers))
	}
	if timeout > 0 {
		opts = append(opts, pipeline.WithTimeout(timeout))
	}

	runner := pipeline.NewRunner(contracts, evaluator, rec, opts...)
	pctx, pipelineDone := obs.TrackStage(ctx, "pipeline", dir)
	res, err := runner.Run(pctx, set)
	pipelineDone(err)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: pipeline run failed: %v\n", err)
		return 2
	}

	engine := gate.NewEngine(rec, checks.Default(org))
	gctx, gateDone := obs.TrackStage(ctx, "gate", "release/"+env)
	report, err := engine.Run(gctx, &gate.RunContext{
		Pipeline:  res,
		Contracts: contracts,
		Evaluator: evaluator,
		Evidence:  store,
	})
	gateDone(err)
	if err != nil {
		// The summary record could not be appended; without it the run is
		// not provable, so this is a runtime failure regardless of verdict.
		_, _ = fmt.Fprintf(stderr, "Error: gate run failed: %v\n", err)
		return 2
	}

	out := &gateOutput{
		Report:     report,
		Violations: res.Violations(),
		Structural: res.StructuralErrors(),
	}
	for _, e := range res.SystemErrors() {
		out.Errors = append(out.Errors, e.Error())
	}

	for i := range res.Outcomes {
		o := &res.Outcomes[i]
		kind := ""
		if o.Descriptor != nil {
			kind = o.Descriptor.Kind
		}
		obs.RecordArtifact(ctx, kind, o.Clean())
	}
	byRule := map[string]int{}
	for _, v := range out.Violations {
		byRule[v.RuleID]++
	}
	for id, n := range byRule {
		obs.RecordViolations(ctx, id, n)
	}
	obs.RecordGateRun(ctx, env, report.Pass)

	if sign {
		if code := signReport(cfg, env, profile, report, tokenOut, out, stderr); code != 0 {
			return code
		}
	}

	if archiveOut {
		ast, err := archive.NewStoreFromEnv(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: open archive store: %v\n", err)
			return 2
		}
		records, err := store.List(ctx, evidence.Filter{})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: read evidence log: %v\n", err)
			return 2
		}
		addr, err := archive.SaveBundle(ctx, ast, &archive.Bundle{
			Report:      report,
			Evidence:    records,
			Attestation: out.Attestation,
		})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: archive bundle: %v\n", err)
			return 2
		}
		out.ArchiveAddr = addr
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printGateReport(stdout, res, out)
	}

	if !report.Pass || len(out.Violations) > 0 {
		return 1
	}
	return 0
}

// signReport attests the report with the environment-derived key and
// optionally writes a gate token for downstream automation.
func signReport(cfg *config.Config, env string, profile *config.Profile, report *gate.Report, tokenOut string, out *gateOutput, stderr io.Writer) int {
	kr, err := loadOrGenerateKeyring(cfg.DataDir, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: load signing key: %v\n", err)
		return 2
	}
	envKr, err := kr.DeriveForEnv(env)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: derive %s key: %v\n", env, err)
		return 2
	}

	att, err := attest.Sign(envKr, report)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: sign report: %v\n", err)
		return 2
	}
	out.Attestation = att

	if tokenOut == "" {
		return 0
	}

	issuer, err := attest.NewTokenIssuer(envKr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	ttl := time.Hour
	if profile != nil {
		ttl = profile.Gate.TokenTTL()
	}
	token, err := issuer.Issue(report, ttl)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: issue token: %v\n", err)
		return 2
	}
	if err := os.WriteFile(tokenOut, []byte(token), 0o600); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: write token: %v\n", err)
		return 2
	}
	return 0
}

func printGateReport(w io.Writer, res *pipeline.Result, out *gateOutput) {
	report := out.Report
	_, _ = fmt.Fprintf(w, "Greenlight Gate Report\n")
	_, _ = fmt.Fprintf(w, "──────────────────────\n")
	_, _ = fmt.Fprintf(w, "Run ID:    %s\n", report.RunID)
	_, _ = fmt.Fprintf(w, "Env:       %s\n", report.Env)
	_, _ = fmt.Fprintf(w, "Artifacts: %d\n", len(res.Outcomes))
	_, _ = fmt.Fprintf(w, "Started:   %s\n\n", report.StartedAt.Format("2006-01-02T15:04:05Z"))

	printFindings(w, res)

	for _, cr := range report.Checks {
		if cr.Passed {
			_, _ = fmt.Fprintf(w, "  ✅ PASS  %s\n", cr.ID)
			continue
		}
		_, _ = fmt.Fprintf(w, "  ❌ FAIL  %s\n", cr.ID)
		for _, d := range cr.Diagnostics {
			_, _ = fmt.Fprintf(w, "           - %s\n", d)
		}
	}

	_, _ = fmt.Fprintln(w)
	if report.Pass {
		_, _ = fmt.Fprintf(w, "Result: ✅ PASS (%d checks)\n", len(report.Checks))
	} else {
		_, _ = fmt.Fprintf(w, "Result: ❌ FAIL (%d/%d checks failed)\n", len(report.Failed()), len(report.Checks))
	}
	if out.Attestation != nil {
		_, _ = fmt.Fprintf(w, "Signed: %s\n", out.Attestation.PublicKey)
	}
	if out.ArchiveAddr != "" {
		_, _ = fmt.Fprintf(w, "Archived: %s\n", out.ArchiveAddr)
	}
}

// printFindings lists every structural error, policy violation, and system
// error per subject. The full list always precedes a non-zero exit.
func printFindings(w io.Writer, res *pipeline.Result) {
	for i := range res.Outcomes {
		o := &res.Outcomes[i]
		if o.Clean() {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s:\n", o.Subject())
		if o.Err != nil {
			_, _ = fmt.Fprintf(w, "  ⚠️  %v\n", o.Err)
		}
		for _, fe := range o.Validation.Errors {
			_, _ = fmt.Fprintf(w, "  ❌ %s\n", fe.Error())
		}
		for _, v := range o.Violations {
			_, _ = fmt.Fprintf(w, "  ❌ %s\n", v.String())
		}
		_, _ = fmt.Fprintln(w)
	}
}
