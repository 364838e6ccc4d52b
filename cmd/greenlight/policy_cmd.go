package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/normalize"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy"
)

// runPolicyCmd implements `greenlight policy`: governance rules only, no
// schema contracts and no evidence.
//
// Exit codes:
//
//	0 = fully compliant
//	1 = policy violations
//	2 = runtime error
func runPolicyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("policy", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dir        string
		env        string
		rulesDir   string
		org        string
		jsonOutput bool
	)

	cmd.StringVar(&dir, "dir", ".", "Directory of deployment artifacts")
	cmd.StringVar(&env, "env", "dev", "Target environment: dev, staging, prod")
	cmd.StringVar(&rulesDir, "rules", defaultRulesDir, "Policy rules directory")
	cmd.StringVar(&org, "org", "", "Label namespace org (default: ledgerline.dev)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output violations as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if err := checkEnv(env); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	evaluator, err := loadEvaluator(rulesDir, policy.Options{Org: org})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	set, err := artifact.LoadSet(dir, env)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	var (
		violations []policy.Violation
		errors     []string
	)
	evaluated := 0
	for _, art := range set.Artifacts {
		merge := normalize.Merge(art.Base, art.Overlay, env)
		desc, err := artifact.Describe(merge.Merged)
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", art.Name, err))
			continue
		}
		violations = append(violations, evaluator.Evaluate(desc)...)
		evaluated++
	}

	if jsonOutput {
		out := map[string]any{
			"evaluated":  evaluated,
			"violations": violations,
		}
		if len(errors) > 0 {
			out["errors"] = errors
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		for _, e := range errors {
			_, _ = fmt.Fprintf(stdout, "  ⚠️  %s\n", e)
		}
		for _, v := range violations {
			_, _ = fmt.Fprintf(stdout, "  ❌ %s\n", v.String())
		}
		if len(violations) == 0 && len(errors) == 0 {
			_, _ = fmt.Fprintf(stdout, "Result: ✅ %d artifacts compliant\n", evaluated)
		} else {
			_, _ = fmt.Fprintf(stdout, "\nResult: ❌ %d violations\n", len(violations))
		}
	}

	if len(violations) > 0 || len(errors) > 0 {
		return 1
	}
	return 0
}
