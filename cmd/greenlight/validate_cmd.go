package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/normalize"
	"github.com/Ledgerline-Labs/greenlight/pkg/schema"
)

// runValidateCmd implements `greenlight validate`: schema validation only,
// the dry half of the pipeline. No evidence is recorded.
//
// Exit codes:
//
//	0 = every artifact structurally valid
//	1 = structural findings
//	2 = runtime error
func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dir        string
		env        string
		schemasDir string
		jsonOutput bool
	)

	cmd.StringVar(&dir, "dir", ".", "Directory of deployment artifacts")
	cmd.StringVar(&env, "env", "dev", "Target environment: dev, staging, prod")
	cmd.StringVar(&schemasDir, "schemas", defaultSchemasDir, "Schema contracts directory")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if err := checkEnv(env); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	contracts, err := loadContracts(schemasDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	set, err := artifact.LoadSet(dir, env)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	type validateResult struct {
		Subject string              `json:"subject"`
		Kind    string              `json:"kind,omitempty"`
		Valid   bool                `json:"valid"`
		Errors  []schema.FieldError `json:"errors,omitempty"`
		Error   string              `json:"error,omitempty"`
	}

	var results []validateResult
	clean := true
	for _, art := range set.Artifacts {
		merge := normalize.Merge(art.Base, art.Overlay, env)
		desc, err := artifact.Describe(merge.Merged)
		if err != nil {
			results = append(results, validateResult{Subject: art.Name, Error: err.Error()})
			clean = false
			continue
		}

		r := validateResult{Subject: desc.Subject(), Kind: desc.Kind, Valid: true}
		if c := contracts[desc.Kind]; c != nil {
			vr := schema.Validate(merge.Merged, c)
			r.Valid = vr.Valid
			r.Errors = vr.Errors
			if !vr.Valid {
				clean = false
			}
		}
		results = append(results, r)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(results, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		for _, r := range results {
			switch {
			case r.Error != "":
				_, _ = fmt.Fprintf(stdout, "  ⚠️  %s: %s\n", r.Subject, r.Error)
			case r.Valid:
				_, _ = fmt.Fprintf(stdout, "  ✅ %s (%s)\n", r.Subject, r.Kind)
			default:
				_, _ = fmt.Fprintf(stdout, "  ❌ %s (%s)\n", r.Subject, r.Kind)
				for _, fe := range r.Errors {
					_, _ = fmt.Fprintf(stdout, "     - %s\n", fe.Error())
				}
			}
		}
		if clean {
			_, _ = fmt.Fprintf(stdout, "\nResult: ✅ %d artifacts structurally valid\n", len(results))
		} else {
			_, _ = fmt.Fprintf(stdout, "\nResult: ❌ structural findings above\n")
		}
	}

	if !clean {
		return 1
	}
	return 0
}
