package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Ledgerline-Labs/greenlight/pkg/archive"
	"github.com/Ledgerline-Labs/greenlight/pkg/evidence"
)

// runVerifyCmd implements `greenlight verify`: offline verification of an
// archived gate bundle: attestation signature, report binding, and the
// presence of the run's gate record in the bundled evidence.
//
// Exit codes:
//
//	0 = bundle authentic and gate verdict pass
//	1 = verification failed or gate verdict fail
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		addr       string
		file       string
		jsonOutput bool
	)

	cmd.StringVar(&addr, "addr", "", "Content address of an archived bundle (sha256:...)")
	cmd.StringVar(&file, "file", "", "Path to a bundle JSON file")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if addr == "" && file == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --addr or --file is required")
		return 2
	}

	bundle, err := loadBundle(addr, file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	type verifyCheck struct {
		Name   string `json:"name"`
		Pass   bool   `json:"pass"`
		Reason string `json:"reason,omitempty"`
	}

	var results []verifyCheck
	check := func(name string, err error) {
		c := verifyCheck{Name: name, Pass: err == nil}
		if err != nil {
			c.Reason = err.Error()
		}
		results = append(results, c)
	}

	if bundle.Report == nil {
		check("report", fmt.Errorf("bundle has no report"))
	} else {
		check("report", nil)
	}

	switch {
	case bundle.Attestation == nil:
		check("attestation", fmt.Errorf("bundle was archived unsigned"))
	default:
		check("signature", bundle.Attestation.Verify())
		if bundle.Report != nil {
			check("report_binding", bundle.Attestation.Matches(bundle.Report))
		}
	}

	if bundle.Report != nil {
		check("gate_record", findGateRecord(bundle.Evidence, bundle.Report.RunID))
	}

	verified := true
	for _, c := range results {
		if !c.Pass {
			verified = false
		}
	}

	if jsonOutput {
		out := map[string]any{
			"verified": verified,
			"checks":   results,
		}
		if bundle.Report != nil {
			out["runId"] = bundle.Report.RunID
			out["env"] = bundle.Report.Env
			out["pass"] = bundle.Report.Pass
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		for _, c := range results {
			if c.Pass {
				_, _ = fmt.Fprintf(stdout, "  ✅ %s\n", c.Name)
			} else {
				_, _ = fmt.Fprintf(stdout, "  ❌ %s: %s\n", c.Name, c.Reason)
			}
		}
		if verified {
			_, _ = fmt.Fprintf(stdout, "\n✅ Bundle verified\n")
			_, _ = fmt.Fprintf(stdout, "Run:     %s\n", bundle.Report.RunID)
			_, _ = fmt.Fprintf(stdout, "Env:     %s\n", bundle.Report.Env)
			if bundle.Report.Pass {
				_, _ = fmt.Fprintf(stdout, "Verdict: ✅ PASS\n")
			} else {
				_, _ = fmt.Fprintf(stdout, "Verdict: ❌ FAIL\n")
			}
		} else {
			_, _ = fmt.Fprintf(stdout, "\n❌ Bundle verification FAILED\n")
		}
	}

	if !verified || !bundle.Report.Pass {
		return 1
	}
	return 0
}

func loadBundle(addr, file string) (*archive.Bundle, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		var b archive.Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("parse bundle %s: %w", file, err)
		}
		return &b, nil
	}

	ctx := context.Background()
	store, err := archive.NewStoreFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("open archive store: %w", err)
	}
	return archive.LoadBundle(ctx, store, addr)
}

// findGateRecord confirms the bundled evidence carries the run's own gate
// summary record.
func findGateRecord(records []evidence.Record, runID string) error {
	for _, r := range records {
		if r.Stage != evidence.StageGate {
			continue
		}
		if r.Details != nil && r.Details["runId"] == runID {
			return nil
		}
	}
	return fmt.Errorf("no gate record for run %s in bundled evidence", runID)
}
