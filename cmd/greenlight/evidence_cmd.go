package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/Ledgerline-Labs/greenlight/pkg/evidence"
)

// runEvidenceCmd implements `greenlight evidence`: read-only queries over
// the audit log.
//
// Exit codes:
//
//	0 = query succeeded
//	2 = runtime error
func runEvidenceCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evidence", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		subject    string
		stage      string
		limit      int
		jsonOutput bool
	)

	cmd.StringVar(&subject, "subject", "", "Filter by subject id")
	cmd.StringVar(&stage, "stage", "", "Filter by stage: normalizer, validator, policy, gate")
	cmd.IntVar(&limit, "limit", 0, "Show only the most recent N records")
	cmd.BoolVar(&jsonOutput, "json", false, "Output records as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if stage != "" && !evidence.Stage(stage).Valid() {
		_, _ = fmt.Fprintf(stderr, "Error: unknown stage %q\n", stage)
		return 2
	}

	store, err := evidence.NewStoreFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: open evidence store: %v\n", err)
		return 2
	}

	records, err := store.List(context.Background(), evidence.Filter{
		Stage:   evidence.Stage(stage),
		Subject: subject,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read evidence log: %v\n", err)
		return 2
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(records, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	for _, r := range records {
		_, _ = fmt.Fprintf(stdout, "%s  %-10s  %-5s  %s\n",
			r.Timestamp.UTC().Format(time.RFC3339), r.Stage, r.Result, r.SubjectID)
	}
	_, _ = fmt.Fprintf(stdout, "%d records\n", len(records))
	return 0
}
