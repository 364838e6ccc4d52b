package main

import (
	"fmt"
	"io"
	"os"
)

const version = "1.0.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 2
	}

	switch args[1] {
	case "gate":
		return runGateCmd(args[2:], stdout, stderr)
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "policy":
		return runPolicyCmd(args[2:], stdout, stderr)
	case "evidence":
		return runEvidenceCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "version", "--version", "-v":
		_, _ = fmt.Fprintf(stdout, "greenlight %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sGreenlight %s%s\n", ColorBold+ColorGreen, "v"+version, ColorReset)
	fmt.Fprintf(w, "%sEvery release leaves a trail.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  greenlight <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "PIPELINE")
	printCommand(w, "validate", "Check artifacts against schema contracts (--dir, --env, --schemas)")
	printCommand(w, "policy", "Evaluate governance rules only (--dir, --env, --rules)")

	printSection(w, "RELEASE GATE")
	printCommand(w, "gate", "Run the full pipeline and quality gate (--dir, --env, --sign)")
	printCommand(w, "verify", "Verify an archived gate bundle (--addr or --file)")

	printSection(w, "AUDIT")
	printCommand(w, "evidence", "Query the evidence log (--subject, --stage, --json)")

	printSection(w, "UTILITIES")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}
