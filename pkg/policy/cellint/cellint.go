// Package cellint statically checks policy guard expressions for
// non-deterministic constructs before they are admitted into a rule set.
// A guard that evaluates differently across two runs would break gate
// reproducibility, so wall-clock access, floating point literals, and map
// iteration are rejected at load time.
package cellint

import (
	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Issue is one lint finding.
type Issue struct {
	Message  string
	Severity string // ERROR
}

// Result aggregates the findings for one expression.
type Result struct {
	Valid  bool
	Issues []Issue
}

// Linter parses expressions with a bare environment and walks the AST.
type Linter struct {
	env *cel.Env
}

// NewLinter builds a linter with a standard parse-only environment.
func NewLinter() (*Linter, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, err
	}
	return &Linter{env: env}, nil
}

// Check parses exprSource and reports every forbidden construct. A parse
// failure is returned as an error; lint findings come back in the result.
func (l *Linter) Check(exprSource string) (*Result, error) {
	parsed, issues := l.env.Parse(exprSource)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	result := &Result{Valid: true, Issues: []Issue{}}

	expr := parsed.Expr() //nolint:staticcheck // Deprecated but no alternative for AST traversal yet
	walk(expr, &result.Issues)

	if len(result.Issues) > 0 {
		result.Valid = false
	}
	return result, nil
}

func walk(e *exprpb.Expr, issues *[]Issue) {
	if e == nil {
		return
	}

	switch k := e.ExprKind.(type) {
	case *exprpb.Expr_ConstExpr:
		c := k.ConstExpr
		switch c.ConstantKind.(type) {
		case *exprpb.Constant_DoubleValue:
			*issues = append(*issues, Issue{Message: "floating point literals are forbidden", Severity: "ERROR"})
		}

	case *exprpb.Expr_CallExpr:
		call := k.CallExpr
		if call.Function == "now" {
			*issues = append(*issues, Issue{Message: "now() is forbidden", Severity: "ERROR"})
		}
		if call.Function == "keys" || call.Function == "values" {
			*issues = append(*issues, Issue{Message: "map iteration (keys/values) is forbidden due to non-determinism", Severity: "ERROR"})
		}

		if call.Target != nil {
			walk(call.Target, issues)
		}
		for _, arg := range call.Args {
			walk(arg, issues)
		}

	case *exprpb.Expr_SelectExpr:
		walk(k.SelectExpr.Operand, issues)

	case *exprpb.Expr_IdentExpr:
		// No children

	case *exprpb.Expr_ListExpr:
		for _, el := range k.ListExpr.Elements {
			walk(el, issues)
		}

	case *exprpb.Expr_StructExpr:
		for _, entry := range k.StructExpr.Entries {
			if entry.GetMapKey() != nil {
				walk(entry.GetMapKey(), issues)
			}
			walk(entry.Value, issues)
		}

	case *exprpb.Expr_ComprehensionExpr:
		comp := k.ComprehensionExpr
		walk(comp.IterRange, issues)
		walk(comp.AccuInit, issues)
		walk(comp.LoopCondition, issues)
		walk(comp.LoopStep, issues)
		walk(comp.Result, issues)
	}
}
