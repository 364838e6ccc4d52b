package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy/cellint"
)

var (
	exprEnvOnce sync.Once
	exprEnv     *cel.Env
	exprEnvErr  error
)

// resourceEnv builds the shared CEL environment for guard expressions.
// Rules see a single `resource` variable carrying the descriptor fields.
func resourceEnv() (*cel.Env, error) {
	exprEnvOnce.Do(func() {
		exprEnv, exprEnvErr = cel.NewEnv(
			cel.Variable("resource", cel.DynType),
		)
	})
	return exprEnv, exprEnvErr
}

// ExprRule evaluates a CEL guard expression against a resource descriptor.
// The expression must yield a boolean; true means compliant. Expressions are
// linted for non-deterministic constructs and compiled once at load time.
type ExprRule struct {
	name    string
	kind    string
	source  string
	program cel.Program
}

// NewExprRule lints and compiles source for the given kind. The rule name
// feeds the violation output so operators can trace a denial back to the
// expression that produced it.
func NewExprRule(kind, name, source string) (*ExprRule, error) {
	if name == "" {
		return nil, fmt.Errorf("expression rule for kind %s has no name", kind)
	}
	if source == "" {
		return nil, fmt.Errorf("expression rule %s has an empty expression", name)
	}

	linter, err := cellint.NewLinter()
	if err != nil {
		return nil, fmt.Errorf("initialize expression linter: %w", err)
	}
	lintRes, err := linter.Check(source)
	if err != nil {
		return nil, fmt.Errorf("parse expression %s: %w", name, err)
	}
	if !lintRes.Valid {
		return nil, fmt.Errorf("expression %s rejected: %s", name, lintRes.Issues[0].Message)
	}

	env, err := resourceEnv()
	if err != nil {
		return nil, fmt.Errorf("build expression environment: %w", err)
	}
	ast, issues := env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression %s: %w", name, issues.Err())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program expression %s: %w", name, err)
	}

	return &ExprRule{name: name, kind: kind, source: source, program: prg}, nil
}

func (r *ExprRule) ID() string { return "expr:" + r.name }

// Evaluate runs the guard. Evaluation errors and non-boolean results deny:
// a guard that cannot be decided must not wave a resource through.
func (r *ExprRule) Evaluate(desc *artifact.Descriptor) []Violation {
	input := map[string]any{
		"resource": map[string]any{
			"kind":        desc.Kind,
			"name":        desc.Name,
			"labels":      stringMapToAny(desc.Labels),
			"annotations": stringMapToAny(desc.Annotations),
			"spec":        desc.Spec,
		},
	}

	out, _, err := r.program.Eval(input)
	if err != nil {
		return []Violation{{
			RuleID:   r.ID(),
			Kind:     desc.Kind,
			Resource: desc.Name,
			Message:  fmt.Sprintf("%s: expression %s failed to evaluate: %v", ErrPolicyExpr, r.name, err),
		}}
	}

	pass, ok := out.Value().(bool)
	if !ok {
		return []Violation{{
			RuleID:   r.ID(),
			Kind:     desc.Kind,
			Resource: desc.Name,
			Message:  fmt.Sprintf("%s: expression %s returned %T, want bool", ErrPolicyExpr, r.name, out.Value()),
		}}
	}
	if !pass {
		return []Violation{{
			RuleID:   r.ID(),
			Kind:     desc.Kind,
			Resource: desc.Name,
			Message:  fmt.Sprintf("%s: expression %s evaluated to false", ErrPolicyExpr, r.name),
		}}
	}
	return nil
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
