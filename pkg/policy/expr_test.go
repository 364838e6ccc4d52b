package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy"
)

func TestExprRulePassAndFail(t *testing.T) {
	rule, err := policy.NewExprRule("Deployment", "replicas-max", "int(resource.spec.replicas) <= 10")
	require.NoError(t, err)
	assert.Equal(t, "expr:replicas-max", rule.ID())

	res := &artifact.Descriptor{
		Kind: "Deployment",
		Name: "prod-app-deploy-v1.0.0",
		Spec: map[string]any{"replicas": 3},
	}
	assert.Empty(t, rule.Evaluate(res))

	res.Spec["replicas"] = 50
	violations := rule.Evaluate(res)
	require.Len(t, violations, 1)
	assert.Equal(t, policy.ErrPolicyExpr, violations[0].RuleID)
	assert.Contains(t, violations[0].Message, "replicas-max")
}

func TestExprRuleSeesDescriptorFields(t *testing.T) {
	rule, err := policy.NewExprRule("Service", "managed",
		`resource.kind == "Service" && resource.labels["app.kubernetes.io/managed-by"] == "greenlight"`)
	require.NoError(t, err)

	res := &artifact.Descriptor{
		Kind:   "Service",
		Name:   "prod-app-svc-v1.0.0",
		Labels: map[string]string{"app.kubernetes.io/managed-by": "greenlight"},
	}
	assert.Empty(t, rule.Evaluate(res))
}

func TestExprRuleEvaluationErrorDenies(t *testing.T) {
	// Indexing a key that is absent at runtime is an eval error, and an
	// undecidable guard must deny.
	rule, err := policy.NewExprRule("Deployment", "needs-field", `resource.spec.missing == "x"`)
	require.NoError(t, err)

	res := &artifact.Descriptor{Kind: "Deployment", Name: "d", Spec: map[string]any{}}
	violations := rule.Evaluate(res)
	require.Len(t, violations, 1)
	assert.Equal(t, policy.ErrPolicyExpr, violations[0].RuleID)
	assert.Contains(t, violations[0].Message, "failed to evaluate")
}

func TestExprRuleNonBooleanDenies(t *testing.T) {
	rule, err := policy.NewExprRule("Deployment", "not-a-guard", `resource.name`)
	require.NoError(t, err)

	res := &artifact.Descriptor{Kind: "Deployment", Name: "prod-app-deploy-v1.0.0"}
	violations := rule.Evaluate(res)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "want bool")
}

func TestExprRuleLintRejections(t *testing.T) {
	cases := []struct {
		name string
		expr string
	}{
		{"wall clock", `now() > timestamp("2020-01-01T00:00:00Z")`},
		{"float literal", `resource.spec.cpu > 1.5`},
		{"map keys", `resource.labels.keys().size() > 0`},
		{"map values", `resource.labels.values().size() > 0`},
		{"nested float", `[1.5].size() > 0`},
	}
	for _, tc := range cases {
		_, err := policy.NewExprRule("Deployment", "bad", tc.expr)
		assert.Error(t, err, "%s: %s", tc.name, tc.expr)
	}
}

func TestExprRuleCompileErrors(t *testing.T) {
	_, err := policy.NewExprRule("Deployment", "syntax", `resource.spec.replicas <=`)
	assert.Error(t, err)

	_, err = policy.NewExprRule("Deployment", "unknown-var", `other.field == 1`)
	assert.Error(t, err)
}

func TestExprRuleRequiresNameAndSource(t *testing.T) {
	_, err := policy.NewExprRule("Deployment", "", "true")
	assert.Error(t, err)

	_, err = policy.NewExprRule("Deployment", "empty", "")
	assert.Error(t, err)
}
