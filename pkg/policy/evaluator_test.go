package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy"
)

func TestEvaluatorDeniesUnknownKind(t *testing.T) {
	eval := policy.NewEvaluator(policy.DefaultRules(policy.Options{}))

	violations := eval.Evaluate(&artifact.Descriptor{Kind: "CustomResource", Name: "anything"})
	require.Len(t, violations, 1)
	assert.Equal(t, policy.ErrPolicyNoRules, violations[0].RuleID)
}

func TestEvaluatorUnionsAllRuleViolations(t *testing.T) {
	eval := policy.NewEvaluator(policy.DefaultRules(policy.Options{}))

	// Bad name, no labels, privileged off-registry container: every rule
	// contributes and none short-circuits the others.
	res := &artifact.Descriptor{
		Kind: "Deployment",
		Name: "my-deployment",
		Spec: map[string]any{
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []any{
						map[string]any{
							"name":  "app",
							"image": "docker.io/library/nginx:latest",
							"securityContext": map[string]any{
								"privileged": true,
							},
						},
					},
				},
			},
		},
	}

	violations := eval.Evaluate(res)

	byRule := map[string]int{}
	for _, v := range violations {
		byRule[v.RuleID]++
	}
	assert.Equal(t, 1, byRule[policy.ErrPolicyNaming])
	assert.Equal(t, 5, byRule[policy.ErrPolicyLabelMissing])
	assert.Equal(t, 1, byRule[policy.ErrPolicyPrivileged])
	assert.Equal(t, 1, byRule[policy.ErrPolicyRegistry])
	assert.Len(t, violations, 8)
}

func TestEvaluatorFullyCompliantResource(t *testing.T) {
	eval := policy.NewEvaluator(policy.DefaultRules(policy.Options{}))

	res := &artifact.Descriptor{
		Kind: "Deployment",
		Name: "prod-app-service-deploy-v1.0.0",
		Labels: map[string]string{
			"app.kubernetes.io/name":       "app-service",
			"app.kubernetes.io/version":    "1.0.0",
			"app.kubernetes.io/managed-by": "greenlight",
			"ledgerline.dev/environment":   "prod",
			"ledgerline.dev/tier":          "backend",
		},
		Spec: map[string]any{
			"replicas": 3,
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []any{
						map[string]any{
							"name":  "app",
							"image": "registry.ledgerline.dev/app-service:1.0.0",
						},
					},
				},
			},
		},
	}

	assert.Empty(t, eval.Evaluate(res))
}

func TestEvaluatorKinds(t *testing.T) {
	eval := policy.NewEvaluator(policy.DefaultRules(policy.Options{}))

	assert.Equal(t, []string{"ConfigMap", "Deployment", "Ingress", "Secret", "Service"}, eval.Kinds())
}
