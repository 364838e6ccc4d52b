package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy"
)

func fullLabels(org string) map[string]string {
	return map[string]string{
		"app.kubernetes.io/name":       "app",
		"app.kubernetes.io/version":    "1.0.0",
		"app.kubernetes.io/managed-by": "greenlight",
		org + "/environment":           "prod",
		org + "/tier":                  "backend",
	}
}

func TestLabelRuleRequiredKeys(t *testing.T) {
	rule := policy.NewLabelRule("")

	assert.Equal(t, []string{
		"app.kubernetes.io/name",
		"app.kubernetes.io/version",
		"app.kubernetes.io/managed-by",
		"ledgerline.dev/environment",
		"ledgerline.dev/tier",
	}, rule.RequiredKeys())
}

func TestLabelRuleAllPresent(t *testing.T) {
	rule := policy.NewLabelRule("")
	res := &artifact.Descriptor{
		Kind:   "Deployment",
		Name:   "prod-app-deploy-v1.0.0",
		Labels: fullLabels("ledgerline.dev"),
	}

	assert.Empty(t, rule.Evaluate(res))
}

func TestLabelRuleReportsEveryMissingKey(t *testing.T) {
	rule := policy.NewLabelRule("")
	labels := fullLabels("ledgerline.dev")
	delete(labels, "app.kubernetes.io/version")
	delete(labels, "ledgerline.dev/tier")

	res := &artifact.Descriptor{Kind: "Deployment", Name: "prod-app-deploy-v1.0.0", Labels: labels}
	violations := rule.Evaluate(res)
	require.Len(t, violations, 2)

	var fields []string
	for _, v := range violations {
		assert.Equal(t, policy.ErrPolicyLabelMissing, v.RuleID)
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{
		"metadata.labels.app.kubernetes.io/version",
		"metadata.labels.ledgerline.dev/tier",
	}, fields)
}

func TestLabelRuleNoLabelsAtAll(t *testing.T) {
	rule := policy.NewLabelRule("")
	res := &artifact.Descriptor{Kind: "Service", Name: "prod-app-svc-v1.0.0"}

	assert.Len(t, rule.Evaluate(res), 5)
}

func TestLabelRulePresenceOnly(t *testing.T) {
	rule := policy.NewLabelRule("")
	labels := fullLabels("ledgerline.dev")
	labels["ledgerline.dev/tier"] = ""

	res := &artifact.Descriptor{Kind: "Deployment", Name: "prod-app-deploy-v1.0.0", Labels: labels}
	assert.Empty(t, rule.Evaluate(res), "an empty value still counts as present")
}

func TestLabelRuleCustomOrg(t *testing.T) {
	rule := policy.NewLabelRule("acme.io")
	res := &artifact.Descriptor{
		Kind:   "Deployment",
		Name:   "prod-app-deploy-v1.0.0",
		Labels: fullLabels("acme.io"),
	}

	assert.Empty(t, rule.Evaluate(res))

	// The default org's keys do not satisfy a custom namespace.
	res.Labels = fullLabels("ledgerline.dev")
	assert.Len(t, rule.Evaluate(res), 2)
}
