package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy"
)

func deployment(name string) *artifact.Descriptor {
	return &artifact.Descriptor{Kind: "Deployment", Name: name}
}

func TestNamingRuleAcceptsConventionalNames(t *testing.T) {
	rule := policy.NewNamingRule(nil)

	for _, name := range []string{
		"prod-app-service-deploy-v1.0.0",
		"dev-billing-deploy-v0.1.0",
		"staging-api-gateway-deploy-v2.10.3",
		"prod-app-deploy-v1.2.3-rc1",
		"prod-app-deploy-v1.2.3-hotfix2",
	} {
		assert.Empty(t, rule.Evaluate(deployment(name)), "name %q should pass", name)
	}
}

func TestNamingRuleRejectsMissingSuffix(t *testing.T) {
	rule := policy.NewNamingRule(nil)

	violations := rule.Evaluate(deployment("prod-app-service-v1.0.0"))
	require.Len(t, violations, 1)
	assert.Equal(t, policy.ErrPolicyNaming, violations[0].RuleID)
	assert.Equal(t, "metadata.name", violations[0].Field)
	assert.Equal(t, "prod-app-service-v1.0.0", violations[0].Resource)
}

func TestNamingRuleRejectsBadShapes(t *testing.T) {
	rule := policy.NewNamingRule(nil)

	for _, name := range []string{
		"qa-app-deploy-v1.0.0",         // unknown environment
		"prod-App-deploy-v1.0.0",       // uppercase in app segment
		"prod-app-deploy-1.0.0",        // missing v prefix
		"prod-app-deploy-v1.0",         // two-part version
		"prod-app-deploy-v1.0.0-rc.1",  // dot in pre-release tag
		"prod-app-deploy-v1.0.0extra",  // trailing garbage
		"app-deploy-v1.0.0",            // no environment prefix
		"prod--deploy-v1.0.0-",         // trailing dash
	} {
		violations := rule.Evaluate(deployment(name))
		require.Len(t, violations, 1, "name %q", name)
		assert.Equal(t, policy.ErrPolicyNaming, violations[0].RuleID, "name %q", name)
	}
}

func TestNamingRuleRejectsLeadingZeroVersions(t *testing.T) {
	rule := policy.NewNamingRule(nil)

	// [0-9]+ admits these; strict semver parsing does not.
	for _, name := range []string{
		"prod-app-deploy-v1.02.0",
		"prod-app-deploy-v01.0.0",
		"prod-app-deploy-v1.0.00",
	} {
		violations := rule.Evaluate(deployment(name))
		require.Len(t, violations, 1, "name %q", name)
		assert.Equal(t, policy.ErrPolicyNamingVersion, violations[0].RuleID, "name %q", name)
	}
}

func TestNamingRulePerKindSuffixes(t *testing.T) {
	rule := policy.NewNamingRule(nil)

	cases := map[string]string{
		"Service":    "prod-app-svc-v1.0.0",
		"Ingress":    "prod-app-ing-v1.0.0",
		"ConfigMap":  "prod-app-cm-v1.0.0",
		"Secret":     "prod-app-secret-v1.0.0",
		"Deployment": "prod-app-deploy-v1.0.0",
	}
	for kind, name := range cases {
		res := &artifact.Descriptor{Kind: kind, Name: name}
		assert.Empty(t, rule.Evaluate(res), "kind %s name %q", kind, name)
	}

	// A Service must not carry the Deployment suffix.
	res := &artifact.Descriptor{Kind: "Service", Name: "prod-app-deploy-v1.0.0"}
	violations := rule.Evaluate(res)
	require.Len(t, violations, 1)
	assert.Equal(t, policy.ErrPolicyNaming, violations[0].RuleID)
}

func TestNamingRuleUnmappedKind(t *testing.T) {
	rule := policy.NewNamingRule(nil)

	violations := rule.Evaluate(&artifact.Descriptor{Kind: "CronJob", Name: "prod-app-cron-v1.0.0"})
	require.Len(t, violations, 1)
	assert.Equal(t, policy.ErrPolicyNamingKind, violations[0].RuleID)
}

func TestNamingRuleCustomSuffixes(t *testing.T) {
	rule := policy.NewNamingRule(map[string]string{"Job": "job"})

	assert.Empty(t, rule.Evaluate(&artifact.Descriptor{Kind: "Job", Name: "dev-batch-job-v1.0.0"}))

	violations := rule.Evaluate(&artifact.Descriptor{Kind: "Deployment", Name: "prod-app-deploy-v1.0.0"})
	require.Len(t, violations, 1)
	assert.Equal(t, policy.ErrPolicyNamingKind, violations[0].RuleID)
}
