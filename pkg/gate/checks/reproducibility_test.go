package checks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/gate/checks"
)

func TestReproducibilityDeterministicMerge(t *testing.T) {
	overlay := artifact.Document{"spec": map[string]any{"replicas": 5}}
	rc := runContextFor(
		outcomeFor(t, "app", compliantDoc("prod-app-deploy-v1.0.0"), overlay),
		outcomeFor(t, "web", compliantDoc("prod-web-deploy-v1.0.0"), nil),
	)

	res := checks.NewReproducibility().Run(context.Background(), rc)
	assert.True(t, res.Passed, "diags: %v", res.Diagnostics)
}

func TestReproducibilitySkipsBrokenArtifacts(t *testing.T) {
	out := outcomeFor(t, "app", compliantDoc("prod-app-deploy-v1.0.0"), nil)
	out.Err = errors.New("unreadable input")

	res := checks.NewReproducibility().Run(context.Background(), runContextFor(out))
	require.False(t, res.Passed)
	assert.Contains(t, res.Diagnostics[0], "not derivable")
}

func TestReproducibilityUnicodeKeysStillConverge(t *testing.T) {
	doc := compliantDoc("prod-app-deploy-v1.0.0")
	doc["metadata"].(map[string]any)["labels"].(map[string]any)["ledgerline.dev/tier"] = "backénd"

	rc := runContextFor(outcomeFor(t, "app", doc, nil))
	res := checks.NewReproducibility().Run(context.Background(), rc)
	assert.True(t, res.Passed, "diags: %v", res.Diagnostics)
}
