package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
)

func TestMerge_EmptyOverlay(t *testing.T) {
	base := artifact.Document{
		"database": map[string]any{"host": "localhost", "port": 5432},
	}

	res := Merge(base, nil, "staging")

	assert.Equal(t, base, res.Merged)
	assert.Empty(t, res.Overrides)
	assert.Equal(t, "staging", res.Env)

	// The result is a copy, not an alias
	res.Merged["database"].(map[string]any)["host"] = "mutated"
	assert.Equal(t, "localhost", base["database"].(map[string]any)["host"])
}

func TestMerge_NestedMappings(t *testing.T) {
	base := artifact.Document{
		"database": map[string]any{"host": "localhost", "port": 5432},
		"cache":    map[string]any{"ttl": 300},
	}
	overlay := artifact.Document{
		"database": map[string]any{"host": "prod-db", "port": 5433},
		"cache":    map[string]any{"enabled": true},
	}

	res := Merge(base, overlay, "prod")

	want := artifact.Document{
		"database": map[string]any{"host": "prod-db", "port": 5433},
		"cache":    map[string]any{"ttl": 300, "enabled": true},
	}
	assert.Equal(t, want, res.Merged)

	// Sorted-key depth-first order: cache before database
	paths := overridePaths(res)
	assert.Equal(t, []string{"cache.enabled", "database.host", "database.port"}, paths)
}

func TestMerge_NeverDeletesBaseKeys(t *testing.T) {
	base := artifact.Document{"keep": "me", "also": map[string]any{"deep": 1}}
	overlay := artifact.Document{"new": "value"}

	res := Merge(base, overlay, "dev")

	assert.Equal(t, "me", res.Merged["keep"])
	assert.Equal(t, 1, res.Merged["also"].(map[string]any)["deep"])
	assert.Equal(t, "value", res.Merged["new"])
}

func TestMerge_ArraysReplacedWholesale(t *testing.T) {
	base := artifact.Document{"hosts": []any{"a", "b", "c"}}
	overlay := artifact.Document{"hosts": []any{"z"}}

	res := Merge(base, overlay, "dev")

	assert.Equal(t, []any{"z"}, res.Merged["hosts"])
	require.Len(t, res.Overrides, 1)
	assert.Equal(t, "hosts", res.Overrides[0].Path)
	assert.Equal(t, []any{"a", "b", "c"}, res.Overrides[0].BaseValue)
	assert.Equal(t, []any{"z"}, res.Overrides[0].OverlayValue)
}

func TestMerge_TypeMismatchOverlayWins(t *testing.T) {
	base := artifact.Document{"limits": "none"}
	overlay := artifact.Document{"limits": map[string]any{"cpu": "500m"}}

	res := Merge(base, overlay, "dev")

	assert.Equal(t, map[string]any{"cpu": "500m"}, res.Merged["limits"])
	require.Len(t, res.Overrides, 1)
	assert.Equal(t, "limits", res.Overrides[0].Path)
	assert.Equal(t, "none", res.Overrides[0].BaseValue)
}

func TestMerge_ScalarReplacesMapping(t *testing.T) {
	base := artifact.Document{"limits": map[string]any{"cpu": "500m"}}
	overlay := artifact.Document{"limits": "unbounded"}

	res := Merge(base, overlay, "dev")

	assert.Equal(t, "unbounded", res.Merged["limits"])
	require.Len(t, res.Overrides, 1)
	assert.Equal(t, map[string]any{"cpu": "500m"}, res.Overrides[0].BaseValue)
}

func TestMerge_NewSubtreeRecordsLeaves(t *testing.T) {
	base := artifact.Document{}
	overlay := artifact.Document{
		"tls": map[string]any{"cert": "/etc/cert", "key": "/etc/key"},
	}

	res := Merge(base, overlay, "dev")

	paths := overridePaths(res)
	assert.Equal(t, []string{"tls.cert", "tls.key"}, paths)
	for _, o := range res.Overrides {
		assert.Nil(t, o.BaseValue)
	}
}

func TestMerge_EqualValuesNotRecorded(t *testing.T) {
	base := artifact.Document{"replicas": 3, "image": "repo/app"}
	overlay := artifact.Document{"replicas": 3, "image": "repo/app:v2"}

	res := Merge(base, overlay, "dev")

	paths := overridePaths(res)
	assert.Equal(t, []string{"image"}, paths)
}

func TestMerge_ExplicitNullKeepsKey(t *testing.T) {
	base := artifact.Document{"proxy": "http://internal"}
	overlay := artifact.Document{"proxy": nil}

	res := Merge(base, overlay, "dev")

	v, exists := res.Merged["proxy"]
	assert.True(t, exists)
	assert.Nil(t, v)
	require.Len(t, res.Overrides, 1)
	assert.Equal(t, "http://internal", res.Overrides[0].BaseValue)
}

func TestMerge_UniqueOverridePaths(t *testing.T) {
	base := artifact.Document{
		"a": map[string]any{"b": 1, "c": map[string]any{"d": 2}},
	}
	overlay := artifact.Document{
		"a": map[string]any{"b": 10, "c": map[string]any{"d": 20, "e": 30}},
	}

	res := Merge(base, overlay, "dev")

	seen := map[string]bool{}
	for _, o := range res.Overrides {
		assert.False(t, seen[o.Path], "duplicate override path %s", o.Path)
		seen[o.Path] = true
	}
}

func TestMerge_InputsNotMutated(t *testing.T) {
	base := artifact.Document{"a": map[string]any{"x": 1}}
	overlay := artifact.Document{"a": map[string]any{"x": 2}}

	_ = Merge(base, overlay, "dev")

	assert.Equal(t, 1, base["a"].(map[string]any)["x"])
	assert.Equal(t, 2, overlay["a"].(map[string]any)["x"])
}

func overridePaths(res MergeResult) []string {
	paths := make([]string, 0, len(res.Overrides))
	for _, o := range res.Overrides {
		paths = append(paths, o.Path)
	}
	return paths
}
