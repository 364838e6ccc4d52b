package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	docs, err := ParseDocuments(strings.NewReader(`
kind: Deployment
metadata:
  name: prod-payments-api-deploy-v1.2.3
  labels:
    app.kubernetes.io/name: payments-api
    app.kubernetes.io/version: 1.2.3
  annotations:
    ledgerline.dev/rollback-plan: helm rollback payments-api
spec:
  replicas: 3
`))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d, err := Describe(docs[0])
	require.NoError(t, err)

	assert.Equal(t, "Deployment", d.Kind)
	assert.Equal(t, "prod-payments-api-deploy-v1.2.3", d.Name)
	assert.Equal(t, "payments-api", d.Labels["app.kubernetes.io/name"])
	// YAML parses the unquoted version as a float; descriptor coerces to string
	assert.Equal(t, "1.2.3", d.Labels["app.kubernetes.io/version"])
	assert.Equal(t, "helm rollback payments-api", d.Annotations["ledgerline.dev/rollback-plan"])
	assert.Equal(t, 3, d.Spec["replicas"])
	assert.Equal(t, "Deployment/prod-payments-api-deploy-v1.2.3", d.Subject())
}

func TestDescribe_MissingKind(t *testing.T) {
	_, err := Describe(Document{"metadata": map[string]any{"name": "x"}})
	assert.Error(t, err)
}

func TestDescribe_SparseDocument(t *testing.T) {
	d, err := Describe(Document{"kind": "Service"})
	require.NoError(t, err)
	assert.Equal(t, "Service", d.Kind)
	assert.Empty(t, d.Name)
	assert.Nil(t, d.Labels)
}

func TestParseDocuments_MultiDoc(t *testing.T) {
	docs, err := ParseDocuments(strings.NewReader(`
kind: Deployment
metadata:
  name: a
---
# comment-only document
---
kind: Service
metadata:
  name: b
`))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Deployment", docs[0]["kind"])
	assert.Equal(t, "Service", docs[1]["kind"])
}

func TestParseDocuments_Malformed(t *testing.T) {
	_, err := ParseDocuments(strings.NewReader("kind: [unclosed"))
	assert.Error(t, err)
}

func TestDeepCopy_Independence(t *testing.T) {
	orig := Document{
		"spec": map[string]any{
			"containers": []any{map[string]any{"image": "a"}},
		},
	}

	cp := DeepCopy(orig).(map[string]any)
	cp["spec"].(map[string]any)["containers"].([]any)[0].(map[string]any)["image"] = "b"

	img := orig["spec"].(map[string]any)["containers"].([]any)[0].(map[string]any)["image"]
	assert.Equal(t, "a", img)
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[string]any{"c": 1, "a": 2, "b": 3})
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}
