package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const compliantBase = `kind: Deployment
metadata:
  name: prod-web-deploy-v1.0.0
  labels:
    app.kubernetes.io/name: web
    app.kubernetes.io/version: 1.0.0
    app.kubernetes.io/managed-by: greenlight
    ledgerline.dev/environment: prod
    ledgerline.dev/tier: backend
  annotations:
    ledgerline.dev/rollback-plan: revert to previous release
spec:
  replicas: 2
  template:
    spec:
      containers:
        - name: web
          image: registry.ledgerline.dev/web:1.0.0
`

const prodOverlay = `spec:
  replicas: 4
`

const namelessService = `kind: Service
metadata:
  name: api
`

const deploymentContract = `kind: Deployment
allowExtra: true
fields:
  kind:
    type: string
    required: true
  metadata.name:
    type: string
    required: true
  spec.replicas:
    type: integer
    min: 1
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"greenlight"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_NoArgs(t *testing.T) {
	code, out, _ := runCLI()
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(out, "USAGE") {
		t.Error("expected usage output")
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, errOut := runCLI("launch")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(errOut, "Unknown command: launch") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI("version")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(out, version) {
		t.Errorf("stdout = %q, want version %s", out, version)
	}
}

func TestRun_Help(t *testing.T) {
	code, out, _ := runCLI("help")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	for _, cmd := range []string{"gate", "validate", "policy", "evidence", "verify"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("usage missing command %s", cmd)
		}
	}
}
