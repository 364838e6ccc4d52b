package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateCmd_Clean(t *testing.T) {
	dir := writeFiles(t, map[string]string{"web.yaml": compliantBase})
	schemas := writeFiles(t, map[string]string{"Deployment.schema.yaml": deploymentContract})

	code, out, errOut := runCLI("validate", "--dir", dir, "--env", "prod", "--schemas", schemas)
	if code != 0 {
		t.Fatalf("exit = %d\nstdout: %s\nstderr: %s", code, out, errOut)
	}
	if !strings.Contains(out, "Deployment/prod-web-deploy-v1.0.0") {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(out, "structurally valid") {
		t.Errorf("stdout = %q", out)
	}
}

func TestValidateCmd_StructuralFindings(t *testing.T) {
	bad := `kind: Deployment
metadata:
  name: prod-web-deploy-v1.0.0
spec:
  replicas: 0
`
	dir := writeFiles(t, map[string]string{"web.yaml": bad})
	schemas := writeFiles(t, map[string]string{"Deployment.schema.yaml": deploymentContract})

	code, out, _ := runCLI("validate", "--dir", dir, "--env", "prod", "--schemas", schemas)
	if code != 1 {
		t.Fatalf("exit = %d, want 1\nstdout: %s", code, out)
	}
	if !strings.Contains(out, "ERR_SCHEMA_OUT_OF_RANGE") {
		t.Errorf("stdout = %q", out)
	}
}

func TestValidateCmd_NoKindDocument(t *testing.T) {
	dir := writeFiles(t, map[string]string{"odd.yaml": "metadata:\n  name: x\n"})

	code, out, _ := runCLI("validate", "--dir", dir, "--env", "dev")
	if code != 1 {
		t.Fatalf("exit = %d, want 1\nstdout: %s", code, out)
	}
	if !strings.Contains(out, "no kind") {
		t.Errorf("stdout = %q", out)
	}
}

func TestValidateCmd_UnknownKindSkipsContract(t *testing.T) {
	dir := writeFiles(t, map[string]string{"api.yaml": namelessService})
	schemas := writeFiles(t, map[string]string{"Deployment.schema.yaml": deploymentContract})

	// Service has no contract; structurally it passes even though policy
	// would reject the name.
	code, _, _ := runCLI("validate", "--dir", dir, "--env", "prod", "--schemas", schemas)
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
}

func TestPolicyCmd_Violations(t *testing.T) {
	dir := writeFiles(t, map[string]string{"api.yaml": namelessService})

	code, out, _ := runCLI("policy", "--dir", dir, "--env", "prod")
	if code != 1 {
		t.Fatalf("exit = %d, want 1\nstdout: %s", code, out)
	}
	if !strings.Contains(out, "ERR_POLICY_NAMING") {
		t.Errorf("stdout = %q", out)
	}
}

func TestPolicyCmd_Compliant(t *testing.T) {
	dir := writeFiles(t, map[string]string{"web.yaml": compliantBase})

	code, out, _ := runCLI("policy", "--dir", dir, "--env", "prod")
	if code != 0 {
		t.Fatalf("exit = %d\nstdout: %s", code, out)
	}
	if !strings.Contains(out, "compliant") {
		t.Errorf("stdout = %q", out)
	}
}

func TestPolicyCmd_RuleOverrides(t *testing.T) {
	rules := writeFiles(t, map[string]string{
		"service.rules.yaml": "kind: Service\nnaming:\n  suffix: svc\n",
	})
	// The override keeps only the naming rule for Service, so the missing
	// labels no longer count.
	doc := `kind: Service
metadata:
  name: prod-api-svc-v1.0.0
`
	dir := writeFiles(t, map[string]string{"api.yaml": doc})

	code, out, _ := runCLI("policy", "--dir", dir, "--env", "prod", "--rules", rules)
	if code != 0 {
		t.Fatalf("exit = %d\nstdout: %s", code, out)
	}
}

func TestEvidenceCmd_EmptyLog(t *testing.T) {
	t.Setenv("EVIDENCE_STORE", "memory")

	code, out, _ := runCLI("evidence")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, "0 records") {
		t.Errorf("stdout = %q", out)
	}
}

func TestEvidenceCmd_BadStage(t *testing.T) {
	code, _, errOut := runCLI("evidence", "--stage", "launchpad")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(errOut, "unknown stage") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestEvidenceCmd_ReadsBackGateRun(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("EVIDENCE_STORE", "sqlite")
	t.Setenv("EVIDENCE_SQLITE_PATH", filepath.Join(dataDir, "evidence.db"))

	dir := writeFiles(t, map[string]string{"web.yaml": compliantBase})
	if code, out, errOut := runCLI("gate", "--dir", dir, "--env", "prod"); code != 0 {
		t.Fatalf("gate exit = %d\nstdout: %s\nstderr: %s", code, out, errOut)
	}

	code, out, _ := runCLI("evidence", "--stage", "gate")
	if code != 0 {
		t.Fatalf("evidence exit = %d", code)
	}
	if !strings.Contains(out, "release/prod") {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(out, "1 records") {
		t.Errorf("stdout = %q", out)
	}
}

func TestVerifyCmd_RequiresSource(t *testing.T) {
	code, _, errOut := runCLI("verify")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(errOut, "--addr or --file") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestVerifyCmd_UnsignedBundleFails(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("EVIDENCE_STORE", "memory")
	t.Setenv("ARCHIVE_STORE", "fs")
	t.Setenv("DATA_DIR", dataDir)

	dir := writeFiles(t, map[string]string{"web.yaml": compliantBase})
	code, out, _ := runCLI("gate", "--dir", dir, "--env", "prod", "--archive", "--json")
	if code != 0 {
		t.Fatalf("gate exit = %d\nstdout: %s", code, out)
	}

	var doc gateOutput
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatal(err)
	}

	vcode, vout, _ := runCLI("verify", "--addr", doc.ArchiveAddr)
	if vcode != 1 {
		t.Fatalf("verify exit = %d, want 1\nstdout: %s", vcode, vout)
	}
	if !strings.Contains(vout, "unsigned") {
		t.Errorf("stdout = %q", vout)
	}
}
