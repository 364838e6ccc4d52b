package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeProfiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	prod := `name: Production
env: prod
org: ledgerline.dev
registries:
  - registry.ledgerline.dev/
pipeline:
  workers: 8
  timeout_ms: 60000
gate:
  sign: true
  archive: true
  token_ttl_min: 30
`
	dev := `name: Development
registries: []
gate:
  sign: false
  archive: false
`
	if err := os.WriteFile(filepath.Join(dir, "profile_prod.yaml"), []byte(prod), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "profile_dev.yaml"), []byte(dev), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadProfile_Prod(t *testing.T) {
	dir := writeProfiles(t)
	p, err := LoadProfile(dir, "prod")
	if err != nil {
		t.Fatalf("LoadProfile(prod): %v", err)
	}
	if p.Name != "Production" {
		t.Errorf("expected name 'Production', got %q", p.Name)
	}
	if p.Org != "ledgerline.dev" {
		t.Errorf("expected org ledgerline.dev, got %q", p.Org)
	}
	if !p.Gate.Sign {
		t.Error("prod should sign gate reports")
	}
	if !p.Gate.Archive {
		t.Error("prod should archive gate reports")
	}
	if p.Pipeline.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", p.Pipeline.Workers)
	}
	if p.Pipeline.Timeout() != time.Minute {
		t.Errorf("expected 1m timeout, got %v", p.Pipeline.Timeout())
	}
	if p.Gate.TokenTTL() != 30*time.Minute {
		t.Errorf("expected 30m token ttl, got %v", p.Gate.TokenTTL())
	}
}

func TestLoadProfile_EnvFallsBackToFilename(t *testing.T) {
	dir := writeProfiles(t)
	p, err := LoadProfile(dir, "dev")
	if err != nil {
		t.Fatalf("LoadProfile(dev): %v", err)
	}
	if p.Env != "dev" {
		t.Errorf("expected env dev from filename, got %q", p.Env)
	}
	if p.Gate.Sign {
		t.Error("dev should not sign gate reports")
	}
}

func TestLoadProfile_Missing(t *testing.T) {
	dir := writeProfiles(t)
	if _, err := LoadProfile(dir, "staging"); err == nil {
		t.Error("expected error for missing profile")
	}
}

func TestLoadAllProfiles(t *testing.T) {
	dir := writeProfiles(t)
	profiles, err := LoadAllProfiles(dir)
	if err != nil {
		t.Fatalf("LoadAllProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Errorf("expected 2 profiles, got %d", len(profiles))
	}
	if _, ok := profiles["prod"]; !ok {
		t.Error("missing prod profile")
	}
	if _, ok := profiles["dev"]; !ok {
		t.Error("missing dev profile")
	}
}

func TestLoadAllProfiles_RejectsMalformed(t *testing.T) {
	dir := writeProfiles(t)
	bad := filepath.Join(dir, "profile_staging.yaml")
	if err := os.WriteFile(bad, []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAllProfiles(dir); err == nil {
		t.Error("expected error for malformed profile")
	}
}

func TestGateOutputs_TokenTTLDefault(t *testing.T) {
	var g GateOutputs
	if g.TokenTTL() != time.Hour {
		t.Errorf("expected 1h default ttl, got %v", g.TokenTTL())
	}
}
