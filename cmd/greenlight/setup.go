package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/attest"
	"github.com/Ledgerline-Labs/greenlight/pkg/config"
	"github.com/Ledgerline-Labs/greenlight/pkg/logging"
	"github.com/Ledgerline-Labs/greenlight/pkg/policy"
	"github.com/Ledgerline-Labs/greenlight/pkg/schema"
)

const (
	defaultRulesDir   = "rules"
	defaultSchemasDir = "schemas"
)

// initLogging wires slog to the command's stderr so diagnostics and report
// output never interleave on the same stream.
func initLogging(cfg *config.Config, stderr io.Writer) {
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, stderr)
}

// checkEnv rejects environments outside the recognized set.
func checkEnv(env string) error {
	for _, e := range artifact.DefaultEnvironments {
		if env == e {
			return nil
		}
	}
	return fmt.Errorf("unknown environment %q (valid: %s)", env, strings.Join(artifact.DefaultEnvironments, ", "))
}

// loadContracts reads schema contracts from dir. A missing directory is only
// an error when the caller asked for it explicitly; the default location is
// optional.
func loadContracts(dir string) (map[string]*schema.Contract, error) {
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		if dir != defaultSchemasDir {
			return nil, fmt.Errorf("schemas directory %s not found", dir)
		}
		return map[string]*schema.Contract{}, nil
	}
	return schema.LoadContracts(dir)
}

// loadEvaluator builds the policy evaluator from dir, falling back to the
// builtin rule set when the default rules directory is absent.
func loadEvaluator(dir string, opts policy.Options) (*policy.Evaluator, error) {
	if dir == defaultRulesDir {
		if _, err := os.Stat(dir); err != nil {
			dir = ""
		}
	}
	return policy.LoadRules(dir, opts)
}

// loadOrGenerateKeyring returns the gate signing keyring. The seed comes from
// GREENLIGHT_SIGNING_KEY (hex) when set, else from <dataDir>/gate.key,
// generating and persisting a fresh seed on first use.
func loadOrGenerateKeyring(dataDir string, stderr io.Writer) (*attest.Keyring, error) {
	if keyHex := os.Getenv("GREENLIGHT_SIGNING_KEY"); keyHex != "" {
		return keyringFromHex(keyHex)
	}

	keyPath := filepath.Join(dataDir, "gate.key")
	if keyHex, err := os.ReadFile(keyPath); err == nil {
		kr, err := keyringFromHex(string(keyHex))
		if err != nil {
			return nil, fmt.Errorf("invalid key file %s: %w", keyPath, err)
		}
		return kr, nil
	}

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return nil, fmt.Errorf("save %s: %w", keyPath, err)
	}
	_, _ = fmt.Fprintf(stderr, "generated new signing key at %s\n", keyPath)

	provider, err := attest.NewMemoryKeyProviderFromSeed(seed)
	if err != nil {
		return nil, err
	}

	pubPath := filepath.Join(dataDir, "gate.pub")
	if err := os.WriteFile(pubPath, []byte(hex.EncodeToString(provider.PublicKey())), 0o644); err != nil {
		_, _ = fmt.Fprintf(stderr, "warning: failed to save %s: %v\n", pubPath, err)
	}

	return attest.NewKeyring(provider), nil
}

func keyringFromHex(keyHex string) (*attest.Keyring, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil {
		return nil, fmt.Errorf("invalid hex seed: %w", err)
	}
	provider, err := attest.NewMemoryKeyProviderFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return attest.NewKeyring(provider), nil
}
