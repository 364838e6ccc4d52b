// Package attest signs gate reports so a verdict can be presented to other
// systems without re-running the pipeline. Signatures cover the canonical
// form of the report, making them stable across field ordering and encoding
// differences.
package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/Ledgerline-Labs/greenlight/pkg/canonicalize"
)

// KeyProvider is the signing backend. The in-memory provider serves local
// runs; an HSM or KMS implementation can replace it without touching callers.
type KeyProvider interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() ed25519.PublicKey
}

// MemoryKeyProvider holds an Ed25519 keypair in process memory.
type MemoryKeyProvider struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewMemoryKeyProvider generates a fresh keypair.
func NewMemoryKeyProvider() (*MemoryKeyProvider, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &MemoryKeyProvider{pub: pub, priv: priv}, nil
}

// NewMemoryKeyProviderFromSeed builds the deterministic keypair for a seed.
func NewMemoryKeyProviderFromSeed(seed []byte) (*MemoryKeyProvider, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &MemoryKeyProvider{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

func (m *MemoryKeyProvider) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(m.priv, msg), nil
}

func (m *MemoryKeyProvider) PublicKey() ed25519.PublicKey {
	return m.pub
}

func (m *MemoryKeyProvider) privateKey() ed25519.PrivateKey {
	return m.priv
}

// Keyring wraps a provider with canonical-form signing.
type Keyring struct {
	provider KeyProvider
}

// NewKeyring wraps the provider. A nil provider gets an ephemeral in-memory
// keypair.
func NewKeyring(p KeyProvider) *Keyring {
	if p == nil {
		p, _ = NewMemoryKeyProvider()
	}
	return &Keyring{provider: p}
}

// Sign serializes data to its canonical JSON form and signs those bytes.
func (k *Keyring) Sign(data any) ([]byte, error) {
	msg, err := canonicalize.JCS(data)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return k.provider.Sign(msg)
}

// PublicKey exposes the verification key.
func (k *Keyring) PublicKey() ed25519.PublicKey {
	return k.provider.PublicKey()
}

// Verify checks sig over the canonical form of data against pub.
func Verify(pub ed25519.PublicKey, data any, sig []byte) error {
	msg, err := canonicalize.JCS(data)
	if err != nil {
		return fmt.Errorf("canonicalize payload: %w", err)
	}
	if !ed25519.Verify(pub, msg, sig) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// DeriveForEnv derives a deterministic per-environment keyring from the
// master seed using HKDF-SHA256, so dev/staging/prod attestations verify
// against distinct keys while sharing one root secret.
func (k *Keyring) DeriveForEnv(env string) (*Keyring, error) {
	if env == "" {
		return nil, fmt.Errorf("env must not be empty")
	}

	master, ok := k.provider.(*MemoryKeyProvider)
	if !ok {
		return nil, fmt.Errorf("environment key derivation requires an in-memory master key")
	}
	seed := master.priv.Seed()

	hkdfReader := hkdf.New(sha256.New, seed, []byte("greenlight-env-kdf"), []byte(env))
	envSeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdfReader, envSeed); err != nil {
		return nil, fmt.Errorf("HKDF derivation failed: %w", err)
	}

	provider, err := NewMemoryKeyProviderFromSeed(envSeed)
	if err != nil {
		return nil, err
	}
	return NewKeyring(provider), nil
}
