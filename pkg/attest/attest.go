package attest

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Ledgerline-Labs/greenlight/pkg/canonicalize"
	"github.com/Ledgerline-Labs/greenlight/pkg/gate"
)

// Attestation is a detached, self-verifying statement over one gate report.
type Attestation struct {
	RunID      string    `json:"runId"`
	Env        string    `json:"env"`
	ReportHash string    `json:"reportHash"`
	Verdict    string    `json:"verdict"`
	PublicKey  string    `json:"publicKey"`
	Signature  string    `json:"signature"`
	SignedAt   time.Time `json:"signedAt"`
}

// payload is the signed subset. Everything a verifier needs to bind the
// statement to a specific run is in here; the envelope fields above carry the
// key and signature themselves.
func (a *Attestation) payload() map[string]any {
	return map[string]any{
		"runId":      a.RunID,
		"env":        a.Env,
		"reportHash": a.ReportHash,
		"verdict":    a.Verdict,
		"signedAt":   a.SignedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Sign produces an attestation for the report with the given keyring.
func Sign(kr *Keyring, report *gate.Report) (*Attestation, error) {
	hash, err := canonicalize.Hash(report)
	if err != nil {
		return nil, fmt.Errorf("hash report: %w", err)
	}

	verdict := "fail"
	if report.Pass {
		verdict = "pass"
	}

	a := &Attestation{
		RunID:      report.RunID,
		Env:        report.Env,
		ReportHash: hash,
		Verdict:    verdict,
		PublicKey:  base64.StdEncoding.EncodeToString(kr.PublicKey()),
		SignedAt:   time.Now().UTC(),
	}

	sig, err := kr.Sign(a.payload())
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}
	a.Signature = base64.StdEncoding.EncodeToString(sig)
	return a, nil
}

// Verify checks the embedded signature over the payload.
func (a *Attestation) Verify() error {
	pub, err := base64.StdEncoding.DecodeString(a.PublicKey)
	if err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	sig, err := base64.StdEncoding.DecodeString(a.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	return Verify(ed25519.PublicKey(pub), a.payload(), sig)
}

// Matches confirms the attestation covers this exact report content.
func (a *Attestation) Matches(report *gate.Report) error {
	hash, err := canonicalize.Hash(report)
	if err != nil {
		return fmt.Errorf("hash report: %w", err)
	}
	if hash != a.ReportHash {
		return fmt.Errorf("report hash mismatch: attested %s, computed %s", a.ReportHash, hash)
	}
	if a.RunID != report.RunID {
		return fmt.Errorf("run id mismatch: attested %s, report %s", a.RunID, report.RunID)
	}
	return nil
}
