package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Ledgerline-Labs/greenlight/pkg/attest"
	"github.com/Ledgerline-Labs/greenlight/pkg/canonicalize"
	"github.com/Ledgerline-Labs/greenlight/pkg/evidence"
	"github.com/Ledgerline-Labs/greenlight/pkg/gate"
)

// Bundle is everything needed to audit one gate run after the fact: the
// report, its evidence trail, and optionally a signature over the report.
type Bundle struct {
	Report      *gate.Report        `json:"report"`
	Evidence    []evidence.Record   `json:"evidence"`
	Attestation *attest.Attestation `json:"attestation,omitempty"`
}

// SaveBundle serializes the bundle canonically and stores it, returning the
// content address. Identical runs archive to identical addresses.
func SaveBundle(ctx context.Context, store Store, b *Bundle) (string, error) {
	if b.Report == nil {
		return "", fmt.Errorf("bundle has no report")
	}
	data, err := canonicalize.JCS(b)
	if err != nil {
		return "", fmt.Errorf("serialize bundle: %w", err)
	}
	addr, err := store.Put(ctx, data)
	if err != nil {
		return "", fmt.Errorf("archive bundle %s: %w", b.Report.RunID, err)
	}
	return addr, nil
}

// LoadBundle retrieves and decodes a bundle by content address.
func LoadBundle(ctx context.Context, store Store, hash string) (*Bundle, error) {
	data, err := store.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", hash, err)
	}
	return &b, nil
}
