package attest

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Ledgerline-Labs/greenlight/pkg/canonicalize"
	"github.com/Ledgerline-Labs/greenlight/pkg/gate"
)

// DefaultIssuer is the iss claim on verdict tokens.
const DefaultIssuer = "greenlight/gate"

// ReportClaims binds a gate verdict into a JWT consumable by deploy tooling.
type ReportClaims struct {
	jwt.RegisteredClaims
	Env        string          `json:"env"`
	ReportHash string          `json:"report_hash"`
	Verdict    string          `json:"verdict"`
	Checks     map[string]bool `json:"checks,omitempty"`
}

// TokenIssuer mints and validates EdDSA verdict tokens.
type TokenIssuer struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
}

// NewTokenIssuer builds an issuer over the keyring's key material. Only
// in-process keys can mint tokens; provider backends that never release the
// private key are rejected.
func NewTokenIssuer(kr *Keyring) (*TokenIssuer, error) {
	mem, ok := kr.provider.(*MemoryKeyProvider)
	if !ok {
		return nil, fmt.Errorf("token issuance requires an in-memory key provider")
	}
	return &TokenIssuer{
		priv:   mem.privateKey(),
		pub:    mem.PublicKey(),
		issuer: DefaultIssuer,
	}, nil
}

// Issue mints a token for the report, valid for ttl.
func (ti *TokenIssuer) Issue(report *gate.Report, ttl time.Duration) (string, error) {
	hash, err := canonicalize.Hash(report)
	if err != nil {
		return "", fmt.Errorf("hash report: %w", err)
	}

	verdict := "fail"
	if report.Pass {
		verdict = "pass"
	}

	now := time.Now().UTC()
	claims := ReportClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        report.RunID,
			Subject:   "release/" + report.Env,
			Issuer:    ti.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Env:        report.Env,
		ReportHash: hash,
		Verdict:    verdict,
		Checks:     checkMap(report),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(ti.priv)
}

// Validate parses tokenString against the issuer's public key.
func (ti *TokenIssuer) Validate(tokenString string) (*ReportClaims, error) {
	return ValidateToken(tokenString, ti.pub)
}

// ValidateToken parses and verifies a verdict token against pub.
func ValidateToken(tokenString string, pub ed25519.PublicKey) (*ReportClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ReportClaims{},
		func(t *jwt.Token) (any, error) { return pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*ReportClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenSignatureInvalid
}

func checkMap(report *gate.Report) map[string]bool {
	out := make(map[string]bool, len(report.Checks))
	for _, c := range report.Checks {
		out[c.ID] = c.Passed
	}
	return out
}
