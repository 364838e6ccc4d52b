package schema

import (
	"context"
	"log/slog"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
	"github.com/Ledgerline-Labs/greenlight/pkg/evidence"
	"github.com/Ledgerline-Labs/greenlight/pkg/logging"
)

// Validator pairs the pure validation function with the shared evidence log.
// Every Validate call appends exactly one record with stage "validator",
// pass or fail; the evidence trail is its only state.
type Validator struct {
	recorder *evidence.Recorder
	logger   *slog.Logger
}

// NewValidator wraps the injected recorder.
func NewValidator(rec *evidence.Recorder) *Validator {
	return &Validator{
		recorder: rec,
		logger:   logging.New("schema"),
	}
}

// Validate checks doc against the contract and records the outcome. A nil
// contract is a vacuous pass, still recorded so the subject's trail stays
// unbroken. A failed evidence append is a system error: the result is still
// returned, the error alongside it, and the caller flags the subject
// incomplete.
func (v *Validator) Validate(ctx context.Context, subject string, doc artifact.Document, c *Contract) (ValidationResult, error) {
	var res ValidationResult
	contractName := ""
	if c != nil {
		res = Validate(doc, c)
		contractName = c.Kind
	} else {
		res = ValidationResult{Valid: true}
	}

	result := evidence.ResultPass
	if !res.Valid {
		result = evidence.ResultFail
	}
	details := map[string]any{
		"contract": contractName,
		"errors":   len(res.Errors),
	}
	if names := res.FieldNames(); len(names) > 0 {
		details["fields"] = names
	}

	if _, err := v.recorder.Append(ctx, evidence.StageValidator, subject, result, details); err != nil {
		v.logger.Error("validator evidence append failed", "subject", subject, "error", err)
		return res, err
	}

	v.logger.Debug("validated document", "subject", subject, "contract", contractName, "valid", res.Valid)
	return res, nil
}

// Evidence returns this validator's trail in append order.
func (v *Validator) Evidence(ctx context.Context) ([]evidence.Record, error) {
	return v.recorder.Evidence(ctx, evidence.Filter{Stage: evidence.StageValidator})
}
