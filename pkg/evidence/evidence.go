// Package evidence provides the append-only audit log every validation stage
// writes to. Records are immutable once appended and per-subject timestamps
// are strictly monotonic, so the recorded chain of decisions is provable
// after the fact.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Stage identifies the pipeline stage that produced a record.
type Stage string

const (
	StageNormalizer Stage = "normalizer"
	StageValidator  Stage = "validator"
	StagePolicy     Stage = "policy"
	StageGate       Stage = "gate"
)

// Valid reports whether s is one of the recognized stages.
func (s Stage) Valid() bool {
	switch s {
	case StageNormalizer, StageValidator, StagePolicy, StageGate:
		return true
	}
	return false
}

// Outcome values for the result field.
const (
	ResultPass  = "pass"
	ResultFail  = "fail"
	ResultError = "error"
)

// Record is one immutable audit entry. The wire shape is fixed: timestamp
// (ISO-8601), stage, subjectId, result, details.
type Record struct {
	Timestamp time.Time      `json:"timestamp"`
	Stage     Stage          `json:"stage"`
	SubjectID string         `json:"subjectId"`
	Result    string         `json:"result"`
	Details   map[string]any `json:"details"`
}

// Validate rejects records that would corrupt the audit trail.
func (r Record) Validate() error {
	if !r.Stage.Valid() {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidRecord, r.Stage)
	}
	if r.SubjectID == "" {
		return fmt.Errorf("%w: empty subjectId", ErrInvalidRecord)
	}
	if r.Result == "" {
		return fmt.Errorf("%w: empty result", ErrInvalidRecord)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrInvalidRecord)
	}
	return nil
}

// ErrInvalidRecord is returned when an append would violate the record contract.
var ErrInvalidRecord = errors.New("invalid evidence record")

// Filter narrows a read of the log. Zero values match everything.
type Filter struct {
	Stage   Stage
	Subject string
}

// Matches reports whether a record passes the filter.
func (f Filter) Matches(r Record) bool {
	if f.Stage != "" && r.Stage != f.Stage {
		return false
	}
	if f.Subject != "" && r.SubjectID != f.Subject {
		return false
	}
	return true
}

// Store is the durable collaborator behind the recorder. Append is
// at-least-once durable; List returns the complete retained log ordered by
// ascending timestamp. Implementations never update or delete a record.
type Store interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, f Filter) ([]Record, error)
}
