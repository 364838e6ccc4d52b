package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Ledgerline-Labs/greenlight/pkg/logging"
)

// Recorder is the stage-facing front of the evidence log. It stamps records
// with a per-subject strictly monotonic clock, optionally throttles appends
// to protect a shared store, and retries a failed append once before giving
// up.
type Recorder struct {
	store   Store
	clock   func() time.Time
	limiter *rate.Limiter
	logger  *slog.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithClock injects a time source. Tests use it for deterministic timestamps.
func WithClock(clock func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.clock = clock
	}
}

// WithRateLimit throttles appends to rps records per second with the given
// burst. Zero rps disables throttling.
func WithRateLimit(rps float64, burst int) RecorderOption {
	return func(r *Recorder) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewRecorder wraps a store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		clock:  time.Now,
		logger: logging.New("evidence"),
		last:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append stamps and durably appends one record. Timestamps for the same
// subject are strictly increasing even when the clock stalls or callers
// append concurrently.
func (r *Recorder) Append(ctx context.Context, stage Stage, subject, result string, details map[string]any) (Record, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return Record{}, fmt.Errorf("evidence append throttled: %w", err)
		}
	}

	rec := Record{
		Timestamp: r.stamp(subject),
		Stage:     stage,
		SubjectID: subject,
		Result:    result,
		Details:   details,
	}

	if err := r.store.Append(ctx, rec); err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrInvalidRecord) {
			return Record{}, err
		}
		r.logger.Warn("evidence append failed, retrying once",
			"subject", subject, "stage", string(stage), "error", err)
		if err := r.store.Append(ctx, rec); err != nil {
			return Record{}, fmt.Errorf("evidence append failed after retry: %w", err)
		}
	}
	return rec, nil
}

// Evidence reads back matching records ordered by ascending timestamp.
func (r *Recorder) Evidence(ctx context.Context, f Filter) ([]Record, error) {
	return r.store.List(ctx, f)
}

// stamp returns the next timestamp for subject: the current clock reading,
// bumped by a nanosecond whenever it would not advance past the previous
// stamp for the same subject.
func (r *Recorder) stamp(subject string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	if last, ok := r.last[subject]; ok && !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	r.last[subject] = now
	return now
}
