package evidence

import (
	"context"
	"sort"
	"sync"

	"github.com/Ledgerline-Labs/greenlight/pkg/artifact"
)

// MemoryStore keeps the log in process memory. It backs single-run pipeline
// invocations and tests; durable deployments use the SQL or Redis stores.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of rec. The caller keeps ownership of its details map.
func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, copyRecord(rec))
	return nil
}

// List returns matching records ordered by ascending timestamp. Ties keep
// append order.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if f.Matches(rec) {
			out = append(out, copyRecord(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Len reports the total number of appended records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func copyRecord(rec Record) Record {
	cp := rec
	if rec.Details != nil {
		cp.Details = artifact.DeepCopy(rec.Details).(map[string]any)
	}
	return cp
}
