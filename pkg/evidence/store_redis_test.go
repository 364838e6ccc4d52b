package evidence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestRedisStore_Integration requires a running Redis.
// We skip if connection fails.
func TestRedisStore_Integration(t *testing.T) {
	stream := fmt.Sprintf("greenlight:evidence:test:%s", uuid.NewString())
	store := NewRedisStore("localhost:6379", "", 0, stream)
	ctx := context.Background()

	if _, err := store.client.Ping(ctx).Result(); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}
	defer func() {
		store.client.Del(ctx, stream)
		_ = store.Close()
	}()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{Timestamp: base, Stage: StageNormalizer, SubjectID: "a", Result: ResultPass, Details: map[string]any{"overrides": float64(1)}},
		{Timestamp: base.Add(time.Millisecond), Stage: StageValidator, SubjectID: "a", Result: ResultFail},
		{Timestamp: base.Add(2 * time.Millisecond), Stage: StageValidator, SubjectID: "b", Result: ResultPass},
	}
	for _, rec := range records {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	if all[0].Stage != StageNormalizer || all[0].Details["overrides"] != float64(1) {
		t.Errorf("First record mismatch: %+v", all[0])
	}

	filtered, err := store.List(ctx, Filter{Stage: StageValidator, Subject: "a"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Result != ResultFail {
		t.Errorf("Filter mismatch: %+v", filtered)
	}
}
