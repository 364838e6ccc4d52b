package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStream = "greenlight:evidence"

// RedisStore appends records to a Redis stream. Stream entries are
// insertion-ordered and never rewritten, which matches the append-only
// contract; XADD is atomic, so concurrent writers need no coordination here.
type RedisStore struct {
	client *redis.Client
	stream string
}

// NewRedisStore connects to Redis and logs records to the given stream.
// An empty stream name selects the default.
func NewRedisStore(addr, password string, db int, stream string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if stream == "" {
		stream = defaultStream
	}
	return &RedisStore{client: rdb, stream: stream}
}

// Append adds one entry to the stream.
func (s *RedisStore) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	detailsJSON, _ := json.Marshal(rec.Details)

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"timestamp": rec.Timestamp.UTC().Format(time.RFC3339Nano),
			"stage":     string(rec.Stage),
			"subjectId": rec.SubjectID,
			"result":    rec.Result,
			"details":   string(detailsJSON),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd: %w", err)
	}
	return nil
}

// List reads the whole stream and filters client-side. Entries come back in
// insertion order; the result is re-sorted by record timestamp with insertion
// order breaking ties.
func (s *RedisStore) List(ctx context.Context, f Filter) ([]Record, error) {
	msgs, err := s.client.XRange(ctx, s.stream, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("redis xrange: %w", err)
	}

	records := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		rec, err := recordFromValues(msg.Values)
		if err != nil {
			return nil, fmt.Errorf("stream entry %s: %w", msg.ID, err)
		}
		if f.Matches(rec) {
			records = append(records, rec)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// Close releases the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func recordFromValues(values map[string]any) (Record, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	ts, err := time.Parse(time.RFC3339Nano, str("timestamp"))
	if err != nil {
		return Record{}, fmt.Errorf("bad timestamp %q: %w", str("timestamp"), err)
	}

	rec := Record{
		Timestamp: ts,
		Stage:     Stage(str("stage")),
		SubjectID: str("subjectId"),
		Result:    str("result"),
	}
	if d := str("details"); d != "" && d != "null" {
		_ = json.Unmarshal([]byte(d), &rec.Details)
	}
	return rec, nil
}
