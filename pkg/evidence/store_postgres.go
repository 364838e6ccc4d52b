package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists the log in PostgreSQL, for deployments where several
// CI workers share one evidence database.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects with the given DSN and migrates the schema.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresStore(db)
}

// NewPostgresStore wraps an existing handle and migrates the schema.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS evidence (
		seq BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		stage TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		result TEXT NOT NULL,
		details JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_evidence_subject ON evidence(subject_id);
	CREATE INDEX IF NOT EXISTS idx_evidence_stage ON evidence(stage);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Append inserts one record. Rows are never updated or deleted.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	detailsJSON, _ := json.Marshal(rec.Details)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence (timestamp, stage, subject_id, result, details) VALUES ($1, $2, $3, $4, $5)`,
		rec.Timestamp.UTC(), string(rec.Stage), rec.SubjectID, rec.Result, string(detailsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evidence record: %w", err)
	}
	return nil
}

// List returns matching records ordered by ascending timestamp; insertion
// order breaks ties.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT timestamp, stage, subject_id, result, details FROM evidence`
	var (
		conds []string
		args  []any
	)
	if f.Stage != "" {
		args = append(args, string(f.Stage))
		conds = append(conds, fmt.Sprintf("stage = $%d", len(args)))
	}
	if f.Subject != "" {
		args = append(args, f.Subject)
		conds = append(conds, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY timestamp ASC, seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var (
			rec         Record
			stage       string
			detailsJSON sql.NullString
		)
		if err := rows.Scan(&rec.Timestamp, &stage, &rec.SubjectID, &rec.Result, &detailsJSON); err != nil {
			return nil, err
		}
		rec.Stage = Stage(stage)
		if detailsJSON.Valid && detailsJSON.String != "" {
			_ = json.Unmarshal([]byte(detailsJSON.String), &rec.Details)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Close releases the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
