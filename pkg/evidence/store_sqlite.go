package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the log in an embedded SQLite database. It is the
// default durable backend for local and single-host runs.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and migrates it.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return NewSQLiteStore(db)
}

// NewSQLiteStore wraps an existing handle and migrates the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS evidence (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		stage TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		result TEXT NOT NULL,
		details JSON
	);
	CREATE INDEX IF NOT EXISTS idx_evidence_subject ON evidence(subject_id);
	CREATE INDEX IF NOT EXISTS idx_evidence_stage ON evidence(stage);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Append inserts one record. Rows are never updated or deleted.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	detailsJSON, _ := json.Marshal(rec.Details)
	timestamp := rec.Timestamp.UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence (timestamp, stage, subject_id, result, details) VALUES (?, ?, ?, ?, ?)`,
		timestamp, string(rec.Stage), rec.SubjectID, rec.Result, string(detailsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evidence record: %w", err)
	}
	return nil
}

// List returns matching records ordered by ascending timestamp; insertion
// order breaks ties.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT timestamp, stage, subject_id, result, details FROM evidence`
	var (
		conds []string
		args  []any
	)
	if f.Stage != "" {
		conds = append(conds, "stage = ?")
		args = append(args, string(f.Stage))
	}
	if f.Subject != "" {
		conds = append(conds, "subject_id = ?")
		args = append(args, f.Subject)
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
		rec, err := scanEvidenceRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanEvidenceRow(rows *sql.Rows) (Record, error) {
	var (
		timestamp   string
		stage       string
		subjectID   string
		result      string
		detailsJSON sql.NullString
	)
	if err := rows.Scan(&timestamp, &stage, &subjectID, &result, &detailsJSON); err != nil {
		return Record{}, err
	}

	var details map[string]any
	if detailsJSON.Valid && detailsJSON.String != "" {
		_ = json.Unmarshal([]byte(detailsJSON.String), &details)
	}

	return Record{
		Timestamp: parseTimestamp(timestamp),
		Stage:     Stage(stage),
		SubjectID: subjectID,
		Result:    result,
		Details:   details,
	}, nil
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
