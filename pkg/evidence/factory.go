package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// StoreType selects the evidence backend.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypePostgres StoreType = "postgres"
	StoreTypeRedis    StoreType = "redis"
)

// NewStoreFromEnv creates an evidence store based on environment variables.
//
// Environment variables:
//   - EVIDENCE_STORE: "sqlite" (default), "memory", "postgres", or "redis"
//   - DATA_DIR: base directory for the SQLite file (default: "data")
//   - EVIDENCE_SQLITE_PATH: overrides the SQLite file location
//
// For Postgres:
//   - EVIDENCE_POSTGRES_DSN (required)
//
// For Redis:
//   - EVIDENCE_REDIS_ADDR (required)
//   - EVIDENCE_REDIS_PASSWORD, EVIDENCE_REDIS_DB, EVIDENCE_REDIS_STREAM (optional)
func NewStoreFromEnv() (Store, error) {
	storeType := StoreType(os.Getenv("EVIDENCE_STORE"))
	if storeType == "" {
		storeType = StoreTypeSQLite
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStore(), nil

	case StoreTypeSQLite:
		path := os.Getenv("EVIDENCE_SQLITE_PATH")
		if path == "" {
			dataDir := os.Getenv("DATA_DIR")
			if dataDir == "" {
				dataDir = "data"
			}
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			path = filepath.Join(dataDir, "evidence.db")
		}
		return OpenSQLiteStore(path)

	case StoreTypePostgres:
		dsn := os.Getenv("EVIDENCE_POSTGRES_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("EVIDENCE_POSTGRES_DSN is required for the postgres store")
		}
		return OpenPostgresStore(dsn)

	case StoreTypeRedis:
		addr := os.Getenv("EVIDENCE_REDIS_ADDR")
		if addr == "" {
			return nil, fmt.Errorf("EVIDENCE_REDIS_ADDR is required for the redis store")
		}
		db, _ := strconv.Atoi(os.Getenv("EVIDENCE_REDIS_DB"))
		return NewRedisStore(addr, os.Getenv("EVIDENCE_REDIS_PASSWORD"), db, os.Getenv("EVIDENCE_REDIS_STREAM")), nil

	default:
		return nil, fmt.Errorf("unsupported evidence store type: %s", storeType)
	}
}
