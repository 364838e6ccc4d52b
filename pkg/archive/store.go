// Package archive provides content-addressed storage for completed gate
// runs. A stored bundle is retrievable by its sha256 hash alone, which makes
// the archive tamper-evident: a changed byte changes the address.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// HashPrefix tags every archive address with its digest algorithm.
const HashPrefix = "sha256:"

// Store is the content-addressed blob contract.
type Store interface {
	// Put persists data and returns its content address.
	Put(ctx context.Context, data []byte) (string, error)
	// Get retrieves data by content address.
	Get(ctx context.Context, hash string) ([]byte, error)
	// Exists reports whether a blob is present.
	Exists(ctx context.Context, hash string) (bool, error)
	// Delete removes a blob. Absent blobs delete without error.
	Delete(ctx context.Context, hash string) error
}

// Address computes the content address for data.
func Address(data []byte) string {
	sum := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(sum[:])
}

// rawHash validates an address and strips the algorithm prefix.
func rawHash(hash string) (string, error) {
	raw, ok := strings.CutPrefix(hash, HashPrefix)
	if !ok {
		return "", fmt.Errorf("invalid hash format: %s", hash)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid hash hex: %w", err)
	}
	return raw, nil
}

// FileStore keeps blobs as flat files under one directory.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore ensures the directory and returns the store.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) blobPath(raw string) string {
	return filepath.Join(s.baseDir, raw+".blob")
}

// Put writes the blob atomically: temp file then rename, so a crashed write
// never leaves a partial blob at its final address. Re-putting existing
// content is a no-op.
func (s *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := Address(data)
	raw := strings.TrimPrefix(addr, HashPrefix)
	path := s.blobPath(raw)

	if _, err := os.Stat(path); err == nil {
		return addr, nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return addr, nil
}

func (s *FileStore) Get(ctx context.Context, hash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := rawHash(hash)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.blobPath(raw))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", hash)
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := rawHash(hash)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(s.blobPath(raw))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat blob: %w", err)
}

func (s *FileStore) Delete(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := rawHash(hash)
	if err != nil {
		return err
	}

	if err := os.Remove(s.blobPath(raw)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
