package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/resilience"
)

// Store is durable key-value byte storage for captured blobs
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps blobs in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Get returns a copy of the blob stored under key
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), blob...), true, nil
}

// Put stores a copy of blob under key
func (s *MemoryStore) Put(ctx context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = append([]byte(nil), blob...)
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)
	return nil
}

// Len returns the number of stored blobs
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// FileStore keeps one file per key so blobs survive a host restart
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// path maps a key onto a fixed-length file name
func (s *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".blob")
}

// Get reads the blob for key
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, true, nil
}

// Put writes the blob atomically through a temp file
func (s *FileStore) Put(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".blob-*")
	if err != nil {
		return fmt.Errorf("failed to create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to commit blob: %w", err)
	}
	return nil
}

// Delete removes the blob for key
func (s *FileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// BreakerStore guards another store with a circuit breaker. While the
// breaker is open every call fails fast with resilience.ErrCircuitOpen.
type BreakerStore struct {
	next    Store
	breaker *resilience.Breaker
}

// NewBreakerStore wraps next
func NewBreakerStore(next Store, breaker *resilience.Breaker) *BreakerStore {
	return &BreakerStore{next: next, breaker: breaker}
}

type getResult struct {
	blob []byte
	ok   bool
}

// Get reads through the breaker
func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := resilience.Call(ctx, s.breaker, func(ctx context.Context) (getResult, error) {
		blob, ok, err := s.next.Get(ctx, key)
		return getResult{blob: blob, ok: ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	return r.blob, r.ok, nil
}

// Put writes through the breaker
func (s *BreakerStore) Put(ctx context.Context, key string, blob []byte) error {
	return s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.next.Put(ctx, key, blob)
	})
}

// Delete removes through the breaker
func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	return s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.next.Delete(ctx, key)
	})
}

// Breaker returns the breaker guarding the store
func (s *BreakerStore) Breaker() *resilience.Breaker {
	return s.breaker
}
