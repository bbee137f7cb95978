package saga

import (
	"context"
	"sync"
)

// IdempotencyStore tracks which step and compensation invocations already
// committed, keyed by StepKey or CompensationKey. It is the second line of
// defense after the run store: a re-executed saga consults it before
// re-issuing a remote call.
type IdempotencyStore interface {
	// Seen reports whether the key was already marked.
	Seen(ctx context.Context, key string) (bool, error)
	// Mark records the key as committed.
	Mark(ctx context.Context, key string) error
}

// MemoryIdempotencyStore is a process-local idempotency store. Suitable for
// tests and single-node deployments where the run store provides durability.
type MemoryIdempotencyStore struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemoryIdempotencyStore creates an empty in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{keys: make(map[string]struct{})}
}

// Seen reports whether the key was already marked.
func (s *MemoryIdempotencyStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

// Mark records the key as committed.
func (s *MemoryIdempotencyStore) Mark(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
	return nil
}
