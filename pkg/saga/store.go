package saga

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrRunNotFound is returned when a saga run does not exist in the store.
var ErrRunNotFound = errors.New("saga run not found")

// ListFilter narrows a run listing.
type ListFilter struct {
	Workflow string
	State    *State
	Limit    int
	Offset   int
}

// Store persists saga run records. Every state change is saved before the
// orchestrator reports progress to callers, so a restarted coordinator can
// resume from the last committed step.
type Store interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, filter ListFilter) ([]*Run, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore is a process-local run store for tests and ephemeral
// deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryStore creates an empty in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

// Save stores a snapshot of the run.
func (s *MemoryStore) Save(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

// Get returns a copy of the run or ErrRunNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.Clone(), nil
}

// List returns runs matching the filter, ordered by creation time.
func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*Run, error) {
	s.mu.RLock()
	matched := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Workflow != "" && run.Workflow != filter.Workflow {
			continue
		}
		if filter.State != nil && run.State != *filter.State {
			continue
		}
		matched = append(matched, run.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Offset, filter.Limit), nil
}

// Delete removes a run.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return ErrRunNotFound
	}
	delete(s.runs, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func paginate(runs []*Run, offset, limit int) []*Run {
	if offset > 0 {
		if offset >= len(runs) {
			return nil
		}
		runs = runs[offset:]
	}
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs
}
