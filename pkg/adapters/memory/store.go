package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/redline/pkg/domain"
)

// Store implements ports.CheckpointStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.TaskState
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.TaskState),
	}
}

// Save keeps a deep copy of the checkpoint, mirroring what a serializing store does.
func (s *Store) Save(ctx context.Context, taskID string, state *domain.TaskState) error {
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[taskID] = copied
	return nil
}

// Load returns a copy so callers can't mutate stored checkpoints by pointer.
func (s *Store) Load(ctx context.Context, taskID string) (*domain.TaskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return state.Clone(), nil
}

// Delete removes the checkpoint.
func (s *Store) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, taskID)
	return nil
}

// List returns stored task ids in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
