package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/ports"
	"github.com/aretw0/redline/pkg/session"
)

// slowStore simulates latency to provoke lost updates if locking is missing.
type slowStore struct {
	data  map[string]*domain.TaskState
	mu    sync.Mutex
	saves int
}

func (s *slowStore) Save(ctx context.Context, taskID string, state *domain.TaskState) error {
	time.Sleep(2 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.TaskState)
	}
	s.data[taskID] = state.Clone()
	s.saves++
	return nil
}

func (s *slowStore) Load(ctx context.Context, taskID string) (*domain.TaskState, error) {
	time.Sleep(2 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.data[taskID]; ok {
		return state.Clone(), nil
	}
	return nil, domain.ErrTaskNotFound
}

func (s *slowStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, taskID)
	return nil
}

func (s *slowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_UpdateIsSerialized(t *testing.T) {
	store := &slowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	require.NoError(t, manager.Create(ctx, domain.NewTaskState(id, "", nil, nil)))

	var wg sync.WaitGroup
	writers := 10
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Update(ctx, id, func(s *domain.TaskState) (*domain.TaskState, error) {
				s.RetryCount++
				return s, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, writers, state.RetryCount, "no update was lost")
}

func TestManager_UpdateErrorWritesNothing(t *testing.T) {
	store := &slowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()

	require.NoError(t, manager.Create(ctx, domain.NewTaskState("t1", "", nil, nil)))
	saves := store.saves

	boom := errors.New("boom")
	_, err := manager.Update(ctx, "t1", func(s *domain.TaskState) (*domain.TaskState, error) {
		s.RetryCount = 99
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	unchanged, err := manager.Update(ctx, "t1", func(s *domain.TaskState) (*domain.TaskState, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Zero(t, unchanged.RetryCount)
	assert.Equal(t, saves, store.saves)

	_, err = manager.Update(ctx, "missing", func(s *domain.TaskState) (*domain.TaskState, error) {
		return s, nil
	})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestManager_CreateIsExclusive(t *testing.T) {
	manager := session.NewManager(&slowStore{})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, conflicts int
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.Create(ctx, domain.NewTaskState("atomic-init", "", nil, nil))
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, domain.ErrTaskExists) {
				conflicts++
				return
			}
			assert.NoError(t, err)
			created++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, conflicts)
}

type countingLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	ttl     time.Duration
	keys    []string
	unlocks int
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, errors.New("already held")
	}
	l.held[key] = true
	l.ttl = ttl
	l.keys = append(l.keys, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.unlocks++
		return nil
	}, nil
}

func TestManager_TaskLockIsPerTask(t *testing.T) {
	locker := &countingLocker{}
	manager := session.NewManager(&slowStore{}, session.WithLocker(locker), session.WithLockTTL(5*time.Second))
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "t1", domain.NewTaskState("t1", "", nil, nil)))
	_, err := manager.Load(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, locker.ttl)
	assert.Equal(t, []string{"t1", "t1"}, locker.keys, "locks are keyed by task id")
	assert.Equal(t, 2, locker.unlocks)
	assert.Empty(t, locker.held)
}
