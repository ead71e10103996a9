package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/redline/internal/logging"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates checkpoint access, ensuring safe concurrent operations.
// Unused lock entries are garbage collected by reference counting.
type Manager struct {
	store ports.CheckpointStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.TaskLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.TaskLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given checkpoint store.
func NewManager(store ports.CheckpointStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(taskID) after unlocking.
func (m *Manager) acquire(taskID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[taskID]
	if !exists {
		entry = &lockEntry{}
		m.locks[taskID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[taskID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, taskID)
	}
}

// Load retrieves a checkpoint from the store.
func (m *Manager) Load(ctx context.Context, taskID string) (*domain.TaskState, error) {
	var state *domain.TaskState
	err := m.WithLock(ctx, taskID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, taskID)
		return err
	})
	return state, err
}

// Create persists a brand new task. It fails with domain.ErrTaskExists when the id is taken.
func (m *Manager) Create(ctx context.Context, state *domain.TaskState) error {
	return m.WithLock(ctx, state.TaskID, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, state.TaskID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", domain.ErrTaskExists, state.TaskID)
		case !errors.Is(err, domain.ErrTaskNotFound):
			return fmt.Errorf("failed to check task existence: %w", err)
		}
		return m.store.Save(ctx, state.TaskID, state)
	})
}

// Update loads a checkpoint, applies fn and saves the result, all under the task lock.
// Nothing is written when fn returns an error or a nil state.
func (m *Manager) Update(ctx context.Context, taskID string, fn func(*domain.TaskState) (*domain.TaskState, error)) (*domain.TaskState, error) {
	var out *domain.TaskState
	err := m.WithLock(ctx, taskID, func(ctx context.Context) error {
		current, err := m.store.Load(ctx, taskID)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			out = current
			return nil
		}
		next.UpdatedAt = time.Now()
		if err := m.store.Save(ctx, taskID, next); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

// Save persists the checkpoint.
func (m *Manager) Save(ctx context.Context, taskID string, state *domain.TaskState) error {
	return m.WithLock(ctx, taskID, func(ctx context.Context) error {
		return m.store.Save(ctx, taskID, state)
	})
}

// Delete removes the checkpoint from the store.
func (m *Manager) Delete(ctx context.Context, taskID string) error {
	return m.WithLock(ctx, taskID, func(ctx context.Context) error {
		return m.store.Delete(ctx, taskID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying checkpoint store.
func (m *Manager) Store() ports.CheckpointStore {
	return m.store
}

// WithLock executes fn while holding the lock for the task.
func (m *Manager) WithLock(ctx context.Context, taskID string, fn func(context.Context) error) error {
	entry := m.acquire(taskID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(taskID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, taskID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"task_id", taskID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
