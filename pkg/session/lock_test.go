package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/redline/pkg/domain"
)

type nopStore struct{}

func (nopStore) Save(ctx context.Context, taskID string, state *domain.TaskState) error {
	return nil
}
func (nopStore) Load(ctx context.Context, taskID string) (*domain.TaskState, error) {
	return nil, domain.ErrTaskNotFound
}
func (nopStore) Delete(ctx context.Context, taskID string) error { return nil }
func (nopStore) List(ctx context.Context) ([]string, error)     { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("task-%d", i)
		_ = mgr.Save(ctx, id, &domain.TaskState{TaskID: id})
		_ = mgr.Delete(ctx, id)
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
