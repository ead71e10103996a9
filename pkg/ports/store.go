package ports

import (
	"context"

	"github.com/aretw0/redline/pkg/domain"
)

// CheckpointStore defines the interface for persisting task state.
// This allows for durable execution, enabling "Suspend & Resume" across process restarts.
type CheckpointStore interface {
	// Save persists the state for a given task ID.
	Save(ctx context.Context, taskID string, state *domain.TaskState) error

	// Load retrieves the state for a given task ID.
	// Returns domain.ErrTaskNotFound if the task does not exist.
	Load(ctx context.Context, taskID string) (*domain.TaskState, error)

	// Delete removes the state for a given task ID.
	Delete(ctx context.Context, taskID string) error

	// List returns the IDs of all stored tasks.
	List(ctx context.Context) ([]string, error)
}
