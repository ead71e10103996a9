package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore implementation
// adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	taskID := "contract-test-task-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a suspended state
		state := domain.NewTaskState(taskID, "supply", nil, []domain.ChecklistItem{
			{ClauseID: "4.1", Name: "Invoices", RequiredSkills: []string{"get_clause_context"}},
		})
		state.Node = domain.NodeHumanApproval
		state.Status = domain.StatusAwaitingApproval
		state.ClauseIndex = 0
		state.CurrentClauseID = "4.1"
		state.PendingDiffs = []domain.ProposedDiff{{ID: "d1", ClauseID: "4.1", Status: domain.DiffPending}}
		state.Decisions["d1"] = domain.Decision{Outcome: domain.OutcomeApprove}

		// 2. Save
		err := store.Save(ctx, taskID, state)
		require.NoError(t, err, "Save should not return error")

		// 3. Load
		loaded, err := store.Load(ctx, taskID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.Node, loaded.Node)
		assert.Equal(t, domain.StatusAwaitingApproval, loaded.Status)
		assert.Equal(t, "4.1", loaded.CurrentClauseID)
		require.Len(t, loaded.PendingDiffs, 1)
		assert.Equal(t, "d1", loaded.PendingDiffs[0].ID)
		assert.Equal(t, domain.OutcomeApprove, loaded.Decisions["d1"].Outcome)
		require.Len(t, loaded.Checklist, 1)
		assert.Equal(t, []string{"get_clause_context"}, loaded.Checklist[0].RequiredSkills)
	})

	t.Run("Load Returns Isolated Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, taskID)
		require.NoError(t, err)
		loaded.Decisions["mutated"] = domain.Decision{Outcome: domain.OutcomeReject}

		again, err := store.Load(ctx, taskID)
		require.NoError(t, err)
		assert.NotContains(t, again.Decisions, "mutated")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+taskID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		// Setup
		err := store.Save(ctx, taskID, domain.NewTaskState(taskID, "", nil, nil))
		require.NoError(t, err)

		// Delete
		err = store.Delete(ctx, taskID)
		require.NoError(t, err, "Delete should not return error")

		// Verify gone
		_, err = store.Load(ctx, taskID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound, "Load after Delete should return ErrTaskNotFound")
	})

	t.Run("List", func(t *testing.T) {
		// Setup: Create 2 tasks
		id1 := taskID + "-1"
		id2 := taskID + "-2"
		_ = store.Save(ctx, id1, domain.NewTaskState(id1, "", nil, nil))
		_ = store.Save(ctx, id2, domain.NewTaskState(id2, "", nil, nil))

		// Ensure cleanup
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		// List
		tasks, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, tasks, id1)
		assert.Contains(t, tasks, id2)
	})
}
