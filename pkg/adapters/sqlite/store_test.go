package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/pkg/adapters/sqlite"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/ports"
)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "checkpoints.db"))
	ports.RunCheckpointStoreContract(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkpoints.db")
	ctx := context.Background()

	first, err := sqlite.Open(path)
	require.NoError(t, err)
	state := domain.NewTaskState("t1", "supply", nil, nil)
	state.Status = domain.StatusAwaitingApproval
	state.PendingDiffs = []domain.ProposedDiff{{ID: "d1", Status: domain.DiffPending}}
	require.NoError(t, first.Save(ctx, "t1", state))
	require.NoError(t, first.Close())

	second := openStore(t, path)
	loaded, err := second.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingApproval, loaded.Status)
	require.Len(t, loaded.PendingDiffs, 1)

	awaiting, err := second.ListByStatus(ctx, domain.StatusAwaitingApproval)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, awaiting)
}

func TestSQLiteStore_UpsertUpdatesStatus(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "checkpoints.db"))
	ctx := context.Background()

	state := domain.NewTaskState("t1", "", nil, nil)
	require.NoError(t, store.Save(ctx, "t1", state))
	state.Status = domain.StatusCompleted
	require.NoError(t, store.Save(ctx, "t1", state))

	running, err := store.ListByStatus(ctx, domain.StatusRunning)
	require.NoError(t, err)
	assert.Empty(t, running)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids)
}

func TestSQLiteStore_EmptyPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	assert.Error(t, err)
}
