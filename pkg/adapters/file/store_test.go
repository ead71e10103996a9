package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/pkg/adapters/file"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/ports"
)

func TestStore_Contract(t *testing.T) {
	ports.RunCheckpointStoreContract(t, file.NewStore(t.TempDir()))
}

func TestStore_Layout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "tasks")
	store := file.NewStore(dir)
	ctx := context.Background()

	ids, err := store.List(ctx)
	require.NoError(t, err, "missing directory lists as empty")
	assert.Empty(t, ids)

	require.NoError(t, store.Save(ctx, "b", domain.NewTaskState("b", "supply", nil, nil)))
	require.NoError(t, store.Save(ctx, "a", domain.NewTaskState("a", "supply", nil, nil)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.FileExists(t, filepath.Join(dir, "a.json"))

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"), "double delete is fine")
}

func TestStore_InvalidIDs(t *testing.T) {
	store := file.NewStore(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "..", "../escape", `a\b`} {
		assert.Error(t, store.Save(ctx, id, domain.NewTaskState(id, "", nil, nil)), "id %q", id)
		_, err := store.Load(ctx, id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))

	_, err := file.NewStore(dir).Load(context.Background(), "bad")
	assert.ErrorContains(t, err, "unmarshal")
}
