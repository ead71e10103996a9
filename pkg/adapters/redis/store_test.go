package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/redline/pkg/adapters/redis"
	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/ports"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunCheckpointStoreContract(t, store)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("review:"))

	require.NoError(t, store.Save(context.Background(), "t1", domain.NewTaskState("t1", "", nil, nil)))
	assert.True(t, mr.Exists("review:t1"))
	assert.False(t, mr.Exists(redis.DefaultPrefix+"t1"))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	taskID := "task-ttl"

	state := domain.NewTaskState(taskID, "supply", nil, nil)
	state.Status = domain.StatusAwaitingApproval
	require.NoError(t, store.Save(ctx, taskID, state))

	tasks, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, tasks, taskID)

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, taskID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	// The index is pruned against wall-clock time.
	time.Sleep(1200 * time.Millisecond)

	tasks, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
