package ports

import (
	"context"
	"time"
)

// ReleaseFunc gives a task lock back. Callers release with a context that
// outlives the request, since a lock left behind only clears when its TTL lapses.
type ReleaseFunc func(ctx context.Context) error

// TaskLocker serializes work on one review task across processes sharing a
// checkpoint store. The session manager holds it around every
// read-modify-write, so two replicas cannot both resume the same task or
// apply decisions to the same approval round.
type TaskLocker interface {
	// Lock waits for the task's lock until ctx is done. The ttl caps how long
	// a crashed holder can keep the task blocked.
	Lock(ctx context.Context, taskID string, ttl time.Duration) (ReleaseFunc, error)
}
