package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a previously acquired lock.
type UnlockFunc func(ctx context.Context) error

// RunLocker serializes run mutations across replicas. A single-process
// deployment can leave it out; the in-process keyed mutex is enough there.
type RunLocker interface {
	// Lock acquires an exclusive lock on a run, blocking until acquired or
	// ctx ends. The ttl guards against a crashed holder.
	Lock(ctx context.Context, runID string, ttl time.Duration) (UnlockFunc, error)
}
