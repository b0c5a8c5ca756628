package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It lets several server replicas agree on who is executing a notebook.
type DistributedLocker interface {
	// Lock attempts to acquire a distributed lock for the given key (e.g., notebook name).
	// It blocks until the lock is acquired or the context is canceled.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)

	// Refresh extends a lock held through this locker to ttl from now.
	// It returns domain.ErrLockLost when the lease expired or another owner holds the key.
	Refresh(ctx context.Context, key string, ttl time.Duration) error
}
