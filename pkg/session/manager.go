package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/mnb/internal/logging"
	"github.com/aretw0/mnb/pkg/codec"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/ports"
)

// DefaultLockTTL is the lease of a distributed lock when none is configured.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates notebook access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.NotebookStore

	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active locks by notebook name

	locker  ports.DistributedLocker // optional
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the lease of distributed locks.
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

// NewManager creates a new Manager over the given store.
func NewManager(store ports.NotebookStore, opts ...Option) *Manager {
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
// The caller MUST Lock the entry.mu, and then call release(name) after unlocking.
func (m *Manager) acquire(name string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		entry = &lockEntry{}
		m.locks[name] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, name)
	}
}

// Load retrieves a notebook from the store.
func (m *Manager) Load(ctx context.Context, name string) (domain.Notebook, error) {
	var nb domain.Notebook
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		nb, err = m.store.Load(ctx, name)
		return err
	})
	return nb, err
}

// LoadOrCreate loads a notebook, creating and persisting an empty one if it does not exist.
func (m *Manager) LoadOrCreate(ctx context.Context, name string) (domain.Notebook, error) {
	var nb domain.Notebook
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		nb, err = m.store.Load(ctx, name)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrNotebookNotFound) {
			return fmt.Errorf("failed to check notebook existence: %w", err)
		}

		nb = codec.Empty()
		if err := m.save(ctx, name, nb); err != nil {
			return fmt.Errorf("failed to create notebook: %w", err)
		}
		return nil
	})
	return nb, err
}

// Save persists the notebook.
func (m *Manager) Save(ctx context.Context, name string, nb domain.Notebook) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		return m.save(ctx, name, nb)
	})
}

// Update loads a notebook, applies fn and saves the result, all under the notebook lock.
// Nothing is saved when fn returns an error.
func (m *Manager) Update(ctx context.Context, name string, fn func(context.Context, *domain.Notebook) error) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		nb, err := m.store.Load(ctx, name)
		if err != nil {
			return err
		}
		if err := fn(ctx, &nb); err != nil {
			return err
		}
		return m.save(ctx, name, nb)
	})
}

// Delete removes the notebook from the store.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		if err := m.confirm(ctx, name); err != nil {
			return err
		}
		return m.store.Delete(ctx, name)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying notebook store.
func (m *Manager) Store() ports.NotebookStore {
	return m.store
}

// WithLock executes fn while holding the lock for the notebook.
// A distributed lease is renewed until fn returns; if it is lost, the context
// passed to fn is cancelled with domain.ErrLockLost as its cause.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	entry := m.acquire(name)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(name)
	}()

	if m.locker == nil {
		return fn(ctx)
	}

	unlock, err := m.locker.Lock(ctx, name, m.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	defer func() {
		// ctx may already be cancelled; the release must still reach the backend.
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"notebook", name,
				"err", err,
			)
		}
	}()

	leaseCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	done := make(chan struct{})
	defer close(done)
	go m.renew(leaseCtx, name, cancel, done)

	return fn(leaseCtx)
}

// renew refreshes the distributed lease every third of its TTL until done closes.
func (m *Manager) renew(ctx context.Context, name string, cancel context.CancelCauseFunc, done <-chan struct{}) {
	ticker := time.NewTicker(m.renewInterval())
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.locker.Refresh(ctx, name, m.lockTTL); err != nil {
				m.logger.Error("Distributed lock lost", "notebook", name, "err", err)
				cancel(fmt.Errorf("notebook %s: %w", name, domain.ErrLockLost))
				return
			}
		}
	}
}

func (m *Manager) renewInterval() time.Duration {
	interval := m.lockTTL / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	return interval
}

// confirm checks that the distributed lease is still ours right before a write,
// extending it so the write lands inside the lease.
func (m *Manager) confirm(ctx context.Context, name string) error {
	if m.locker == nil {
		return nil
	}
	if cause := context.Cause(ctx); errors.Is(cause, domain.ErrLockLost) {
		return cause
	}
	if err := m.locker.Refresh(ctx, name, m.lockTTL); err != nil {
		return fmt.Errorf("notebook %s not saved: %w", name, err)
	}
	return nil
}

func (m *Manager) save(ctx context.Context, name string, nb domain.Notebook) error {
	if err := m.confirm(ctx, name); err != nil {
		return err
	}
	return m.store.Save(ctx, name, nb)
}
