package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/mnb/pkg/adapters/memory"
	"github.com/aretw0/mnb/pkg/adapters/redis"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/ports"
	"github.com/aretw0/mnb/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore adds latency to every call so missing locks show up as lost updates.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Load(ctx context.Context, name string) (domain.Notebook, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Load(ctx, name)
}

func (s SlowStore) Save(ctx context.Context, name string, nb domain.Notebook) error {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, name, nb)
}

func TestManager_UpdateIsSerialised(t *testing.T) {
	store := SlowStore{memory.NewStore()}
	manager := session.NewManager(store)
	ctx := context.Background()
	require.NoError(t, manager.Save(ctx, "nb", domain.NewNotebook()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.Update(ctx, "nb", func(_ context.Context, nb *domain.Notebook) error {
				nb.Cells = append(nb.Cells, domain.NewCodeCell("x"))
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	nb, err := manager.Load(ctx, "nb")
	require.NoError(t, err)
	assert.Len(t, nb.Cells, 10, "no update may be lost")
}

func TestManager_UpdateErrorSkipsSave(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, manager.Save(ctx, "nb", domain.NewNotebook(domain.NewCodeCell("keep"))))

	boom := errors.New("boom")
	err := manager.Update(ctx, "nb", func(_ context.Context, nb *domain.Notebook) error {
		nb.Cells = nil
		return boom
	})
	assert.ErrorIs(t, err, boom)

	nb, err := manager.Load(ctx, "nb")
	require.NoError(t, err)
	assert.Len(t, nb.Cells, 1)
}

func TestManager_LoadOrCreate(t *testing.T) {
	manager := session.NewManager(SlowStore{memory.NewStore()})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nb, err := manager.LoadOrCreate(ctx, "fresh")
			assert.NoError(t, err)
			assert.NotNil(t, nb.Cells)
		}()
	}
	wg.Wait()

	names, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, names)
}

type recordingLocker struct {
	mu         sync.Mutex
	keys       []string
	released   int
	refreshed  int
	err        error
	refreshErr error
}

func (l *recordingLocker) Refresh(_ context.Context, _ string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshed++
	return l.refreshErr
}

func (l *recordingLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
		return nil
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker))
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "nb", domain.NewNotebook()))
	assert.Equal(t, []string{"nb"}, locker.keys)
	assert.Equal(t, 1, locker.released)
	assert.Equal(t, 1, locker.refreshed, "ownership is confirmed before writing")

	locker.err = errors.New("redis down")
	err := manager.Save(ctx, "nb", domain.NewNotebook())
	assert.ErrorContains(t, err, "redis down")
}

func TestManager_LostLeaseCancelsAndSkipsSave(t *testing.T) {
	locker := &recordingLocker{refreshErr: domain.ErrLockLost}
	store := memory.NewStore()
	manager := session.NewManager(store, session.WithLocker(locker), session.WithLockTTL(30*time.Millisecond))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "nb", domain.NewNotebook(domain.NewCodeCell("before"))))

	err := manager.Update(ctx, "nb", func(ctx context.Context, nb *domain.Notebook) error {
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
			t.Error("lease loss did not cancel the update")
		}
		assert.ErrorIs(t, context.Cause(ctx), domain.ErrLockLost)
		nb.Cells[0].Text = "after"
		return nil
	})
	require.ErrorIs(t, err, domain.ErrLockLost)

	stored, err := store.Load(ctx, "nb")
	require.NoError(t, err)
	assert.Equal(t, "before", stored.Cells[0].Text)
	assert.Equal(t, 1, locker.released)
}

func TestManager_RenewsDistributedLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ttl := 300 * time.Millisecond
	manager := session.NewManager(memory.NewStore(),
		session.WithLocker(redis.NewLocker(client, "test:")),
		session.WithLockTTL(ttl),
	)

	err := manager.WithLock(context.Background(), "nb", func(ctx context.Context) error {
		mr.FastForward(200 * time.Millisecond)
		assert.Eventually(t, func() bool {
			return mr.TTL("test:lock:nb") > 150*time.Millisecond
		}, 2*time.Second, 10*time.Millisecond, "lease was not renewed")

		// Without renewal the lease would have run out by now.
		mr.FastForward(200 * time.Millisecond)
		assert.True(t, mr.Exists("test:lock:nb"))
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:lock:nb"))
}
