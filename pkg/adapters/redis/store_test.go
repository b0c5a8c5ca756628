package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/mnb/pkg/adapters/redis"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	tests.NotebookStoreContractTest(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "short", domain.NewNotebook(domain.NewCodeCell("x"))))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "short")

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)

	// The index is pruned against wall-clock time.
	time.Sleep(1200 * time.Millisecond)

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "demo", domain.NewNotebook()))

	assert.True(t, mr.Exists("custom:app:demo"))
	assert.True(t, mr.Exists("custom:app:index"))

	stored, err := mr.Get("custom:app:demo")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"cells\": []\n}", stored)
}

func TestRedisStore_MalformedValue(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	require.NoError(t, mr.Set("mnb:notebook:broken", `{"cells":[{"kind":7}]}`))

	_, err := store.Load(context.Background(), "broken")
	assert.ErrorIs(t, err, domain.ErrUnknownCellKind)
}
