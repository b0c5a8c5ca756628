package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/aretw0/mnb/pkg/adapters/memory"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/persistence/middleware"
	"github.com/aretw0/mnb/pkg/ports"
	"github.com/aretw0/mnb/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secretNotebook() domain.Notebook {
	code := domain.NewCodeCell("secret()")
	code.Outputs = []domain.Output{domain.TextOutput("42")}
	return domain.NewNotebook(code, domain.NewMarkupCell("# private"))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, "nb", secretNotebook()))

	stored, err := underlying.Load(ctx, "nb")
	require.NoError(t, err)
	assert.Empty(t, stored.Cells)
	assert.Contains(t, stored.Metadata, middleware.EnvelopeKey)

	loaded, err := secure.Load(ctx, "nb")
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, "secret()", loaded.Cells[0].Text)
	assert.Equal(t, "42", loaded.Cells[0].Outputs[0].Text())
	assert.NotEmpty(t, loaded.Cells[0].ID)

	names, err := secure.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nb"}, names)

	require.NoError(t, secure.Delete(ctx, "nb"))
	_, err = secure.Load(ctx, "nb")
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	tests.NotebookStoreContractTest(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	mwOld, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, err)
	storeOld := mwOld(underlying)
	require.NoError(t, storeOld.Save(ctx, "nb", secretNotebook()))

	mwNew, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	require.NoError(t, err)
	storeNew := mwNew(underlying)

	loaded, err := storeNew.Load(ctx, "nb")
	require.NoError(t, err)
	assert.Equal(t, "secret()", loaded.Cells[0].Text)

	require.NoError(t, storeNew.Save(ctx, "nb", loaded))
	_, err = storeOld.Load(ctx, "nb")
	assert.Error(t, err, "old key must not read data written with the new key")
}

func TestEncryptionMiddleware_PlainNotebook(t *testing.T) {
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(context.Background(), "plain", secretNotebook()))

	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = mw(underlying).Load(context.Background(), "plain")
	assert.ErrorIs(t, err, middleware.ErrMissingEnvelope)
}

func TestEncryptionMiddleware_InvalidKeys(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("!!!")
	assert.Error(t, err)
	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("tiny")))
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)
}

func TestChain(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.NotebookStore) ports.NotebookStore {
			order = append(order, name)
			return next
		}
	}
	middleware.Chain(memory.NewStore(), tag("outer"), tag("inner"))
	assert.Equal(t, []string{"inner", "outer"}, order)
}
