package mnb_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/mnb"
	"github.com/aretw0/mnb/pkg/adapters/file"
	"github.com/aretw0/mnb/pkg/adapters/memory"
	"github.com/aretw0/mnb/pkg/adapters/redis"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/ports"
	"github.com/aretw0/mnb/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, opts ...mnb.Option) (*mnb.Engine, *memory.Handler) {
	t.Helper()
	h := memory.NewHandler().
		On("f", domain.TransformationResponse{Message: "transformed", Code: "g"}).
		On("bad", domain.FailureResponse{Type: "error", Message: "bad"})
	eng, err := mnb.New(append([]mnb.Option{mnb.WithHandler(h)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, h
}

func TestEngine_ExecutePersistsAndJournals(t *testing.T) {
	eng, h := newEngine(t)
	ctx := context.Background()

	nb := domain.NewNotebook(
		domain.NewCodeCell("x"),
		domain.NewMarkupCell("# note"),
		domain.NewCodeCell("f"),
		domain.NewCodeCell("bad"),
	)
	require.NoError(t, eng.Put(ctx, "demo", nb))

	execs, err := eng.Execute(ctx, "demo", nil)
	require.NoError(t, err)
	require.Len(t, execs, 3)
	assert.Equal(t, domain.StatusSucceeded, execs[0].Status)
	assert.Equal(t, domain.StatusSucceeded, execs[1].Status)
	assert.Equal(t, domain.StatusFailed, execs[2].Status)
	assert.Equal(t, "bad", execs[2].Output)

	// The last cell moved one down because of the inserted transformation.
	assert.Equal(t, 4, execs[2].Index)
	assert.Equal(t, "x\nf\nbad\n", h.Calls()[2].AllCellContent)

	stored, err := eng.Get(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, stored.Cells, 5)
	assert.Equal(t, "```\ng\n```", stored.Cells[3].Text)
	assert.Equal(t, "transformed", stored.Cells[2].Outputs[0].Text())

	history, err := eng.History(ctx, "demo", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.StatusFailed, history[0].Status, "newest first")
}

func TestEngine_ExecuteSelectedCells(t *testing.T) {
	eng, h := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, "demo", domain.NewNotebook(
		domain.NewCodeCell("x"), domain.NewCodeCell("y"), domain.NewCodeCell("z"),
	)))

	execs, err := eng.Execute(ctx, "demo", []int{1})
	require.NoError(t, err)
	require.Len(t, execs, 1)
	require.Len(t, h.Calls(), 1)
	assert.Equal(t, "y", h.Calls()[0].Code)
	assert.Equal(t, "x\ny\n", h.Calls()[0].AllCellContent)
}

func TestEngine_ExecuteErrors(t *testing.T) {
	eng, h := newEngine(t)
	ctx := context.Background()

	_, err := eng.Execute(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)

	require.NoError(t, eng.Put(ctx, "demo", domain.NewNotebook(domain.NewCodeCell("x"))))
	_, err = eng.Execute(ctx, "demo", []int{0, 5})
	assert.ErrorIs(t, err, domain.ErrCellIndexOutOfRange)
	assert.Empty(t, h.Calls(), "nothing runs when an index is invalid")

	stored, err := eng.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, stored.Cells[0].Outputs)
}

func TestEngine_WithoutHandler(t *testing.T) {
	eng, err := mnb.New()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, "demo", domain.NewNotebook(domain.NewCodeCell("x"))))

	execs, err := eng.Execute(ctx, "demo", nil)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.StatusFailed, execs[0].Status)
	assert.Contains(t, execs[0].Error, domain.ErrHandlerUnavailable.Error())
}

func TestEngine_RunDoesNotPersist(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	nb := domain.NewNotebook(domain.NewCodeCell("f"))
	updated, execs, err := eng.Run(ctx, nb, nil)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, 2, updated.Len())
	assert.Equal(t, 1, nb.Len(), "input notebook is untouched")

	names, err := eng.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	history, err := eng.History(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEngine_Export(t *testing.T) {
	dir := t.TempDir()
	eng, _ := newEngine(t, mnb.WithStore(file.New(dir)))
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, "demo", domain.NewNotebook(
		domain.NewCodeCell("a"), domain.NewMarkupCell("m"), domain.NewCodeCell("b"),
	)))

	var buf bytes.Buffer
	require.NoError(t, eng.Export(ctx, "demo", &buf))
	assert.Equal(t, "a\nb\n", buf.String())

	out := filepath.Join(dir, "out", "demo.synth")
	require.NoError(t, eng.ExportFile(ctx, "demo", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))

	err = eng.Export(ctx, "missing", &buf)
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)
}

func TestEngine_Hooks(t *testing.T) {
	var notebooks []string
	hooks := domain.LifecycleHooks{
		OnExecutionEnd: func(_ context.Context, ev *domain.ExecutionEvent) {
			notebooks = append(notebooks, ev.Notebook)
		},
	}
	eng, _ := newEngine(t, mnb.WithLifecycleHooks(hooks))
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, "demo", domain.NewNotebook(domain.NewCodeCell("x"))))

	_, err := eng.Execute(ctx, "demo", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo"}, notebooks)
}

type failingJournal struct{ *memory.Journal }

func (failingJournal) Record(context.Context, domain.JournalEntry) error {
	return errors.New("disk full")
}

func TestEngine_JournalFailureIsNotFatal(t *testing.T) {
	eng, _ := newEngine(t, mnb.WithJournal(failingJournal{memory.NewJournal()}))
	ctx := context.Background()
	require.NoError(t, eng.Put(ctx, "demo", domain.NewNotebook(domain.NewCodeCell("x"))))

	execs, err := eng.Execute(ctx, "demo", nil)
	require.NoError(t, err)
	assert.Len(t, execs, 1)
}

func TestEngine_DecodeDegradesToEmpty(t *testing.T) {
	eng, _ := newEngine(t)

	nb := eng.Decode([]byte("not a notebook"))
	assert.NotNil(t, nb.Cells)
	assert.Empty(t, nb.Cells)

	data, err := eng.Encode(nb)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"cells\": []\n}", string(data))
}

func TestNew_NegativeTimeout(t *testing.T) {
	_, err := mnb.New(mnb.WithTimeout(-1))
	assert.Error(t, err)
}

func TestEngine_ExecuteDoesNotOverwriteAfterLeaseExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ttl := 2*time.Minute + session.DefaultLockTTL
	ctx := context.Background()

	other, err := mnb.New(
		mnb.WithStore(redis.NewFromClient(client)),
		mnb.WithLocker(redis.NewLocker(client, "mnb:"), ttl),
	)
	require.NoError(t, err)

	// Each cell takes a minute of redis time, so the lease runs out during the third.
	calls := 0
	slow := ports.ExecutionHandlerFunc(func(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResponse, error) {
		calls++
		mr.FastForward(time.Minute)
		if calls == 3 {
			assert.NoError(t, other.Put(context.Background(), "nb",
				domain.NewNotebook(domain.NewCodeCell("written by other"))))
		}
		return domain.SuccessResponse{Message: "ok"}, nil
	})
	eng, err := mnb.New(
		mnb.WithHandler(slow),
		mnb.WithStore(redis.NewFromClient(client)),
		mnb.WithLocker(redis.NewLocker(client, "mnb:"), ttl),
	)
	require.NoError(t, err)

	require.NoError(t, eng.Put(ctx, "nb", domain.NewNotebook(
		domain.NewCodeCell("a"), domain.NewCodeCell("b"), domain.NewCodeCell("c"),
	)))

	_, err = eng.Execute(ctx, "nb", nil)
	require.ErrorIs(t, err, domain.ErrLockLost)

	stored, err := other.Get(ctx, "nb")
	require.NoError(t, err)
	require.Len(t, stored.Cells, 1)
	assert.Equal(t, "written by other", stored.Cells[0].Text)
}
