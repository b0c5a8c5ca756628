package tests

import (
	"context"
	"testing"

	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NotebookStoreContractTest is a reusable test suite that verifies if an adapter complies with ports.NotebookStore.
// The store must be empty when passed in.
func NotebookStoreContractTest(t *testing.T, store ports.NotebookStore) {
	t.Helper()
	ctx := context.Background()

	nb := domain.Notebook{
		Cells: []domain.Cell{
			domain.NewMarkupCell("# Intro"),
			{
				Kind:     domain.CellKindCode,
				Language: domain.LanguageSyntheto,
				Text:     "function f(x:int) returns (y:int) { return x; }",
				Outputs:  []domain.Output{domain.TextOutput("ok")},
			},
		},
		Metadata: map[string]any{"owner": "contract"},
	}

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotebookNotFound)
	})

	t.Run("Save_Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "alpha", nb))

		got, err := store.Load(ctx, "alpha")
		require.NoError(t, err)
		require.Len(t, got.Cells, 2)
		assert.Equal(t, domain.CellKindMarkup, got.Cells[0].Kind)
		assert.Equal(t, "# Intro", got.Cells[0].Text)
		assert.Equal(t, nb.Cells[1].Text, got.Cells[1].Text)
		assert.Equal(t, domain.LanguageSyntheto, got.Cells[1].Language)
		require.Len(t, got.Cells[1].Outputs, 1)
		assert.Equal(t, "ok", got.Cells[1].Outputs[0].Text())
		assert.Equal(t, "contract", got.Metadata["owner"])
	})

	t.Run("Load_ReturnsCopy", func(t *testing.T) {
		got, err := store.Load(ctx, "alpha")
		require.NoError(t, err)
		got.Cells[0].Text = "mutated"

		again, err := store.Load(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, "# Intro", again.Cells[0].Text)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "beta", domain.NewNotebook(domain.NewCodeCell("x"))))

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "beta"))
		require.NoError(t, store.Delete(ctx, "beta"), "deleting twice is not an error")

		_, err := store.Load(ctx, "beta")
		assert.ErrorIs(t, err, domain.ErrNotebookNotFound)

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha"}, names)
	})
}
