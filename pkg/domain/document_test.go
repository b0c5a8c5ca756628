package domain_test

import (
	"testing"

	"github.com/aretw0/mnb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_SnapshotIsIsolated(t *testing.T) {
	doc := domain.NewDocument(domain.NewNotebook(domain.NewCodeCell("a")))

	snap := doc.Snapshot()
	snap.Cells[0].Text = "mutated"

	assert.Equal(t, "a", doc.Snapshot().Cells[0].Text)
}

func TestDocument_AssignsIdentities(t *testing.T) {
	doc := domain.NewDocument(domain.Notebook{Cells: []domain.Cell{
		{Kind: domain.CellKindCode, Text: "x"},
		{Kind: domain.CellKindMarkup, Text: "y"},
	}})

	snap := doc.Snapshot()
	require.Len(t, snap.Cells, 2)
	assert.NotEmpty(t, snap.Cells[0].ID)
	assert.NotEqual(t, snap.Cells[0].ID, snap.Cells[1].ID)
}

func TestDocument_InsertAfter(t *testing.T) {
	a, b := domain.NewCodeCell("a"), domain.NewCodeCell("b")
	doc := domain.NewDocument(domain.NewNotebook(a, b))

	at, err := doc.InsertAfter(a.ID, domain.NewMarkupCell("note"))
	require.NoError(t, err)
	assert.Equal(t, 1, at)

	snap := doc.Snapshot()
	require.Len(t, snap.Cells, 3)
	assert.Equal(t, "a", snap.Cells[0].Text)
	assert.Equal(t, "note", snap.Cells[1].Text)
	assert.Equal(t, "b", snap.Cells[2].Text)
	assert.Equal(t, 2, doc.IndexOf(b.ID))
}

func TestDocument_EditsOnVanishedCell(t *testing.T) {
	a := domain.NewCodeCell("a")
	doc := domain.NewDocument(domain.NewNotebook(a))
	require.NoError(t, doc.Remove(a.ID))

	_, err := doc.InsertAfter(a.ID, domain.NewMarkupCell("x"))
	assert.ErrorIs(t, err, domain.ErrCellNotFound)

	err = doc.ReplaceOutputs(a.ID, domain.TextOutput("out"))
	assert.ErrorIs(t, err, domain.ErrCellNotFound)
}

func TestDocument_ReplaceOutputs(t *testing.T) {
	a := domain.NewCodeCell("a")
	doc := domain.NewDocument(domain.NewNotebook(a))

	out := domain.TextOutput("first")
	require.NoError(t, doc.ReplaceOutputs(a.ID, out))
	out.Data[0] = 'X'

	snap := doc.Snapshot()
	require.Len(t, snap.Cells[0].Outputs, 1)
	assert.Equal(t, "first", snap.Cells[0].Outputs[0].Text())
	assert.Equal(t, domain.MimeTextPlain, snap.Cells[0].Outputs[0].Mime)
}

func TestNotebook_CellIndexOutOfRange(t *testing.T) {
	nb := domain.NewNotebook(domain.NewCodeCell("a"))

	_, err := nb.Cell(3)
	assert.ErrorIs(t, err, domain.ErrCellIndexOutOfRange)

	_, err = nb.Cell(-1)
	assert.ErrorIs(t, err, domain.ErrCellIndexOutOfRange)
}

func TestNotebook_CloneMetadata(t *testing.T) {
	nb := domain.Notebook{Metadata: map[string]any{"nested": map[string]any{"k": "v"}}}

	clone := nb.Clone()
	clone.Metadata["nested"].(map[string]any)["k"] = "changed"

	assert.Equal(t, "v", nb.Metadata["nested"].(map[string]any)["k"])
}
