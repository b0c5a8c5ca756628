package domain

import (
	"fmt"
	"sync"
)

// Document is the live, editable notebook.
// Readers take a Snapshot once per operation; writers address cells by identity so
// concurrent inserts never redirect an edit to the wrong cell.
type Document struct {
	mu sync.RWMutex
	nb Notebook
}

// NewDocument wraps a notebook snapshot into a live document.
func NewDocument(nb Notebook) *Document {
	snap := nb.Clone()
	snap.ensureIDs()
	return &Document{nb: snap}
}

// Snapshot returns an immutable copy of the current cells and metadata.
func (d *Document) Snapshot() Notebook {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nb.Clone()
}

// Len returns the current number of cells.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nb.Cells)
}

// IndexOf returns the current index of the cell with the given identity, or -1.
func (d *Document) IndexOf(id string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nb.IndexOf(id)
}

// ReplaceOutputs sets the outputs of a cell.
func (d *Document) ReplaceOutputs(id string, outputs ...Output) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.nb.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("replace outputs: %w: %s", ErrCellNotFound, id)
	}
	cloned := make([]Output, len(outputs))
	for j, o := range outputs {
		cloned[j] = Output{Mime: o.Mime, Data: append([]byte(nil), o.Data...)}
	}
	d.nb.Cells[i].Outputs = cloned
	return nil
}

// InsertAfter inserts cells immediately after the cell with the given identity.
// It returns the index of the first inserted cell.
func (d *Document) InsertAfter(id string, cells ...Cell) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.nb.IndexOf(id)
	if i < 0 {
		return -1, fmt.Errorf("insert cells: %w: %s", ErrCellNotFound, id)
	}
	at := i + 1
	fresh := NewNotebook(cells...).Cells

	next := make([]Cell, 0, len(d.nb.Cells)+len(fresh))
	next = append(next, d.nb.Cells[:at]...)
	next = append(next, fresh...)
	next = append(next, d.nb.Cells[at:]...)
	d.nb.Cells = next
	return at, nil
}

// Append adds cells at the end of the document.
func (d *Document) Append(cells ...Cell) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nb.Cells = append(d.nb.Cells, NewNotebook(cells...).Cells...)
}

// Remove deletes the cell with the given identity.
func (d *Document) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.nb.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("remove cell: %w: %s", ErrCellNotFound, id)
	}
	d.nb.Cells = append(d.nb.Cells[:i:i], d.nb.Cells[i+1:]...)
	return nil
}
