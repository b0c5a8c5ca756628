package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Notebook is an ordered sequence of cells plus opaque metadata.
// Values of this type are treated as immutable snapshots; use Clone before mutating.
type Notebook struct {
	Cells    []Cell         `json:"cells"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewNotebook creates a notebook from the given cells.
// Cells without an identity are assigned one.
func NewNotebook(cells ...Cell) Notebook {
	nb := Notebook{Cells: make([]Cell, 0, len(cells))}
	nb.Cells = append(nb.Cells, cells...)
	nb.ensureIDs()
	return nb
}

func (n Notebook) ensureIDs() {
	for i := range n.Cells {
		if n.Cells[i].ID == "" {
			n.Cells[i].ID = uuid.NewString()
		}
	}
}

// Len returns the number of cells.
func (n Notebook) Len() int {
	return len(n.Cells)
}

// Cell returns the cell at index i.
func (n Notebook) Cell(i int) (Cell, error) {
	if i < 0 || i >= len(n.Cells) {
		return Cell{}, fmt.Errorf("%w: %d (notebook has %d cells)", ErrCellIndexOutOfRange, i, len(n.Cells))
	}
	return n.Cells[i], nil
}

// IndexOf returns the index of the cell with the given identity, or -1.
func (n Notebook) IndexOf(id string) int {
	for i, c := range n.Cells {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// CodeCellIndexes returns the indexes of all Code cells in document order.
func (n Notebook) CodeCellIndexes() []int {
	var idx []int
	for i, c := range n.Cells {
		if c.IsCode() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone returns a deep copy of the notebook.
func (n Notebook) Clone() Notebook {
	out := Notebook{Metadata: cloneMetadata(n.Metadata)}
	if n.Cells != nil {
		out.Cells = make([]Cell, len(n.Cells))
		for i, c := range n.Cells {
			out.Cells[i] = c.Clone()
		}
	}
	return out
}

// cloneMetadata deep-copies free-form metadata through a JSON round trip.
// Metadata is opaque and always originates from JSON, so this preserves it exactly.
func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		shallow := make(map[string]any, len(m))
		for k, v := range m {
			shallow[k] = v
		}
		return shallow
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
