package ports

import (
	"context"

	"github.com/aretw0/mnb/pkg/domain"
)

// NotebookStore defines the interface for persisting notebooks by name.
type NotebookStore interface {
	// Save persists the notebook under the given name.
	Save(ctx context.Context, name string, nb domain.Notebook) error

	// Load retrieves the notebook with the given name.
	// Returns domain.ErrNotebookNotFound if it does not exist.
	Load(ctx context.Context, name string) (domain.Notebook, error)

	// Delete removes the notebook. Deleting a missing notebook is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored notebooks.
	List(ctx context.Context) ([]string, error)
}
