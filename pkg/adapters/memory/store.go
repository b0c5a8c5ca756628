package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/mnb/pkg/domain"
)

// Store implements ports.NotebookStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Notebook
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Notebook),
	}
}

// Save keeps a deep copy of the notebook.
func (s *Store) Save(ctx context.Context, name string, nb domain.Notebook) error {
	if name == "" {
		return fmt.Errorf("notebook name cannot be empty")
	}
	copied := nb.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = copied
	return nil
}

// Load returns a copy so callers can't mutate the stored notebook.
func (s *Store) Load(ctx context.Context, name string) (domain.Notebook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nb, ok := s.data[name]
	if !ok {
		return domain.Notebook{}, fmt.Errorf("%w: %s", domain.ErrNotebookNotFound, name)
	}
	return nb.Clone(), nil
}

// Delete removes the notebook.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// List returns stored notebook names in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
