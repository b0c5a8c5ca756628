package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/mnb/internal/fsutil"
	"github.com/aretw0/mnb/pkg/codec"
	"github.com/aretw0/mnb/pkg/domain"
)

// Store implements ports.NotebookStore using the local filesystem.
// Each notebook lives in <BasePath>/<name>.mnb in the persisted notebook format.
type Store struct {
	BasePath string
	codec    *codec.Codec
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the codec used to log data-loss warnings on save.
func WithCodec(c *codec.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".mnb/notebooks".
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".mnb", "notebooks")
	}
	s := &Store{BasePath: basePath, codec: codec.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file that backs the named notebook.
func (s *Store) Path(name string) string {
	return filepath.Join(s.BasePath, name+domain.NotebookExtension)
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("notebook name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid notebook name %q", name)
	}
	return nil
}

// Save writes the notebook atomically.
func (s *Store) Save(ctx context.Context, name string, nb domain.Notebook) error {
	if err := validName(name); err != nil {
		return err
	}

	data, err := s.codec.Serialize(nb)
	if err != nil {
		return fmt.Errorf("failed to encode notebook %s: %w", name, err)
	}

	if err := fsutil.WriteAtomic(s.Path(name), data, 0644); err != nil {
		return fmt.Errorf("failed to save notebook %s: %w", name, err)
	}
	return nil
}

// Load reads and decodes a notebook.
// A file that is not a valid notebook is an error here; editors open it as empty instead.
func (s *Store) Load(ctx context.Context, name string) (domain.Notebook, error) {
	if err := validName(name); err != nil {
		return domain.Notebook{}, err
	}

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Notebook{}, fmt.Errorf("%w: %s", domain.ErrNotebookNotFound, name)
		}
		return domain.Notebook{}, fmt.Errorf("failed to read notebook file: %w", err)
	}

	nb, err := codec.Decode(data)
	if err != nil {
		return domain.Notebook{}, fmt.Errorf("notebook %s: %w", name, err)
	}
	return nb, nil
}

// Delete removes the notebook file.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete notebook file: %w", err)
	}
	return nil
}

// List returns the names of all notebooks in the base directory.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list notebooks: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if filepath.Ext(entry.Name()) == domain.NotebookExtension {
			names = append(names, strings.TrimSuffix(entry.Name(), domain.NotebookExtension))
		}
	}
	sort.Strings(names)
	return names, nil
}
