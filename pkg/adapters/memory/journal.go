package memory

import (
	"context"
	"sync"

	"github.com/aretw0/mnb/pkg/domain"
)

// Journal implements ports.ExecutionJournal in memory.
type Journal struct {
	mu      sync.RWMutex
	entries []domain.JournalEntry
}

// NewJournal creates an empty in-memory journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Record appends one execution.
func (j *Journal) Record(ctx context.Context, e domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

// List returns the most recent executions of a notebook, newest first.
func (j *Journal) List(ctx context.Context, notebook string, limit int) ([]domain.JournalEntry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := []domain.JournalEntry{}
	for i := len(j.entries) - 1; i >= 0; i-- {
		if j.entries[i].Notebook != notebook {
			continue
		}
		out = append(out, j.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
