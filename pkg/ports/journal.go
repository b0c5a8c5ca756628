package ports

import (
	"context"

	"github.com/aretw0/mnb/pkg/domain"
)

// ExecutionJournal records cell executions.
type ExecutionJournal interface {
	Record(ctx context.Context, entry domain.JournalEntry) error

	// List returns the most recent entries for a notebook, newest first.
	// A limit <= 0 returns every entry.
	List(ctx context.Context, notebook string, limit int) ([]domain.JournalEntry, error)
}
