package domain

import "time"

// JournalEntry is one recorded cell execution.
type JournalEntry struct {
	Notebook     string          `json:"notebook"`
	Index        int             `json:"index"`
	Order        int             `json:"order"`
	Status       ExecutionStatus `json:"status"`
	ResponseKind string          `json:"response_kind,omitempty"`
	Output       string          `json:"output"`
	Duration     time.Duration   `json:"duration"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// NewJournalEntry builds an entry from an execution record.
func NewJournalEntry(notebook string, e CellExecution) JournalEntry {
	return JournalEntry{
		Notebook:     notebook,
		Index:        e.Index,
		Order:        e.Order,
		Status:       e.Status,
		ResponseKind: e.ResponseKind,
		Output:       e.Output,
		Duration:     e.Duration(),
		RecordedAt:   e.EndedAt,
	}
}
