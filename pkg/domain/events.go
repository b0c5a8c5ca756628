package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventExecutionStart EventType = "execution_start"
	EventExecutionEnd   EventType = "execution_end"
	EventCellInserted   EventType = "cell_inserted"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// ExecutionEvent describes a cell execution entering or leaving the Running state.
type ExecutionEvent struct {
	EventBase
	Notebook     string          `json:"notebook,omitempty"`
	CellID       string          `json:"cell_id"`
	Index        int             `json:"index"`
	Order        int             `json:"order"`
	Status       ExecutionStatus `json:"status"`
	ResponseKind string          `json:"response_kind,omitempty"`
	Duration     time.Duration   `json:"duration,omitempty"`
	DispatchErr  error           `json:"-"`
}

// LifecycleHooks defines callbacks for kernel observability.
type LifecycleHooks struct {
	OnExecutionStart func(context.Context, *ExecutionEvent)
	OnExecutionEnd   func(context.Context, *ExecutionEvent)
	OnCellInserted   func(context.Context, *ExecutionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnExecutionStart: chain(h.OnExecutionStart, other.OnExecutionStart),
		OnExecutionEnd:   chain(h.OnExecutionEnd, other.OnExecutionEnd),
		OnCellInserted:   chain(h.OnCellInserted, other.OnCellInserted),
	}
}

func chain(a, b func(context.Context, *ExecutionEvent)) func(context.Context, *ExecutionEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *ExecutionEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
