package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/mnb/internal/logging"
	"github.com/aretw0/mnb/pkg/domain"
)

// StreamManager fans execution events out to SSE subscribers, keyed by notebook name.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for a notebook. The returned func unsubscribes
// and closes the channel.
func (sm *StreamManager) Subscribe(notebook string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[notebook]; !ok {
		sm.subscribers[notebook] = make(map[chan<- string]struct{})
	}
	sm.subscribers[notebook][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[notebook]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(sm.subscribers, notebook)
				}
			}
			close(ch)
		})
	}
}

// Subscribers returns the number of subscribers of a notebook.
func (sm *StreamManager) Subscribers(notebook string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[notebook])
}

// Broadcast sends msg to every subscriber of the notebook.
// Slow subscribers lose the message instead of blocking the kernel.
func (sm *StreamManager) Broadcast(notebook string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[notebook] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "notebook", notebook)
		}
	}
}

// Hooks returns kernel lifecycle hooks that broadcast every event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	publish := func(_ context.Context, ev *domain.ExecutionEvent) {
		if ev.Notebook == "" {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			sm.logger.Warn("SSE: Failed to encode event", "error", err)
			return
		}
		sm.Broadcast(ev.Notebook, string(data))
	}
	return domain.LifecycleHooks{
		OnExecutionStart: publish,
		OnExecutionEnd:   publish,
		OnCellInserted:   publish,
	}
}
