package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/mnb/pkg/domain"
)

// Handler is a scripted ports.ExecutionHandler.
// Responses are matched on the exact cell code; unmatched code gets the fallback.
type Handler struct {
	mu        sync.Mutex
	responses map[string]domain.ExecutionResponse
	errs      map[string]error
	fallback  domain.ExecutionResponse
	calls     []domain.ExecutionRequest
}

// NewHandler creates a handler that answers unknown code with a SuccessResponse echoing the code.
func NewHandler() *Handler {
	return &Handler{
		responses: make(map[string]domain.ExecutionResponse),
		errs:      make(map[string]error),
	}
}

// On registers the response for a given cell code.
func (h *Handler) On(code string, resp domain.ExecutionResponse) *Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses[code] = resp
	return h
}

// Fail makes the handler return err for a given cell code.
func (h *Handler) Fail(code string, err error) *Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs[code] = err
	return h
}

// Otherwise sets the response for code that has no registered answer.
func (h *Handler) Otherwise(resp domain.ExecutionResponse) *Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fallback = resp
	return h
}

// Execute implements ports.ExecutionHandler.
func (h *Handler) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, req)

	if err, ok := h.errs[req.Code]; ok {
		return nil, err
	}
	if resp, ok := h.responses[req.Code]; ok {
		return resp, nil
	}
	if h.fallback != nil {
		return h.fallback, nil
	}
	return domain.SuccessResponse{Message: fmt.Sprintf("ran %d bytes", len(req.Code))}, nil
}

// Calls returns the requests received so far.
func (h *Handler) Calls() []domain.ExecutionRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.ExecutionRequest(nil), h.calls...)
}
