package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/mnb/internal/logging"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/ports"
)

// Kernel executes notebook cells through an ExecutionHandler.
type Kernel struct {
	handler ports.ExecutionHandler
	timeout time.Duration
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	now     func() time.Time

	// order is the monotonically increasing execution counter shown next to cells.
	order atomic.Int64
}

// New creates a Kernel bound to the given handler.
func New(handler ports.ExecutionHandler, opts ...Option) *Kernel {
	k := &Kernel{
		handler: handler,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Timeout returns the per-call handler timeout.
func (k *Kernel) Timeout() time.Duration {
	return k.timeout
}

// ExecuteAll runs the cells with the given identities in order, one at a time.
// Once ctx is done the remaining cells are marked failed without being dispatched.
func (k *Kernel) ExecuteAll(ctx context.Context, doc *domain.Document, cellIDs []string) []domain.CellExecution {
	results := make([]domain.CellExecution, 0, len(cellIDs))
	for _, id := range cellIDs {
		if err := ctx.Err(); err != nil {
			results = append(results, k.abandon(doc, id, err))
			continue
		}
		results = append(results, k.ExecuteCell(ctx, doc, id))
	}
	return results
}

// ExecuteIndexes resolves indexes against the current document and runs the cells.
// Every index is validated before anything is dispatched; only Code cells run.
func (k *Kernel) ExecuteIndexes(ctx context.Context, doc *domain.Document, indexes []int) ([]domain.CellExecution, error) {
	snap := doc.Snapshot()
	ids := make([]string, 0, len(indexes))
	for _, i := range indexes {
		c, err := snap.Cell(i)
		if err != nil {
			return nil, err
		}
		if !c.IsCode() {
			return nil, fmt.Errorf("%w: index %d", domain.ErrNotCodeCell, i)
		}
		ids = append(ids, c.ID)
	}
	return k.ExecuteAll(ctx, doc, ids), nil
}

// ExecuteCell runs a single cell and writes its output back into the document.
func (k *Kernel) ExecuteCell(ctx context.Context, doc *domain.Document, cellID string) domain.CellExecution {
	exec := domain.CellExecution{
		CellID:        cellID,
		Index:         -1,
		Status:        domain.StatusPending,
		InsertedIndex: -1,
	}

	snap := doc.Snapshot()
	index := snap.IndexOf(cellID)
	if index < 0 {
		exec.Status = domain.StatusFailed
		exec.Error = fmt.Sprintf("%v: %s", domain.ErrCellNotFound, cellID)
		exec.Output = exec.Error
		return exec
	}
	exec.Index = index
	if !snap.Cells[index].IsCode() {
		exec.Status = domain.StatusFailed
		exec.Error = fmt.Sprintf("%v: index %d", domain.ErrNotCodeCell, index)
		exec.Output = exec.Error
		return exec
	}

	req, err := BuildRequest(snap, index)
	if err != nil {
		exec.Status = domain.StatusFailed
		exec.Error = err.Error()
		exec.Output = exec.Error
		return exec
	}
	exec.Request = req
	exec.Order = int(k.order.Add(1))
	exec.StartedAt = k.now()
	exec.Status = domain.StatusRunning

	k.logger.Debug("Executing cell", "index", index, "order", exec.Order)
	if k.hooks.OnExecutionStart != nil {
		k.hooks.OnExecutionStart(ctx, k.event(ctx, domain.EventExecutionStart, exec, nil))
	}

	resp, dispatchErr := k.dispatch(ctx, req)
	var output domain.Output
	if dispatchErr != nil {
		exec.Status = domain.StatusFailed
		exec.Error = dispatchErr.Error()
		exec.Output = exec.Error
		output = domain.ErrorOutput(exec.Output)
		k.logger.Warn("Cell execution failed", "index", index, "error", dispatchErr)
	} else {
		k.route(ctx, doc, &exec, resp)
		output = domain.TextOutput(exec.Output)
	}

	if err := doc.ReplaceOutputs(cellID, output); err != nil {
		exec.Warnings = append(exec.Warnings, err.Error())
		k.logger.Warn("Could not set cell output", "index", index, "error", err)
	}

	exec.EndedAt = k.now()
	if k.hooks.OnExecutionEnd != nil {
		k.hooks.OnExecutionEnd(ctx, k.event(ctx, domain.EventExecutionEnd, exec, dispatchErr))
	}
	return exec
}

// route applies a handler response to the document and the execution record.
func (k *Kernel) route(ctx context.Context, doc *domain.Document, exec *domain.CellExecution, resp domain.ExecutionResponse) {
	exec.ResponseKind = resp.Kind()

	switch r := resp.(type) {
	case domain.SuccessResponse:
		exec.Status = domain.StatusSucceeded
		exec.Output = orDefault(r.Message, domain.PlaceholderSuccess)

	case domain.TransformationResponse:
		exec.Status = domain.StatusSucceeded
		code := orDefault(r.Code, domain.PlaceholderTransformation)
		at, err := doc.InsertAfter(exec.CellID, domain.NewMarkupCell(fence(code)))
		if err != nil {
			exec.Warnings = append(exec.Warnings, err.Error())
			k.logger.Warn("Transformed code was not inserted", "index", exec.Index, "error", err)
		} else {
			exec.InsertedIndex = at
			if k.hooks.OnCellInserted != nil {
				ev := k.event(ctx, domain.EventCellInserted, *exec, nil)
				ev.Index = at
				k.hooks.OnCellInserted(ctx, ev)
			}
		}
		exec.Output = orDefault(r.Message, domain.PlaceholderMessage)

	case domain.FailureResponse:
		exec.Status = domain.StatusFailed
		exec.Output = orDefault(r.Message, domain.PlaceholderMessage)

	default:
		exec.Status = domain.StatusFailed
		exec.Error = fmt.Sprintf("%v: %T", domain.ErrUnknownResponse, resp)
		exec.Output = exec.Error
	}
}

// dispatch calls the handler under the kernel timeout.
// Handlers that ignore ctx are abandoned once the deadline passes.
func (k *Kernel) dispatch(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResponse, error) {
	if k.handler == nil {
		return nil, &DispatchError{Err: domain.ErrHandlerUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	type result struct {
		resp domain.ExecutionResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := k.handler.Execute(ctx, req)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, &DispatchError{Timeout: k.timeout, Err: r.err}
			}
			return nil, &DispatchError{Err: r.err}
		}
		if r.resp == nil {
			return nil, &DispatchError{Err: domain.ErrUnknownResponse}
		}
		return r.resp, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &DispatchError{Timeout: k.timeout, Err: ctx.Err()}
		}
		return nil, &DispatchError{Err: ctx.Err()}
	}
}

// abandon marks a cell of a cancelled batch as failed without dispatching it.
func (k *Kernel) abandon(doc *domain.Document, cellID string, cause error) domain.CellExecution {
	now := k.now()
	exec := domain.CellExecution{
		CellID:        cellID,
		Index:         doc.IndexOf(cellID),
		Status:        domain.StatusFailed,
		Error:         cause.Error(),
		Output:        cause.Error(),
		InsertedIndex: -1,
		StartedAt:     now,
		EndedAt:       now,
	}
	if exec.Index >= 0 {
		_ = doc.ReplaceOutputs(cellID, domain.ErrorOutput(exec.Output))
	}
	return exec
}

func (k *Kernel) event(ctx context.Context, typ domain.EventType, exec domain.CellExecution, dispatchErr error) *domain.ExecutionEvent {
	return &domain.ExecutionEvent{
		EventBase:    domain.EventBase{Timestamp: k.now(), Type: typ},
		Notebook:     NotebookFromContext(ctx),
		CellID:       exec.CellID,
		Index:        exec.Index,
		Order:        exec.Order,
		Status:       exec.Status,
		ResponseKind: exec.ResponseKind,
		Duration:     exec.Duration(),
		DispatchErr:  dispatchErr,
	}
}
