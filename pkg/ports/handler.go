package ports

import (
	"context"

	"github.com/aretw0/mnb/pkg/domain"
)

// ExecutionHandler is the external collaborator that runs a cell.
// Implementations must honour ctx cancellation and deadlines.
type ExecutionHandler interface {
	Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResponse, error)
}

// ExecutionHandlerFunc adapts a function to ExecutionHandler.
type ExecutionHandlerFunc func(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResponse, error)

// Execute calls f(ctx, req).
func (f ExecutionHandlerFunc) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResponse, error) {
	return f(ctx, req)
}
