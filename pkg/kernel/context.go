package kernel

import "context"

type notebookKey struct{}

// ContextWithNotebook tags ctx with the name of the notebook being executed.
// The name is copied into every ExecutionEvent the kernel emits.
func ContextWithNotebook(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, notebookKey{}, name)
}

// NotebookFromContext returns the notebook name set by ContextWithNotebook, if any.
func NotebookFromContext(ctx context.Context) string {
	name, _ := ctx.Value(notebookKey{}).(string)
	return name
}
