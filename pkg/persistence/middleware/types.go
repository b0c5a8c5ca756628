package middleware

import "github.com/aretw0/mnb/pkg/ports"

// Middleware allows wrapping a NotebookStore to add behavior.
type Middleware func(ports.NotebookStore) ports.NotebookStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.NotebookStore, mws ...Middleware) ports.NotebookStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
