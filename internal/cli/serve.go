package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/mnb"
	mnbhttp "github.com/aretw0/mnb/pkg/adapters/http"
	"github.com/aretw0/mnb/pkg/adapters/lsp"
)

// ShutdownTimeout gives outstanding requests a deadline once serving stops.
const ShutdownTimeout = 5 * time.Second

// Handler builds the HTTP API of the runtime.
func (rt *Runtime) Handler() (http.Handler, error) {
	return mnbhttp.NewHandler(rt.Engine,
		mnbhttp.WithLogger(rt.Logger),
		mnbhttp.WithStreams(rt.Streams),
		mnbhttp.WithMetricsHandler(rt.Metrics.Handler()),
		mnbhttp.WithVersion(mnb.Version),
	)
}

// Serve runs the HTTP API on addr until ctx is done.
// When the language server backs executions, .synth changes in the workspace
// are forwarded to it while serving.
func (rt *Runtime) Serve(ctx context.Context, addr string, out io.Writer) error {
	handler, err := rt.Handler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return rt.serve(ctx, ln, handler, out)
}

func (rt *Runtime) serve(ctx context.Context, ln net.Listener, handler http.Handler, out io.Writer) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if rt.LSP != nil {
		w, err := lsp.NewWatcher(rt.Workspace(), rt.LSP, rt.Logger)
		if err != nil {
			rt.Logger.Warn("Workspace watcher disabled", "error", err)
		} else {
			go func() {
				if err := w.Run(watchCtx); err != nil {
					rt.Logger.Warn("Workspace watcher stopped", "error", err)
				}
			}()
		}
	}

	fmt.Fprintf(out, "Serving notebooks on %s\n", ln.Addr())
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		fmt.Fprintln(out, "Start shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			rt.Logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "error", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		fmt.Fprintln(out, "Server stopped gracefully")
		return nil
	}
}
