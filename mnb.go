package mnb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/mnb/internal/logging"
	"github.com/aretw0/mnb/pkg/adapters/memory"
	"github.com/aretw0/mnb/pkg/codec"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/export"
	"github.com/aretw0/mnb/pkg/kernel"
	"github.com/aretw0/mnb/pkg/ports"
	"github.com/aretw0/mnb/pkg/session"
)

// Engine is the high-level entry point of the library.
// It ties a notebook store, an execution handler and an execution journal together.
type Engine struct {
	sessions *session.Manager
	kernel   *kernel.Kernel
	journal  ports.ExecutionJournal
	exporter export.Exporter
	codec    *codec.Codec
	logger   *slog.Logger

	store   ports.NotebookStore
	handler ports.ExecutionHandler
	locker  ports.DistributedLocker
	hooks   domain.LifecycleHooks
	timeout time.Duration
	lockTTL time.Duration
	closers []io.Closer
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the notebook store (default: in memory).
func WithStore(store ports.NotebookStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithHandler sets the handler that executes Code cells.
// Without one every execution fails with domain.ErrHandlerUnavailable.
func WithHandler(h ports.ExecutionHandler) Option {
	return func(e *Engine) {
		e.handler = h
	}
}

// WithJournal sets where executions are recorded (default: in memory).
func WithJournal(j ports.ExecutionJournal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithLocker serialises executions of a notebook across processes.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithTimeout bounds every handler call (default: kernel.DefaultTimeout).
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithExporter replaces the .synth exporter.
func WithExporter(exp export.Exporter) Option {
	return func(e *Engine) {
		e.exporter = exp
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCloser registers a resource released by Close, such as a language server.
func WithCloser(c io.Closer) Option {
	return func(e *Engine) {
		e.closers = append(e.closers, c)
	}
}

// New initializes an Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.journal == nil {
		eng.journal = memory.NewJournal()
	}
	if eng.exporter == nil {
		eng.exporter = export.SynthExporter{}
	}
	if eng.timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative: %s", eng.timeout)
	}

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker), session.WithLockTTL(eng.lockTTL))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	eng.kernel = kernel.New(eng.handler,
		kernel.WithTimeout(eng.timeout),
		kernel.WithLogger(eng.logger),
		kernel.WithLifecycleHooks(eng.hooks),
	)
	eng.codec = codec.New(codec.WithLogger(eng.logger))

	return eng, nil
}

// List returns the names of the stored notebooks.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Get loads a notebook.
func (e *Engine) Get(ctx context.Context, name string) (domain.Notebook, error) {
	return e.sessions.Load(ctx, name)
}

// Put stores a notebook, replacing any previous version.
func (e *Engine) Put(ctx context.Context, name string, nb domain.Notebook) error {
	return e.sessions.Save(ctx, name, nb)
}

// Delete removes a notebook. Deleting a missing notebook is not an error.
func (e *Engine) Delete(ctx context.Context, name string) error {
	return e.sessions.Delete(ctx, name)
}

// Run executes cells of an in-memory notebook and returns the updated notebook.
// An empty indexes slice runs every Code cell. Nothing is persisted or journaled.
func (e *Engine) Run(ctx context.Context, nb domain.Notebook, indexes []int) (domain.Notebook, []domain.CellExecution, error) {
	doc := domain.NewDocument(nb)
	if len(indexes) == 0 {
		indexes = doc.Snapshot().CodeCellIndexes()
	}
	execs, err := e.kernel.ExecuteIndexes(ctx, doc, indexes)
	if err != nil {
		return nb, nil, err
	}
	return doc.Snapshot(), execs, nil
}

// Execute runs cells of a stored notebook under the notebook lock, persists the
// outputs and inserted cells, and records every execution in the journal.
// An empty indexes slice runs every Code cell.
func (e *Engine) Execute(ctx context.Context, name string, indexes []int) ([]domain.CellExecution, error) {
	var execs []domain.CellExecution
	ctx = kernel.ContextWithNotebook(ctx, name)

	err := e.sessions.Update(ctx, name, func(ctx context.Context, nb *domain.Notebook) error {
		updated, results, err := e.Run(ctx, *nb, indexes)
		if err != nil {
			return err
		}
		*nb = updated
		execs = results
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.record(ctx, name, execs)
	return execs, nil
}

// record journals executions. Journal failures are logged, never returned.
func (e *Engine) record(ctx context.Context, name string, execs []domain.CellExecution) {
	ctx = context.WithoutCancel(ctx)
	for _, ex := range execs {
		if err := e.journal.Record(ctx, domain.NewJournalEntry(name, ex)); err != nil {
			e.logger.Warn("Failed to journal execution", "notebook", name, "index", ex.Index, "error", err)
		}
	}
}

// Export writes the exported form of a stored notebook to w.
func (e *Engine) Export(ctx context.Context, name string, w io.Writer) error {
	nb, err := e.Get(ctx, name)
	if err != nil {
		return err
	}
	return e.exporter.Export(nb, w)
}

// ExportFile writes the exported form of a stored notebook to path.
// An empty path means "<name>.<extension>" in the working directory.
func (e *Engine) ExportFile(ctx context.Context, name, path string) error {
	nb, err := e.Get(ctx, name)
	if err != nil {
		return err
	}
	if path == "" {
		path = export.DefaultPath(name, e.exporter)
	}
	return export.WriteFile(e.exporter, nb, path)
}

// History returns the most recent executions of a notebook, newest first.
func (e *Engine) History(ctx context.Context, name string, limit int) ([]domain.JournalEntry, error) {
	return e.journal.List(ctx, name, limit)
}

// Decode parses notebook bytes, logging instead of failing when they are unreadable.
func (e *Engine) Decode(data []byte) domain.Notebook {
	return e.codec.Deserialize(data)
}

// Encode serializes a notebook, logging any output that does not fit the format.
func (e *Engine) Encode(nb domain.Notebook) ([]byte, error) {
	return e.codec.Serialize(nb)
}

// Close releases the journal, store and registered resources that need closing.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	if c, ok := e.journal.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := e.store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
