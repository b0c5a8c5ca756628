package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/mnb"
	"github.com/aretw0/mnb/internal/config"
	"github.com/aretw0/mnb/internal/logging"
	"github.com/aretw0/mnb/pkg/adapters/file"
	mnbhttp "github.com/aretw0/mnb/pkg/adapters/http"
	"github.com/aretw0/mnb/pkg/adapters/lsp"
	"github.com/aretw0/mnb/pkg/adapters/memory"
	"github.com/aretw0/mnb/pkg/adapters/process"
	"github.com/aretw0/mnb/pkg/adapters/redis"
	"github.com/aretw0/mnb/pkg/adapters/sqlite"
	"github.com/aretw0/mnb/pkg/codec"
	"github.com/aretw0/mnb/pkg/observability"
	"github.com/aretw0/mnb/pkg/persistence/middleware"
	"github.com/aretw0/mnb/pkg/ports"
	"github.com/aretw0/mnb/pkg/session"
)

// Options tune how a Runtime is assembled from the configuration.
type Options struct {
	// LogLevel overrides log.level when set.
	LogLevel string
	// Quiet drops the stderr log sink (stdio transports own the terminal).
	Quiet bool
	// Handler overrides handler.kind when set.
	Handler string
	// Ephemeral keeps notebooks and the journal in memory, for commands
	// that work on a single file.
	Ephemeral bool
}

// Runtime is an Engine together with the resources built for it.
type Runtime struct {
	Engine  *mnb.Engine
	Config  config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Streams *mnbhttp.StreamManager

	// LSP is set when the language server backs executions.
	LSP *lsp.Client

	logCloser     io.Closer
	engineOwnsLSP bool
}

// Build assembles the Engine described by cfg.
func Build(ctx context.Context, cfg config.Config, opts Options) (*Runtime, error) {
	if opts.Handler != "" {
		cfg.Handler.Kind = opts.Handler
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if opts.Ephemeral {
		cfg.Store.Kind = config.StoreMemory
		cfg.Journal.Kind = config.JournalMemory
	}

	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := logging.Build(logging.Options{
		Level: lvl,
		File:  cfg.Log.File,
		Quiet: opts.Quiet,
	})
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:    cfg,
		Logger:    logger,
		Metrics:   observability.NewMetrics(),
		Streams:   mnbhttp.NewStreamManager(logger),
		logCloser: logCloser,
	}

	engineOpts := []mnb.Option{
		mnb.WithLogger(logger),
		mnb.WithTimeout(time.Duration(cfg.Handler.Timeout)),
		mnb.WithLifecycleHooks(rt.Metrics.Hooks()),
		mnb.WithLifecycleHooks(rt.Streams.Hooks()),
	}

	storeOpts, err := rt.newStore(cfg)
	if err != nil {
		rt.closeLog()
		return nil, err
	}
	engineOpts = append(engineOpts, storeOpts...)

	journal, err := newJournal(cfg.Journal)
	if err != nil {
		rt.closeLog()
		return nil, err
	}
	engineOpts = append(engineOpts, mnb.WithJournal(journal))

	handler, err := rt.newHandler(ctx, cfg)
	if err != nil {
		_ = closeIfCloser(journal)
		rt.closeLog()
		return nil, err
	}
	if handler != nil {
		engineOpts = append(engineOpts, mnb.WithHandler(handler))
	}
	if rt.LSP != nil {
		engineOpts = append(engineOpts, mnb.WithCloser(rt.LSP))
		rt.engineOwnsLSP = true
	}

	eng, err := mnb.New(engineOpts...)
	if err != nil {
		_ = closeIfCloser(journal)
		if rt.LSP != nil {
			_ = rt.LSP.Close()
		}
		rt.closeLog()
		return nil, err
	}
	rt.Engine = eng

	logger.Debug("Runtime ready",
		"handler", cfg.Handler.Kind,
		"store", cfg.Store.Kind,
		"journal", cfg.Journal.Kind,
	)
	return rt, nil
}

func (rt *Runtime) newStore(cfg config.Config) ([]mnb.Option, error) {
	var (
		store  ports.NotebookStore
		locker ports.DistributedLocker
	)
	switch cfg.Store.Kind {
	case config.StoreMemory:
		store = memory.NewStore()

	case config.StoreRedis:
		rc := cfg.Store.Redis
		rs := redis.New(rc.Addr, "", 0,
			redis.WithPrefix(rc.Prefix+"notebook:"),
			redis.WithTTL(time.Duration(rc.TTL)),
		)
		store = rs
		if cfg.Store.Locker {
			locker = redis.NewLocker(rs.Client(), rc.Prefix)
		}

	default:
		if err := os.MkdirAll(cfg.Store.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		store = file.New(cfg.Store.Dir, file.WithCodec(codec.New(codec.WithLogger(rt.Logger))))
	}

	if cfg.Store.EncryptionKey != "" {
		mw, err := newEncryption(cfg.Store)
		if err != nil {
			_ = closeIfCloser(store)
			return nil, err
		}
		store = middleware.Chain(store, mw)
	}

	opts := []mnb.Option{mnb.WithStore(store)}
	if locker != nil {
		ttl := time.Duration(cfg.Handler.Timeout) + session.DefaultLockTTL
		opts = append(opts, mnb.WithLocker(locker, ttl))
	}
	return opts, nil
}

func newEncryption(cfg config.StoreConfig) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	ec := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		ec.FallbackKeys = append(ec.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(ec)
}

func newJournal(cfg config.JournalConfig) (ports.ExecutionJournal, error) {
	if cfg.Kind == config.JournalMemory {
		return memory.NewJournal(), nil
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	return sqlite.Open(cfg.Path)
}

// newHandler returns nil for the "none" handler; executions then fail with
// domain.ErrHandlerUnavailable.
func (rt *Runtime) newHandler(ctx context.Context, cfg config.Config) (ports.ExecutionHandler, error) {
	switch cfg.Handler.Kind {
	case config.HandlerRemote:
		return mnbhttp.NewClient(cfg.Remote.Address, mnbhttp.WithClientLogger(rt.Logger))

	case config.HandlerProcess:
		commands, err := process.LoadCommands(cfg.Process.Config)
		if err != nil {
			return nil, err
		}
		return process.NewRunner(
			process.WithRegistry(commands),
			process.WithCommand(cfg.Process.Command),
			process.WithBaseDir(cfg.Process.Dir),
			process.WithLogger(rt.Logger),
		), nil

	case config.HandlerLSP:
		client, err := rt.StartLanguageServer(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, nil
	}
}

// StartLanguageServer returns the running language client, starting one if needed.
func (rt *Runtime) StartLanguageServer(ctx context.Context) (*lsp.Client, error) {
	if rt.LSP != nil {
		return rt.LSP, nil
	}
	lc := rt.Config.LSP
	root, err := filepath.Abs(rt.Workspace())
	if err != nil {
		return nil, err
	}

	launch, err := lsp.LaunchConfig{
		Home:    lc.Home,
		Command: lc.Command,
		Args:    lc.Args,
		Debug:   lc.Debug,
		Dir:     root,
	}.Resolve()
	if err != nil {
		return nil, err
	}

	rt.Logger.Info("Starting language server", "command", launch.Command, "root", root)
	client, err := lsp.Start(ctx, launch, root,
		lsp.WithLogger(rt.Logger),
		lsp.WithClientVersion(mnb.Version),
	)
	if err != nil {
		return nil, err
	}
	if info := client.ServerInfo(); info != nil {
		rt.Logger.Info("Language server ready", "name", info.Name, "version", info.Version)
	}
	rt.LSP = client
	return client, nil
}

// Workspace is the directory the language server watches.
func (rt *Runtime) Workspace() string {
	if rt.Config.LSP.Workspace != "" {
		return rt.Config.LSP.Workspace
	}
	return rt.Config.Dir
}

// Close releases the engine and flushes the log file.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Engine != nil {
		errs = append(errs, rt.Engine.Close())
	}
	if rt.LSP != nil && !rt.engineOwnsLSP {
		errs = append(errs, rt.LSP.Close())
	}
	errs = append(errs, rt.closeLog())
	return errors.Join(errs...)
}

func (rt *Runtime) closeLog() error {
	if rt.logCloser == nil {
		return nil
	}
	err := rt.logCloser.Close()
	rt.logCloser = nil
	return err
}

func closeIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
