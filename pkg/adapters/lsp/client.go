package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/aretw0/mnb/internal/logging"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/kernel"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
)

// ShutdownTimeout bounds the shutdown handshake performed by Close.
const ShutdownTimeout = 5 * time.Second

// ErrNotConnected is returned when the client has no server connection.
var ErrNotConnected = errors.New("language client is not connected")

// Client is a language client for the Syntheto server.
type Client struct {
	logger  *slog.Logger
	name    string
	version string
	command string

	rpc *jrpc2.Client
	cmd *exec.Cmd

	mu          sync.Mutex
	diagnostics map[string][]Diagnostic
	published   map[string]bool
	versions    map[string]int
	changed     chan struct{}
	server      *ServerInfo
	closed      bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger receives window/logMessage and window/showMessage.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClientVersion sets the version sent in clientInfo.
func WithClientVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithExecuteCommand replaces the command used to execute cells.
func WithExecuteCommand(cmd string) Option {
	return func(c *Client) {
		c.command = cmd
	}
}

// New creates a Client that is not yet connected. Call Attach with a jrpc2
// client built from ClientOptions, or use Start.
func New(opts ...Option) *Client {
	c := &Client{
		logger:      logging.NewNop(),
		name:        "mnb",
		command:     ExecuteCommand,
		diagnostics: make(map[string][]Diagnostic),
		published:   make(map[string]bool),
		versions:    make(map[string]int),
		changed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOptions returns the jrpc2 options that route server traffic to c.
func (c *Client) ClientOptions() *jrpc2.ClientOptions {
	return &jrpc2.ClientOptions{
		OnNotify:   c.handleNotification,
		OnCallback: c.handleCallback,
	}
}

// Attach binds c to a connected jrpc2 client.
func (c *Client) Attach(rpc *jrpc2.Client) {
	c.rpc = rpc
}

// Start launches the server process, connects over its stdio and runs the
// initialize handshake with rootDir as the workspace.
func Start(ctx context.Context, launch Launch, rootDir string, opts ...Option) (*Client, error) {
	c := New(opts...)

	cmd := exec.Command(launch.Command, launch.Args...)
	cmd.Dir = launch.Dir
	cmd.Env = append(append([]string{}, launch.Env...), os.Environ()...)
	cmd.Stderr = &logWriter{logger: c.logger}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start language server %s: %w", launch.Command, err)
	}
	c.cmd = cmd
	c.logger.Info("Language server started", "command", launch.Command, "pid", cmd.Process.Pid)

	c.Attach(jrpc2.NewClient(channel.LSP(stdout, stdin), c.ClientOptions()))

	if _, err := c.Initialize(ctx, rootDir); err != nil {
		_ = c.kill()
		return nil, err
	}
	return c, nil
}

// Initialize performs the initialize/initialized handshake.
func (c *Client) Initialize(ctx context.Context, rootDir string) (InitializeResult, error) {
	if c.rpc == nil {
		return InitializeResult{}, ErrNotConnected
	}
	params := InitializeParams{
		ProcessID:  os.Getpid(),
		ClientInfo: ClientInfo{Name: c.name, Version: c.version},
		Trace:      "messages",
		Capabilities: map[string]any{
			"workspace": map[string]any{
				"didChangeWatchedFiles": map[string]any{"dynamicRegistration": false},
				"executeCommand":        map[string]any{"dynamicRegistration": false},
			},
			"textDocument": map[string]any{
				"synchronization":    map[string]any{"didSave": false},
				"publishDiagnostics": map[string]any{"relatedInformation": false},
			},
		},
	}
	if rootDir != "" {
		root := FileURI(rootDir)
		params.RootURI = &root
		params.WorkspaceFolders = []WorkspaceFolder{{URI: root, Name: rootDir}}
	}

	var result InitializeResult
	if err := c.rpc.CallResult(ctx, "initialize", params, &result); err != nil {
		return result, fmt.Errorf("initialize request: %w", err)
	}
	if err := c.rpc.Notify(ctx, "initialized", struct{}{}); err != nil {
		return result, fmt.Errorf("initialized notification: %w", err)
	}

	c.mu.Lock()
	c.server = result.ServerInfo
	c.mu.Unlock()
	if result.ServerInfo != nil {
		c.logger.Info("Language server ready", "server", result.ServerInfo.Name, "version", result.ServerInfo.Version)
	}
	return result, nil
}

// ServerInfo returns what the server reported during initialize, if anything.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// DidOpen announces a Syntheto document.
func (c *Client) DidOpen(ctx context.Context, uri, text string) error {
	if c.rpc == nil {
		return ErrNotConnected
	}
	c.mu.Lock()
	c.versions[uri] = 1
	c.mu.Unlock()
	return c.rpc.Notify(ctx, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: LanguageID, Version: 1, Text: text},
	})
}

// DidChange replaces the full text of an open document.
func (c *Client) DidChange(ctx context.Context, uri, text string) error {
	if c.rpc == nil {
		return ErrNotConnected
	}
	c.mu.Lock()
	c.versions[uri]++
	version := c.versions[uri]
	c.mu.Unlock()
	return c.rpc.Notify(ctx, "textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{URI: uri, Version: version},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: text}},
	})
}

// DidClose closes a document.
func (c *Client) DidClose(ctx context.Context, uri string) error {
	if c.rpc == nil {
		return ErrNotConnected
	}
	c.mu.Lock()
	delete(c.versions, uri)
	c.mu.Unlock()
	return c.rpc.Notify(ctx, "textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// DidChangeWatchedFiles forwards file system events. It satisfies FileNotifier.
func (c *Client) DidChangeWatchedFiles(ctx context.Context, changes []FileEvent) error {
	if c.rpc == nil {
		return ErrNotConnected
	}
	return c.rpc.Notify(ctx, "workspace/didChangeWatchedFiles", DidChangeWatchedFilesParams{Changes: changes})
}

// Diagnostics returns the last diagnostics published for uri.
func (c *Client) Diagnostics(uri string) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.diagnostics[uri]...)
}

// WaitDiagnostics blocks until the server has published diagnostics for uri at least once.
func (c *Client) WaitDiagnostics(ctx context.Context, uri string) ([]Diagnostic, error) {
	for {
		c.mu.Lock()
		if c.published[uri] {
			out := append([]Diagnostic(nil), c.diagnostics[uri]...)
			c.mu.Unlock()
			return out, nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// Execute implements ports.ExecutionHandler through workspace/executeCommand.
func (c *Client) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResponse, error) {
	if c.rpc == nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrHandlerUnavailable, ErrNotConnected)
	}

	var raw json.RawMessage
	params := ExecuteCommandParams{Command: c.command, Arguments: []any{req}}
	if err := c.rpc.CallResult(ctx, "workspace/executeCommand", params, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", c.command, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: %s returned no result", domain.ErrUnknownResponse, c.command)
	}

	// Some servers return the response document as a JSON string.
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnknownResponse, err)
		}
		raw = json.RawMessage(s)
	}
	return kernel.DecodeResponse(raw)
}

// Shutdown sends shutdown and exit, closes the connection and waits for the process.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.rpc == nil {
		return nil
	}

	var errs []error
	if _, err := c.rpc.Call(ctx, "shutdown", nil); err != nil {
		errs = append(errs, fmt.Errorf("shutdown request: %w", err))
	}
	if err := c.rpc.Notify(ctx, "exit", nil); err != nil {
		errs = append(errs, fmt.Errorf("exit notification: %w", err))
	}
	_ = c.rpc.Close()

	if c.cmd != nil {
		if err := c.wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close performs Shutdown bounded by ShutdownTimeout.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return c.Shutdown(ctx)
}

func (c *Client) wait(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()
	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c.logger.Debug("Language server exited", "code", exitErr.ExitCode())
			return nil
		}
		return err
	case <-ctx.Done():
		_ = c.cmd.Process.Kill()
		<-done
		return fmt.Errorf("language server did not exit: %w", ctx.Err())
	}
}

func (c *Client) kill() error {
	if c.rpc != nil {
		_ = c.rpc.Close()
	}
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	err := c.cmd.Process.Kill()
	_ = c.cmd.Wait()
	return err
}

func (c *Client) handleNotification(req *jrpc2.Request) {
	switch req.Method() {
	case "textDocument/publishDiagnostics":
		var p PublishDiagnosticsParams
		if err := req.UnmarshalParams(&p); err != nil {
			c.logger.Warn("Malformed diagnostics", "error", err)
			return
		}
		c.mu.Lock()
		c.diagnostics[p.URI] = p.Diagnostics
		c.published[p.URI] = true
		close(c.changed)
		c.changed = make(chan struct{})
		c.mu.Unlock()

	case "window/logMessage", "window/showMessage":
		var p MessageParams
		if err := req.UnmarshalParams(&p); err != nil {
			return
		}
		c.logger.Log(context.Background(), p.Type.level(), p.Message, "source", "Syntheto")

	default:
		c.logger.Debug("Ignoring server notification", "method", req.Method())
	}
}

// handleCallback acknowledges server requests such as client/registerCapability.
func (c *Client) handleCallback(_ context.Context, req *jrpc2.Request) (any, error) {
	c.logger.Debug("Server request", "method", req.Method())
	return nil, nil
}

func (t MessageType) level() slog.Level {
	switch t {
	case MessageError:
		return slog.LevelError
	case MessageWarning:
		return slog.LevelWarn
	case MessageInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// logWriter forwards server stderr lines to the logger.
type logWriter struct {
	logger *slog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Debug("Language server stderr", "line", string(trimNewline(p)))
	return len(p), nil
}

func trimNewline(p []byte) []byte {
	for len(p) > 0 && (p[len(p)-1] == '\n' || p[len(p)-1] == '\r') {
		p = p[:len(p)-1]
	}
	return p
}
