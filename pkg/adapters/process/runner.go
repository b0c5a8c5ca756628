package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/mnb/internal/logging"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/kernel"
)

// DefaultGracePeriod is how long a cancelled process may take to exit after an interrupt.
const DefaultGracePeriod = 5 * time.Second

// Runner implements ports.ExecutionHandler by running a local process per execution.
// Only registered commands can run (allow-list). The request is written to the
// process stdin as JSON and the response is read from its stdout.
type Runner struct {
	registry map[string]CommandConfig
	selected string
	baseDir  string
	grace    time.Duration
	logger   *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(commands map[string]CommandConfig) RunnerOption {
	return func(r *Runner) {
		for name, c := range commands {
			c.Name = name
			r.registry[name] = c
		}
	}
}

// WithCommand selects the registered command used for executions.
// When unset and exactly one command is registered, that one is used.
func WithCommand(name string) RunnerOption {
	return func(r *Runner) {
		r.selected = name
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithGracePeriod bounds the wait between interrupt and kill on cancellation.
func WithGracePeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]CommandConfig),
		grace:    DefaultGracePeriod,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = CommandConfig{Name: name, Command: command, Args: args}
}

// Names returns the registered command names, sorted.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Runner) resolve() (CommandConfig, error) {
	name := r.selected
	if name == "" && len(r.registry) == 1 {
		for n := range r.registry {
			name = n
		}
	}
	c, ok := r.registry[name]
	if !ok {
		return CommandConfig{}, fmt.Errorf("%w: process handler %q is not registered", domain.ErrHandlerUnavailable, name)
	}
	return c, nil
}

// Execute implements ports.ExecutionHandler.
func (r *Runner) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResponse, error) {
	proc, err := r.resolve()
	if err != nil {
		return nil, err
	}

	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution request: %w", err)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = r.grace
	if runtime.GOOS != "windows" {
		// Ask politely first; WaitDelay escalates to a kill.
		cmd.Cancel = func() error {
			return cmd.Process.Signal(os.Interrupt)
		}
	}

	env := []string{"MNB_HANDLER=" + proc.Name}
	for k, v := range proc.Environment {
		env = append(env, k+"="+v)
	}
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("Running execution process", "handler", proc.Name, "command", proc.Command)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("process %s stopped: %w", proc.Name, ctxErr)
		}
		return nil, fmt.Errorf("process %s failed: %w. Stderr: %s", proc.Name, err, strings.TrimSpace(stderr.String()))
	}

	return parseOutput(stdout.Bytes())
}

// parseOutput decodes a JSON response document. Plain text output counts as success.
func parseOutput(out []byte) (domain.ExecutionResponse, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: process wrote nothing", domain.ErrUnknownResponse)
	}
	resp, err := kernel.DecodeResponse(trimmed)
	if err == nil {
		return resp, nil
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return nil, err
	}
	if !errors.Is(err, domain.ErrUnknownResponse) {
		return nil, err
	}
	return domain.SuccessResponse{Message: string(trimmed)}, nil
}
