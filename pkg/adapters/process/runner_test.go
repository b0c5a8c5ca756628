package process

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/mnb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestRunner_Execute(t *testing.T) {
	skipOnWindows(t)

	runner := NewRunner()
	runner.Register("echo", "sh", "-c", `cat >/dev/null; echo '{"type":"transformation","message":"done","code":"g()"}'`)
	runner.Register("stdin", "sh", "-c", "cat")
	runner.Register("plain", "sh", "-c", "echo hello $MNB_HANDLER")
	runner.Register("crashy", "sh", "-c", "echo Something went terribly wrong >&2; exit 123")
	runner.Register("silent", "true")

	req := domain.ExecutionRequest{Code: "f()", AllCellContent: "f()\n"}

	t.Run("Executes Registered Command", func(t *testing.T) {
		runner.selected = "echo"
		resp, err := runner.Execute(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, domain.TransformationResponse{Message: "done", Code: "g()"}, resp)
	})

	t.Run("Writes Request To Stdin", func(t *testing.T) {
		// The request echoed back has no type tag and no result.
		runner.selected = "stdin"
		_, err := runner.Execute(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrUnknownResponse)
	})

	t.Run("Plain Text Is Success", func(t *testing.T) {
		runner.selected = "plain"
		resp, err := runner.Execute(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, domain.SuccessResponse{Message: "hello plain"}, resp)
	})

	t.Run("Non Zero Exit", func(t *testing.T) {
		runner.selected = "crashy"
		_, err := runner.Execute(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exit status 123")
		assert.Contains(t, err.Error(), "Something went terribly wrong")
	})

	t.Run("Empty Output", func(t *testing.T) {
		runner.selected = "silent"
		_, err := runner.Execute(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrUnknownResponse)
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		runner.selected = "hacker_script"
		_, err := runner.Execute(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrHandlerUnavailable)
	})
}

func TestRunner_SingleCommandIsDefault(t *testing.T) {
	skipOnWindows(t)

	runner := NewRunner(WithRegistry(map[string]CommandConfig{
		"only": {Command: "sh", Args: []string{"-c", `echo '{"result":"42"}'`}},
	}))
	resp, err := runner.Execute(context.Background(), domain.ExecutionRequest{Code: "x"})
	require.NoError(t, err)
	assert.Equal(t, domain.SuccessResponse{Message: "42"}, resp)
}

func TestRunner_Environment(t *testing.T) {
	skipOnWindows(t)

	runner := NewRunner(
		WithRegistry(map[string]CommandConfig{
			"env": {Command: "sh", Args: []string{"-c", "echo $SYNTHETO_MODE"}, Environment: map[string]string{"SYNTHETO_MODE": "check"}},
		}),
		WithCommand("env"),
	)
	resp, err := runner.Execute(context.Background(), domain.ExecutionRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.SuccessResponse{Message: "check"}, resp)
}

func TestRunner_Cancellation(t *testing.T) {
	skipOnWindows(t)

	t.Run("Good Citizen Exits On Interrupt", func(t *testing.T) {
		runner := NewRunner(WithGracePeriod(5 * time.Second))
		runner.Register("good", "sh", "-c", `trap 'exit 0' INT; sleep 10 >/dev/null 2>&1 & wait`)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := runner.Execute(ctx, domain.ExecutionRequest{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("Bad Citizen Is Killed After Grace Period", func(t *testing.T) {
		runner := NewRunner(WithGracePeriod(300 * time.Millisecond))
		runner.Register("bad", "sh", "-c", `trap '' INT; while true; do sleep 0.05 >/dev/null 2>&1; done`)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := runner.Execute(ctx, domain.ExecutionRequest{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	})
}

func TestLoadCommands(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "handlers.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
handlers:
  - name: syntheto
    command: ./bin/run-syntheto
    args: ["--json"]
    env:
      SYNTHETO_HOME: /opt/syntheto
  - name: incomplete
`), 0o644))

	cmds, err := LoadCommands(yamlPath)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "./bin/run-syntheto", cmds["syntheto"].Command)
	assert.Equal(t, []string{"--json"}, cmds["syntheto"].Args)
	assert.Equal(t, "/opt/syntheto", cmds["syntheto"].Environment["SYNTHETO_HOME"])

	jsonPath := filepath.Join(dir, "handlers.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"handlers":[{"name":"a","command":"a.sh"}]}`), 0o644))
	cmds, err = LoadCommands(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, cmds, "a")

	cmds, err = LoadCommands(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cmds)

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("handlers: [oops"), 0o644))
	_, err = LoadCommands(badPath)
	assert.Error(t, err)
}
