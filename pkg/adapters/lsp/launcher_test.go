package lsp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchConfig_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LaunchConfig
		goos    string
		command string
		env     []string
		wantErr error
	}{
		{
			name:    "unix launcher",
			cfg:     LaunchConfig{Home: "/opt/syntheto"},
			goos:    "linux",
			command: filepath.Join("/opt/syntheto", "bin", "syntheto-standalone"),
		},
		{
			name:    "windows launcher",
			cfg:     LaunchConfig{Home: "/opt/syntheto"},
			goos:    "windows",
			command: filepath.Join("/opt/syntheto", "bin", "syntheto-standalone.bat"),
		},
		{
			name:    "debug adds java options",
			cfg:     LaunchConfig{Home: "/opt/syntheto", Debug: true},
			goos:    "linux",
			command: filepath.Join("/opt/syntheto", "bin", "syntheto-standalone"),
			env:     []string{"JAVA_OPTS=" + DebugJavaOpts},
		},
		{
			name:    "command override",
			cfg:     LaunchConfig{Home: "/ignored", Command: "java"},
			goos:    "linux",
			command: "java",
		},
		{
			name:    "nothing configured",
			cfg:     LaunchConfig{},
			goos:    "linux",
			wantErr: ErrNoLauncher,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := tt.cfg.resolve(tt.goos)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.command, l.Command)
			assert.Equal(t, tt.env, l.Env)
		})
	}
}

func TestDebugJavaOpts(t *testing.T) {
	assert.Equal(t, "-Xdebug -Xrunjdwp:server=y,transport=dt_socket,address=8000,suspend=n,quiet=y", DebugJavaOpts)
}

func TestFileURI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "my notes.synth")

	uri := FileURI(path)
	assert.Contains(t, uri, "file://")
	assert.Contains(t, uri, "my%20notes.synth")
	assert.Equal(t, path, URIPath(uri))
	assert.Equal(t, "untitled:1", URIPath("untitled:1"))
}
