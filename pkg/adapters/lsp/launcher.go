package lsp

import (
	"errors"
	"path/filepath"
	"runtime"
)

// DebugJavaOpts attaches a JDWP debugger on port 8000 without suspending the server.
const DebugJavaOpts = "-Xdebug -Xrunjdwp:server=y,transport=dt_socket,address=8000,suspend=n,quiet=y"

// ErrNoLauncher is returned when neither a Syntheto home nor a command is configured.
var ErrNoLauncher = errors.New("no language server configured: set the Syntheto home or a command")

// LaunchConfig describes how to start the language server.
type LaunchConfig struct {
	// Home is the Syntheto installation; the launcher is <Home>/bin/syntheto-standalone.
	Home string
	// Command overrides the launcher script.
	Command string
	Args    []string
	// Debug exposes the JVM debug port through JAVA_OPTS.
	Debug bool
	// Dir is the working directory of the server process.
	Dir string
}

// Launch is a resolved server command line.
type Launch struct {
	Command string
	Args    []string
	// Env is prepended to the inherited environment; inherited values win.
	Env []string
	Dir string
}

// LauncherName returns the launcher script name for an operating system.
func LauncherName(goos string) string {
	if goos == "windows" {
		return "syntheto-standalone.bat"
	}
	return "syntheto-standalone"
}

// Resolve builds the command line for the current platform.
func (c LaunchConfig) Resolve() (Launch, error) {
	return c.resolve(runtime.GOOS)
}

func (c LaunchConfig) resolve(goos string) (Launch, error) {
	l := Launch{Command: c.Command, Args: c.Args, Dir: c.Dir}
	if l.Command == "" {
		if c.Home == "" {
			return Launch{}, ErrNoLauncher
		}
		l.Command = filepath.Join(c.Home, "bin", LauncherName(goos))
	}
	if c.Debug {
		l.Env = append(l.Env, "JAVA_OPTS="+DebugJavaOpts)
	}
	return l, nil
}
