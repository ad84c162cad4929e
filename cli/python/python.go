package pycmd

// python.go provides utilities for executing the Python interpreter.

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
)

// DefaultExecutable is used when no interpreter is configured.
const DefaultExecutable = "python3"

// WaitDelay bounds how long a cancelled command may keep its output pipes
// open. Test code that spawns children holding stdout would otherwise block
// Wait past the timeout.
const WaitDelay = 5 * time.Second

// Interpreter runs a Python executable.
type Interpreter struct {
	Executable string
}

// New returns an Interpreter for executable, or python3 when it is empty.
func New(executable string) Interpreter {
	if executable == "" {
		executable = DefaultExecutable
	}
	return Interpreter{Executable: executable}
}

// Command creates an exec.Cmd running the interpreter with args in dir.
// pythonPath is prepended to any PYTHONPATH inherited from the environment.
func (i Interpreter) Command(ctx context.Context, dir, pythonPath string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, i.Executable, args...)
	cmd.Dir = dir
	cmd.Env = Environ(os.Environ(), pythonPath)
	cmd.WaitDelay = WaitDelay
	return cmd
}

// CommandLine renders args as a shell-quoted command line, as recorded in
// the execution ledger.
func (i Interpreter) CommandLine(args ...string) string {
	return shellescape.QuoteCommand(append([]string{i.Executable}, args...))
}

// Version runs 'python --version' and returns e.g. "Python 3.11.4".
func (i Interpreter) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, i.Executable, "--version")
	cmd.WaitDelay = WaitDelay

	// Python 2 prints the version to stderr
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		return "", fmt.Errorf("failed to run %s: %s", i.Executable, errMsg)
	}

	version := strings.TrimSpace(stdout.String())
	if version == "" {
		version = strings.TrimSpace(stderr.String())
	}
	return version, nil
}

// Environ returns env with pythonPath prepended to PYTHONPATH. Later
// PYTHONPATH entries in env are dropped so the result holds exactly one.
func Environ(env []string, pythonPath string) []string {
	if pythonPath == "" {
		return env
	}

	value := pythonPath
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if existing, ok := strings.CutPrefix(kv, "PYTHONPATH="); ok {
			if existing != "" {
				value = pythonPath + string(os.PathListSeparator) + existing
			}
			continue
		}
		out = append(out, kv)
	}
	return append(out, "PYTHONPATH="+value)
}
