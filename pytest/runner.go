package pytest

// Package pytest runs Python test files with pytest and classifies the
// per-test-case results.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	pycmd "github.com/perfgo/mergeguard/cli/python"
	"github.com/perfgo/mergeguard/model"
	"github.com/rs/zerolog"
)

// Runner executes one test class of a suite with pytest.
type Runner struct {
	logger      zerolog.Logger
	interpreter pycmd.Interpreter
}

// NewRunner returns a Runner using the given interpreter.
func NewRunner(logger zerolog.Logger, interpreter pycmd.Interpreter) *Runner {
	return &Runner{
		logger:      logger,
		interpreter: interpreter,
	}
}

// Args returns the interpreter arguments for running testClass.
func Args(testClass string) []string {
	return []string{"-m", "pytest", testClass + ".py", "-v", "--tb=short"}
}

// Run executes <suite.Path>/<testClass>.py. The deadline of ctx bounds the
// invocation. A non-zero exit caused by failing tests is not an error; an
// error is only returned when the runner could not be started. Timeouts are
// reported through RunOutput.TimedOut with whatever results were printed
// before the process was killed.
func (r *Runner) Run(ctx context.Context, suite model.TestSuite, testClass string) (model.RunOutput, error) {
	args := Args(testClass)
	out := model.RunOutput{
		Command:  r.interpreter.CommandLine(args...),
		ExitCode: -1,
	}

	pythonPath := suite.ClassPath
	if pythonPath == "" {
		pythonPath = suite.Path
	}
	cmd := r.interpreter.Command(ctx, suite.Path, pythonPath, args...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	r.logger.Debug().
		Str("command", out.Command).
		Str("dir", suite.Path).
		Msg("Running test class")

	start := time.Now()
	err := cmd.Run()
	out.Duration = time.Since(start)
	out.Output = buf.String()

	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.TimedOut = true
		r.logger.Warn().
			Str("class", testClass).
			Dur("duration", out.Duration).
			Msg("Test run timed out")
	} else if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return out, fmt.Errorf("failed to execute pytest in %s: %w", filepath.Base(suite.Path), err)
		}
		out.ExitCode = exitErr.ExitCode()
	} else {
		out.ExitCode = 0
	}

	parsed, err := New(testClass).Parse(&buf)
	if err != nil {
		return out, fmt.Errorf("failed to parse pytest output: %w", err)
	}
	out.Results = parsed.Results()

	r.logger.Debug().
		Str("class", testClass).
		Int("exit_code", out.ExitCode).
		Int("cases", len(out.Results)).
		Bool("from_summary", parsed.FromSummary).
		Msg("Test run completed")

	return out, nil
}
