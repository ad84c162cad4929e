package coverage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	pycmd "github.com/perfgo/mergeguard/cli/python"
	"github.com/perfgo/mergeguard/model"
	"github.com/rs/zerolog"
)

const DefaultTimeout = 600 * time.Second

// Runner executes one test case with pytest-cov and returns the coverage
// report of the measured module.
type Runner struct {
	logger      zerolog.Logger
	interpreter pycmd.Interpreter
	timeout     time.Duration
	// Directory the JSON reports are kept in; a temporary directory that is
	// removed afterwards when empty
	reportDir string
}

// NewRunner creates a coverage Runner. reportDir may be empty.
func NewRunner(logger zerolog.Logger, interpreter pycmd.Interpreter, timeout time.Duration, reportDir string) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		logger:      logger,
		interpreter: interpreter,
		timeout:     timeout,
		reportDir:   reportDir,
	}
}

// Args returns the interpreter arguments measuring module while running
// testCase of testClass. An empty testCase runs the whole test file.
func Args(module, reportPath, testClass, testCase string) []string {
	target := testClass + ".py"
	if testCase != "" {
		target += "::" + testCase
	}
	return []string{
		"-m", "pytest",
		"--cov=" + module,
		"--cov-branch",
		"--cov-report=json:" + reportPath,
		target,
		"-v",
	}
}

// Run measures module while running a single test case in the suite root,
// where the caller has already activated the variant to measure. Failing
// tests still produce a report; an error is returned when no report was
// written.
func (r *Runner) Run(ctx context.Context, suite model.TestSuite, testClass, testCase, module string) (*Report, error) {
	dir := r.reportDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "mergeguard-coverage-")
		if err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	reportPath, err := filepath.Abs(filepath.Join(dir, reportName(testClass, testCase)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve report path: %w", err)
	}
	// A report left by an earlier run must not be mistaken for this one.
	_ = os.Remove(reportPath)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := Args(module, reportPath, testClass, testCase)
	pythonPath := suite.ClassPath
	if pythonPath == "" {
		pythonPath = suite.Path
	}
	cmd := r.interpreter.Command(ctx, suite.Path, pythonPath, args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	r.logger.Debug().
		Str("command", r.interpreter.CommandLine(args...)).
		Str("dir", suite.Path).
		Msg("Running coverage")

	start := time.Now()
	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("coverage run of %s timed out after %s", testClass, r.timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute coverage run: %w", err)
		}
		r.logger.Debug().
			Int("exit_code", exitErr.ExitCode()).
			Str("class", testClass).
			Str("case", testCase).
			Msg("Coverage run completed with failures")
	}

	report, err := Load(reportPath)
	if err != nil {
		return nil, fmt.Errorf("coverage run of %s produced no report: %w", testClass, err)
	}

	r.logger.Debug().
		Str("class", testClass).
		Str("case", testCase).
		Int("files", len(report.Files)).
		Dur("duration", time.Since(start)).
		Msg("Coverage collected")
	return report, nil
}
