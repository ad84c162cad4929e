package model

import "time"

// RunOutput is what a test runner reports for one invocation of one test
// class.
type RunOutput struct {
	// Classified result per test case name (without the class prefix)
	Results map[string]TestCaseResult
	// Shell-quoted command line that was executed
	Command string
	// Exit code of the runner process, -1 when it was killed or never started
	ExitCode int
	// Whether the invocation hit its deadline
	TimedOut bool
	// Wall-clock duration of the invocation
	Duration time.Duration
	// Combined stdout and stderr
	Output string
}
