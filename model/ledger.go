package model

import "time"

// ExecutionLog is the persisted execution ledger:
// test class -> suite root -> target artifact -> attempts.
type ExecutionLog map[string]ClassHistory

// ClassHistory holds the executions of one test class keyed by suite root.
type ClassHistory map[string]SuiteHistory

// SuiteHistory holds the executions of one test class inside one suite, keyed
// by the target artifact the class ran against.
type SuiteHistory struct {
	TargetFile map[string][]ExecutionRecord `json:"target_file"`
}

// ExecutionRecord is one execution attempt of a test class against one
// branch variant. Records are only ever appended.
type ExecutionRecord struct {
	// Monotonically increasing attempt counter per (class, suite, artifact)
	ExecutionNumber int `json:"execution_number"`
	// Branch variant that was active
	Branch Variant `json:"branch,omitempty"`
	// ID of the tool invocation that produced the attempt
	RunID string `json:"run_id,omitempty"`
	// Timestamp when the attempt started
	Timestamp time.Time `json:"timestamp"`
	// Duration of the runner invocation
	Duration time.Duration `json:"duration"`
	// Shell-quoted runner command line
	Command string `json:"command,omitempty"`
	// Exit code of the runner, -1 when it did not exit on its own
	ExitCode int `json:"exit_code"`
	// Whether the runner hit its timeout
	TimedOut bool `json:"timed_out,omitempty"`
	// Raw per-test-case results of this attempt
	Result map[string]TestCaseResult `json:"result"`
}

// Attempts returns the records stored for the given path, or nil.
func (l ExecutionLog) Attempts(testClass, suiteRoot, targetArtifact string) []ExecutionRecord {
	suites, ok := l[testClass]
	if !ok {
		return nil
	}
	entry, ok := suites[suiteRoot]
	if !ok {
		return nil
	}
	return entry.TargetFile[targetArtifact]
}
