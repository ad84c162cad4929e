package executor

// Package executor runs a test suite against each branch variant of the
// class under test and reduces repeated runs into one outcome per test case
// and variant.

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/perfgo/mergeguard/model"
	"github.com/perfgo/mergeguard/variant"
	"github.com/rs/zerolog"
)

const (
	DefaultRepeats = 3
	DefaultTimeout = 300 * time.Second
)

// Runner invokes the external test runner for one test class of a suite.
// The context deadline bounds the invocation.
type Runner interface {
	Run(ctx context.Context, suite model.TestSuite, testClass string) (model.RunOutput, error)
}

// Ledger stores execution attempts.
type Ledger interface {
	Load() (model.ExecutionLog, error)
	Record(testClass, suiteRoot, targetArtifact string, attempts []model.ExecutionRecord) error
}

// Executor runs suites differentially across branch variants.
type Executor struct {
	logger   zerolog.Logger
	runner   Runner
	variants *variant.Manager
	ledger   Ledger
	repeats  int
	timeout  time.Duration
	runID    string
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithRepeats sets how often each test class runs per variant.
func WithRepeats(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.repeats = n
		}
	}
}

// WithTimeout bounds every runner invocation.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLedger records every attempt in l.
func WithLedger(l Ledger) Option {
	return func(e *Executor) {
		e.ledger = l
	}
}

// WithRunID tags ledger records with the ID of the current invocation.
func WithRunID(id string) Option {
	return func(e *Executor) {
		e.runID = id
	}
}

// New creates an Executor.
func New(logger zerolog.Logger, runner Runner, variants *variant.Manager, opts ...Option) *Executor {
	e := &Executor{
		logger:   logger,
		runner:   runner,
		variants: variants,
		repeats:  DefaultRepeats,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CaseKey is the fully qualified name of a test case: <TestClass>#<case>.
func CaseKey(testClass, testCase string) string {
	return testClass + "#" + testCase
}

// SplitCaseKey is the inverse of CaseKey.
func SplitCaseKey(key string) (testClass, testCase string) {
	testClass, testCase, _ = strings.Cut(key, "#")
	return testClass, testCase
}

func placeholderCase(testClass string) string {
	return "test_" + testClass
}

// RunOnce activates v for className, runs every test class of the suite the
// configured number of times and restores the suite root. It returns one
// result map per repeat keyed by CaseKey. When the variant file is absent
// the runner is not invoked and every known test case is NOT_EXECUTABLE;
// the same holds when the variant cannot be activated. Only cancellation of
// ctx is returned as an error.
//
// known holds test case keys seen before (e.g. in other variants); it is
// used to fill in results of runs that timed out or crashed.
func (e *Executor) RunOnce(ctx context.Context, suite model.TestSuite, className string, v model.Variant, known map[string]struct{}) ([]map[string]model.TestCaseResult, error) {
	repeats := make([]map[string]model.TestCaseResult, e.repeats)
	for i := range repeats {
		repeats[i] = make(map[string]model.TestCaseResult)
	}

	artifact := filepath.Base(e.variants.VariantFile(suite.Path, className, v))
	expected := e.expectedCases(suite, artifact, known)

	ran := false
	err := e.variants.With(suite.Path, className, v, func(activated bool) error {
		if !activated {
			e.logger.Info().
				Str("class", className).
				Str("variant", string(v)).
				Str("suite", suite.Path).
				Msg("Variant not available, marking test cases as not executable")
			for _, testClass := range suite.TestClassNames {
				fill(repeats, testClass, expected[testClass])
			}
			return nil
		}

		ran = true
		for _, testClass := range suite.TestClassNames {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.runClass(ctx, suite, testClass, artifact, v, expected[testClass], repeats)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to run %s variant of %s: %w", v, className, err)
		}
		e.logger.Error().
			Err(err).
			Str("class", className).
			Str("variant", string(v)).
			Str("suite", suite.Path).
			Msg("Variant swap failed")
		if !ran {
			// Nothing ran against the variant.
			for _, testClass := range suite.TestClassNames {
				fill(repeats, testClass, expected[testClass])
			}
		}
	}

	return repeats, nil
}

// runClass runs testClass e.repeats times and writes its results into the
// matching repeat maps.
func (e *Executor) runClass(ctx context.Context, suite model.TestSuite, testClass, artifact string, v model.Variant, expected []string, repeats []map[string]model.TestCaseResult) {
	seen := make(map[string]struct{}, len(expected))
	for _, c := range expected {
		seen[c] = struct{}{}
	}

	records := make([]model.ExecutionRecord, 0, len(repeats))
	for i := range repeats {
		rec := e.invoke(ctx, suite, testClass, v)
		records = append(records, rec)

		results := rec.Result
		if rec.TimedOut || len(results) == 0 {
			// Nothing trustworthy was printed; the whole class is unusable
			// for this repeat.
			results = make(map[string]model.TestCaseResult, len(seen))
			for _, c := range sortedCases(seen, testClass) {
				results[c] = model.ResultNotExecutable
			}
		}
		for c, r := range results {
			seen[c] = struct{}{}
			repeats[i][CaseKey(testClass, c)] = r
		}
	}

	if e.ledger != nil {
		if err := e.ledger.Record(testClass, suite.Path, artifact, records); err != nil {
			e.logger.Warn().Err(err).Str("class", testClass).Msg("Failed to record executions")
		}
	}
}

// invoke runs the runner once under the configured timeout.
func (e *Executor) invoke(ctx context.Context, suite model.TestSuite, testClass string, v model.Variant) model.ExecutionRecord {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rec := model.ExecutionRecord{
		Branch:    v,
		RunID:     e.runID,
		Timestamp: e.now().UTC(),
		ExitCode:  -1,
	}

	out, err := e.runner.Run(ctx, suite, testClass)
	rec.Command = out.Command
	rec.Duration = out.Duration
	rec.TimedOut = out.TimedOut
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("class", testClass).
			Str("variant", string(v)).
			Msg("Test runner failed")
		return rec
	}
	rec.ExitCode = out.ExitCode
	if !out.TimedOut {
		rec.Result = out.Results
	}

	e.logger.Debug().
		Str("class", testClass).
		Str("variant", string(v)).
		Int("exit_code", out.ExitCode).
		Int("cases", len(out.Results)).
		Dur("duration", out.Duration).
		Msg("Executed test class")
	return rec
}

// expectedCases collects, per test class, the test cases a run is expected
// to report: those in known and those recorded in the ledger for artifact.
func (e *Executor) expectedCases(suite model.TestSuite, artifact string, known map[string]struct{}) map[string][]string {
	sets := make(map[string]map[string]struct{}, len(suite.TestClassNames))
	add := func(testClass, testCase string) {
		if !suite.HasTestClass(testClass) || testCase == placeholderCase(testClass) {
			return
		}
		if sets[testClass] == nil {
			sets[testClass] = make(map[string]struct{})
		}
		sets[testClass][testCase] = struct{}{}
	}

	for key := range known {
		add(SplitCaseKey(key))
	}

	if e.ledger != nil {
		log, err := e.ledger.Load()
		if err != nil {
			e.logger.Warn().Err(err).Msg("Failed to load ledger")
		}
		for _, testClass := range suite.TestClassNames {
			for _, rec := range log.Attempts(testClass, suite.Path, artifact) {
				for c := range rec.Result {
					add(testClass, c)
				}
			}
		}
	}

	out := make(map[string][]string, len(sets))
	for testClass, cases := range sets {
		out[testClass] = sortedCases(cases, testClass)
	}
	return out
}

// sortedCases returns the sorted case names, or the class placeholder when
// there are none.
func sortedCases(cases map[string]struct{}, testClass string) []string {
	if len(cases) == 0 {
		return []string{placeholderCase(testClass)}
	}
	out := make([]string, 0, len(cases))
	for c := range cases {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func fill(repeats []map[string]model.TestCaseResult, testClass string, cases []string) {
	if len(cases) == 0 {
		cases = []string{placeholderCase(testClass)}
	}
	for _, m := range repeats {
		for _, c := range cases {
			m[CaseKey(testClass, c)] = model.ResultNotExecutable
		}
	}
}

// Reduce folds repeated results into one result per test case. Repeats that
// agree keep their value, disagreeing repeats yield FLAKY. A case missing
// from a repeat counts as NOT_EXECUTABLE for that repeat.
func Reduce(repeats []map[string]model.TestCaseResult) map[string]model.TestCaseResult {
	keys := make(map[string]struct{})
	for _, m := range repeats {
		for k := range m {
			keys[k] = struct{}{}
		}
	}

	out := make(map[string]model.TestCaseResult, len(keys))
	for k := range keys {
		var reduced model.TestCaseResult
		for i, m := range repeats {
			r, ok := m[k]
			if !ok {
				r = model.ResultNotExecutable
			}
			if i == 0 {
				reduced = r
			} else if r != reduced {
				reduced = model.ResultFlaky
				break
			}
		}
		out[k] = reduced
	}
	return out
}

// RunDifferential runs the suite against each of the given variants in
// canonical order and returns one outcome vector per test case key. Every
// vector has an entry for every variant that was requested; a case a
// variant did not report is NOT_EXECUTABLE there. Placeholder cases are
// dropped for classes that reported real ones.
func (e *Executor) RunDifferential(ctx context.Context, suite model.TestSuite, className string, variants []model.Variant) (map[string]model.OutcomeVector, error) {
	variants = model.SortVariants(variants)
	known := make(map[string]struct{})
	perVariant := make(map[model.Variant]map[string]model.TestCaseResult, len(variants))

	for _, v := range variants {
		repeats, err := e.RunOnce(ctx, suite, className, v, known)
		if err != nil {
			return nil, err
		}
		reduced := Reduce(repeats)
		for k := range reduced {
			testClass, testCase := SplitCaseKey(k)
			if testCase != placeholderCase(testClass) {
				known[k] = struct{}{}
			}
		}
		perVariant[v] = reduced

		e.logger.Info().
			Str("class", className).
			Str("variant", string(v)).
			Str("suite", suite.Path).
			Int("cases", len(reduced)).
			Msg("Variant executed")
	}

	vectors := make(map[string]model.OutcomeVector)
	for _, v := range variants {
		for k, r := range perVariant[v] {
			vec, ok := vectors[k]
			if !ok {
				vec = make(model.OutcomeVector, len(variants))
				vectors[k] = vec
			}
			vec[v] = r
		}
	}

	for k, vec := range vectors {
		testClass, testCase := SplitCaseKey(k)
		if testCase == placeholderCase(testClass) && hasRealCase(known, testClass) {
			delete(vectors, k)
			continue
		}
		for _, v := range variants {
			if _, ok := vec[v]; !ok {
				vec[v] = model.ResultNotExecutable
			}
		}
	}

	return vectors, nil
}

func hasRealCase(known map[string]struct{}, testClass string) bool {
	for k := range known {
		if c, _ := SplitCaseKey(k); c == testClass {
			return true
		}
	}
	return false
}
