package attribution

// Package attribution maps the coverage of a conflicting test case, run
// against the merge variant, onto the scenario's declared target methods.

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/perfgo/mergeguard/coverage"
	"github.com/perfgo/mergeguard/executor"
	"github.com/perfgo/mergeguard/model"
	"github.com/perfgo/mergeguard/pysource"
	"github.com/perfgo/mergeguard/variant"
	"github.com/rs/zerolog"
)

// CoverageRunner measures module while running one test case. An empty
// testCase runs the whole test class.
type CoverageRunner interface {
	Run(ctx context.Context, suite model.TestSuite, testClass, testCase, module string) (*coverage.Report, error)
}

// Result is the attribution of one test case.
type Result struct {
	// Exercised target methods per declared target class
	Targets map[string][]string
	// Coverage of the class under test, nil when it was not measured
	Coverage *model.CoverageSummary
}

// Attributor runs coverage attribution.
type Attributor struct {
	logger   zerolog.Logger
	runner   CoverageRunner
	variants *variant.Manager
}

// New creates an Attributor.
func New(logger zerolog.Logger, runner CoverageRunner, variants *variant.Manager) *Attributor {
	return &Attributor{
		logger:   logger,
		runner:   runner,
		variants: variants,
	}
}

// Attribute re-runs testCaseName (a <TestClass>#<case> key) under coverage
// with the merge variant active and returns the targets it exercised. It
// never fails: errors are logged and yield an empty result.
func (a *Attributor) Attribute(ctx context.Context, suite model.TestSuite, mergeArtifact, testCaseName string, targets map[string][]model.TargetMethod) (res Result) {
	res = Result{Targets: map[string][]string{}}
	logger := a.logger.With().Str("case", testCaseName).Str("suite", suite.Path).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Coverage attribution panicked")
			res = Result{Targets: map[string][]string{}}
		}
	}()

	className, err := variant.ClassNameFromArtifact(mergeArtifact, suite.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Skipping coverage attribution")
		return res
	}

	testClass, testCase := executor.SplitCaseKey(testCaseName)
	if synthetic(testClass, testCase) {
		testCase = ""
	}

	var (
		report  *coverage.Report
		sources = map[string][]pysource.Function{}
	)
	err = a.variants.With(suite.Path, className, model.VariantMerge, func(activated bool) error {
		if !activated {
			return fmt.Errorf("merge variant of %s is not available", className)
		}

		var err error
		report, err = a.runner.Run(ctx, suite, testClass, testCase, model.SimpleClassName(className))
		if err != nil {
			return err
		}
		if report == nil {
			return fmt.Errorf("coverage run of %s returned no report", testClass)
		}

		// Parse while the merge variant is still the active module.
		for targetClass := range targets {
			path := a.variants.CanonicalFile(suite.Path, targetClass)
			funcs, err := pysource.ParseFile(path)
			if err != nil {
				logger.Debug().Err(err).Str("class", targetClass).Msg("Method boundaries unavailable")
				continue
			}
			sources[targetClass] = funcs
		}
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Coverage attribution failed")
		return res
	}

	if _, data, ok := report.File(model.SimpleClassName(className)); ok {
		res.Coverage = data.CoverageSummary()
	}
	res.Targets = exercised(report, targets, sources)

	logger.Info().
		Int("classes", len(res.Targets)).
		Msg("Coverage attribution completed")
	return res
}

// exercised marks every target whose method body ran. A target whose
// boundaries are unknown, or whose body shares the def line, counts as
// exercised as soon as any line of its module ran.
func exercised(report *coverage.Report, targets map[string][]model.TargetMethod, sources map[string][]pysource.Function) map[string][]string {
	out := map[string][]string{}
	for targetClass, methods := range targets {
		_, data, ok := report.File(model.SimpleClassName(targetClass))
		if !ok || !data.Executed() {
			continue
		}

		funcs, parsed := sources[targetClass]
		seen := map[string]bool{}
		for _, m := range methods {
			name := m.Name()
			if name == "" || seen[name] {
				continue
			}

			hit := true
			if parsed {
				// A one-line def runs at import time, its lines say nothing
				if fn, found := pysource.Find(funcs, targetClass, name); found && fn.BodyStartLine > fn.StartLine {
					hit = data.ExecutedWithin(fn.BodyStartLine, fn.BodyEndLine)
				}
			}
			if hit {
				seen[name] = true
				out[targetClass] = append(out[targetClass], name)
			}
		}
		sort.Strings(out[targetClass])
	}
	return out
}

// synthetic reports whether testCase is a name made up from a summary line
// (test_<Class>_<i>) or a placeholder (test_<Class>), which pytest cannot
// select.
func synthetic(testClass, testCase string) bool {
	rest, ok := strings.CutPrefix(testCase, "test_"+testClass)
	if !ok {
		return false
	}
	if rest == "" {
		return true
	}
	digits, ok := strings.CutPrefix(rest, "_")
	if !ok {
		return false
	}
	_, err := strconv.Atoi(digits)
	return err == nil
}
