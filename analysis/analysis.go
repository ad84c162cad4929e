package analysis

// Package analysis runs the whole pipeline for merge scenarios: execute
// every suite against the four variants, classify outcome vectors, attribute
// conflicts to target methods and write the reports.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/perfgo/mergeguard/attribution"
	"github.com/perfgo/mergeguard/criteria"
	"github.com/perfgo/mergeguard/executor"
	"github.com/perfgo/mergeguard/model"
	"github.com/perfgo/mergeguard/report"
	"github.com/perfgo/mergeguard/suite"
	"github.com/perfgo/mergeguard/variant"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Options tune the analysis.
type Options struct {
	// Generators whose suites are analysed; empty analyses the newest suite
	// of every generator found
	Generators []string
	// Test file name patterns, suite.DefaultPatterns when empty
	TestFilePatterns []string
	// Scenarios analysed at once
	Parallelism int
}

// Analyzer wires the pipeline components together.
type Analyzer struct {
	logger     zerolog.Logger
	allocator  *suite.Allocator
	variants   *variant.Manager
	executor   *executor.Executor
	attributor *attribution.Attributor
	criteria   *criteria.Registry
	changes    criteria.BehaviorChangeChecker
	writer     *report.Writer
	opts       Options

	// One lock per suite root; scenarios naming the same merge share roots.
	roots sync.Map
}

// New creates an Analyzer.
func New(
	logger zerolog.Logger,
	allocator *suite.Allocator,
	variants *variant.Manager,
	exec *executor.Executor,
	attributor *attribution.Attributor,
	registry *criteria.Registry,
	writer *report.Writer,
	opts Options,
) *Analyzer {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Analyzer{
		logger:     logger,
		allocator:  allocator,
		variants:   variants,
		executor:   exec,
		attributor: attributor,
		criteria:   registry,
		writer:     writer,
		opts:       opts,
	}
}

// Suites returns the test suites to analyse for scenario, ordered by
// generator name.
func (a *Analyzer) Suites(scenario model.MergeScenario) ([]model.TestSuite, error) {
	paths := map[string]string{}
	if len(a.opts.Generators) == 0 {
		latest, err := suite.Latest(a.allocator.ScenarioDir(scenario))
		if err != nil {
			return nil, err
		}
		paths = latest
	} else {
		for _, gen := range a.opts.Generators {
			p, err := a.allocator.Previous(scenario, gen)
			if err != nil {
				return nil, err
			}
			if p == "" {
				a.logger.Warn().Str("project", scenario.ProjectName).Str("generator", gen).Msg("No test suite found")
				continue
			}
			paths[gen] = p
		}
	}

	generators := make([]string, 0, len(paths))
	for gen := range paths {
		generators = append(generators, gen)
	}
	sort.Strings(generators)

	var suites []model.TestSuite
	for _, gen := range generators {
		s, err := suite.Discover(paths[gen], gen, a.opts.TestFilePatterns)
		if err != nil {
			a.logger.Warn().Err(err).Str("generator", gen).Msg("Skipping unreadable test suite")
			continue
		}
		if len(s.TestClassNames) == 0 {
			a.logger.Warn().Str("suite", s.Path).Msg("Test suite has no test files")
			continue
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// Analyze runs the pipeline for one scenario and writes its reports.
func (a *Analyzer) Analyze(ctx context.Context, scenario model.MergeScenario) (report.Context, error) {
	logger := a.logger.With().
		Str("project", scenario.ProjectName).
		Str("merge", scenario.Commits.ShortMerge()).
		Logger()

	result := report.Context{Scenario: scenario}

	suites, err := a.Suites(scenario)
	if err != nil {
		return result, fmt.Errorf("failed to locate test suites: %w", err)
	}
	if len(suites) == 0 {
		logger.Warn().Msg("No test suites to analyse")
		return result, nil
	}
	result.Suites = suites

	classes := make([]string, 0, len(scenario.Targets))
	for className := range scenario.Targets {
		classes = append(classes, className)
	}
	sort.Strings(classes)

	for _, s := range suites {
		for _, className := range classes {
			if err := a.analyzeSuite(ctx, logger, scenario, s, className, &result); err != nil {
				return result, err
			}
		}
	}

	logger.Info().
		Int("suites", len(result.Suites)).
		Int("conflicts", len(result.Conflicts)).
		Int("behavior_changes", len(result.Changes)).
		Msg("Scenario analysed")

	if err := a.writer.Write(result); err != nil {
		return result, fmt.Errorf("failed to write reports: %w", err)
	}
	return result, nil
}

func (a *Analyzer) analyzeSuite(ctx context.Context, logger zerolog.Logger, scenario model.MergeScenario, s model.TestSuite, className string, result *report.Context) error {
	unlock := a.lockRoot(s.Path)
	defer unlock()

	logger.Info().
		Str("suite", s.Path).
		Str("class", className).
		Strs("test_classes", s.TestClassNames).
		Msg("Running test suite")

	vectors, err := a.executor.RunDifferential(ctx, s, className, model.Variants)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(vectors))
	for k := range vectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mergeArtifact := a.variants.VariantFile(s.Path, className, model.VariantMerge)
	for _, key := range keys {
		outcomes := vectors[key]

		if a.changes.IsBehaviorChange(outcomes) {
			result.Changes = append(result.Changes, model.BehaviorChange{
				TestCaseName: key,
				Suite:        s,
				Outcomes:     outcomes,
			})
		}

		verdict, ok := a.criteria.Verdict(key, s, outcomes)
		if !ok {
			continue
		}
		logger.Info().
			Str("case", key).
			Str("criterion", verdict.CriterionName).
			Interface("outcomes", outcomes.Strings()).
			Msg("Semantic conflict detected")

		attr := a.attributor.Attribute(ctx, s, mergeArtifact, key, scenario.Targets)
		result.Conflicts = append(result.Conflicts, verdict.WithAttribution(attr.Targets, attr.Coverage))
	}
	return nil
}

func (a *Analyzer) lockRoot(root string) func() {
	v, _ := a.roots.LoadOrStore(root, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Summary counts the outcome of RunAll.
type Summary struct {
	Analyzed  int
	Skipped   int
	Failed    int
	Conflicts int
}

// RunAll analyses every scenario with runAnalysis set, up to
// Options.Parallelism at a time. A failing scenario is logged and does not
// stop the others; only cancellation of ctx is returned as an error.
func (a *Analyzer) RunAll(ctx context.Context, scenarios []model.MergeScenario) (Summary, error) {
	var (
		analyzed, failed, conflicts atomic.Int64
		skipped                     int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Parallelism)

	for _, sc := range scenarios {
		if !sc.RunAnalysis {
			skipped++
			a.logger.Info().Str("project", sc.ProjectName).Msg("Skipping scenario, analysis disabled")
			continue
		}

		g.Go(func() error {
			res, err := a.Analyze(gctx, sc)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				failed.Add(1)
				a.logger.Error().Err(err).Str("project", sc.ProjectName).Msg("Scenario analysis failed")
				return nil
			}
			analyzed.Add(1)
			conflicts.Add(int64(len(res.Conflicts)))
			return nil
		})
	}

	err := g.Wait()
	return Summary{
		Analyzed:  int(analyzed.Load()),
		Skipped:   skipped,
		Failed:    int(failed.Load()),
		Conflicts: int(conflicts.Load()),
	}, err
}
