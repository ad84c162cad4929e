package report

import (
	"fmt"
	"sort"

	"github.com/perfgo/mergeguard/model"
	"github.com/rs/zerolog"
)

// Context is everything a scenario's analysis produced.
type Context struct {
	Scenario  model.MergeScenario
	Suites    []model.TestSuite
	Conflicts []model.ConflictVerdict
	Changes   []model.BehaviorChange
}

// Generator turns an analysis context into the records of one report.
type Generator interface {
	Name() string
	Records(ctx Context) []any
}

type semanticConflictsGenerator struct{}

func (semanticConflictsGenerator) Name() string { return SemanticConflicts }

func (semanticConflictsGenerator) Records(ctx Context) []any {
	out := make([]any, 0, len(ctx.Conflicts))
	for _, v := range ctx.Conflicts {
		out = append(out, newSemanticConflictRecord(ctx.Scenario, v))
	}
	return out
}

type behaviorChangesGenerator struct{}

func (behaviorChangesGenerator) Name() string { return BehaviorChanges }

func (behaviorChangesGenerator) Records(ctx Context) []any {
	out := make([]any, 0, len(ctx.Changes))
	for _, c := range ctx.Changes {
		out = append(out, newBehaviorChangeRecord(ctx.Scenario, c))
	}
	return out
}

type testSuitesGenerator struct{}

func (testSuitesGenerator) Name() string { return TestSuites }

func (testSuitesGenerator) Records(ctx Context) []any {
	if len(ctx.Suites) == 0 {
		return nil
	}
	return []any{TestSuitesRecord{
		ID:              newID(),
		GeneratedAt:     now().UTC(),
		ProjectName:     ctx.Scenario.ProjectName,
		ScenarioCommits: ctx.Scenario.Commits,
		TestSuites:      ctx.Suites,
	}}
}

var generators = map[string]Generator{
	SemanticConflicts: semanticConflictsGenerator{},
	BehaviorChanges:   behaviorChangesGenerator{},
	TestSuites:        testSuitesGenerator{},
}

// DefaultGenerators is the default report selection.
var DefaultGenerators = []string{SemanticConflicts, BehaviorChanges, TestSuites}

// Names returns the known report names, sorted.
func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Writer writes the selected reports of each analysed scenario.
type Writer struct {
	logger     zerolog.Logger
	store      *Store
	generators []Generator
}

// NewWriter selects generators by name; an empty list selects
// DefaultGenerators.
func NewWriter(logger zerolog.Logger, store *Store, names []string) (*Writer, error) {
	if len(names) == 0 {
		names = DefaultGenerators
	}
	w := &Writer{logger: logger, store: store}
	for _, name := range names {
		g, ok := generators[name]
		if !ok {
			return nil, fmt.Errorf("unknown output generator %q", name)
		}
		w.generators = append(w.generators, g)
	}
	return w, nil
}

// Write appends the records of every selected report. A failing report does
// not keep the others from being written; the first error is returned.
func (w *Writer) Write(ctx Context) error {
	var first error
	for _, g := range w.generators {
		w.logger.Debug().Str("report", g.Name()).Msg("Generating report")
		if err := w.store.Append(g.Name(), g.Records(ctx)); err != nil {
			w.logger.Error().Err(err).Str("report", g.Name()).Msg("Failed to write report")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
