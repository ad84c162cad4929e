package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/perfgo/mergeguard/model"
)

// Report names, also the base names of their files.
const (
	SemanticConflicts = "semantic_conflicts"
	BehaviorChanges   = "behavior_changes"
	TestSuites        = "test_suites"
)

// SemanticConflictRecord is one detected conflict.
type SemanticConflictRecord struct {
	ID               string                          `json:"id"`
	GeneratedAt      time.Time                       `json:"generated_at"`
	ProjectName      string                          `json:"project_name"`
	ScenarioCommits  model.ScenarioInformation       `json:"scenario_commits"`
	Criteria         string                          `json:"criteria"`
	TestCaseName     string                          `json:"test_case_name"`
	TestCaseResults  map[string]string               `json:"test_case_results"`
	TestSuitePath    string                          `json:"test_suite_path"`
	ScenarioTargets  map[string][]model.TargetMethod `json:"scenario_targets"`
	ExercisedTargets map[string][]string             `json:"exercised_targets"`
	CoverageData     *model.CoverageSummary          `json:"coverage_data,omitempty"`
}

// BehaviorChangeRecord is a test case whose merge result differs from base.
type BehaviorChangeRecord struct {
	ID              string                    `json:"id"`
	GeneratedAt     time.Time                 `json:"generated_at"`
	ProjectName     string                    `json:"project_name"`
	ScenarioCommits model.ScenarioInformation `json:"scenario_commits"`
	TestCaseName    string                    `json:"test_case_name"`
	TestCaseResults map[string]string         `json:"test_case_results"`
	TestSuitePath   string                    `json:"test_suite_path"`
}

// TestSuitesRecord lists the suites analysed for one scenario.
type TestSuitesRecord struct {
	ID              string                    `json:"id"`
	GeneratedAt     time.Time                 `json:"generated_at"`
	ProjectName     string                    `json:"project_name"`
	ScenarioCommits model.ScenarioInformation `json:"scenario_commits"`
	TestSuites      []model.TestSuite         `json:"test_suites"`
}

var (
	newID = uuid.NewString
	now   = time.Now
)

func newSemanticConflictRecord(scenario model.MergeScenario, v model.ConflictVerdict) SemanticConflictRecord {
	exercised := v.ExercisedTargets
	if exercised == nil {
		exercised = map[string][]string{}
	}
	targets := scenario.Targets
	if targets == nil {
		targets = map[string][]model.TargetMethod{}
	}
	return SemanticConflictRecord{
		ID:               newID(),
		GeneratedAt:      now().UTC(),
		ProjectName:      scenario.ProjectName,
		ScenarioCommits:  scenario.Commits,
		Criteria:         v.CriterionName,
		TestCaseName:     v.TestCaseName,
		TestCaseResults:  v.Outcomes.Strings(),
		TestSuitePath:    v.Suite.Path,
		ScenarioTargets:  targets,
		ExercisedTargets: exercised,
		CoverageData:     v.Coverage,
	}
}

func newBehaviorChangeRecord(scenario model.MergeScenario, c model.BehaviorChange) BehaviorChangeRecord {
	return BehaviorChangeRecord{
		ID:              newID(),
		GeneratedAt:     now().UTC(),
		ProjectName:     scenario.ProjectName,
		ScenarioCommits: scenario.Commits,
		TestCaseName:    c.TestCaseName,
		TestCaseResults: c.Outcomes.Strings(),
		TestSuitePath:   c.Suite.Path,
	}
}
