package model

// ConflictVerdict is a test case whose outcome vector satisfied a conflict
// criterion. ExercisedTargets is filled in by coverage attribution.
type ConflictVerdict struct {
	TestCaseName     string
	Suite            TestSuite
	CriterionName    string
	Outcomes         OutcomeVector
	ExercisedTargets map[string][]string
	Coverage         *CoverageSummary
}

// WithAttribution returns a copy of v carrying the exercised targets and the
// coverage summary of the instrumented run.
func (v ConflictVerdict) WithAttribution(targets map[string][]string, summary *CoverageSummary) ConflictVerdict {
	out := v
	out.ExercisedTargets = make(map[string][]string, len(targets))
	for class, methods := range targets {
		out.ExercisedTargets[class] = append([]string(nil), methods...)
	}
	out.Coverage = summary
	return out
}

// BehaviorChange is a test case whose merge result differs from base.
type BehaviorChange struct {
	TestCaseName string
	Suite        TestSuite
	Outcomes     OutcomeVector
}

// CoverageSummary condenses the coverage of one instrumented module.
type CoverageSummary struct {
	LineCoverage   LineCoverage   `json:"line_coverage"`
	BranchCoverage BranchCoverage `json:"branch_coverage"`
	OverallPercent float64        `json:"overall_coverage_percent"`
}

// LineCoverage holds statement coverage figures.
type LineCoverage struct {
	Percent           float64 `json:"percent"`
	CoveredStatements int     `json:"covered_statements"`
	TotalStatements   int     `json:"total_statements"`
	ExecutedLines     []int   `json:"executed_lines"`
	MissingLines      []int   `json:"missing_lines"`
}

// BranchCoverage holds branch coverage figures. Branches are (from, to)
// line pairs.
type BranchCoverage struct {
	Percent          float64  `json:"percent"`
	CoveredBranches  int      `json:"covered_branches"`
	TotalBranches    int      `json:"total_branches"`
	ExecutedBranches [][2]int `json:"executed_branches"`
	MissingBranches  [][2]int `json:"missing_branches"`
}
