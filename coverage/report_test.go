package coverage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Trimmed output of `pytest --cov=DiscountCalculator --cov-branch
// --cov-report=json:...` with coverage.py 7.6.
const coverageJSON = `{
  "meta": {
    "format": 3,
    "version": "7.6.1",
    "timestamp": "2026-03-02T10:11:12.123456",
    "branch_coverage": true,
    "show_contexts": false
  },
  "files": {
    "DiscountCalculator.py": {
      "executed_lines": [1, 2, 3, 5, 6, 7, 9],
      "summary": {
        "covered_lines": 7,
        "num_statements": 10,
        "percent_covered": 66.66666666666667,
        "percent_covered_display": "67",
        "missing_lines": 3,
        "excluded_lines": 0,
        "num_branches": 2,
        "num_partial_branches": 1,
        "covered_branches": 1,
        "missing_branches": 1,
        "percent_statements_covered": 70.0,
        "percent_statements_covered_display": "70",
        "percent_branches_covered": 50.0,
        "percent_branches_covered_display": "50"
      },
      "missing_lines": [10, 12, 13],
      "excluded_lines": [],
      "executed_branches": [[6, 7]],
      "missing_branches": [[6, -5]]
    }
  },
  "totals": {
    "covered_lines": 7,
    "num_statements": 10,
    "percent_covered": 66.66666666666667,
    "missing_lines": 3,
    "excluded_lines": 0,
    "num_branches": 2,
    "num_partial_branches": 1,
    "covered_branches": 1,
    "missing_branches": 1
  }
}`

func TestParse(t *testing.T) {
	report, err := Parse(strings.NewReader(coverageJSON))
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.Equal(t, 10, report.Totals.NumStatements)

	path, data, ok := report.File("DiscountCalculator")
	require.True(t, ok)
	require.Equal(t, "DiscountCalculator.py", path)
	require.Equal(t, []int{1, 2, 3, 5, 6, 7, 9}, data.ExecutedLines)
	require.Equal(t, [][2]int{{6, -5}}, data.MissingBranches)

	require.True(t, data.Executed())
	require.True(t, data.ExecutedWithin(8, 9))
	require.False(t, data.ExecutedWithin(10, 13))

	_, _, ok = report.File("Cart")
	require.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"files": [`))
	require.Error(t, err)
}

func TestReport_FileMatchesBaseName(t *testing.T) {
	report, err := Parse(strings.NewReader(`{"files": {"/tmp/out/LLM_1/Calc.py": {"executed_lines": [4]}, "/tmp/out/LLM_1/CalcTest_0.py": {}}}`))
	require.NoError(t, err)

	path, data, ok := report.File("Calc.py")
	require.True(t, ok)
	require.Equal(t, "/tmp/out/LLM_1/Calc.py", path)
	require.Equal(t, []int{4}, data.ExecutedLines)
}

func TestFileData_CoverageSummary(t *testing.T) {
	report, err := Parse(strings.NewReader(coverageJSON))
	require.NoError(t, err)
	_, data, _ := report.File("DiscountCalculator")

	s := data.CoverageSummary()
	require.InDelta(t, 70.0, s.LineCoverage.Percent, 0.001)
	require.Equal(t, 7, s.LineCoverage.CoveredStatements)
	require.Equal(t, 10, s.LineCoverage.TotalStatements)
	require.Equal(t, []int{10, 12, 13}, s.LineCoverage.MissingLines)
	require.InDelta(t, 50.0, s.BranchCoverage.Percent, 0.001)
	require.Equal(t, [][2]int{{6, 7}}, s.BranchCoverage.ExecutedBranches)
	require.InDelta(t, 66.667, s.OverallPercent, 0.001)
}

func TestFileData_CoverageSummaryDerivesPercentages(t *testing.T) {
	// coverage.py before 7.6 omits the per-kind percentages.
	data := FileData{
		ExecutedLines: []int{1, 2, 3},
		Summary: Summary{
			CoveredLines:    3,
			NumStatements:   4,
			NumBranches:     4,
			CoveredBranches: 1,
			PercentCovered:  50,
		},
	}

	s := data.CoverageSummary()
	require.InDelta(t, 75.0, s.LineCoverage.Percent, 0.001)
	require.InDelta(t, 25.0, s.BranchCoverage.Percent, 0.001)
	require.Equal(t, []int{}, s.LineCoverage.MissingLines)
	require.Equal(t, [][2]int{}, s.BranchCoverage.MissingBranches)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.json")
	require.NoError(t, os.WriteFile(path, []byte(coverageJSON), 0644))

	report, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, report.Files, "DiscountCalculator.py")

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestArgs(t *testing.T) {
	require.Equal(t, []string{
		"-m", "pytest",
		"--cov=Calc",
		"--cov-branch",
		"--cov-report=json:/r/coverage.json",
		"CalcTest_0.py::TestCalc::test_apply",
		"-v",
	}, Args("Calc", "/r/coverage.json", "CalcTest_0", "TestCalc::test_apply"))

	require.Equal(t, "CalcTest_0.py", Args("Calc", "/r/c.json", "CalcTest_0", "")[5])
}

func TestReportName(t *testing.T) {
	require.Equal(t, "coverage_CalcTest_0.TestCalc__test_x_1-2_.json", reportName("CalcTest_0", "TestCalc::test_x[1-2]"))
	require.Equal(t, "coverage_CalcTest.json", reportName("CalcTest", ""))
}
