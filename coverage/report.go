package coverage

// Package coverage runs single test cases under coverage.py (through
// pytest-cov) and decodes the JSON report it writes.

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/perfgo/mergeguard/model"
)

// Report is the subset of coverage.py's JSON report that is used.
type Report struct {
	Files  map[string]FileData `json:"files"`
	Totals Summary             `json:"totals"`
}

// FileData is the coverage of one measured file.
type FileData struct {
	ExecutedLines    []int    `json:"executed_lines"`
	MissingLines     []int    `json:"missing_lines"`
	ExcludedLines    []int    `json:"excluded_lines"`
	ExecutedBranches [][2]int `json:"executed_branches"`
	MissingBranches  [][2]int `json:"missing_branches"`
	Summary          Summary  `json:"summary"`
}

// Summary holds coverage.py's counters. Percentages are only present in the
// JSON of recent coverage.py versions; Lines and Branches derive them from
// the counters otherwise.
type Summary struct {
	CoveredLines             int     `json:"covered_lines"`
	NumStatements            int     `json:"num_statements"`
	PercentCovered           float64 `json:"percent_covered"`
	PercentStatementsCovered float64 `json:"percent_statements_covered"`
	MissingLines             int     `json:"missing_lines"`
	ExcludedLines            int     `json:"excluded_lines"`
	NumBranches              int     `json:"num_branches"`
	NumPartialBranches       int     `json:"num_partial_branches"`
	CoveredBranches          int     `json:"covered_branches"`
	MissingBranches          int     `json:"missing_branches"`
	PercentBranchesCovered   float64 `json:"percent_branches_covered"`
}

// Parse decodes a coverage.py JSON report.
func Parse(reader io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(reader).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode coverage report: %w", err)
	}
	if r.Files == nil {
		r.Files = map[string]FileData{}
	}
	return &r, nil
}

// Load reads and decodes the report at path.
func Load(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open coverage report: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// File returns the data of the measured file for module, matched on the
// file's base name (module "Calc" matches "Calc.py" and "/x/Calc.py").
func (r *Report) File(module string) (string, FileData, bool) {
	want := module
	if filepath.Ext(want) == "" {
		want += ".py"
	}

	paths := make([]string, 0, len(r.Files))
	for p := range r.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if filepath.Base(filepath.FromSlash(p)) == want {
			return p, r.Files[p], true
		}
	}
	return "", FileData{}, false
}

// Executed reports whether any line of the file ran.
func (d FileData) Executed() bool {
	return len(d.ExecutedLines) > 0
}

// ExecutedWithin reports whether an executed line falls in [start, end].
func (d FileData) ExecutedWithin(start, end int) bool {
	for _, l := range d.ExecutedLines {
		if l >= start && l <= end {
			return true
		}
	}
	return false
}

// CoverageSummary converts the file's data into the shape kept with
// conflict records.
func (d FileData) CoverageSummary() *model.CoverageSummary {
	s := d.Summary

	linePercent := s.PercentStatementsCovered
	if linePercent == 0 && s.NumStatements > 0 {
		linePercent = percent(s.CoveredLines, s.NumStatements)
	}
	branchPercent := s.PercentBranchesCovered
	if branchPercent == 0 && s.NumBranches > 0 {
		branchPercent = percent(s.CoveredBranches, s.NumBranches)
	}

	return &model.CoverageSummary{
		LineCoverage: model.LineCoverage{
			Percent:           linePercent,
			CoveredStatements: s.CoveredLines,
			TotalStatements:   s.NumStatements,
			ExecutedLines:     nonNil(d.ExecutedLines),
			MissingLines:      nonNil(d.MissingLines),
		},
		BranchCoverage: model.BranchCoverage{
			Percent:          branchPercent,
			CoveredBranches:  s.CoveredBranches,
			TotalBranches:    s.NumBranches,
			ExecutedBranches: nonNilBranches(d.ExecutedBranches),
			MissingBranches:  nonNilBranches(d.MissingBranches),
		},
		OverallPercent: s.PercentCovered,
	}
}

func percent(covered, total int) float64 {
	return float64(covered) * 100 / float64(total)
}

func nonNil(lines []int) []int {
	if lines == nil {
		return []int{}
	}
	return lines
}

func nonNilBranches(b [][2]int) [][2]int {
	if b == nil {
		return [][2]int{}
	}
	return b
}

// reportName is the file name of the JSON report for one test case.
func reportName(testClass, testCase string) string {
	name := testClass
	if testCase != "" {
		name += "." + testCase
	}
	name = strings.NewReplacer("/", "_", ":", "_", "[", "_", "]", "_", " ", "_").Replace(name)
	return "coverage_" + name + ".json"
}
