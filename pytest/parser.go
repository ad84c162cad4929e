package pytest

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/perfgo/mergeguard/model"
)

// Signal is the raw per-test status printed by pytest.
type Signal string

const (
	SignalPassed  Signal = "PASSED"
	SignalFailed  Signal = "FAILED"
	SignalError   Signal = "ERROR"
	SignalSkipped Signal = "SKIPPED"
)

// Case is one test case recovered from the output.
type Case struct {
	// Node name below the test file, e.g. "test_apply" or "TestCalc::test_apply"
	Name   string
	Signal Signal
	Result model.TestCaseResult
}

// Result holds everything recovered from one pytest invocation.
type Result struct {
	Cases []Case
	// Counts from the final summary line ("1 failed, 2 passed in 0.03s")
	Summary map[string]int
	// Whether Cases were synthesised from Summary because no per-test lines
	// were found
	FromSummary bool
}

// Results returns the per-case classification keyed by case name.
func (r *Result) Results() map[string]model.TestCaseResult {
	out := make(map[string]model.TestCaseResult, len(r.Cases))
	for _, c := range r.Cases {
		out[c.Name] = c.Result
	}
	return out
}

var (
	// DiscountCalculatorTest_0.py::test_apply PASSED      [ 33%]
	caseLine = regexp.MustCompile(`^(\S+?\.py)::(\S+)\s+(PASSED|FAILED|ERROR|SKIPPED)\b`)
	// ==== 1 failed, 1 passed, 1 skipped in 0.03s ====
	summaryCount = regexp.MustCompile(`(\d+) (passed|failed|errors?|skipped)\b`)
	// ____ test_apply ____  /  ____ TestCalc.test_apply ____
	sectionHeader = regexp.MustCompile(`^_{3,} (.+?) _{3,}$`)
	sectionEnd    = regexp.MustCompile(`^={3,}`)
)

// Parser parses `pytest -v --tb=short` output of a single test file.
type Parser struct {
	testClass string
	classify  func(testCase, section, output string) model.TestCaseResult
}

// New creates a parser for the output of testClass's file.
func New(testClass string) *Parser {
	return &Parser{
		testClass: testClass,
		classify:  ClassifyFailure,
	}
}

// Parse reads pytest output. Per-test lines win; when none are present the
// counts of the final summary line are turned into synthetic cases named
// test_<Class>_<i>. Output without either yields no cases.
func (p *Parser) Parse(reader io.Reader) (*Result, error) {
	var lines []string
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	output := strings.Join(lines, "\n")

	res := &Result{Summary: lastSummary(lines)}
	seen := make(map[string]int)

	for _, line := range lines {
		m := caseLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		name, signal := m[2], Signal(m[3])
		c := Case{Name: name, Signal: signal, Result: p.resultFor(name, signal, lines, output)}

		// A test that fails in teardown is reported twice; the later
		// ERROR line is what makes it unusable.
		if idx, ok := seen[name]; ok {
			if signal == SignalError {
				res.Cases[idx] = c
			}
			continue
		}
		seen[name] = len(res.Cases)
		res.Cases = append(res.Cases, c)
	}

	if len(res.Cases) == 0 && len(res.Summary) > 0 {
		res.FromSummary = true
		res.Cases = p.casesFromSummary(res.Summary)
	}

	return res, nil
}

func (p *Parser) resultFor(name string, signal Signal, lines []string, output string) model.TestCaseResult {
	switch signal {
	case SignalPassed:
		return model.ResultPass
	case SignalFailed:
		return p.classify(name, failureSection(lines, name), output)
	default:
		return model.ResultNotExecutable
	}
}

func (p *Parser) casesFromSummary(summary map[string]int) []Case {
	var cases []Case
	i := 0
	add := func(n int, signal Signal, result model.TestCaseResult) {
		for ; n > 0; n-- {
			cases = append(cases, Case{
				Name:   fmt.Sprintf("test_%s_%d", p.testClass, i),
				Signal: signal,
				Result: result,
			})
			i++
		}
	}
	add(summary["passed"], SignalPassed, model.ResultPass)
	add(summary["failed"], SignalFailed, model.ResultFail)
	add(summary["error"], SignalError, model.ResultNotExecutable)
	add(summary["skipped"], SignalSkipped, model.ResultNotExecutable)
	return cases
}

// lastSummary returns the counts of the last line that carries any, which
// is pytest's final summary.
func lastSummary(lines []string) map[string]int {
	for i := len(lines) - 1; i >= 0; i-- {
		matches := summaryCount.FindAllStringSubmatch(lines[i], -1)
		if len(matches) == 0 {
			continue
		}
		counts := make(map[string]int, len(matches))
		for _, m := range matches {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			key := m[2]
			if key == "errors" {
				key = "error"
			}
			counts[key] += n
		}
		return counts
	}
	return nil
}

// failureSection returns the traceback block pytest prints for name in its
// FAILURES section, or "" when it cannot be located.
func failureSection(lines []string, name string) string {
	header := strings.ReplaceAll(name, "::", ".")

	start := -1
	for i, line := range lines {
		m := sectionHeader.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil && m[1] == header {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if sectionHeader.MatchString(trimmed) || sectionEnd.MatchString(trimmed) {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n")
}
