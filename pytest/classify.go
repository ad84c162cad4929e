package pytest

import (
	"regexp"

	"github.com/perfgo/mergeguard/model"
)

// Errors that mean the code under test could not be loaded or referenced
// something that does not exist in this variant. A test failing with one of
// them never reached the behavior it checks.
var notExecutableMarkers = regexp.MustCompile(
	`\b(SyntaxError|IndentationError|ImportError|ModuleNotFoundError|NameError|AttributeError)\b`,
)

// ClassifyFailure decides whether a FAILED test is a genuine failure or
// could not execute. It looks at the test's own traceback section; when that
// cannot be located it falls back to the whole output.
func ClassifyFailure(testCase, section, output string) model.TestCaseResult {
	text := section
	if text == "" {
		text = output
	}
	if notExecutableMarkers.MatchString(text) {
		return model.ResultNotExecutable
	}
	return model.ResultFail
}
