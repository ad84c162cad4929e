package model

// TestCaseResult is the classified outcome of one test case.
type TestCaseResult string

const (
	ResultPass TestCaseResult = "PASS"
	ResultFail TestCaseResult = "FAIL"
	// ResultNotExecutable covers syntax, import and reference errors, skips,
	// crashes and timeouts: the test never ran against the variant.
	ResultNotExecutable TestCaseResult = "NOT_EXECUTABLE"
	// ResultFlaky is only assigned when repeated runs against the same
	// variant disagree.
	ResultFlaky TestCaseResult = "FLAKY"
)

// Definite reports whether r is a PASS or FAIL, i.e. a result that says
// something about the behaviour of the code under test.
func (r TestCaseResult) Definite() bool {
	return r == ResultPass || r == ResultFail
}

func (r TestCaseResult) String() string {
	return string(r)
}

// OutcomeVector holds the reduced result of one test case per variant.
// A variant without an entry was not executed.
type OutcomeVector map[Variant]TestCaseResult

// Get returns the result for v and whether it is present.
func (o OutcomeVector) Get(v Variant) (TestCaseResult, bool) {
	r, ok := o[v]
	return r, ok
}

// Definite returns the results for the given variants only when every one of
// them is present and definite.
func (o OutcomeVector) Definite(vs ...Variant) ([]TestCaseResult, bool) {
	out := make([]TestCaseResult, 0, len(vs))
	for _, v := range vs {
		r, ok := o[v]
		if !ok || !r.Definite() {
			return nil, false
		}
		out = append(out, r)
	}
	return out, true
}

// Strings renders the vector keyed by branch name, the shape used in reports.
func (o OutcomeVector) Strings() map[string]string {
	out := make(map[string]string, len(o))
	for v, r := range o {
		out[string(v)] = string(r)
	}
	return out
}
