package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/perfgo/mergeguard/ledger"
	"github.com/perfgo/mergeguard/model"
	"github.com/perfgo/mergeguard/variant"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type results = map[string]model.TestCaseResult

// fakeRunner answers with canned results for whichever variant is active,
// identified by the content of the canonical Calc.py.
type fakeRunner struct {
	mu      sync.Mutex
	byVar   map[string][]results
	hangOn  map[string]bool
	failOn  map[string]bool
	calls   map[string]int
	classes []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		byVar:  map[string][]results{},
		hangOn: map[string]bool{},
		failOn: map[string]bool{},
		calls:  map[string]int{},
	}
}

func (f *fakeRunner) Run(ctx context.Context, suite model.TestSuite, testClass string) (model.RunOutput, error) {
	data, err := os.ReadFile(filepath.Join(suite.Path, "Calc.py"))
	if err != nil {
		return model.RunOutput{}, err
	}
	active := strings.TrimSpace(strings.TrimPrefix(string(data), "#"))

	f.mu.Lock()
	idx := f.calls[active]
	f.calls[active]++
	f.classes = append(f.classes, testClass)
	f.mu.Unlock()

	out := model.RunOutput{Command: "python3 -m pytest " + testClass + ".py -v --tb=short", ExitCode: 0}
	if f.hangOn[active] {
		<-ctx.Done()
		out.TimedOut = true
		out.ExitCode = -1
		return out, nil
	}
	if f.failOn[active] {
		return out, errors.New("exec: \"python3\": executable file not found in $PATH")
	}

	seq := f.byVar[active]
	if len(seq) == 0 {
		return out, nil
	}
	out.Results = seq[idx%len(seq)]
	return out, nil
}

func (f *fakeRunner) callCount(v string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[v]
}

func newSuite(t *testing.T, variants ...model.Variant) model.TestSuite {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Calc.py"), []byte("# original\n"), 0644))
	for _, v := range variants {
		require.NoError(t, os.WriteFile(filepath.Join(root, "Calc_"+string(v)+".py"), []byte("# "+string(v)+"\n"), 0644))
	}
	return model.TestSuite{
		GeneratorName:  "LLM",
		Path:           root,
		ClassPath:      root,
		TestClassNames: []string{"CalcTest"},
	}
}

func requireRestored(t *testing.T, suite model.TestSuite) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(suite.Path, "Calc.py"))
	require.NoError(t, err)
	require.Equal(t, "# original\n", string(data))
	_, err = os.Stat(filepath.Join(suite.Path, "Calc_backup.py"))
	require.True(t, os.IsNotExist(err))
}

func TestRunDifferential_OutcomeVectors(t *testing.T) {
	suite := newSuite(t, model.Variants...)
	runner := newFakeRunner()
	runner.byVar["base"] = []results{{"test_apply": model.ResultPass, "test_total": model.ResultPass}}
	runner.byVar["left"] = []results{{"test_apply": model.ResultFail, "test_total": model.ResultPass}}
	runner.byVar["right"] = []results{{"test_apply": model.ResultPass, "test_total": model.ResultPass}}
	runner.byVar["merge"] = []results{{"test_apply": model.ResultFail, "test_total": model.ResultPass}}

	e := New(zerolog.Nop(), runner, variant.New(zerolog.Nop()))
	vectors, err := e.RunDifferential(context.Background(), suite, "Calc", model.Variants)
	require.NoError(t, err)

	require.Equal(t, map[string]model.OutcomeVector{
		"CalcTest#test_apply": {
			model.VariantBase:  model.ResultPass,
			model.VariantLeft:  model.ResultFail,
			model.VariantRight: model.ResultPass,
			model.VariantMerge: model.ResultFail,
		},
		"CalcTest#test_total": {
			model.VariantBase:  model.ResultPass,
			model.VariantLeft:  model.ResultPass,
			model.VariantRight: model.ResultPass,
			model.VariantMerge: model.ResultPass,
		},
	}, vectors)

	for _, v := range []string{"base", "left", "right", "merge"} {
		require.Equal(t, DefaultRepeats, runner.callCount(v), v)
	}
	requireRestored(t, suite)
}

func TestRunDifferential_AbsentVariantSkipsRunner(t *testing.T) {
	suite := newSuite(t, model.VariantBase, model.VariantLeft, model.VariantMerge)
	runner := newFakeRunner()
	for _, v := range []string{"base", "left", "merge"} {
		runner.byVar[v] = []results{{"test_apply": model.ResultPass}}
	}

	e := New(zerolog.Nop(), runner, variant.New(zerolog.Nop()))
	vectors, err := e.RunDifferential(context.Background(), suite, "Calc", model.Variants)
	require.NoError(t, err)

	require.Zero(t, runner.callCount("right"))
	require.Equal(t, model.ResultNotExecutable, vectors["CalcTest#test_apply"][model.VariantRight])
	require.Equal(t, model.ResultPass, vectors["CalcTest#test_apply"][model.VariantMerge])
	require.Len(t, vectors, 1)
	requireRestored(t, suite)
}

func TestRunDifferential_TimeoutIsNotExecutable(t *testing.T) {
	suite := newSuite(t, model.Variants...)
	runner := newFakeRunner()
	runner.byVar["base"] = []results{{"test_apply": model.ResultPass}}
	runner.byVar["left"] = []results{{"test_apply": model.ResultPass}}
	runner.byVar["right"] = []results{{"test_apply": model.ResultPass}}
	runner.hangOn["merge"] = true

	e := New(zerolog.Nop(), runner, variant.New(zerolog.Nop()),
		WithTimeout(20*time.Millisecond),
		WithRepeats(2),
	)
	vectors, err := e.RunDifferential(context.Background(), suite, "Calc", model.Variants)
	require.NoError(t, err)

	require.Equal(t, 2, runner.callCount("merge"))
	require.Equal(t, model.ResultNotExecutable, vectors["CalcTest#test_apply"][model.VariantMerge])
	requireRestored(t, suite)
}

func TestRunDifferential_FlakyRepeats(t *testing.T) {
	suite := newSuite(t, model.VariantBase, model.VariantMerge)
	runner := newFakeRunner()
	runner.byVar["base"] = []results{{"test_apply": model.ResultPass}}
	runner.byVar["merge"] = []results{
		{"test_apply": model.ResultPass},
		{"test_apply": model.ResultFail},
		{"test_apply": model.ResultPass},
	}

	e := New(zerolog.Nop(), runner, variant.New(zerolog.Nop()))
	vectors, err := e.RunDifferential(context.Background(), suite, "Calc",
		[]model.Variant{model.VariantMerge, model.VariantBase})
	require.NoError(t, err)

	require.Equal(t, model.OutcomeVector{
		model.VariantBase:  model.ResultPass,
		model.VariantMerge: model.ResultFlaky,
	}, vectors["CalcTest#test_apply"])
}

func TestRunDifferential_RunnerErrorUsesPlaceholder(t *testing.T) {
	suite := newSuite(t, model.VariantBase)
	runner := newFakeRunner()
	runner.failOn["base"] = true

	e := New(zerolog.Nop(), runner, variant.New(zerolog.Nop()), WithRepeats(1))
	vectors, err := e.RunDifferential(context.Background(), suite, "Calc", []model.Variant{model.VariantBase})
	require.NoError(t, err)

	require.Equal(t, map[string]model.OutcomeVector{
		"CalcTest#test_CalcTest": {model.VariantBase: model.ResultNotExecutable},
	}, vectors)
	requireRestored(t, suite)
}

func TestRunDifferential_ActivationFailureIsNotExecutable(t *testing.T) {
	suite := newSuite(t, model.VariantBase, model.VariantRight, model.VariantMerge)
	// A directory where the left branch file should be cannot be copied.
	require.NoError(t, os.Mkdir(filepath.Join(suite.Path, "Calc_left.py"), 0755))

	runner := newFakeRunner()
	runner.byVar["base"] = []results{{"test_apply": model.ResultPass}}
	runner.byVar["right"] = []results{{"test_apply": model.ResultPass}}
	runner.byVar["merge"] = []results{{"test_apply": model.ResultFail}}

	e := New(zerolog.Nop(), runner, variant.New(zerolog.Nop()), WithRepeats(1))
	vectors, err := e.RunDifferential(context.Background(), suite, "Calc", model.Variants)
	require.NoError(t, err)

	require.Equal(t, map[string]model.OutcomeVector{
		"CalcTest#test_apply": {
			model.VariantBase:  model.ResultPass,
			model.VariantLeft:  model.ResultNotExecutable,
			model.VariantRight: model.ResultPass,
			model.VariantMerge: model.ResultFail,
		},
	}, vectors)
	require.Zero(t, runner.callCount("left"))
	require.Equal(t, 1, runner.callCount("merge"))
	requireRestored(t, suite)
}

func TestRunDifferential_CancelledContext(t *testing.T) {
	suite := newSuite(t, model.Variants...)
	runner := newFakeRunner()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(zerolog.Nop(), runner, variant.New(zerolog.Nop()))
	_, err := e.RunDifferential(ctx, suite, "Calc", model.Variants)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, runner.callCount("base"))
	requireRestored(t, suite)
}

func TestRunOnce_RecordsLedger(t *testing.T) {
	suite := newSuite(t, model.VariantBase)
	runner := newFakeRunner()
	runner.byVar["base"] = []results{{"test_apply": model.ResultPass}}

	l := ledger.New(zerolog.Nop(), filepath.Join(t.TempDir(), "execution_results.json"))
	e := New(zerolog.Nop(), runner, variant.New(zerolog.Nop()), WithLedger(l), WithRunID("run-1"))

	repeats, err := e.RunOnce(context.Background(), suite, "Calc", model.VariantBase, nil)
	require.NoError(t, err)
	require.Len(t, repeats, DefaultRepeats)
	for _, r := range repeats {
		require.Equal(t, results{"CalcTest#test_apply": model.ResultPass}, r)
	}

	log, err := l.Load()
	require.NoError(t, err)
	attempts := log.Attempts("CalcTest", suite.Path, "Calc_base.py")
	require.Len(t, attempts, DefaultRepeats)
	for i, a := range attempts {
		require.Equal(t, i+1, a.ExecutionNumber)
		require.Equal(t, model.VariantBase, a.Branch)
		require.Equal(t, "run-1", a.RunID)
		require.Equal(t, model.ResultPass, a.Result["test_apply"])
	}
}

func TestRunOnce_LedgerSuppliesExpectedCases(t *testing.T) {
	suite := newSuite(t, model.VariantLeft)
	l := ledger.New(zerolog.Nop(), filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, l.Record("CalcTest", suite.Path, "Calc_left.py", []model.ExecutionRecord{{
		Branch: model.VariantLeft,
		Result: results{"test_apply": model.ResultPass, "test_total": model.ResultFail},
	}}))

	runner := newFakeRunner()
	runner.hangOn["left"] = true

	e := New(zerolog.Nop(), runner, variant.New(zerolog.Nop()),
		WithLedger(l), WithRepeats(1), WithTimeout(10*time.Millisecond))
	repeats, err := e.RunOnce(context.Background(), suite, "Calc", model.VariantLeft, nil)
	require.NoError(t, err)

	require.Equal(t, []map[string]model.TestCaseResult{{
		"CalcTest#test_apply": model.ResultNotExecutable,
		"CalcTest#test_total": model.ResultNotExecutable,
	}}, repeats)
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name    string
		repeats []map[string]model.TestCaseResult
		want    map[string]model.TestCaseResult
	}{
		{
			name:    "agreeing repeats",
			repeats: []map[string]model.TestCaseResult{{"a": model.ResultFail}, {"a": model.ResultFail}, {"a": model.ResultFail}},
			want:    map[string]model.TestCaseResult{"a": model.ResultFail},
		},
		{
			name:    "disagreeing repeats",
			repeats: []map[string]model.TestCaseResult{{"a": model.ResultPass}, {"a": model.ResultFail}, {"a": model.ResultPass}},
			want:    map[string]model.TestCaseResult{"a": model.ResultFlaky},
		},
		{
			name:    "missing in every repeat but one",
			repeats: []map[string]model.TestCaseResult{{"a": model.ResultPass, "b": model.ResultPass}, {"a": model.ResultPass}, {"a": model.ResultPass}},
			want:    map[string]model.TestCaseResult{"a": model.ResultPass, "b": model.ResultFlaky},
		},
		{
			name:    "not executable everywhere",
			repeats: []map[string]model.TestCaseResult{{"a": model.ResultNotExecutable}, {}, {}},
			want:    map[string]model.TestCaseResult{"a": model.ResultNotExecutable},
		},
		{
			name:    "single repeat",
			repeats: []map[string]model.TestCaseResult{{"a": model.ResultPass}},
			want:    map[string]model.TestCaseResult{"a": model.ResultPass},
		},
		{
			name: "no repeats",
			want: map[string]model.TestCaseResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Reduce(tt.repeats))
		})
	}
}

func TestCaseKey(t *testing.T) {
	key := CaseKey("CalcTest_0", "TestCalc::test_apply")
	require.Equal(t, "CalcTest_0#TestCalc::test_apply", key)

	class, testCase := SplitCaseKey(key)
	require.Equal(t, "CalcTest_0", class)
	require.Equal(t, "TestCalc::test_apply", testCase)
}
