package criteria

import (
	"testing"

	"github.com/perfgo/mergeguard/model"
	"github.com/stretchr/testify/require"
)

const (
	P = model.ResultPass
	F = model.ResultFail
	N = model.ResultNotExecutable
	X = model.ResultFlaky
)

func vec(base, left, right, merge model.TestCaseResult) model.OutcomeVector {
	return model.OutcomeVector{
		model.VariantBase:  base,
		model.VariantLeft:  left,
		model.VariantRight: right,
		model.VariantMerge: merge,
	}
}

func TestCriteria(t *testing.T) {
	tests := []struct {
		name     string
		outcomes model.OutcomeVector
		first    bool
		second   bool
		change   bool
	}{
		{name: "nothing changed", outcomes: vec(P, P, P, P)},
		{name: "left change carried into merge", outcomes: vec(P, F, P, F), change: true},
		{name: "right change carried into merge", outcomes: vec(F, F, P, P), change: true},
		{name: "left change lost in merge", outcomes: vec(P, F, P, P), first: true},
		{name: "right change lost in merge", outcomes: vec(F, F, P, F), first: true},
		{name: "merge diverges from agreeing parents", outcomes: vec(P, P, P, F), second: true, change: true},
		{name: "both parents changed", outcomes: vec(P, F, F, F), change: true},
		{name: "both parents changed, merge reverts", outcomes: vec(P, F, F, P)},
		{name: "not executable merge", outcomes: vec(P, P, P, N)},
		{name: "flaky base", outcomes: vec(X, F, P, P)},
		{name: "not executable parent", outcomes: vec(P, N, P, F), change: true},
		{name: "missing variant", outcomes: model.OutcomeVector{model.VariantBase: P, model.VariantMerge: F}, change: true},
		{name: "empty vector", outcomes: model.OutcomeVector{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.first, FirstSemanticConflictCriteria{}.IsSatisfiedBy(tt.outcomes), "first")
			require.Equal(t, tt.second, SecondSemanticConflictCriteria{}.IsSatisfiedBy(tt.outcomes), "second")
			require.Equal(t, tt.change, BehaviorChangeChecker{}.IsBehaviorChange(tt.outcomes), "behavior change")
		})
	}
}

// Base and right add the discount unconditionally; left and merge subtract
// 10 above 50. A test calling apply(100) that expects the base result passes
// on base and right and fails on left and merge.
func TestCriteria_MergeFollowsChangingParent(t *testing.T) {
	outcomes := vec(P, F, P, F)

	r := NewRegistry(FirstSemanticConflictCriteria{}, SecondSemanticConflictCriteria{})
	_, conflict := r.Evaluate("CalcTest#test_apply_100", outcomes)
	require.False(t, conflict, "merge agrees with the parent that changed it")

	require.NotEqual(t, outcomes[model.VariantMerge], outcomes[model.VariantRight])
	require.True(t, BehaviorChangeChecker{}.IsBehaviorChange(outcomes))
}

type always struct{ name string }

func (a always) Name() string                           { return a.name }
func (a always) IsSatisfiedBy(model.OutcomeVector) bool { return true }

func TestRegistry_FirstMatchWins(t *testing.T) {
	r := NewRegistry(always{"a"}, always{"b"}, always{"a"})
	require.Equal(t, []string{"a", "b"}, r.Names())

	name, ok := r.Evaluate("T#t", model.OutcomeVector{})
	require.True(t, ok)
	require.Equal(t, "a", name)

	_, ok = NewRegistry().Evaluate("T#t", vec(P, F, P, P))
	require.False(t, ok)
}

func TestRegistry_PrecedenceFollowsRegistration(t *testing.T) {
	outcomes := vec(P, F, P, P)

	name, ok := NewRegistry(always{"custom"}, FirstSemanticConflictCriteria{}).Evaluate("T#t", outcomes)
	require.True(t, ok)
	require.Equal(t, "custom", name)

	name, ok = NewRegistry(FirstSemanticConflictCriteria{}, always{"custom"}).Evaluate("T#t", outcomes)
	require.True(t, ok)
	require.Equal(t, FirstSemanticConflict, name)
}

func TestFromNames(t *testing.T) {
	r, err := FromNames(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultNames, r.Names())

	r, err = FromNames([]string{SecondSemanticConflict})
	require.NoError(t, err)
	require.Equal(t, []string{SecondSemanticConflict}, r.Names())

	c, ok := r.Lookup(SecondSemanticConflict)
	require.True(t, ok)
	require.Equal(t, SecondSemanticConflict, c.Name())

	_, err = FromNames([]string{"ThirdSemanticConflictCriteria"})
	require.Error(t, err)
}

func TestRegistry_Verdict(t *testing.T) {
	suite := model.TestSuite{GeneratorName: "LLM", Path: "/out/LLM_1"}
	outcomes := vec(P, P, P, F)

	r, err := FromNames(nil)
	require.NoError(t, err)

	v, ok := r.Verdict("CalcTest#test_apply", suite, outcomes)
	require.True(t, ok)
	require.Equal(t, SecondSemanticConflict, v.CriterionName)
	require.Equal(t, "CalcTest#test_apply", v.TestCaseName)
	require.Equal(t, suite, v.Suite)
	require.Equal(t, outcomes, v.Outcomes)

	outcomes[model.VariantMerge] = P
	require.Equal(t, F, v.Outcomes[model.VariantMerge], "verdict keeps its own copy")

	_, ok = r.Verdict("CalcTest#test_apply", suite, outcomes)
	require.False(t, ok)
}
