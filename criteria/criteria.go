package criteria

// Package criteria decides whether the outcome vector of a test case shows a
// semantic conflict or a behaviour change introduced by the merge.
//
// Criteria only look at definite results. A vector with a NOT_EXECUTABLE,
// FLAKY or missing entry for a variant a criterion needs never matches.

import (
	"fmt"

	"github.com/perfgo/mergeguard/model"
)

// Criterion is a named, stateless predicate over an outcome vector.
type Criterion interface {
	Name() string
	IsSatisfiedBy(outcomes model.OutcomeVector) bool
}

const (
	FirstSemanticConflict  = "FirstSemanticConflictCriteria"
	SecondSemanticConflict = "SecondSemanticConflictCriteria"
)

// FirstSemanticConflictCriteria matches when exactly one parent changed the
// result relative to base and the merge does not carry that change: the
// merge lost the behaviour one side introduced.
type FirstSemanticConflictCriteria struct{}

func (FirstSemanticConflictCriteria) Name() string { return FirstSemanticConflict }

func (FirstSemanticConflictCriteria) IsSatisfiedBy(o model.OutcomeVector) bool {
	r, ok := o.Definite(model.VariantBase, model.VariantLeft, model.VariantRight, model.VariantMerge)
	if !ok {
		return false
	}
	base, left, right, merge := r[0], r[1], r[2], r[3]

	switch {
	case left != base && right == base:
		return merge != left
	case right != base && left == base:
		return merge != right
	default:
		return false
	}
}

// SecondSemanticConflictCriteria matches when neither parent changed the
// result relative to base but the merge does: the change comes from the
// combination of both sides.
type SecondSemanticConflictCriteria struct{}

func (SecondSemanticConflictCriteria) Name() string { return SecondSemanticConflict }

func (SecondSemanticConflictCriteria) IsSatisfiedBy(o model.OutcomeVector) bool {
	r, ok := o.Definite(model.VariantBase, model.VariantLeft, model.VariantRight, model.VariantMerge)
	if !ok {
		return false
	}
	base, left, right, merge := r[0], r[1], r[2], r[3]
	return left == base && right == base && merge != base
}

// BehaviorChangeChecker reports whether the merge behaves differently from
// base, whatever the parents did.
type BehaviorChangeChecker struct{}

func (BehaviorChangeChecker) IsBehaviorChange(o model.OutcomeVector) bool {
	r, ok := o.Definite(model.VariantBase, model.VariantMerge)
	return ok && r[0] != r[1]
}

// Builtin returns the known criteria by name.
func Builtin() map[string]Criterion {
	return map[string]Criterion{
		FirstSemanticConflict:  FirstSemanticConflictCriteria{},
		SecondSemanticConflict: SecondSemanticConflictCriteria{},
	}
}

// DefaultNames is the default registration order.
var DefaultNames = []string{FirstSemanticConflict, SecondSemanticConflict}

// Registry holds criteria in registration order.
type Registry struct {
	criteria []Criterion
}

// NewRegistry returns a registry with the given criteria, in order.
func NewRegistry(criteria ...Criterion) *Registry {
	r := &Registry{}
	for _, c := range criteria {
		r.Register(c)
	}
	return r
}

// FromNames builds a registry from builtin criterion names, in order. An
// empty list selects DefaultNames.
func FromNames(names []string) (*Registry, error) {
	if len(names) == 0 {
		names = DefaultNames
	}
	builtin := Builtin()
	r := &Registry{}
	for _, name := range names {
		c, ok := builtin[name]
		if !ok {
			return nil, fmt.Errorf("unknown criterion %q", name)
		}
		r.Register(c)
	}
	return r, nil
}

// Register appends c. A criterion whose name is already registered is
// ignored.
func (r *Registry) Register(c Criterion) {
	if _, ok := r.Lookup(c.Name()); ok {
		return
	}
	r.criteria = append(r.criteria, c)
}

// Lookup returns the criterion registered under name.
func (r *Registry) Lookup(name string) (Criterion, bool) {
	for _, c := range r.criteria {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.criteria))
	for _, c := range r.criteria {
		names = append(names, c.Name())
	}
	return names
}

// Evaluate returns the name of the first criterion satisfied by outcomes.
func (r *Registry) Evaluate(testCaseName string, outcomes model.OutcomeVector) (string, bool) {
	for _, c := range r.criteria {
		if c.IsSatisfiedBy(outcomes) {
			return c.Name(), true
		}
	}
	return "", false
}

// Verdict evaluates outcomes and builds the conflict verdict for a match.
func (r *Registry) Verdict(testCaseName string, suite model.TestSuite, outcomes model.OutcomeVector) (model.ConflictVerdict, bool) {
	name, ok := r.Evaluate(testCaseName, outcomes)
	if !ok {
		return model.ConflictVerdict{}, false
	}
	vec := make(model.OutcomeVector, len(outcomes))
	for v, res := range outcomes {
		vec[v] = res
	}
	return model.ConflictVerdict{
		TestCaseName:     testCaseName,
		Suite:            suite,
		CriterionName:    name,
		Outcomes:         vec,
		ExercisedTargets: map[string][]string{},
	}, true
}
