package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MergeScenario describes one merge under analysis: the four commits, the
// four versions of the source artifact and the methods the analysis targets.
type MergeScenario struct {
	// Name of the project the scenario belongs to
	ProjectName string `json:"projectName"`
	// Whether the scenario should be analysed at all
	RunAnalysis bool `json:"runAnalysis"`
	// Commit identifiers of base, left, right and merge
	Commits ScenarioInformation `json:"scenarioCommits"`
	// Source artifact paths of base, left, right and merge
	Files ScenarioInformation `json:"scenarioFiles"`
	// Target methods keyed by (fully qualified) class name
	Targets map[string][]TargetMethod `json:"targets"`
}

// ScenarioInformation carries one value per branch variant.
type ScenarioInformation struct {
	Base  string `json:"base"`
	Left  string `json:"left"`
	Right string `json:"right"`
	Merge string `json:"merge"`
}

// Get returns the value stored for v.
func (s ScenarioInformation) Get(v Variant) string {
	switch v {
	case VariantBase:
		return s.Base
	case VariantLeft:
		return s.Left
	case VariantRight:
		return s.Right
	case VariantMerge:
		return s.Merge
	}
	return ""
}

// ShortMerge returns the first six characters of the merge commit, used to
// name output directories.
func (s ScenarioInformation) ShortMerge() string {
	if len(s.Merge) > 6 {
		return s.Merge[:6]
	}
	return s.Merge
}

// TargetMethod is a method the analysis focuses on. In the input it is either
// a bare signature string or an object with per-branch change summaries.
type TargetMethod struct {
	Method              string `json:"method"`
	LeftChangesSummary  string `json:"leftChangesSummary,omitempty"`
	RightChangesSummary string `json:"rightChangesSummary,omitempty"`
}

// Name returns the method name without its parameter list.
func (t TargetMethod) Name() string {
	name := strings.TrimSpace(t.Method)
	if idx := strings.Index(name, "("); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}

func (t *TargetMethod) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = TargetMethod{Method: s}
		return nil
	}

	type plain TargetMethod
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("target method must be a string or an object: %w", err)
	}
	*t = TargetMethod(p)
	return nil
}

func (t TargetMethod) MarshalJSON() ([]byte, error) {
	if t.LeftChangesSummary == "" && t.RightChangesSummary == "" {
		return json.Marshal(t.Method)
	}
	type plain TargetMethod
	return json.Marshal(plain(t))
}

// SimpleClassName returns the last dot-separated segment of a class name.
func SimpleClassName(className string) string {
	if idx := strings.LastIndex(className, "."); idx >= 0 {
		return className[idx+1:]
	}
	return className
}
