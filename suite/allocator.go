package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/perfgo/mergeguard/model"
)

// Allocator hands out unique suite directories of the form
// <base>/<project>/<merge[:6]>/<generator>_<n>. Allocation scans the
// existing directories and creates the next one while holding a mutex, so
// concurrent scenarios never share a suite root.
type Allocator struct {
	base string
	mu   sync.Mutex
}

// NewAllocator returns an allocator rooted at base.
func NewAllocator(base string) *Allocator {
	return &Allocator{base: base}
}

// ScenarioDir returns the directory that holds all suites of scenario.
func (a *Allocator) ScenarioDir(scenario model.MergeScenario) string {
	return filepath.Join(a.base, scenario.ProjectName, scenario.Commits.ShortMerge())
}

// Allocate creates and returns a fresh suite directory for generatorName.
func (a *Allocator) Allocate(scenario model.MergeScenario, generatorName string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir := a.ScenarioDir(scenario)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create scenario directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read scenario directory: %w", err)
	}

	next := 1
	for _, entry := range entries {
		if n, ok := suiteIndex(entry.Name(), generatorName); ok && n >= next {
			next = n + 1
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%d", generatorName, next))
	// Mkdir rather than MkdirAll so another process racing for the same
	// name fails loudly instead of sharing the directory.
	if err := os.Mkdir(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create suite directory: %w", err)
	}
	return path, nil
}

// Previous returns the newest existing suite of generatorName for scenario,
// or "" when there is none.
func (a *Allocator) Previous(scenario model.MergeScenario, generatorName string) (string, error) {
	return FindPrevious(a.ScenarioDir(scenario), generatorName)
}
