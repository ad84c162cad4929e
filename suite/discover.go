package suite

// Package suite locates generated test suites on disk and allocates
// directories for new ones.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/perfgo/mergeguard/model"
)

// DefaultPatterns are the file names recognised as test files.
var DefaultPatterns = []string{"Test*.py", "*Test.py", "*Test_*.py", "test_*.py"}

// Discover rebuilds a suite handle from the files in root. Test files match
// any of patterns (DefaultPatterns when empty).
func Discover(root, generatorName string, patterns []string) (model.TestSuite, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	info, err := os.Stat(root)
	if err != nil {
		return model.TestSuite{}, fmt.Errorf("failed to stat suite directory: %w", err)
	}
	if !info.IsDir() {
		return model.TestSuite{}, fmt.Errorf("suite path %s is not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return model.TestSuite{}, fmt.Errorf("failed to read suite directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !matchesAny(patterns, name) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, filepath.Ext(name)))
	}
	sort.Strings(names)

	return model.TestSuite{
		GeneratorName:  generatorName,
		Path:           root,
		ClassPath:      root,
		TestClassNames: names,
	}, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// FindPrevious returns the newest "<generatorName>_<n>" directory below
// dir, i.e. the one with the highest n. It returns "" when there is none.
func FindPrevious(dir, generatorName string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}

	best, bestN := "", -1
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, ok := suiteIndex(entry.Name(), generatorName)
		if ok && n > bestN {
			best, bestN = filepath.Join(dir, entry.Name()), n
		}
	}
	return best, nil
}

// suiteIndex parses n out of "<generatorName>_<n>".
func suiteIndex(name, generatorName string) (int, bool) {
	suffix, ok := strings.CutPrefix(name, generatorName+"_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Latest returns the newest suite directory of every generator found below
// dir, keyed by generator name.
func Latest(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	best := map[string]int{}
	out := map[string]string{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		idx := strings.LastIndex(entry.Name(), "_")
		if idx <= 0 {
			continue
		}
		generator := entry.Name()[:idx]
		n, ok := suiteIndex(entry.Name(), generator)
		if !ok {
			continue
		}
		if prev, seen := best[generator]; !seen || n > prev {
			best[generator] = n
			out[generator] = filepath.Join(dir, entry.Name())
		}
	}
	return out, nil
}
