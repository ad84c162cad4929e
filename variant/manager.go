package variant

// Package variant swaps the branch versions of a source artifact in and out
// of a test suite's execution root.
//
// A suite root holds every branch version under a branch-suffixed name
// (Calc_base.py, Calc_left.py, ...). Activating a variant copies its file to
// the canonical name (Calc.py) the tests import; whatever was there before is
// parked in a backup slot (Calc_backup.py) until Restore puts it back.
//
// Operations on one suite root must not run concurrently; callers serialize
// per root.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/perfgo/mergeguard/model"
	"github.com/rs/zerolog"
)

const DefaultExtension = ".py"

// Manager activates and restores branch variants.
type Manager struct {
	logger    zerolog.Logger
	extension string
}

// New creates a Manager.
func New(logger zerolog.Logger) *Manager {
	return &Manager{
		logger:    logger,
		extension: DefaultExtension,
	}
}

// VariantFile returns the path of the branch-suffixed file for v.
func (m *Manager) VariantFile(root, className string, v model.Variant) string {
	return filepath.Join(root, fmt.Sprintf("%s_%s%s", model.SimpleClassName(className), v, m.extension))
}

// CanonicalFile returns the path tests import the active variant from.
func (m *Manager) CanonicalFile(root, className string) string {
	return filepath.Join(root, model.SimpleClassName(className)+m.extension)
}

func (m *Manager) backupFile(root, className string) string {
	return filepath.Join(root, model.SimpleClassName(className)+"_backup"+m.extension)
}

// Activate makes v the active variant of className under root. It returns
// false, leaving the root untouched, when the variant file does not exist.
// Every successful Activate must be paired with exactly one Restore.
func (m *Manager) Activate(root, className string, v model.Variant) (bool, error) {
	src := m.VariantFile(root, className, v)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			m.logger.Warn().Str("file", src).Msg("Branch file not found")
			return false, nil
		}
		return false, fmt.Errorf("failed to stat branch file: %w", err)
	}

	canonical := m.CanonicalFile(root, className)
	backup := m.backupFile(root, className)

	if _, err := os.Stat(canonical); err == nil {
		if _, err := os.Stat(backup); err == nil {
			// A backup left behind by an interrupted run still holds the
			// original; the canonical file is a stale variant copy.
			m.logger.Warn().Str("backup", backup).Msg("Stale backup found, keeping it as the original")
			if err := os.Remove(canonical); err != nil {
				return false, fmt.Errorf("failed to remove stale canonical file: %w", err)
			}
		} else if err := os.Rename(canonical, backup); err != nil {
			return false, fmt.Errorf("failed to back up canonical file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat canonical file: %w", err)
	}

	if err := copyFile(src, canonical); err != nil {
		// Put the original back so the root stays consistent.
		_ = os.Remove(canonical)
		if _, statErr := os.Stat(backup); statErr == nil {
			_ = os.Rename(backup, canonical)
		}
		return false, fmt.Errorf("failed to activate %s variant: %w", v, err)
	}

	m.logger.Debug().
		Str("class", className).
		Str("variant", string(v)).
		Str("root", root).
		Msg("Activated branch variant")
	return true, nil
}

// Restore removes the active variant and moves the backup, if any, back to
// the canonical name.
func (m *Manager) Restore(root, className string) error {
	canonical := m.CanonicalFile(root, className)
	backup := m.backupFile(root, className)

	if err := os.Remove(canonical); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove active variant: %w", err)
	}

	if _, err := os.Stat(backup); err == nil {
		if err := os.Rename(backup, canonical); err != nil {
			return fmt.Errorf("failed to restore canonical file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat backup file: %w", err)
	}

	m.logger.Debug().Str("class", className).Str("root", root).Msg("Restored canonical file")
	return nil
}

// With activates v, runs fn and restores the root on every path, including
// a panic inside fn. fn is called with activated=false when the variant file
// is absent; Restore is then skipped.
func (m *Manager) With(root, className string, v model.Variant, fn func(activated bool) error) (err error) {
	activated, err := m.Activate(root, className, v)
	if err != nil {
		return err
	}
	if activated {
		defer func() {
			if restoreErr := m.Restore(root, className); restoreErr != nil {
				m.logger.Error().Err(restoreErr).Str("class", className).Msg("Failed to restore canonical file")
				if err == nil {
					err = restoreErr
				}
			}
		}()
	}
	return fn(activated)
}

// ClassNameFromArtifact derives the class name from a source artifact path.
// "Calc_merge.py" yields "Calc". A bare branch name ("merge.py") is resolved
// from the first "<Class>Test_*" file in suiteRoot.
func ClassNameFromArtifact(artifact, suiteRoot string) (string, error) {
	name := strings.TrimSuffix(filepath.Base(artifact), filepath.Ext(artifact))

	if idx := strings.Index(name, "_"); idx > 0 {
		return name[:idx], nil
	}
	if _, err := model.ParseVariant(name); err != nil {
		return name, nil
	}
	if suiteRoot == "" {
		return "", fmt.Errorf("cannot derive class name from %q without a suite root", artifact)
	}

	matches, err := doublestar.Glob(os.DirFS(suiteRoot), "*Test_*")
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", suiteRoot, err)
	}
	sort.Strings(matches)
	for _, match := range matches {
		if idx := strings.Index(match, "Test_"); idx > 0 {
			return match[:idx], nil
		}
	}
	return "", fmt.Errorf("cannot derive class name from %q: no test files in %s", artifact, suiteRoot)
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, sourceInfo.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return err
	}
	return destFile.Close()
}
