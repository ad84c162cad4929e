package ledger

// Package ledger keeps the append-only record of every test execution so
// that runs can be audited and resumed across invocations of the tool.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/perfgo/mergeguard/model"
	"github.com/perfgo/mergeguard/store"
	"github.com/rs/zerolog"
)

// Ledger is the execution ledger backed by one JSON file.
type Ledger struct {
	logger zerolog.Logger
	file   *store.File
}

// New returns a ledger persisted at path.
func New(logger zerolog.Logger, path string) *Ledger {
	return &Ledger{
		logger: logger.With().Str("ledger", path).Logger(),
		file:   store.New(path),
	}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.file.Path()
}

// Load returns the full ledger. A missing, empty or corrupt file yields an
// empty ledger; corruption is logged.
func (l *Ledger) Load() (model.ExecutionLog, error) {
	log := model.ExecutionLog{}
	if err := l.file.Read(&log); err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			l.logger.Warn().Err(err).Msg("Ledger is unreadable, starting from an empty ledger")
			return model.ExecutionLog{}, nil
		}
		return nil, err
	}
	if log == nil {
		log = model.ExecutionLog{}
	}
	return log, nil
}

// Record appends attempts under testClass -> suiteRoot -> targetArtifact.
// Execution numbers continue after the highest number already stored for
// that path; prior entries are never modified.
func (l *Ledger) Record(testClass, suiteRoot, targetArtifact string, attempts []model.ExecutionRecord) error {
	if len(attempts) == 0 {
		return nil
	}

	err := l.file.Update(func(current []byte) (any, error) {
		log, ok := decode(l.logger, current)
		if !ok {
			l.preserve(current)
		}

		suites := log[testClass]
		if suites == nil {
			suites = model.ClassHistory{}
			log[testClass] = suites
		}
		entry, ok := suites[suiteRoot]
		if !ok || entry.TargetFile == nil {
			entry = model.SuiteHistory{TargetFile: map[string][]model.ExecutionRecord{}}
		}

		existing := entry.TargetFile[targetArtifact]
		next := 0
		for _, rec := range existing {
			if rec.ExecutionNumber > next {
				next = rec.ExecutionNumber
			}
		}
		for _, rec := range attempts {
			next++
			rec.ExecutionNumber = next
			existing = append(existing, rec)
		}
		entry.TargetFile[targetArtifact] = existing
		suites[suiteRoot] = entry

		return log, nil
	})
	if err != nil {
		return fmt.Errorf("failed to record executions of %s: %w", testClass, err)
	}

	l.logger.Debug().
		Str("class", testClass).
		Str("suite", suiteRoot).
		Str("target", targetArtifact).
		Int("attempts", len(attempts)).
		Msg("Recorded executions")
	return nil
}

// decode returns the ledger held in data. ok is false when data is not a
// ledger, in which case the returned ledger is empty.
func decode(logger zerolog.Logger, data []byte) (log model.ExecutionLog, ok bool) {
	if len(bytes.TrimSpace(data)) == 0 {
		return model.ExecutionLog{}, true
	}
	if err := json.Unmarshal(data, &log); err != nil {
		logger.Warn().Err(err).Msg("Ledger is unreadable, rewriting it from scratch")
		return model.ExecutionLog{}, false
	}
	if log == nil {
		log = model.ExecutionLog{}
	}
	return log, true
}

// preserve keeps an unreadable ledger next to the new one as <file>.corrupt.
func (l *Ledger) preserve(data []byte) {
	path := l.Path() + ".corrupt"
	if err := store.WriteAtomic(path, data, 0644); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to keep a copy of the unreadable ledger")
		return
	}
	l.logger.Warn().Str("copy", path).Msg("Kept a copy of the unreadable ledger")
}
