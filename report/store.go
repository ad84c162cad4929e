package report

// Package report accumulates findings in one JSON list per report kind,
// preserving every entry written by earlier runs of the tool.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/perfgo/mergeguard/store"
	"github.com/rs/zerolog"
)

// Store keeps the report files below one directory.
type Store struct {
	logger zerolog.Logger
	dir    string

	mu    sync.Mutex
	files map[string]*store.File
}

// NewStore returns a store writing <dir>/<report>.json files.
func NewStore(logger zerolog.Logger, dir string) *Store {
	return &Store{
		logger: logger,
		dir:    dir,
		files:  map[string]*store.File{},
	}
}

// Dir returns the reports directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file backing reportName.
func (s *Store) Path(reportName string) string {
	return filepath.Join(s.dir, reportName+".json")
}

func (s *Store) file(reportName string) *store.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[reportName]
	if !ok {
		f = store.New(s.Path(reportName))
		s.files[reportName] = f
	}
	return f
}

// Append adds records to the end of reportName's list and rewrites the file.
// A missing or unreadable file counts as an empty list; a single non-list
// value left by older versions becomes the first element.
func (s *Store) Append(reportName string, records []any) error {
	if len(records) == 0 {
		return nil
	}

	err := s.file(reportName).Update(func(current []byte) (any, error) {
		existing := s.decode(reportName, current)
		for _, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal %s record: %w", reportName, err)
			}
			existing = append(existing, data)
		}
		return existing, nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to %s report: %w", reportName, err)
	}

	s.logger.Info().
		Str("report", reportName).
		Int("records", len(records)).
		Msg("Report updated")
	return nil
}

// Load returns the entries of reportName, oldest first.
func (s *Store) Load(reportName string) ([]json.RawMessage, error) {
	var raw json.RawMessage
	if err := s.file(reportName).Read(&raw); err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			s.logger.Warn().Err(err).Str("report", reportName).Msg("Report is unreadable")
			return nil, nil
		}
		return nil, err
	}
	return asList(raw), nil
}

func (s *Store) decode(reportName string, data []byte) []json.RawMessage {
	if len(bytes.TrimSpace(data)) == 0 {
		return []json.RawMessage{}
	}
	if !json.Valid(data) {
		s.logger.Warn().Str("report", reportName).Msg("Report is unreadable, starting a new list")
		return []json.RawMessage{}
	}
	return asList(data)
}

// asList interprets a JSON document as a list of entries.
func asList(data []byte) []json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []json.RawMessage{}
	}
	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err == nil {
			return list
		}
	}
	return []json.RawMessage{json.RawMessage(trimmed)}
}
