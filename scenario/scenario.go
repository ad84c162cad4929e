package scenario

// Package scenario reads the merge scenarios to analyse from a JSON file.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/perfgo/mergeguard/model"
	"github.com/rs/zerolog"
)

// ErrNoScenarios is returned when the input holds no usable scenario.
var ErrNoScenarios = errors.New("no valid scenarios in input")

// Parser decodes scenario input.
type Parser struct {
	logger zerolog.Logger
}

// NewParser creates a Parser.
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse decodes a JSON array of scenarios. A single top-level object is
// accepted as a one-scenario input. Scenarios that fail to decode are logged
// and skipped.
func (p *Parser) Parse(reader io.Reader) ([]model.MergeScenario, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNoScenarios
	}

	var raw []json.RawMessage
	if data[0] == '{' {
		raw = []json.RawMessage{data}
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode scenario list: %w", err)
	}

	scenarios := make([]model.MergeScenario, 0, len(raw))
	for i, item := range raw {
		var s model.MergeScenario
		if err := json.Unmarshal(item, &s); err != nil {
			p.logger.Warn().Err(err).Int("index", i).Msg("Skipping malformed scenario")
			continue
		}
		if s.ProjectName == "" {
			p.logger.Warn().Int("index", i).Msg("Skipping scenario without project name")
			continue
		}
		if s.Targets == nil {
			s.Targets = map[string][]model.TargetMethod{}
		}
		scenarios = append(scenarios, s)
	}

	if len(scenarios) == 0 {
		return nil, ErrNoScenarios
	}

	p.logger.Debug().Int("scenarios", len(scenarios)).Int("skipped", len(raw)-len(scenarios)).Msg("Parsed scenarios")
	return scenarios, nil
}

// Load parses the scenarios in the file at path.
func (p *Parser) Load(path string) ([]model.MergeScenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario input: %w", err)
	}
	defer f.Close()

	scenarios, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}
