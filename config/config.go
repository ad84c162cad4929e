package config

// Package config loads mergeguard.yml.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileNames are looked up, in order, by Load.
var FileNames = []string{"mergeguard.yml", "mergeguard.yaml"}

const (
	DefaultOutputDir       = "output"
	DefaultReportsDir      = "reports"
	DefaultLedgerFile      = "execution_results.json"
	DefaultRepeats         = 3
	DefaultRunnerTimeout   = Duration(300 * time.Second)
	DefaultCoverageTimeout = Duration(600 * time.Second)
	DefaultParallelism     = 1
)

// Config holds the settings of a run.
type Config struct {
	// JSON file with the merge scenarios
	InputPath string `yaml:"inputPath,omitempty"`
	// Root of the generated suites: <outputDir>/<project>/<merge[:6]>/<generator>_<n>
	OutputDir string `yaml:"outputDir,omitempty"`
	// Directory of the report files
	ReportsDir string `yaml:"reportsDir,omitempty"`
	// Execution ledger; relative paths are resolved against ReportsDir
	LedgerFile string `yaml:"ledgerFile,omitempty"`
	// Where coverage JSON reports are kept; empty discards them
	CoverageDir string `yaml:"coverageDir,omitempty"`
	// Python interpreter
	Python string `yaml:"python,omitempty"`
	// Runs per test class and variant
	Repeats int `yaml:"repeats,omitempty"`
	// Bound of one test runner invocation
	RunnerTimeout Duration `yaml:"runnerTimeout,omitempty"`
	// Bound of one coverage run
	CoverageTimeout Duration `yaml:"coverageTimeout,omitempty"`
	// File name patterns of test files
	TestFilePatterns []string `yaml:"testFilePatterns,omitempty"`
	// Conflict criteria in precedence order
	Criteria []string `yaml:"criteria,omitempty"`
	// Reports to write
	OutputGenerators []string `yaml:"outputGenerators,omitempty"`
	// Generators whose suites are analysed; empty analyses every suite found
	Generators []string `yaml:"generators,omitempty"`
	// Scenarios analysed at the same time
	Parallelism int `yaml:"parallelism,omitempty"`
}

// Load reads mergeguard.yml or mergeguard.yaml from dir. A missing file
// yields the default configuration.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		cfg, err := LoadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg, nil
}

// LoadFile reads the configuration at path and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.ReportsDir == "" {
		c.ReportsDir = DefaultReportsDir
	}
	if c.LedgerFile == "" {
		c.LedgerFile = DefaultLedgerFile
	}
	if c.Repeats <= 0 {
		c.Repeats = DefaultRepeats
	}
	if c.RunnerTimeout <= 0 {
		c.RunnerTimeout = DefaultRunnerTimeout
	}
	if c.CoverageTimeout <= 0 {
		c.CoverageTimeout = DefaultCoverageTimeout
	}
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
}

// LedgerPath returns the ledger location.
func (c *Config) LedgerPath() string {
	if filepath.IsAbs(c.LedgerFile) {
		return c.LedgerFile
	}
	return filepath.Join(c.ReportsDir, c.LedgerFile)
}

// Validate checks the settings a run needs.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("no scenario input file configured")
	}
	if c.Repeats < 1 {
		return fmt.Errorf("repeats must be positive, got %d", c.Repeats)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}
	return nil
}

// Duration is a time.Duration that reads "300s", 300 (seconds) or "1.5"
// (seconds).
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return d.Duration().String()
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := parseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if v, err := time.ParseDuration(s); err == nil {
		return Duration(v), nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(time.Duration(v) * time.Second), nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return Duration(v * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("unparsable duration format '%s'", s)
}
