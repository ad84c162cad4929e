package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/perfgo/mergeguard/analysis"
	"github.com/perfgo/mergeguard/attribution"
	pycmd "github.com/perfgo/mergeguard/cli/python"
	"github.com/perfgo/mergeguard/config"
	"github.com/perfgo/mergeguard/coverage"
	"github.com/perfgo/mergeguard/criteria"
	"github.com/perfgo/mergeguard/executor"
	"github.com/perfgo/mergeguard/ledger"
	"github.com/perfgo/mergeguard/pytest"
	"github.com/perfgo/mergeguard/report"
	"github.com/perfgo/mergeguard/scenario"
	"github.com/perfgo/mergeguard/suite"
	"github.com/perfgo/mergeguard/variant"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "mergeguard"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Detect semantic merge conflicts by running generated tests against every version of a merge",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Usage:   "Path to the config file (default: mergeguard.yml in the working directory)",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Analyse every merge scenario of the input file",
		ArgsUsage: "[INPUT]",
		Action:    app.run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Root directory of the generated test suites",
			},
			&cli.StringFlag{
				Name:  "reports-dir",
				Usage: "Directory the reports are written to",
			},
			&cli.StringFlag{
				Name:  "python",
				Usage: "Python interpreter running the tests",
			},
			&cli.IntFlag{
				Name:  "repeats",
				Usage: "Runs per test class and variant",
			},
			&cli.IntFlag{
				Name:    "parallelism",
				Aliases: []string{"j"},
				Usage:   "Scenarios analysed at the same time",
			},
			&cli.StringSliceFlag{
				Name:  "generator",
				Usage: "Only analyse suites of this generator (repeatable)",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "prepare",
		Usage:     "Create fresh suite directories for an external test generator",
		ArgsUsage: "[INPUT]",
		Action:    app.prepare,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Root directory of the generated test suites",
			},
			&cli.StringSliceFlag{
				Name:  "generator",
				Usage: "Generator to create a suite for (repeatable)",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List the test executions recorded in the ledger",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "class",
				Usage: "Filter by test class name",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View a record of a report",
		ArgsUsage:       "[REPORT] [ID|INDEX]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View a record of a report.

Reports:
  semantic_conflicts (default)
  behavior_changes
  test_suites

Arguments:
  0           View the newest record (default)
  -1          View the 2nd newest record
  <id>        View the record whose ID starts with <id>

Examples:
  mergeguard view                        # Newest semantic conflict
  mergeguard view -1                     # 2nd newest semantic conflict
  mergeguard view behavior_changes -2    # 3rd newest behavior change
  mergeguard view 4f1c                   # Semantic conflict with ID starting with 4f1c`,
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if len(commit) >= 8 && commit != "none" {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

// loadConfig reads the config named by --config, or mergeguard.yml from the
// working directory.
func (a *App) loadConfig(ctx *cli.Context) (*config.Config, error) {
	if path := ctx.String("config"); path != "" {
		return config.LoadFile(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Load(cwd)
}

func (a *App) run(ctx *cli.Context) error {
	startTime := time.Now()

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	// Flags override the config file
	if ctx.Args().Present() {
		cfg.InputPath = ctx.Args().First()
	}
	if v := ctx.String("output-dir"); v != "" {
		cfg.OutputDir = v
	}
	if v := ctx.String("reports-dir"); v != "" {
		cfg.ReportsDir = v
	}
	if v := ctx.String("python"); v != "" {
		cfg.Python = v
	}
	if v := ctx.Int("repeats"); v > 0 {
		cfg.Repeats = v
	}
	if v := ctx.Int("parallelism"); v > 0 {
		cfg.Parallelism = v
	}
	if v := ctx.StringSlice("generator"); len(v) > 0 {
		cfg.Generators = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := a.logger.With().Str("run", runID[:8]).Logger()

	interpreter := pycmd.New(cfg.Python)
	if version, err := interpreter.Version(ctx.Context); err != nil {
		logger.Warn().Err(err).Msg("Python interpreter not usable, test runs will not be executable")
	} else {
		logger.Debug().Str("python", version).Msg("Detected Python interpreter")
	}

	registry, err := criteria.FromNames(cfg.Criteria)
	if err != nil {
		return err
	}
	reports := report.NewStore(logger, cfg.ReportsDir)
	writer, err := report.NewWriter(logger, reports, cfg.OutputGenerators)
	if err != nil {
		return err
	}

	scenarios, err := scenario.NewParser(logger).Load(cfg.InputPath)
	if err != nil {
		return err
	}

	variants := variant.New(logger)
	exec := executor.New(logger, pytest.NewRunner(logger, interpreter), variants,
		executor.WithRepeats(cfg.Repeats),
		executor.WithTimeout(cfg.RunnerTimeout.Duration()),
		executor.WithLedger(ledger.New(logger, cfg.LedgerPath())),
		executor.WithRunID(runID),
	)
	attributor := attribution.New(logger,
		coverage.NewRunner(logger, interpreter, cfg.CoverageTimeout.Duration(), cfg.CoverageDir),
		variants,
	)

	analyzer := analysis.New(logger, suite.NewAllocator(cfg.OutputDir), variants, exec, attributor, registry, writer,
		analysis.Options{
			Generators:       cfg.Generators,
			TestFilePatterns: cfg.TestFilePatterns,
			Parallelism:      cfg.Parallelism,
		})

	// Cancel on interrupt so the active variant is restored before exiting
	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Int("scenarios", len(scenarios)).
		Str("input", cfg.InputPath).
		Str("output", cfg.OutputDir).
		Str("reports", reports.Dir()).
		Strs("criteria", registry.Names()).
		Msg("Starting analysis")

	summary, err := analyzer.RunAll(runCtx, scenarios)
	logger.Info().
		Int("analysed", summary.Analyzed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("conflicts", summary.Conflicts).
		Dur("duration", time.Since(startTime).Round(time.Millisecond)).
		Msg("Analysis finished")
	if err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}
	return nil
}
