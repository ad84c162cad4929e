package cli

// This file contains the prepare command, which reserves suite directories
// for an external test generator.

import (
	"fmt"

	"github.com/perfgo/mergeguard/model"
	"github.com/perfgo/mergeguard/scenario"
	"github.com/perfgo/mergeguard/suite"
	"github.com/urfave/cli/v2"
)

type preparedSuite struct {
	scenario  model.MergeScenario
	generator string
	dir       string
}

// prepareSuites allocates one fresh suite directory per generator for every
// scenario that is due for analysis.
func prepareSuites(allocator *suite.Allocator, scenarios []model.MergeScenario, generators []string) ([]preparedSuite, error) {
	var out []preparedSuite
	for _, sc := range scenarios {
		if !sc.RunAnalysis {
			continue
		}
		for _, generator := range generators {
			dir, err := allocator.Allocate(sc, generator)
			if err != nil {
				return out, fmt.Errorf("failed to allocate %s suite for %s: %w", generator, sc.ProjectName, err)
			}
			out = append(out, preparedSuite{scenario: sc, generator: generator, dir: dir})
		}
	}
	return out, nil
}

func (a *App) prepare(ctx *cli.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.Args().Present() {
		cfg.InputPath = ctx.Args().First()
	}
	if v := ctx.String("output-dir"); v != "" {
		cfg.OutputDir = v
	}
	generators := ctx.StringSlice("generator")
	if len(generators) == 0 {
		generators = cfg.Generators
	}
	if len(generators) == 0 {
		return fmt.Errorf("no generator given: use --generator or set generators in the config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	scenarios, err := scenario.NewParser(a.logger).Load(cfg.InputPath)
	if err != nil {
		return err
	}

	prepared, err := prepareSuites(suite.NewAllocator(cfg.OutputDir), scenarios, generators)
	for _, p := range prepared {
		fmt.Printf("%s\t%s\t%s\n", p.scenario.ProjectName, p.generator, p.dir)
	}
	if err != nil {
		return err
	}
	a.logger.Info().Int("suites", len(prepared)).Msg("Prepared suite directories")
	return nil
}
