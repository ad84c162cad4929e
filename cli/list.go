package cli

// This file contains the list command for displaying the execution ledger.

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/perfgo/mergeguard/ledger"
	"github.com/perfgo/mergeguard/model"
	"github.com/urfave/cli/v2"
)

// ledgerEntry is the attempt history of one test class against one artifact.
type ledgerEntry struct {
	testClass string
	suiteRoot string
	artifact  string
	attempts  []model.ExecutionRecord
}

func (e ledgerEntry) last() model.ExecutionRecord {
	return e.attempts[len(e.attempts)-1]
}

// ledgerEntries flattens log, newest last attempt first.
func ledgerEntries(log model.ExecutionLog, filterClass string) []ledgerEntry {
	var entries []ledgerEntry
	for testClass, suites := range log {
		if filterClass != "" && !strings.Contains(testClass, filterClass) {
			continue
		}
		for suiteRoot, history := range suites {
			for artifact, attempts := range history.TargetFile {
				if len(attempts) == 0 {
					continue
				}
				entries = append(entries, ledgerEntry{
					testClass: testClass,
					suiteRoot: suiteRoot,
					artifact:  artifact,
					attempts:  attempts,
				})
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].last().Timestamp, entries[j].last().Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return entries[i].artifact < entries[j].artifact
	})
	return entries
}

// resultCounts summarises the results of one attempt, e.g. "2 PASS, 1 FAIL".
func resultCounts(results map[string]model.TestCaseResult) string {
	counts := map[model.TestCaseResult]int{}
	for _, r := range results {
		counts[r]++
	}
	var parts []string
	for _, r := range []model.TestCaseResult{model.ResultPass, model.ResultFail, model.ResultFlaky, model.ResultNotExecutable} {
		if counts[r] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[r], r))
		}
	}
	if len(parts) == 0 {
		return "no results"
	}
	return strings.Join(parts, ", ")
}

func (a *App) list(ctx *cli.Context) error {
	filterClass := ctx.String("class")
	limit := ctx.Int("limit")

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	log, err := ledger.New(a.logger, cfg.LedgerPath()).Load()
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	entries := ledgerEntries(log, filterClass)
	if len(entries) == 0 {
		if filterClass != "" {
			fmt.Printf("No executions found matching class: %s\n", filterClass)
		} else {
			fmt.Println("No executions found")
		}
		return nil
	}

	// Apply limit
	displayEntries := entries
	if limit > 0 && limit < len(displayEntries) {
		displayEntries = displayEntries[:limit]
	}

	fmt.Printf("\n=== Executions (%d total) ===\n\n", len(entries))

	for _, entry := range displayEntries {
		last := entry.last()

		status := "✓"
		if last.TimedOut || last.ExitCode < 0 || last.ExitCode > 1 {
			status = "✗"
		}

		fmt.Printf("%s  %s  %s -> %s  attempts=%d\n",
			status,
			last.Timestamp.Format("2006-01-02 15:04:05"),
			entry.testClass,
			entry.artifact,
			len(entry.attempts),
		)
		fmt.Printf("   Last: #%d [%s] exit=%d  %s\n",
			last.ExecutionNumber,
			last.Duration.Round(time.Millisecond),
			last.ExitCode,
			resultCounts(last.Result),
		)
		if last.TimedOut {
			fmt.Println("   Timed out")
		}
		if last.Command != "" {
			fmt.Printf("   Command: %s\n", last.Command)
		}
		fmt.Printf("   %s\n", entry.suiteRoot)
		fmt.Println()
	}

	fmt.Println("View conflicts: mergeguard view semantic_conflicts")

	return nil
}
