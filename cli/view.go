package cli

// This file contains the view command for displaying report records.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/perfgo/mergeguard/report"
	"github.com/urfave/cli/v2"
)

func parseViewArgs(in []string) (reportName, idArg string) {
	reportName, idArg = report.SemanticConflicts, "0"

	// Leading "--" is only a separator
	if len(in) > 0 && in[0] == "--" {
		in = in[1:]
	}
	if len(in) == 0 {
		return reportName, idArg
	}

	// A known report name may come first, the ID or index follows it
	if slices.Contains(report.Names(), in[0]) {
		reportName = in[0]
		in = in[1:]
	}
	if len(in) > 0 {
		idArg = in[0]
	}
	return reportName, idArg
}

// selectRecord picks a record by index (0 newest, -1 second newest, ...) or
// by ID prefix. Records are stored oldest first.
func selectRecord(records []json.RawMessage, arg string) (json.RawMessage, error) {
	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			// Positive integers are not allowed
			return nil, fmt.Errorf("invalid index: %s (use 0 for newest, -1 for second newest, -2 for third newest, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(records) {
			return nil, fmt.Errorf("index %s out of range (only %d records)", arg, len(records))
		}
		return records[len(records)-1-index], nil
	}

	prefix := strings.ToLower(arg)
	for i := len(records) - 1; i >= 0; i-- {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(records[i], &head); err != nil {
			continue
		}
		if head.ID != "" && strings.HasPrefix(strings.ToLower(head.ID), prefix) {
			return records[i], nil
		}
	}
	return nil, fmt.Errorf("no record found matching ID: %s", arg)
}

func (a *App) view(ctx *cli.Context) error {
	reportName, arg := parseViewArgs(ctx.Args().Slice())

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	store := report.NewStore(a.logger, cfg.ReportsDir)
	records, err := store.Load(reportName)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", reportName, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no records found in %s", store.Path(reportName))
	}

	record, err := selectRecord(records, arg)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, record, "", "  "); err != nil {
		return fmt.Errorf("failed to format record: %w", err)
	}

	fmt.Printf("=== %s (%d records) ===\n", reportName, len(records))
	fmt.Println(out.String())
	return nil
}
