package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/fingraph"
	"github.com/brunobiangulo/fingraph/store"
)

var historyFlags struct {
	limit   int
	run     string
	jsonOut bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the local ledger",
	Long: `Show recent batch runs recorded in the local SQLite ledger, or the
per-document attempts of one run.

Examples:
  fingraph history
  fingraph history --limit 5
  fingraph history --run 2b1f0c9e-...   # documents of one run`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyFlags.limit, "limit", 20, "Number of runs to show")
	f.StringVar(&historyFlags.run, "run", "", "Show the documents of this run")
	f.BoolVar(&historyFlags.jsonOut, "json", false, "Output JSON")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ledger, err := store.New(cfg.ResolveLedgerPath())
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer ledger.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if historyFlags.run != "" {
		attempts, err := ledger.ListAttempts(ctx, historyFlags.run)
		if err != nil {
			return err
		}
		if historyFlags.jsonOut {
			return writeJSON(cmd, attempts)
		}
		if len(attempts) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("no documents recorded for run "+historyFlags.run))
			return nil
		}
		fmt.Fprintln(out, attemptsTable(attempts))
		return nil
	}

	runs, err := ledger.ListRuns(ctx, historyFlags.limit)
	if err != nil {
		return err
	}
	if historyFlags.jsonOut {
		return writeJSON(cmd, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("no runs recorded yet"))
		return nil
	}
	fmt.Fprintln(out, runsTable(runs))
	return nil
}

func runsTable(runs []store.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		mode := ""
		if r.DryRun {
			mode = "dry"
		}
		rows = append(rows, []string{
			r.ID[:min(8, len(r.ID))],
			r.StartedAt,
			r.Status,
			mode,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Skipped),
			r.Model,
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("RUN", "STARTED", "STATUS", "MODE", "DOCS", "OK", "FAILED", "SKIPPED", "MODEL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1)
			if col == 6 && row >= 0 && row < len(rows) && rows[row][col] != "0" {
				return style.Inherit(failStyle)
			}
			return style
		}).
		String()
}

func attemptsTable(attempts []store.Attempt) string {
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		outcome := a.Status
		if a.Reason != "" {
			outcome += " (" + a.Reason + ")"
		}
		rows = append(rows, []string{
			a.Name,
			outcome,
			a.Stage,
			strconv.Itoa(a.Clients),
			strconv.Itoa(a.Nodes),
			strconv.Itoa(a.Edges),
			a.Elapsed.Round(time.Millisecond).String(),
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("DOCUMENT", "OUTCOME", "STAGE", "CLIENTS", "NODES", "EDGES", "ELAPSED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1)
			if col == 1 && row >= 0 && row < len(attempts) && attempts[row].Status == fingraph.StatusFailed {
				return style.Inherit(failStyle)
			}
			return style
		}).
		String()
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
