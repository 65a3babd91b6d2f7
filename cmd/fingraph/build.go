package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/fingraph"
	"github.com/brunobiangulo/fingraph/extract"
	"github.com/brunobiangulo/fingraph/graph"
	"github.com/brunobiangulo/fingraph/llm"
	"github.com/brunobiangulo/fingraph/neo4jdb"
	"github.com/brunobiangulo/fingraph/parser"
	"github.com/brunobiangulo/fingraph/store"
)

var buildFlags struct {
	dryRun        bool
	skipUnchanged bool
	delay         time.Duration
	exts          []string
	plain         bool
	jsonOut       bool
	noLedger      bool
}

var buildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Extract every document in a directory and merge it into the graph",
	Long: `Process every matching document in dir (default: the configured
documents directory) one at a time: read the text, extract a record with the
LLM, merge it into Neo4j, then pause before the next document.

A document that fails is reported and skipped; the batch always continues.

Examples:
  fingraph build ./documents
  fingraph build ./documents --ext docx,pdf --delay 45s
  fingraph build ./documents --dry-run          # plan writes, no Neo4j
  fingraph build ./documents --skip-unchanged   # only new or edited files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.BoolVar(&buildFlags.dryRun, "dry-run", false, "Plan graph writes against an in-memory graph instead of Neo4j")
	f.BoolVar(&buildFlags.skipUnchanged, "skip-unchanged", false, "Skip documents unchanged since their last successful run")
	f.DurationVar(&buildFlags.delay, "delay", 0, "Pause between documents (default from config, 30s)")
	f.StringSliceVar(&buildFlags.exts, "ext", nil, "Document extensions to process (default docx)")
	f.BoolVar(&buildFlags.plain, "plain", false, "Plain progress output without colors")
	f.BoolVar(&buildFlags.jsonOut, "json", false, "Print the run summary as JSON")
	f.BoolVar(&buildFlags.noLedger, "no-ledger", false, "Do not record the run in the local ledger")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyBuildFlags(cmd, &cfg, args)
	if err := cfg.Validate(); err != nil {
		return err
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("%w: %w", fingraph.ErrInvalidConfig, err)
	}
	extractor := extract.New(provider, cfg.ModelName()).WithMaxTokens(cfg.MaxTokens)

	var opts []fingraph.Option
	var writer graph.Writer
	if cfg.DryRun {
		writer = graph.NewMemoryGraph()
	} else {
		client, err := neo4jdb.New(ctx, cfg.Neo4j)
		if err != nil {
			return err
		}
		defer client.Close(context.WithoutCancel(ctx))
		writer = client
		opts = append(opts, fingraph.WithSchema(client))
	}

	if !cfg.DisableLedger {
		ledger, err := store.New(cfg.ResolveLedgerPath())
		if err != nil {
			slog.Warn("opening ledger failed, run will not be recorded", "path", cfg.ResolveLedgerPath(), "error", err)
		} else {
			defer ledger.Close()
			opts = append(opts, fingraph.WithLedger(ledger))
		}
	}

	if !buildFlags.jsonOut {
		opts = append(opts, fingraph.WithReporter(newReporter(cmd.OutOrStdout(), buildFlags.plain)))
	}

	pipeline := fingraph.NewPipeline(cfg, parser.NewRegistry(), extractor, graph.NewUpserter(writer), opts...)
	summary, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	if buildFlags.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	return nil
}

// applyBuildFlags overlays explicitly set flags on the loaded config.
func applyBuildFlags(cmd *cobra.Command, cfg *fingraph.Config, args []string) {
	if len(args) == 1 {
		cfg.DocumentsDir = args[0]
	}
	f := cmd.Flags()
	if f.Changed("dry-run") {
		cfg.DryRun = buildFlags.dryRun
	}
	if f.Changed("skip-unchanged") {
		cfg.SkipUnchanged = buildFlags.skipUnchanged
	}
	if f.Changed("delay") {
		cfg.Delay = buildFlags.delay
	}
	if f.Changed("ext") {
		var exts []string
		for _, e := range buildFlags.exts {
			if e = strings.TrimSpace(e); e != "" {
				exts = append(exts, e)
			}
		}
		cfg.Extensions = exts
	}
	if f.Changed("no-ledger") {
		cfg.DisableLedger = buildFlags.noLedger
	}
}
