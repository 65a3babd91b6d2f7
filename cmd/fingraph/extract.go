package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/fingraph"
	"github.com/brunobiangulo/fingraph/extract"
	"github.com/brunobiangulo/fingraph/graph"
	"github.com/brunobiangulo/fingraph/llm"
	"github.com/brunobiangulo/fingraph/parser"
)

var extractPlan bool

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract one document and print the record without touching the graph",
	Long: `Read a single document, run the LLM extraction and print the resulting
JSON record. With --plan, also print the graph merges the record would cause.

Examples:
  fingraph extract ./documents/Smith_FactFind.docx
  fingraph extract ./documents/Smith_FactFind.docx --plan`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractPlan, "plan", false, "Also print the planned graph operations")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Neo4j is not used here.
	cfg.DryRun = true
	if err := cfg.Validate(); err != nil {
		return err
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("%w: %w", fingraph.ErrInvalidConfig, err)
	}

	text, err := parser.NewRegistry().ReadText(ctx, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if text == "" {
		return fmt.Errorf("reading %s: %w", path, fingraph.ErrEmptyText)
	}

	rec, err := extract.New(provider, cfg.ModelName()).WithMaxTokens(cfg.MaxTokens).Extract(ctx, text)
	if err != nil {
		return fmt.Errorf("extracting %s (%s): %w", path, extract.Reason(err), err)
	}

	out := cmd.OutOrStdout()
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, rec.Raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(rec.Raw)
	}
	fmt.Fprintln(out, pretty.String())

	if extractPlan {
		name := fingraph.DocumentName(path)
		fmt.Fprintln(out)
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Plan for %s (primary client %q)", name, graph.PrimaryClientName(rec, name))))
		if !rec.HasClients() {
			fmt.Fprintln(out, mutedStyle.Render("no clients extracted, nothing would be written"))
			return nil
		}
		for _, op := range graph.Plan(rec, name) {
			fmt.Fprintln(out, "  "+op.String())
		}
	}
	return nil
}
