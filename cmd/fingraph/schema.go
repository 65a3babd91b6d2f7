package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/fingraph/neo4jdb"
)

var schemaPrintOnly bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the Neo4j uniqueness constraints",
	Long: `Create the uniqueness constraints the graph relies on. Existing
constraints are left alone. build does this automatically before the first
document; this command is for preparing a database ahead of time.

Examples:
  fingraph schema
  fingraph schema --print   # show the Cypher without connecting`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaPrintOnly, "print", false, "Print the statements without connecting")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	stmts, err := neo4jdb.SchemaStatements()
	if err != nil {
		return err
	}
	if schemaPrintOnly {
		for _, s := range stmts {
			fmt.Fprintln(out, s+";")
		}
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	client, err := neo4jdb.New(ctx, cfg.Neo4j)
	if err != nil {
		return err
	}
	defer client.Close(context.WithoutCancel(ctx))

	client.EnsureSchema(ctx)
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Ensured %d constraints on %s", len(stmts), cfg.Neo4j.URI)))
	return nil
}
