// Command fingraph loads client fact-find documents into a Neo4j graph.
//
// Usage:
//
//	export GROQ_API_KEY=... NEO4J_PASSWORD=...
//	fingraph build ./documents
//	fingraph build ./documents --dry-run --ext docx,pdf
//	fingraph extract ./documents/Smith_FactFind.docx
//	fingraph history
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brunobiangulo/fingraph"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		code := 1
		if errors.Is(err, fingraph.ErrInvalidConfig) {
			code = 2
		}
		os.Exit(code)
	}
}
