package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/brunobiangulo/fingraph"
)

var (
	configPath string
	logLevel   string
	logJSON    bool
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "fingraph",
	Short: "Build a client knowledge graph from fact-find documents",
	Long: `fingraph reads financial advice documents, extracts clients, dependants,
assets and goals with an LLM and merges them into Neo4j.

Configuration is layered: built-in defaults, then --config (YAML), then
environment variables (GROQ_API_KEY, NEO4J_URI, NEO4J_PASSWORD, FINGRAPH_*),
then command flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")

	rootCmd.AddCommand(buildCmd, extractCmd, schemaCmd, historyCmd)
}

// setupLogging installs the default slog handler. Logs go to stderr so
// progress output on stdout stays clean.
func setupLogging(stderr io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(logLevel))); err != nil {
		return fmt.Errorf("%w: --log-level: %w", fingraph.ErrInvalidConfig, err)
	}

	out := stderr
	if logFile != "" {
		out = io.MultiWriter(stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(out, opts)
	if logJSON {
		h = slog.NewJSONHandler(out, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// loadConfig layers defaults, the config file and the environment. Command
// flags are applied by the caller.
func loadConfig() (fingraph.Config, error) {
	cfg := fingraph.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = fingraph.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}
