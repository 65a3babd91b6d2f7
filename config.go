package fingraph

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/fingraph/llm"
	"github.com/brunobiangulo/fingraph/neo4jdb"
)

// Config holds all configuration for a batch run. Components receive the
// parts they need explicitly; nothing below the CLI reads the environment.
type Config struct {
	// DocumentsDir is the directory scanned (non-recursively) for documents.
	DocumentsDir string `json:"documents_dir" yaml:"documents_dir"`

	// Extensions lists the file extensions to process, without the dot.
	// Defaults to ["docx"].
	Extensions []string `json:"extensions" yaml:"extensions"`

	// Delay is the fixed pause after every document that reached the
	// extraction service, except the last one.
	Delay time.Duration `json:"delay" yaml:"delay"`

	// DryRun plans graph writes against an in-memory graph instead of Neo4j.
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// SkipUnchanged skips documents whose content hash matches their last
	// successful ledger entry.
	SkipUnchanged bool `json:"skip_unchanged" yaml:"skip_unchanged"`

	LLM       llm.Config     `json:"llm" yaml:"llm"`
	MaxTokens int            `json:"max_tokens" yaml:"max_tokens"`
	Neo4j     neo4jdb.Config `json:"neo4j" yaml:"neo4j"`

	// LedgerPath is the full path to the SQLite run ledger. If empty it
	// resolves from StorageDir.
	LedgerPath string `json:"ledger_path" yaml:"ledger_path"`

	// StorageDir controls where the ledger lives when LedgerPath is not set:
	// "home" (default) uses ~/.fingraph/, "local" the working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// DisableLedger turns off run recording entirely.
	DisableLedger bool `json:"disable_ledger" yaml:"disable_ledger"`

	// LockDir holds the per-directory run lock files. Empty means the system
	// temp directory.
	LockDir string `json:"lock_dir" yaml:"lock_dir"`
}

// DefaultConfig returns the stock settings: Groq with
// Llama 3.3 70B, a local Neo4j and a 30 second pause between documents.
func DefaultConfig() Config {
	return Config{
		DocumentsDir: ".",
		Extensions:   []string{"docx"},
		Delay:        30 * time.Second,
		LLM: llm.Config{
			Provider: "groq",
			Model:    llm.DefaultModel("groq"),
			Timeout:  120 * time.Second,
		},
		Neo4j:      neo4jdb.DefaultConfig(),
		StorageDir: "home",
	}
}

// LoadConfig reads a YAML (or JSON) file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// providerKeyEnv names the conventional API key variable per provider.
var providerKeyEnv = map[string]string{
	"groq":       "GROQ_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
}

// ApplyEnv overrides fields from environment variables looked up with
// getenv. Unset or blank variables leave the field alone.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.LLM.Provider, "FINGRAPH_LLM_PROVIDER")
	set(&c.LLM.BaseURL, "FINGRAPH_LLM_BASE_URL")
	if v := strings.TrimSpace(getenv("FINGRAPH_LLM_MODEL")); v != "" {
		c.LLM.Model = v
	} else if c.LLM.Provider != "groq" && c.LLM.Model == llm.DefaultModel("groq") {
		// The default model only makes sense on the default provider.
		c.LLM.Model = ""
	}
	if key, ok := providerKeyEnv[c.LLM.Provider]; ok {
		set(&c.LLM.APIKey, key)
	}
	set(&c.LLM.APIKey, "FINGRAPH_LLM_API_KEY")

	set(&c.Neo4j.URI, "NEO4J_URI")
	set(&c.Neo4j.User, "NEO4J_USER")
	set(&c.Neo4j.Password, "NEO4J_PASSWORD")
	set(&c.Neo4j.Database, "NEO4J_DATABASE")

	set(&c.DocumentsDir, "FINGRAPH_DOCUMENTS_DIR")
	set(&c.LedgerPath, "FINGRAPH_LEDGER_PATH")
	set(&c.LockDir, "FINGRAPH_LOCK_DIR")

	if v := strings.TrimSpace(getenv("FINGRAPH_DELAY")); v != "" {
		d, err := parseDelay(v)
		if err != nil {
			return fmt.Errorf("%w: FINGRAPH_DELAY: %w", ErrInvalidConfig, err)
		}
		c.Delay = d
	}
	return nil
}

// parseDelay accepts a Go duration ("45s") or a bare number of seconds.
func parseDelay(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Validate checks the configuration before anything is opened.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DocumentsDir) == "" {
		errs = append(errs, errors.New("documents directory is required"))
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, errors.New("at least one document extension is required"))
	}
	if c.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative, got %s", c.Delay))
	}
	switch {
	case c.LLM.Provider == "":
		errs = append(errs, errors.New("llm provider is required"))
	case !llm.KnownProvider(c.LLM.Provider):
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	case llm.RequiresAPIKey(c.LLM.Provider) && c.LLM.APIKey == "":
		env := providerKeyEnv[c.LLM.Provider]
		errs = append(errs, fmt.Errorf("llm api key is required for %s (set %s or FINGRAPH_LLM_API_KEY)", c.LLM.Provider, env))
	}
	if !c.DryRun {
		if c.Neo4j.URI == "" {
			errs = append(errs, errors.New("neo4j uri is required"))
		}
		if c.Neo4j.Password == "" {
			errs = append(errs, errors.New("neo4j password is required (set NEO4J_PASSWORD)"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ModelName is the model extraction will use.
func (c *Config) ModelName() string {
	if c.LLM.Model != "" {
		return c.LLM.Model
	}
	return llm.DefaultModel(c.LLM.Provider)
}

// NormalizedExtensions returns the configured extensions lowercased and
// without leading dots.
func (c *Config) NormalizedExtensions() []string {
	out := make([]string, 0, len(c.Extensions))
	for _, e := range c.Extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// ResolveLedgerPath computes the final ledger path from config fields.
func (c *Config) ResolveLedgerPath() string {
	if c.LedgerPath != "" {
		return c.LedgerPath
	}
	const name = "ledger.db"
	switch c.StorageDir {
	case "local", "cwd":
		return name
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name
		}
		return filepath.Join(home, ".fingraph", name)
	}
}
