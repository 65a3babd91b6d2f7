package fingraph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []string{"docx"}, cfg.Extensions)
	assert.Equal(t, 30*time.Second, cfg.Delay)
	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.ModelName())
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
	assert.False(t, cfg.DryRun)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingraph.yaml")
	data := `
documents_dir: /srv/factfinds
extensions: [docx, pdf]
delay: 5s
skip_unchanged: true
lock_dir: /run/fingraph
llm:
  provider: openai
  model: gpt-4o
neo4j:
  uri: neo4j://graph:7687
  database: clients
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/factfinds", cfg.DocumentsDir)
	assert.Equal(t, []string{"docx", "pdf"}, cfg.Extensions)
	assert.Equal(t, 5*time.Second, cfg.Delay)
	assert.True(t, cfg.SkipUnchanged)
	assert.Equal(t, "/run/fingraph", cfg.LockDir)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "neo4j://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "clients", cfg.Neo4j.Database)
	// Unset fields keep their defaults.
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("delay: [not, a, duration"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"GROQ_API_KEY":           "gsk-123",
		"NEO4J_URI":              "bolt://db:7687",
		"NEO4J_PASSWORD":         "secret",
		"FINGRAPH_DOCUMENTS_DIR": "/docs",
		"FINGRAPH_DELAY":         "12",
		"FINGRAPH_LOCK_DIR":      "/run/fingraph",
	}))
	require.NoError(t, err)
	assert.Equal(t, "gsk-123", cfg.LLM.APIKey)
	assert.Equal(t, "bolt://db:7687", cfg.Neo4j.URI)
	assert.Equal(t, "secret", cfg.Neo4j.Password)
	assert.Equal(t, "/docs", cfg.DocumentsDir)
	assert.Equal(t, 12*time.Second, cfg.Delay)
	assert.Equal(t, "/run/fingraph", cfg.LockDir)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.ModelName())
}

func TestApplyEnvProviderSwitch(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"FINGRAPH_LLM_PROVIDER": "anthropic",
		"ANTHROPIC_API_KEY":     "sk-ant",
		"GROQ_API_KEY":          "ignored",
		"FINGRAPH_DELAY":        "1m30s",
	})))
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.Empty(t, cfg.LLM.Model, "groq default model dropped on provider change")
	assert.NotEqual(t, "llama-3.3-70b-versatile", cfg.ModelName())
	assert.Equal(t, 90*time.Second, cfg.Delay)

	// The generic key wins over the provider-specific one.
	cfg = DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"GROQ_API_KEY":         "gsk-1",
		"FINGRAPH_LLM_API_KEY": "override",
		"FINGRAPH_LLM_MODEL":   "llama-3.1-8b-instant",
	})))
	assert.Equal(t, "override", cfg.LLM.APIKey)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.ModelName())
}

func TestApplyEnvBadDelay(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{"FINGRAPH_DELAY": "soon"}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 30*time.Second, cfg.Delay)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.LLM.APIKey = "gsk"
		cfg.Neo4j.Password = "pw"
		return cfg
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, "GROQ_API_KEY"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "watson" }, `unknown llm provider "watson"`},
		{"empty provider", func(c *Config) { c.LLM.Provider = "" }, "llm provider is required"},
		{"missing password", func(c *Config) { c.Neo4j.Password = "" }, "neo4j password is required"},
		{"negative delay", func(c *Config) { c.Delay = -time.Second }, "delay must not be negative"},
		{"no extensions", func(c *Config) { c.Extensions = nil }, "extension"},
		{"no directory", func(c *Config) { c.DocumentsDir = " " }, "documents directory is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateLocalProviderAndDryRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = ""
	cfg.DryRun = true
	cfg.Neo4j.URI = ""
	assert.NoError(t, cfg.Validate())
}

func TestNormalizedExtensions(t *testing.T) {
	cfg := Config{Extensions: []string{".DOCX", " pdf ", "", "."}}
	assert.Equal(t, []string{"docx", "pdf"}, cfg.NormalizedExtensions())
}

func TestResolveLedgerPath(t *testing.T) {
	cfg := Config{LedgerPath: "/var/lib/fingraph/ledger.db"}
	assert.Equal(t, "/var/lib/fingraph/ledger.db", cfg.ResolveLedgerPath())

	cfg = Config{StorageDir: "local"}
	assert.Equal(t, "ledger.db", cfg.ResolveLedgerPath())

	t.Setenv("HOME", t.TempDir())
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	cfg = Config{StorageDir: "home"}
	assert.Equal(t, filepath.Join(home, ".fingraph", "ledger.db"), cfg.ResolveLedgerPath())
}
