package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag-mcp/internal/tokenizer"
	"github.com/dshills/docrag-mcp/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 60, cfg.Search.FusionK)
	assert.Equal(t, 2, cfg.Search.RetryAttempts)
	assert.Equal(t, "hybrid", cfg.Routing.Strategies["factual"])
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvDBPath, "")
	t.Setenv(EnvLogLevel, "")

	path := writeFile(t, ".", "custom.yaml", `
database:
  path: /tmp/test.db
search:
  top_k: 5
  collaborator_timeout: 2s
routing:
  strategies:
    comparative: hybrid
log:
  level: debug
  format: json
`)

	cfg, used, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 2*time.Second, cfg.Search.CollaboratorTimeout)
	assert.Equal(t, "hybrid", cfg.Routing.Strategies["comparative"])
	// Unlisted entries keep their defaults
	assert.Equal(t, "filename_priority", cfg.Routing.Strategies["document_lookup"])
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.Equal(t, 1000, cfg.Search.CandidateLimit)
}

func TestLoad_DiscoversLocalFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvDBPath, "")
	writeFile(t, ".", "docrag.yaml", "search:\n  fusion_k: 30\n")

	cfg, used, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "docrag.yaml", used)
	assert.Equal(t, 30, cfg.Search.FusionK)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvDBPath, ":memory:")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvTopK, "7")
	t.Setenv("DOCRAG_EMBEDDING_PROVIDER", "local")

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel())
	assert.Equal(t, 7, cfg.Search.TopK)
	assert.Equal(t, "local", cfg.Embedding.Provider)
}

func TestLoad_DotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvDBPath, "")
	// godotenv never overrides variables that are already set
	require.NoError(t, os.Unsetenv(EnvDBPath))
	writeFile(t, ".", ".env", EnvDBPath+"=/tmp/from-dotenv.db\n")
	t.Cleanup(func() { _ = os.Unsetenv(EnvDBPath) })

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-dotenv.db", cfg.Database.Path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, ".", "bad.yaml", "search: [unclosed")
	_, _, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"top_k too large", func(c *Config) { c.Search.TopK = 1000 }},
		{"zero top_k", func(c *Config) { c.Search.TopK = 0 }},
		{"zero candidate limit", func(c *Config) { c.Search.CandidateLimit = 0 }},
		{"zero fusion k", func(c *Config) { c.Search.FusionK = 0 }},
		{"zero timeout", func(c *Config) { c.Search.CollaboratorTimeout = 0 }},
		{"no attempts", func(c *Config) { c.Search.RetryAttempts = 0 }},
		{"threshold above one", func(c *Config) { c.Search.SuggestThreshold = 1.5 }},
		{"factual rule", func(c *Config) {
			c.Routing.IntentRules = append(c.Routing.IntentRules, IntentRuleConfig{Intent: "factual", Keywords: []string{"x"}})
		}},
		{"unknown intent", func(c *Config) { c.Routing.Strategies["gossip"] = "hybrid" }},
		{"unknown strategy", func(c *Config) { c.Routing.Strategies["factual"] = "psychic" }},
		{"bad pattern", func(c *Config) { c.Routing.DocIDPatterns = []string{"("} }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default()
	cfg.Database.Path = filepath.Join(dir, "docrag.db")
	cfg.Search.TopK = 20
	require.NoError(t, cfg.Save(path))

	loaded, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.Search.TopK)
	assert.Equal(t, cfg.Routing.IntentRules, loaded.Routing.IntentRules)
}

func TestBuilders(t *testing.T) {
	cfg := Default()
	cfg.Routing.Strategies["comparative"] = "keyword"

	selector, err := cfg.NewSelector()
	require.NoError(t, err)
	assert.Equal(t, types.StrategyKeywordOnly, selector.Select("A 與 B 的差異").Strategy)
	assert.Equal(t, types.StrategyFilenamePriority, selector.Select("N706").Strategy)

	tok := tokenizer.New(cfg.TokenizerTables())
	assert.Equal(t, []string{"N706", "蝴蝶Mura"}, tok.Tokenize("N706 蝴蝶Mura.pptx 內容詳細解析"))

	opts, err := cfg.SearcherOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 7)

	rc := cfg.RetryConfig()
	assert.Equal(t, 2, rc.MaxAttempts)

	t.Setenv("MY_EMBED_KEY", "secret")
	cfg.Embedding.APIKeyEnv = "MY_EMBED_KEY"
	cfg.Embedding.Provider = "openai"
	ec := cfg.EmbedderConfig()
	assert.Equal(t, "secret", ec.APIKey)
	assert.Equal(t, "openai", ec.Provider)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.db"), expandPath("~/x.db"))
	assert.Equal(t, ":memory:", expandPath(":memory:"))
	t.Setenv("DOCRAG_TEST_DIR", "/data")
	assert.Equal(t, "/data/x.db", expandPath("$DOCRAG_TEST_DIR/x.db"))
}
