package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/retry"
	"github.com/dshills/docrag-mcp/internal/searcher"
	"github.com/dshills/docrag-mcp/internal/tokenizer"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// Environment overrides
const (
	EnvDBPath   = "DOCRAG_DB_PATH"
	EnvLogLevel = "DOCRAG_LOG_LEVEL"
	EnvConfig   = "DOCRAG_CONFIG"
	EnvTopK     = "DOCRAG_TOP_K"
)

// Config is the root application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Routing   RoutingConfig   `yaml:"routing"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig locates the SQLite store
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig selects and configures the query embedder
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // jina, openai, local; empty detects from env
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	APIKeyEnv string `yaml:"api_key_env"` // Name of the env var holding the key
	CacheSize int    `yaml:"cache_size"`
}

// SearchConfig tunes retrieval
type SearchConfig struct {
	TopK                      int           `yaml:"top_k"`
	CandidateLimit            int           `yaml:"candidate_limit"`
	FusionK                   int           `yaml:"fusion_k"`
	FilenameChunksPerDocument int           `yaml:"filename_chunks_per_document"`
	CollaboratorTimeout       time.Duration `yaml:"collaborator_timeout"`
	RetryAttempts             int           `yaml:"retry_attempts"`
	RetryBaseDelay            time.Duration `yaml:"retry_base_delay"`
	RecordHistory             bool          `yaml:"record_history"`
	SuggestThreshold          float64       `yaml:"suggest_threshold"`
	SuggestLimit              int           `yaml:"suggest_limit"`
}

// TokenizerConfig holds the language tables
type TokenizerConfig struct {
	Extensions []string `yaml:"extensions"`
	Separators string   `yaml:"separators"`
	StopWords  []string `yaml:"stop_words"`
	MinLength  int      `yaml:"min_length"`
}

// IntentRuleConfig is one entry of the ordered intent table
type IntentRuleConfig struct {
	Intent   string   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
}

// RoutingConfig holds intent rules and the intent to strategy table
type RoutingConfig struct {
	IntentRules   []IntentRuleConfig `yaml:"intent_rules"`
	DocIDPatterns []string           `yaml:"doc_id_patterns"`
	Strategies    map[string]string  `yaml:"strategies"`
}

// LogConfig configures zerolog output
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// Default returns the built-in configuration
func Default() *Config {
	tables := tokenizer.DefaultTables()

	rules := make([]IntentRuleConfig, 0, len(searcher.DefaultIntentRules()))
	for _, r := range searcher.DefaultIntentRules() {
		rules = append(rules, IntentRuleConfig{Intent: string(r.Intent), Keywords: r.Keywords})
	}
	strategies := make(map[string]string)
	for intent, strategy := range searcher.DefaultStrategyTable() {
		strategies[string(intent)] = string(strategy)
	}

	rc := retry.Default()
	return &Config{
		Database: DatabaseConfig{Path: defaultDBPath()},
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
		},
		Search: SearchConfig{
			TopK:                      searcher.DefaultTopK,
			CandidateLimit:            searcher.DefaultCandidateLimit,
			FusionK:                   searcher.DefaultFusionK,
			FilenameChunksPerDocument: searcher.DefaultFilenameChunksPerDocument,
			CollaboratorTimeout:       searcher.DefaultCollaboratorTimeout,
			RetryAttempts:             rc.MaxAttempts,
			RetryBaseDelay:            rc.BaseDelay,
			RecordHistory:             true,
			SuggestThreshold:          searcher.DefaultSuggestThreshold,
			SuggestLimit:              searcher.DefaultSuggestLimit,
		},
		Tokenizer: TokenizerConfig{
			Extensions: tables.Extensions,
			Separators: tables.Separators,
			StopWords:  tables.StopWords,
			MinLength:  tables.MinLength,
		},
		Routing: RoutingConfig{
			IntentRules:   rules,
			DocIDPatterns: searcher.DefaultDocIDPatterns(),
			Strategies:    strategies,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads configuration. An explicit path must exist; otherwise
// DOCRAG_CONFIG, ./docrag.yaml and ~/.config/docrag/config.yaml are tried and
// defaults are used when none exists. A .env file in the working directory is
// loaded before environment overrides are applied. The path actually read is
// returned, empty for defaults.
func Load(path string) (*Config, string, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, "", fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			path = ""
		default:
			return nil, "", fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Database.Path = expandPath(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, path, nil
}

// findConfigFile looks for a config file in standard locations
func findConfigFile() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}

	locations := []string{"docrag.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "docrag", "config.yaml"))
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(embedder.EnvProvider); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv(embedder.EnvOpenAIBaseURL); v != "" && c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv(EnvTopK); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TopK = n
		}
	}
}

// Validate checks bounds, strategy names and patterns
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path cannot be empty")
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderLocal:
	default:
		return fmt.Errorf("embedding.provider %q is not one of jina, openai, local", c.Embedding.Provider)
	}
	if c.Embedding.CacheSize < 0 {
		return errors.New("embedding.cache_size must be non-negative")
	}

	s := c.Search
	if s.TopK <= 0 || s.TopK > searcher.MaxTopK {
		return fmt.Errorf("search.top_k must be between 1 and %d", searcher.MaxTopK)
	}
	if s.CandidateLimit <= 0 {
		return errors.New("search.candidate_limit must be positive")
	}
	if s.FusionK <= 0 {
		return errors.New("search.fusion_k must be positive")
	}
	if s.FilenameChunksPerDocument <= 0 {
		return errors.New("search.filename_chunks_per_document must be positive")
	}
	if s.CollaboratorTimeout <= 0 {
		return errors.New("search.collaborator_timeout must be positive")
	}
	if s.RetryAttempts < 1 {
		return errors.New("search.retry_attempts must be at least 1")
	}
	if s.RetryBaseDelay < 0 {
		return errors.New("search.retry_base_delay must be non-negative")
	}
	if s.SuggestThreshold <= 0 || s.SuggestThreshold > 1 {
		return errors.New("search.suggest_threshold must be in (0, 1]")
	}
	if s.SuggestLimit <= 0 {
		return errors.New("search.suggest_limit must be positive")
	}

	if c.Tokenizer.MinLength < 0 {
		return errors.New("tokenizer.min_length must be non-negative")
	}

	for _, r := range c.Routing.IntentRules {
		intent, err := types.ParseIntent(r.Intent)
		if err != nil {
			return fmt.Errorf("routing.intent_rules: %w", err)
		}
		if intent == types.IntentFactual {
			return errors.New("routing.intent_rules: factual is the fallback and cannot have a rule")
		}
	}
	for _, p := range c.Routing.DocIDPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("routing.doc_id_patterns: %q: %w", p, err)
		}
	}
	for intent, strategy := range c.Routing.Strategies {
		if _, err := types.ParseIntent(intent); err != nil {
			return fmt.Errorf("routing.strategies: %w", err)
		}
		if _, err := types.ParseStrategy(strategy); err != nil {
			return fmt.Errorf("routing.strategies: %w", err)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format %q is not console or json", c.Log.Format)
	}
	return nil
}

// Save writes the configuration as YAML, creating directories as needed
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "docrag.db"
	}
	return filepath.Join(home, ".docrag", "docrag.db")
}

// expandPath expands ~ and environment variables
func expandPath(path string) string {
	if path == "" || path == ":memory:" {
		return path
	}
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return os.ExpandEnv(path)
}
