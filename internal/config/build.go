package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/retry"
	"github.com/dshills/docrag-mcp/internal/searcher"
	"github.com/dshills/docrag-mcp/internal/tokenizer"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// TokenizerTables returns the configured tokenizer tables
func (c *Config) TokenizerTables() tokenizer.Tables {
	return tokenizer.Tables{
		Extensions: append([]string(nil), c.Tokenizer.Extensions...),
		Separators: c.Tokenizer.Separators,
		StopWords:  append([]string(nil), c.Tokenizer.StopWords...),
		MinLength:  c.Tokenizer.MinLength,
	}
}

// NewSelector compiles the routing tables into a strategy selector
func (c *Config) NewSelector() (*searcher.StrategySelector, error) {
	rules := make([]searcher.IntentRule, 0, len(c.Routing.IntentRules))
	for _, r := range c.Routing.IntentRules {
		intent, err := types.ParseIntent(r.Intent)
		if err != nil {
			return nil, err
		}
		rules = append(rules, searcher.IntentRule{Intent: intent, Keywords: r.Keywords})
	}
	classifier, err := searcher.NewIntentClassifier(rules)
	if err != nil {
		return nil, err
	}

	table := make(map[types.Intent]types.Strategy, len(c.Routing.Strategies))
	for in, st := range c.Routing.Strategies {
		intent, err := types.ParseIntent(in)
		if err != nil {
			return nil, err
		}
		strategy, err := types.ParseStrategy(st)
		if err != nil {
			return nil, err
		}
		table[intent] = strategy
	}
	return searcher.NewStrategySelector(classifier, c.Routing.DocIDPatterns, table)
}

// RetryConfig returns the collaborator retry policy
func (c *Config) RetryConfig() retry.Config {
	rc := retry.Default()
	rc.MaxAttempts = c.Search.RetryAttempts
	rc.BaseDelay = c.Search.RetryBaseDelay
	return rc
}

// SearcherOptions converts the search, tokenizer and routing sections into
// searcher options. Callers add history, suggester and logger themselves.
func (c *Config) SearcherOptions() ([]searcher.Option, error) {
	selector, err := c.NewSelector()
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy selector: %w", err)
	}
	return []searcher.Option{
		searcher.WithTokenizer(tokenizer.New(c.TokenizerTables())),
		searcher.WithSelector(selector),
		searcher.WithRetry(c.RetryConfig()),
		searcher.WithTimeout(c.Search.CollaboratorTimeout),
		searcher.WithCandidateLimit(c.Search.CandidateLimit),
		searcher.WithFusionK(c.Search.FusionK),
		searcher.WithFilenameChunksPerDocument(c.Search.FilenameChunksPerDocument),
	}, nil
}

// EmbedderConfig returns the embedder factory configuration. The API key is
// read from APIKeyEnv when set, otherwise providers fall back to their
// default variables.
func (c *Config) EmbedderConfig() embedder.Config {
	var key string
	if c.Embedding.APIKeyEnv != "" {
		key = os.Getenv(c.Embedding.APIKeyEnv)
	}
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		APIKey:    key,
		BaseURL:   c.Embedding.BaseURL,
		Model:     c.Embedding.Model,
		Dimension: c.Embedding.Dimension,
		CacheSize: c.Embedding.CacheSize,
	}
}

// LogLevel parses the configured level, defaulting to info
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || c.Log.Level == "" {
		return zerolog.InfoLevel
	}
	return level
}
