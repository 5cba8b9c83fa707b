package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dshills/docrag-mcp/internal/config"
	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/logging"
	"github.com/dshills/docrag-mcp/internal/searcher"
	"github.com/dshills/docrag-mcp/internal/storage"
)

// runtime is the wired application: store, embedder and searcher
type runtime struct {
	cfg        *config.Config
	configPath string
	logger     zerolog.Logger
	store      *storage.SQLiteStorage
	embedder   embedder.Embedder // nil when no provider could be configured
	searcher   *searcher.Searcher
	suggester  *searcher.Suggester
}

// loadConfig reads configuration and applies command-line overrides
func (a *app) loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.Load(a.configFile)
	if err != nil {
		return nil, "", err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	return cfg, path, nil
}

// open builds the runtime. Logs go to logOut; the MCP server passes stderr
// because stdout carries the protocol.
func (a *app) open(logOut io.Writer) (*runtime, error) {
	cfg, path, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel(), Format: cfg.Log.Format}, logOut)

	if dir := filepath.Dir(cfg.Database.Path); cfg.Database.Path != ":memory:" && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:        cfg,
		configPath: path,
		logger:     logger,
		store:      store,
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		// Keyword retrieval still works without vectors
		logger.Warn().Err(err).Msg("embedder unavailable, vector search disabled")
	} else {
		rt.embedder = emb
	}

	opts, err := cfg.SearcherOptions()
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.suggester = searcher.NewSuggester(store, cfg.Search.SuggestThreshold, cfg.Search.SuggestLimit)
	opts = append(opts,
		searcher.WithLogger(logger),
		searcher.WithSuggester(rt.suggester),
	)
	if cfg.Search.RecordHistory {
		opts = append(opts, searcher.WithHistory(store))
	}
	rt.searcher = searcher.New(store, store, rt.embedder, opts...)

	logger.Debug().
		Str("config", path).
		Str("database", cfg.Database.Path).
		Str("build_mode", storage.BuildMode).
		Bool("vector_extension", storage.VectorExtensionAvailable).
		Msg("runtime ready")
	return rt, nil
}

// Close releases the embedder and the store
func (r *runtime) Close() error {
	var errs []error
	if r.embedder != nil {
		errs = append(errs, r.embedder.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}
