package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag-mcp/internal/config"
	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/storage"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// setupEnv isolates config discovery and seeds a database without vectors
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvDBPath, "")
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv(config.EnvTopK, "")
	t.Setenv(embedder.EnvProvider, embedder.ProviderLocal)

	dbPath := filepath.Join(dir, "docrag.db")
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	doc := &types.Document{Filename: "N706 蝴蝶Mura.pptx", DocType: types.DocTraining, UploadedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, store.CreateDocument(ctx, doc))
	require.NoError(t, store.InsertChunk(ctx, &types.Chunk{
		DocumentID: doc.ID, SourceType: types.SourceChapter, SourceTitle: "定義",
		Content: "蝴蝶Mura 是面板亮度不均", Keywords: "蝴蝶Mura、Mura",
	}))
	require.NoError(t, store.InsertChunk(ctx, &types.Chunk{
		DocumentID: doc.ID, SourceType: types.SourceStep, SourceTitle: "判定",
		Content: "依亮度差判定等級", Keywords: "判定",
	}))
	return dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(BuildInfo{Version: "dev", BuildTime: "unknown"})
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(BuildInfo{})
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "search", "classify", "suggest", "keywords", "history", "status", "embed", "version"})

	for _, flag := range []string{"config", "db", "log-level", "json"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docrag-mcp dev")
	assert.Contains(t, out, "Build Mode: "+storage.BuildMode)
}

func TestClassifyCommand(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "classify", "--json", "如何排除蝴蝶Mura")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "procedural", got["intent"])
	assert.Equal(t, "hybrid", got["strategy"])

	out, err = execute(t, "classify", "N706 內容")
	require.NoError(t, err)
	assert.Contains(t, out, "Strategy: filename_priority")

	_, err = execute(t, "classify")
	assert.Error(t, err)
}

func TestSearchCommand(t *testing.T) {
	dbPath := setupEnv(t)

	t.Run("text output", func(t *testing.T) {
		out, err := execute(t, "--db", dbPath, "search", "N706", "蝴蝶Mura.pptx", "內容詳細解析")
		require.NoError(t, err)
		assert.Contains(t, out, "Strategy: filename_priority")
		assert.Contains(t, out, "Status: ok")
		assert.Contains(t, out, "1. N706 蝴蝶Mura.pptx")
	})

	t.Run("json output with filter", func(t *testing.T) {
		out, err := execute(t, "--db", dbPath, "--json", "search", "-s", "keyword", "--source-type", "step", "亮度")
		require.NoError(t, err)

		var resp struct {
			StrategyUsed string
			Status       string
			Results      []struct {
				Chunk struct{ SourceType string }
			}
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "keyword_only", resp.StrategyUsed)
		assert.Equal(t, "ok", resp.Status)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "step", resp.Results[0].Chunk.SourceType)
	})

	t.Run("no match suggests keywords", func(t *testing.T) {
		out, err := execute(t, "--db", dbPath, "search", "-s", "keyword_only", "蝴蝶Mora")
		require.NoError(t, err)
		assert.Contains(t, out, "No results found.")
		assert.Contains(t, out, "Did you mean: 蝴蝶Mura")
	})

	t.Run("invalid strategy", func(t *testing.T) {
		_, err := execute(t, "--db", dbPath, "search", "-s", "psychic", "Mura")
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("requires a query", func(t *testing.T) {
		_, err := execute(t, "--db", dbPath, "search")
		assert.Error(t, err)
	})

	t.Run("history records searches", func(t *testing.T) {
		out, err := execute(t, "--db", dbPath, "--json", "history", "-n", "1")
		require.NoError(t, err)

		var records []storage.SearchRecord
		require.NoError(t, json.Unmarshal([]byte(out), &records))
		require.Len(t, records, 1)
		assert.Equal(t, "蝴蝶Mora", records[0].Query)
		assert.Equal(t, types.StatusNoMatch, records[0].Status)
	})
}

func TestKeywordCommands(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := execute(t, "--db", dbPath, "keywords")
	require.NoError(t, err)
	assert.Contains(t, out, "蝴蝶Mura")
	assert.Contains(t, out, "判定")

	out, err = execute(t, "--db", dbPath, "keywords", "--source-type", "step")
	require.NoError(t, err)
	assert.Contains(t, out, "判定")
	assert.NotContains(t, out, "蝴蝶Mura")

	out, err = execute(t, "--db", dbPath, "suggest", "蝴蝶Mora")
	require.NoError(t, err)
	assert.Contains(t, out, "蝴蝶Mura")

	out, err = execute(t, "--db", dbPath, "suggest", "xyz")
	require.NoError(t, err)
	assert.Contains(t, out, "No similar keywords.")
}

func TestEmbedCommand(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := execute(t, "--db", dbPath, "embed", "蝴蝶Mura")
	require.NoError(t, err)
	assert.Contains(t, out, "Provider:  local")
	assert.Contains(t, out, "Dimension: 384")

	_, err = execute(t, "--db", dbPath, "embed")
	assert.Error(t, err)

	out, err = execute(t, "--db", dbPath, "embed", "--backfill", "--batch", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Embedded 2 chunks")

	out, err = execute(t, "--db", dbPath, "embed", "--backfill")
	require.NoError(t, err)
	assert.Contains(t, out, "Embedded 0 chunks")

	out, err = execute(t, "--db", dbPath, "--json", "status")
	require.NoError(t, err)
	var status storage.Status
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 1, status.Documents)
	assert.Equal(t, 2, status.Chunks)
	assert.Equal(t, 2, status.Embeddings)
}

func TestStatusCommand(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := execute(t, "--db", dbPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents:      1")
	assert.Contains(t, out, "training")
	assert.Contains(t, out, "Chunks:         2")
	assert.Contains(t, out, "Embedder:       local/")
}

func TestBadConfig(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "status")
	assert.Error(t, err)
}
