package searcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/storage"
	"github.com/dshills/docrag-mcp/pkg/types"
)

func TestSearch_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(embedder.NewCache(100))
	require.NoError(t, err)

	addDoc := func(filename string, docType types.DocType, age time.Duration) *types.Document {
		doc := &types.Document{Filename: filename, DocType: docType, UploadedAt: baseTime.Add(-age)}
		require.NoError(t, store.CreateDocument(ctx, doc))
		return doc
	}
	addChunk := func(docID int64, title, content, keywords string) *types.Chunk {
		c := &types.Chunk{DocumentID: docID, SourceType: types.SourceChapter, SourceTitle: title, Content: content, Keywords: keywords}
		e, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: c.SearchableText()})
		require.NoError(t, err)
		c.Embedding = e.Vector
		require.NoError(t, store.InsertChunk(ctx, c))
		return c
	}

	mura := addDoc("N706 蝴蝶Mura.pptx", types.DocTraining, 0)
	addChunk(mura.ID, "蝴蝶Mura 定義", "蝴蝶Mura 是面板亮度不均的一種", "蝴蝶Mura")
	addChunk(mura.ID, "判定標準", "依亮度差判定等級", "判定")
	pump := addDoc("pump SOP-001.pdf", types.DocProcedure, time.Hour)
	pumpChunk := addChunk(pump.ID, "Vacuum pump", "How to replace the vacuum pump filter", "pump, filter")

	s := New(store, store, emb, WithHistory(store), WithSuggester(NewSuggester(store, 0, 0)))

	t.Run("document identifier", func(t *testing.T) {
		resp, err := s.Search(ctx, SearchRequest{Query: "N706 蝴蝶Mura.pptx 內容詳細解析"})
		require.NoError(t, err)
		assert.Equal(t, types.StrategyFilenamePriority, resp.StrategyUsed)
		require.NotEmpty(t, resp.Results)
		assert.Equal(t, mura.ID, resp.Results[0].DocumentID)
		assert.Equal(t, 2.0, resp.Results[0].Score)
	})

	t.Run("hybrid", func(t *testing.T) {
		resp, err := s.Search(ctx, SearchRequest{Query: "how to replace pump filter"})
		require.NoError(t, err)
		assert.Equal(t, types.IntentProcedural, resp.Intent)
		assert.Equal(t, types.StrategyHybrid, resp.StrategyUsed)
		require.NotEmpty(t, resp.Results)
		assert.Equal(t, pumpChunk.ID, resp.Results[0].ChunkID)
		assert.Equal(t, types.MethodFusion, resp.Results[0].Method)
	})

	t.Run("filter", func(t *testing.T) {
		resp, err := s.Search(ctx, SearchRequest{
			Query:  "蝴蝶Mura pump",
			Filter: &types.Filter{DocTypes: []types.DocType{types.DocTraining}},
		})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Results)
		for _, r := range resp.Results {
			assert.Equal(t, mura.ID, r.DocumentID)
		}
	})

	t.Run("history", func(t *testing.T) {
		records, err := store.ListSearches(ctx, 10)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(records), 3)
	})

	t.Run("deleted document disappears", func(t *testing.T) {
		require.NoError(t, store.DeleteDocument(ctx, pump.ID))
		resp, err := s.Search(ctx, SearchRequest{Query: "pump filter", Strategy: types.StrategyKeywordOnly})
		require.NoError(t, err)
		assert.Equal(t, types.StatusNoMatch, resp.Status)
	})
}
