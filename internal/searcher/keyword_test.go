package searcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag-mcp/internal/retry"
	"github.com/dshills/docrag-mcp/internal/storage"
	"github.com/dshills/docrag-mcp/internal/tokenizer"
	"github.com/dshills/docrag-mcp/pkg/types"
)

func newTestKeywordMatcher(store DocumentStore) *KeywordMatcher {
	m := NewKeywordMatcher(store, 0)
	m.guard = guard{retry: retry.Config{MaxAttempts: 1}}
	return m
}

func TestKeywordMatcher_FilenameScenario(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	target := store.addDoc("N706 蝴蝶Mura.pptx", types.DocTraining, 0)
	store.addDoc("N706 overview.pdf", types.DocKnowledge, time.Hour)
	store.addDoc("unrelated.docx", types.DocKnowledge, 0)

	tokens := tokenizer.New(tokenizer.DefaultTables()).Tokenize("N706 蝴蝶Mura.pptx 內容詳細解析")
	require.Equal(t, []string{"N706", "蝴蝶Mura"}, tokens)

	list, err := newTestKeywordMatcher(store).MatchFilenames(ctx, tokens, nil, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, target.ID, list[0].DocumentID)
	assert.Equal(t, int64(0), list[0].ChunkID)
	assert.Equal(t, 2.0, list[0].Score)
	assert.Equal(t, types.MethodFilename, list[0].Method)
	assert.Equal(t, 1.0, list[1].Score)
	assert.Equal(t, []types.Source{{Method: types.MethodFilename, Rank: 1, RawScore: 2}}, list[0].Sources)
}

func TestKeywordMatcher_RecencyBreaksTies(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	oldest := store.addDoc("N706 a.pptx", types.DocKnowledge, 72*time.Hour)
	newest := store.addDoc("N706 b.pptx", types.DocKnowledge, time.Hour)
	middle := store.addDoc("N706 c.pptx", types.DocKnowledge, 24*time.Hour)

	tokens := tokenizer.New(tokenizer.DefaultTables()).Tokenize("N706 問題")
	require.Equal(t, []string{"N706"}, tokens)

	list, err := newTestKeywordMatcher(store).MatchFilenames(ctx, tokens, nil, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, []types.ResultKey{
		{DocumentID: newest.ID},
		{DocumentID: middle.ID},
		{DocumentID: oldest.ID},
	}, list.Keys())
	for _, r := range list {
		assert.Equal(t, 1.0, r.Score)
	}
}

func TestKeywordMatcher_EmptyTokensSkipStore(t *testing.T) {
	store := newMemStore()
	store.addDoc("N706.pptx", types.DocKnowledge, 0)

	list, err := newTestKeywordMatcher(store).MatchContent(context.Background(), nil, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, store.findCalls)
}

func TestKeywordMatcher_ScoreMonotonicity(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	doc := store.addDoc("manual.pdf", types.DocProcedure, 0)
	store.addChunk(doc.ID, "Mura 檢查", "蝴蝶Mura 的判定步驟與 N706 機台設定", "Mura、N706", nil)

	m := newTestKeywordMatcher(store)
	prev := 0.0
	tokens := []string{"Mura", "N706", "機台", "判定"}
	for i := 1; i <= len(tokens); i++ {
		list, err := m.MatchContent(ctx, tokens[:i], nil, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.GreaterOrEqual(t, list[0].Score, prev)
		assert.Equal(t, float64(i), list[0].Score)
		prev = list[0].Score
	}

	// A token that matches nothing does not lower the score
	list, err := m.MatchContent(ctx, append(tokens, "zzz"), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, prev, list[0].Score)
}

func TestKeywordMatcher_ContentCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	doc := store.addDoc("a.pdf", types.DocKnowledge, 0)
	c := store.addChunk(doc.ID, "Title", "The MURA defect", "", nil)

	list, err := newTestKeywordMatcher(store).MatchContent(ctx, []string{"mura"}, nil, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ChunkID)
	assert.Equal(t, types.MethodContent, list[0].Method)
}

func TestKeywordMatcher_LimitAndFilter(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	for i := 0; i < 5; i++ {
		store.addDoc("N706 report.pdf", types.DocKnowledge, time.Duration(i)*time.Hour)
	}
	training := store.addDoc("N706 training.pptx", types.DocTraining, 10*time.Hour)

	m := newTestKeywordMatcher(store)
	list, err := m.MatchFilenames(ctx, []string{"N706"}, nil, 3)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 3, list[2].Sources[0].Rank)

	list, err = m.MatchFilenames(ctx, []string{"N706"}, &types.Filter{DocTypes: []types.DocType{types.DocTraining}}, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, training.ID, list[0].DocumentID)
}

func TestKeywordMatcher_BestMatchSurvivesCandidateLimit(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	best := &types.Document{Filename: "N706 蝴蝶Mura pump.pptx", DocType: types.DocTraining, UploadedAt: baseTime.Add(-365 * 24 * time.Hour)}
	require.NoError(t, store.CreateDocument(ctx, best))
	for i := 0; i < DefaultCandidateLimit; i++ {
		doc := &types.Document{Filename: fmt.Sprintf("pump log %d.md", i), DocType: types.DocKnowledge, UploadedAt: baseTime.Add(-time.Duration(i) * time.Minute)}
		require.NoError(t, store.CreateDocument(ctx, doc))
	}

	m := NewKeywordMatcher(store, 0)
	list, err := m.MatchFilenames(ctx, []string{"N706", "蝴蝶Mura", "pump"}, nil, 5)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, best.ID, list[0].DocumentID)
	assert.Equal(t, 3.0, list[0].Score)
	assert.Equal(t, 1.0, list[1].Score)
	assert.True(t, list[1].UploadedAt.After(list[2].UploadedAt))

	// Same through the in-memory store with a small cap
	mem := newMemStore()
	target := mem.addDoc("N706 蝴蝶Mura pump.pptx", types.DocTraining, 365*24*time.Hour)
	for i := 0; i < 20; i++ {
		mem.addDoc(fmt.Sprintf("pump log %d.md", i), types.DocKnowledge, time.Duration(i)*time.Minute)
	}
	small := NewKeywordMatcher(mem, 10)
	small.guard = guard{retry: retry.Config{MaxAttempts: 1}}
	list, err = small.MatchFilenames(ctx, []string{"N706", "蝴蝶Mura", "pump"}, nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, target.ID, list[0].DocumentID)
}

func TestKeywordMatcher_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.findErr = errStoreDown

	_, err := newTestKeywordMatcher(store).MatchFilenames(context.Background(), []string{"N706"}, nil, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCollaboratorUnavailable)
	assert.ErrorIs(t, err, errStoreDown)

	var ce *types.CollaboratorError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CollaboratorStore, ce.Collaborator)
}

func TestKeywordMatcher_ExpandDocuments(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	withChunks := store.addDoc("N706 a.pptx", types.DocKnowledge, 0)
	empty := store.addDoc("N706 b.pptx", types.DocKnowledge, time.Hour)
	var ids []int64
	for i := 0; i < 4; i++ {
		ids = append(ids, store.addChunk(withChunks.ID, "t", "c", "", nil).ID)
	}

	m := newTestKeywordMatcher(store)
	list, err := m.MatchFilenames(ctx, []string{"N706"}, nil, 10)
	require.NoError(t, err)

	expanded, err := m.ExpandDocuments(ctx, list, 3, nil)
	require.NoError(t, err)
	require.Len(t, expanded, 4)

	for i := 0; i < 3; i++ {
		assert.Equal(t, ids[i], expanded[i].ChunkID)
		assert.Equal(t, withChunks.ID, expanded[i].DocumentID)
		assert.Equal(t, 1.0, expanded[i].Score)
		assert.Equal(t, types.MethodFilename, expanded[i].Method)
	}
	assert.Equal(t, types.ResultKey{DocumentID: empty.ID}, expanded[3].Key())
}

func TestScoreText(t *testing.T) {
	assert.Equal(t, 0, scoreText("abc", []string{"x"}))
	assert.Equal(t, 2, scoreText("N706 蝴蝶mura", []string{"n706", "mura"}))
	assert.Equal(t, 2, scoreText("n706", []string{"n706", "n70"}))
}
