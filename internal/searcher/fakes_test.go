package searcher

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/storage"
	"github.com/dshills/docrag-mcp/pkg/types"
)

var (
	errStoreDown = errors.New("store is down")
	errEmbedDown = errors.New("embedding service is down")
	baseTime     = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
)

// memStore is an in-memory DocumentStore, VectorIndex, KeywordSource and
// HistoryRecorder with failure injection
type memStore struct {
	mu      sync.Mutex
	docs    map[int64]*types.Document
	chunks  map[int64]*types.Chunk
	nextDoc int64
	nextChk int64

	hidden map[int64]bool // Chunks that vanish between passes and hydration

	findErr    error
	hydrateErr error
	nearestErr error
	historyErr error

	findCalls    int
	nearestCalls int
	records      []*storage.SearchRecord
}

func newMemStore() *memStore {
	return &memStore{
		docs:   make(map[int64]*types.Document),
		chunks: make(map[int64]*types.Chunk),
		hidden: make(map[int64]bool),
	}
}

func (m *memStore) addDoc(filename string, docType types.DocType, age time.Duration) *types.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDoc++
	doc := &types.Document{ID: m.nextDoc, Filename: filename, DocType: docType, UploadedAt: baseTime.Add(-age)}
	m.docs[doc.ID] = doc
	return doc
}

func (m *memStore) addChunk(docID int64, title, content, keywords string, vec []float32) *types.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChk++
	c := &types.Chunk{
		ID:          m.nextChk,
		DocumentID:  docID,
		SourceType:  types.SourceSection,
		SourceTitle: title,
		Content:     content,
		Keywords:    keywords,
		Embedding:   vec,
	}
	m.chunks[c.ID] = c
	return c
}

func matchesFilter(doc *types.Document, chunk *types.Chunk, f *types.Filter) bool {
	if f.IsEmpty() {
		return true
	}
	if len(f.DocTypes) > 0 {
		ok := false
		for _, t := range f.DocTypes {
			ok = ok || doc.DocType == t
		}
		if !ok {
			return false
		}
	}
	if chunk != nil && len(f.SourceTypes) > 0 {
		ok := false
		for _, t := range f.SourceTypes {
			ok = ok || chunk.SourceType == t
		}
		if !ok {
			return false
		}
	}
	return true
}

// hitCount counts the distinct patterns contained in text, case-insensitively
func hitCount(text string, patterns []string) int {
	lower := strings.ToLower(text)
	seen := make(map[string]bool, len(patterns))
	n := 0
	for _, p := range patterns {
		p = strings.ToLower(p)
		if !seen[p] && strings.Contains(lower, p) {
			n++
		}
		seen[p] = true
	}
	return n
}

func (m *memStore) FindBySubstring(ctx context.Context, field types.Field, patterns []string, filter *types.Filter, limit int) ([]types.SubstringMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}

	var out []types.SubstringMatch
	switch field {
	case types.FieldFilename:
		for _, d := range m.docs {
			if hits := hitCount(d.Filename, patterns); matchesFilter(d, nil, filter) && hits > 0 {
				out = append(out, types.SubstringMatch{DocumentID: d.ID, Text: d.Filename, UploadedAt: d.UploadedAt, Hits: hits})
			}
		}
	case types.FieldContent:
		for _, c := range m.chunks {
			d := m.docs[c.DocumentID]
			if hits := hitCount(c.SearchableText(), patterns); matchesFilter(d, c, filter) && hits > 0 {
				out = append(out, types.SubstringMatch{DocumentID: d.ID, ChunkID: c.ID, Text: c.SearchableText(), UploadedAt: d.UploadedAt, Hits: hits})
			}
		}
	default:
		return nil, storage.ErrInvalidField
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Hits != out[j].Hits {
			return out[i].Hits > out[j].Hits
		}
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetChunks(ctx context.Context, ids []int64) (map[int64]*types.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hydrateErr != nil {
		return nil, m.hydrateErr
	}
	out := make(map[int64]*types.Chunk, len(ids))
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok && !m.hidden[id] {
			out[id] = c
		}
	}
	return out, nil
}

func (m *memStore) GetDocuments(ctx context.Context, ids []int64) (map[int64]*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hydrateErr != nil {
		return nil, m.hydrateErr
	}
	out := make(map[int64]*types.Document, len(ids))
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (m *memStore) ChunkIDsByDocument(ctx context.Context, docIDs []int64, perDocument int, filter *types.Filter) (map[int64][]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	out := make(map[int64][]int64)
	for _, docID := range docIDs {
		var ids []int64
		for _, c := range m.chunks {
			if c.DocumentID == docID && matchesFilter(m.docs[docID], c, filter) {
				ids = append(ids, c.ID)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		if perDocument > 0 && len(ids) > perDocument {
			ids = ids[:perDocument]
		}
		if len(ids) > 0 {
			out[docID] = ids
		}
	}
	return out, nil
}

func (m *memStore) Nearest(ctx context.Context, vector []float32, limit int, filter *types.Filter) ([]types.VectorMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nearestCalls++
	if m.nearestErr != nil {
		return nil, m.nearestErr
	}

	var out []types.VectorMatch
	for _, c := range m.chunks {
		d := m.docs[c.DocumentID]
		if len(c.Embedding) != len(vector) || !matchesFilter(d, c, filter) {
			continue
		}
		sim := (1 + storage.CosineSimilarity(vector, c.Embedding)) / 2
		out = append(out, types.VectorMatch{ChunkID: c.ID, DocumentID: d.ID, Similarity: sim, UploadedAt: d.UploadedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListKeywords(ctx context.Context, filter *types.Filter) ([]storage.KeywordCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	counts := make(map[string]int)
	for _, c := range m.chunks {
		if !matchesFilter(m.docs[c.DocumentID], c, filter) {
			continue
		}
		for _, kw := range c.KeywordList() {
			counts[kw]++
		}
	}
	out := make([]storage.KeywordCount, 0, len(counts))
	for kw, n := range counts {
		out = append(out, storage.KeywordCount{Keyword: kw, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Keyword < out[j].Keyword })
	return out, nil
}

func (m *memStore) RecordSearch(ctx context.Context, record *storage.SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	m.records = append(m.records, record)
	return nil
}

// fakeEmbedder returns fixed vectors per text and a default vector otherwise
type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
	block    bool // Wait for context cancellation instead of answering
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	f.mu.Lock()
	f.calls++
	block, err := f.block, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	vec, ok := f.vectors[req.Text]
	if !ok {
		vec = f.fallback
	}
	return &embedder.Embedding{Vector: vec, Dimension: len(vec), Provider: "fake", Model: "fake"}, nil
}

func (f *fakeEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	resp := &embedder.BatchEmbeddingResponse{Provider: "fake", Model: "fake"}
	for _, text := range req.Texts {
		emb, err := f.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		resp.Embeddings = append(resp.Embeddings, emb)
	}
	return resp, nil
}

func (f *fakeEmbedder) Dimension() int   { return len(f.fallback) }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return "fake" }
func (f *fakeEmbedder) Close() error     { return nil }
