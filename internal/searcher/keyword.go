package searcher

import (
	"context"
	"strings"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// DefaultCandidateLimit caps the rows a keyword pass reads from the store
const DefaultCandidateLimit = 1000

// DocumentStore is the persistence contract retrieval reads from
type DocumentStore interface {
	FindBySubstring(ctx context.Context, field types.Field, patterns []string, filter *types.Filter, limit int) ([]types.SubstringMatch, error)
	GetChunks(ctx context.Context, ids []int64) (map[int64]*types.Chunk, error)
	GetDocuments(ctx context.Context, ids []int64) (map[int64]*types.Document, error)
	ChunkIDsByDocument(ctx context.Context, docIDs []int64, perDocument int, filter *types.Filter) (map[int64][]int64, error)
}

// KeywordMatcher scores store rows by the number of distinct tokens they contain
type KeywordMatcher struct {
	store          DocumentStore
	candidateLimit int
	guard          guard
}

// NewKeywordMatcher creates a matcher reading at most candidateLimit rows per pass
func NewKeywordMatcher(store DocumentStore, candidateLimit int) *KeywordMatcher {
	if candidateLimit <= 0 {
		candidateLimit = DefaultCandidateLimit
	}
	return &KeywordMatcher{store: store, candidateLimit: candidateLimit}
}

// MatchFilenames returns document-level results for filenames containing any token
func (m *KeywordMatcher) MatchFilenames(ctx context.Context, tokens []string, filter *types.Filter, limit int) (types.RankedList, error) {
	return m.match(ctx, types.FieldFilename, types.MethodFilename, tokens, filter, limit)
}

// MatchContent returns chunk-level results for chunk title, text or keyword annotation
func (m *KeywordMatcher) MatchContent(ctx context.Context, tokens []string, filter *types.Filter, limit int) (types.RankedList, error) {
	return m.match(ctx, types.FieldContent, types.MethodContent, tokens, filter, limit)
}

func (m *KeywordMatcher) match(ctx context.Context, field types.Field, method types.Method, tokens []string, filter *types.Filter, limit int) (types.RankedList, error) {
	if len(tokens) == 0 {
		return types.RankedList{}, nil
	}

	rows, err := guarded(ctx, m.guard, CollaboratorStore, "find_by_substring", func(ctx context.Context) ([]types.SubstringMatch, error) {
		return m.store.FindBySubstring(ctx, field, tokens, filter, m.candidateLimit)
	})
	if err != nil {
		return nil, err
	}

	lowered := make([]string, len(tokens))
	for i, t := range tokens {
		lowered[i] = strings.ToLower(t)
	}

	list := make(types.RankedList, 0, len(rows))
	for _, row := range rows {
		score := scoreText(row.Text, lowered)
		if score == 0 {
			continue
		}
		list = append(list, types.ScoredResult{
			ChunkID:    row.ChunkID,
			DocumentID: row.DocumentID,
			Score:      float64(score),
			Method:     method,
			UploadedAt: row.UploadedAt,
		})
	}

	types.SortRanked(list)
	list = list.Truncate(limit)
	for i := range list {
		list[i].Sources = []types.Source{{Method: method, Rank: i + 1, RawScore: list[i].Score}}
	}
	return list, nil
}

// scoreText counts the lowered tokens that occur in text, case-insensitively
func scoreText(text string, lowered []string) int {
	haystack := strings.ToLower(text)
	n := 0
	for _, t := range lowered {
		if strings.Contains(haystack, t) {
			n++
		}
	}
	return n
}

// ExpandDocuments replaces each document-level entry with up to perDocument of
// its chunks, each inheriting the document's score and upload time. Documents
// without chunks keep their document-level entry.
func (m *KeywordMatcher) ExpandDocuments(ctx context.Context, list types.RankedList, perDocument int, filter *types.Filter) (types.RankedList, error) {
	var docIDs []int64
	for _, r := range list {
		if r.ChunkID == 0 {
			docIDs = append(docIDs, r.DocumentID)
		}
	}
	if len(docIDs) == 0 {
		return list, nil
	}

	byDoc, err := guarded(ctx, m.guard, CollaboratorStore, "chunk_ids_by_document", func(ctx context.Context) (map[int64][]int64, error) {
		return m.store.ChunkIDsByDocument(ctx, docIDs, perDocument, filter)
	})
	if err != nil {
		return nil, err
	}

	out := make(types.RankedList, 0, len(list)*2)
	for _, r := range list {
		chunkIDs := byDoc[r.DocumentID]
		if r.ChunkID != 0 || len(chunkIDs) == 0 {
			out = append(out, r)
			continue
		}
		for _, id := range chunkIDs {
			c := r
			c.ChunkID = id
			c.Sources = append([]types.Source(nil), r.Sources...)
			out = append(out, c)
		}
	}
	types.SortRanked(out)
	return out, nil
}
