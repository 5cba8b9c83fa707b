package searcher

import (
	"context"

	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// VectorIndex returns the chunks nearest to a query vector, similarity on [0,1]
type VectorIndex interface {
	Nearest(ctx context.Context, vector []float32, limit int, filter *types.Filter) ([]types.VectorMatch, error)
}

// VectorMatcher embeds a query and asks the index for its nearest chunks
type VectorMatcher struct {
	embedder embedder.Embedder
	index    VectorIndex
	guard    guard
}

// NewVectorMatcher creates a vector matcher
func NewVectorMatcher(emb embedder.Embedder, index VectorIndex) *VectorMatcher {
	return &VectorMatcher{embedder: emb, index: index}
}

// Match returns up to limit chunks ranked by similarity. No threshold is applied.
func (m *VectorMatcher) Match(ctx context.Context, query string, filter *types.Filter, limit int) (types.RankedList, error) {
	if m.embedder == nil {
		return nil, &types.CollaboratorError{Collaborator: CollaboratorEmbedder, Op: "embed", Err: embedder.ErrNoProviderEnabled}
	}

	emb, err := guarded(ctx, m.guard, CollaboratorEmbedder, "embed", func(ctx context.Context) (*embedder.Embedding, error) {
		return m.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	})
	if err != nil {
		return nil, err
	}

	matches, err := guarded(ctx, m.guard, CollaboratorVectorIndex, "nearest", func(ctx context.Context) ([]types.VectorMatch, error) {
		return m.index.Nearest(ctx, emb.Vector, limit, filter)
	})
	if err != nil {
		return nil, err
	}

	list := make(types.RankedList, 0, len(matches))
	for _, vm := range matches {
		list = append(list, types.ScoredResult{
			ChunkID:    vm.ChunkID,
			DocumentID: vm.DocumentID,
			Score:      vm.Similarity,
			Method:     types.MethodVector,
			UploadedAt: vm.UploadedAt,
		})
	}

	types.SortRanked(list)
	list = list.Truncate(limit)
	for i := range list {
		list[i].Sources = []types.Source{{Method: types.MethodVector, Rank: i + 1, RawScore: list[i].Score}}
	}
	return list, nil
}
