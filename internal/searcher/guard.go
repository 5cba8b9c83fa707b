package searcher

import (
	"context"
	"time"

	"github.com/dshills/docrag-mcp/internal/retry"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// Collaborator names reported in CollaboratorError and SearchResponse
const (
	CollaboratorStore       = "store"
	CollaboratorVectorIndex = "vector_index"
	CollaboratorEmbedder    = "embedder"
)

// guard bounds every collaborator call with a per-attempt timeout and retry
type guard struct {
	retry   retry.Config
	timeout time.Duration
}

// guarded runs fn under g. Failures come back as *types.CollaboratorError
// unless the parent context ended, in which case its error is returned.
func guarded[T any](ctx context.Context, g guard, collaborator, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := retry.Do(ctx, g.retry, func(ctx context.Context) (T, error) {
		if g.timeout <= 0 {
			return fn(ctx)
		}
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(cctx)
	})
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		return v, ctx.Err()
	}
	return v, &types.CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}
