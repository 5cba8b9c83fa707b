package searcher

import (
	"github.com/dshills/docrag-mcp/pkg/types"
)

// DefaultFusionK is the rank-fusion constant
const DefaultFusionK = 60

// Fuse combines ranked lists with reciprocal rank fusion: every entry at
// 1-based rank r contributes 1/(k+r) to its identity. Entries are merged by
// ResultKey and the output is ordered with types.SortRanked. k <= 0 means
// DefaultFusionK.
func Fuse(lists []types.RankedList, k int) types.RankedList {
	if k <= 0 {
		k = DefaultFusionK
	}

	index := make(map[types.ResultKey]int)
	out := make(types.RankedList, 0)

	for _, list := range lists {
		seen := make(map[types.ResultKey]struct{}, len(list))
		for i := range list {
			entry := &list[i]
			key := entry.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			rank := i + 1
			contribution := 1.0 / float64(k+rank)
			sources := entrySources(entry, rank)

			pos, ok := index[key]
			if !ok {
				merged := *entry
				merged.Score = contribution
				merged.Sources = sources
				index[key] = len(out)
				out = append(out, merged)
				continue
			}

			merged := &out[pos]
			merged.Score += contribution
			merged.Sources = append(merged.Sources, sources...)
			if merged.UploadedAt.IsZero() {
				merged.UploadedAt = entry.UploadedAt
			}
			if merged.Document == nil {
				merged.Document = entry.Document
			}
			if merged.Chunk == nil {
				merged.Chunk = entry.Chunk
			}
		}
	}

	for i := range out {
		out[i].Method = fusedMethod(out[i].Sources)
	}
	types.SortRanked(out)
	return out
}

// entrySources describes one entry's contribution in its own list
func entrySources(entry *types.ScoredResult, rank int) []types.Source {
	if entry.Method == types.MethodFusion && len(entry.Sources) > 0 {
		return append([]types.Source(nil), entry.Sources...)
	}
	return []types.Source{{Method: entry.Method, Rank: rank, RawScore: entry.Score}}
}

func fusedMethod(sources []types.Source) types.Method {
	if len(sources) == 0 {
		return types.MethodFusion
	}
	first := sources[0].Method
	for _, s := range sources[1:] {
		if s.Method != first {
			return types.MethodFusion
		}
	}
	return first
}
