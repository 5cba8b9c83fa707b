package searcher

import "github.com/dshills/docrag-mcp/pkg/types"

// Confidence summarises how clearly the top result stands out: 0 for no
// results, 1 for a single result, otherwise (top-mean)/top clamped to [0,1].
func Confidence(list types.RankedList) float64 {
	switch len(list) {
	case 0:
		return 0
	case 1:
		return 1
	}

	top := list[0].Score
	if top <= 0 {
		return 0
	}
	var sum float64
	for i := range list {
		sum += list[i].Score
	}
	mean := sum / float64(len(list))

	c := (top - mean) / top
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
