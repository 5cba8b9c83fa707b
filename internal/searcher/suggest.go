package searcher

import (
	"context"
	"sort"
	"strings"

	"github.com/dshills/docrag-mcp/internal/storage"
	"github.com/dshills/docrag-mcp/pkg/types"
)

const (
	// DefaultSuggestThreshold is the minimum similarity ratio for a suggestion
	DefaultSuggestThreshold = 0.8
	// DefaultSuggestLimit caps the number of suggestions
	DefaultSuggestLimit = 5
)

// KeywordSource lists the annotated keyword vocabulary
type KeywordSource interface {
	ListKeywords(ctx context.Context, filter *types.Filter) ([]storage.KeywordCount, error)
}

// Suggestion is a known keyword close to a query
type Suggestion struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
	Count   int     `json:"count"`
}

// Suggester proposes annotated keywords that resemble a misspelled query
type Suggester struct {
	source    KeywordSource
	threshold float64
	limit     int
}

// NewSuggester creates a suggester; zero threshold or limit use the defaults
func NewSuggester(source KeywordSource, threshold float64, limit int) *Suggester {
	if threshold <= 0 {
		threshold = DefaultSuggestThreshold
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	return &Suggester{source: source, threshold: threshold, limit: limit}
}

// Suggest returns up to limit keywords whose similarity ratio to query is at
// least the threshold, best first.
func (s *Suggester) Suggest(ctx context.Context, query string, filter *types.Filter) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Suggestion{}, nil
	}

	vocab, err := s.source.ListKeywords(ctx, filter)
	if err != nil {
		return nil, &types.CollaboratorError{Collaborator: CollaboratorStore, Op: "list_keywords", Err: err}
	}

	out := make([]Suggestion, 0)
	for _, kc := range vocab {
		score := Ratio(query, kc.Keyword)
		if score >= s.threshold {
			out = append(out, Suggestion{Keyword: kc.Keyword, Score: score, Count: kc.Count})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > s.limit {
		out = out[:s.limit]
	}
	return out, nil
}

// Ratio returns 2*LCS/(len(a)+len(b)) over lowercased runes, where LCS is the
// longest common subsequence. Identical strings score 1, disjoint ones 0.
func Ratio(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return 2 * float64(prev[len(rb)]) / float64(total)
}
