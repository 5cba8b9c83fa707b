// Package searcher implements hybrid document retrieval over keyword and
// vector passes.
//
// A query is tokenized, classified into an intent and routed to a strategy:
//
//	keyword_only       filename + content keyword passes, fused
//	vector_only        embedding similarity only
//	hybrid             filename + content + vector, fused (default)
//	filename_priority  filename pass returned directly when it matches,
//	                   hybrid otherwise
//
// A document identifier such as N706 or SOP-001 in the query forces
// filename_priority. Strategy plans and intent rules are data tables, so new
// intents or routes do not change control flow.
//
// # Reciprocal Rank Fusion
//
// Ranked lists are merged with RRF:
//
//	score(d) = sum over lists of 1 / (k + rank(d))
//
// Where k = 60 and rank is 1-based. Ties are broken by the most recent upload
// time and then by chunk id, so output is deterministic.
//
// # Degradation
//
// The passes run concurrently. Each collaborator call is bounded by a
// timeout and retried once. When a pass fails the response is built from the
// remaining passes and marked partial; when every pass fails it is marked
// degraded and returned together with an error wrapping
// types.ErrCollaboratorUnavailable.
//
// # Basic Usage
//
//	s := searcher.New(store, store, emb, searcher.WithLogger(logger))
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query: "N706 蝴蝶Mura.pptx 內容詳細解析",
//	    TopK:  5,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("%.4f %s %s\n", r.Score, r.Document.Filename, r.Preview)
//	}
package searcher
