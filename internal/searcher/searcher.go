package searcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/retry"
	"github.com/dshills/docrag-mcp/internal/storage"
	"github.com/dshills/docrag-mcp/internal/tokenizer"
	"github.com/dshills/docrag-mcp/pkg/types"
)

const (
	DefaultTopK                      = 10
	MaxTopK                          = 100
	DefaultCollaboratorTimeout       = 5 * time.Second
	DefaultFilenameChunksPerDocument = 3
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	TopK     int           // <= 0 means DefaultTopK, capped at MaxTopK
	Filter   *types.Filter // Optional document/chunk type scope
	Strategy types.Strategy
}

// SearchResponse contains results and how they were produced
type SearchResponse struct {
	RequestID           string
	Query               string // After rewriting
	Tokens              []string
	Intent              types.Intent
	StrategyUsed        types.Strategy
	Reason              string
	Results             types.RankedList
	Confidence          float64
	Status              types.Status
	FailedCollaborators []string
	Suggestions         []Suggestion // Only filled for no_match when a suggester is configured
	Duration            time.Duration
}

// QueryRewriter may replace the query before tokenization
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// RewriterFunc adapts a function to QueryRewriter
type RewriterFunc func(ctx context.Context, query string) (string, error)

func (f RewriterFunc) Rewrite(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// ResultProcessor post-processes the final, hydrated results
type ResultProcessor interface {
	Process(ctx context.Context, query string, results types.RankedList) (types.RankedList, error)
}

// ProcessorFunc adapts a function to ResultProcessor
type ProcessorFunc func(ctx context.Context, query string, results types.RankedList) (types.RankedList, error)

func (f ProcessorFunc) Process(ctx context.Context, query string, results types.RankedList) (types.RankedList, error) {
	return f(ctx, query, results)
}

// HistoryRecorder persists a summary of each search
type HistoryRecorder interface {
	RecordSearch(ctx context.Context, record *storage.SearchRecord) error
}

// Searcher coordinates tokenization, strategy selection, the retrieval passes and fusion
type Searcher struct {
	store     DocumentStore
	keyword   *KeywordMatcher
	vector    *VectorMatcher
	tokenizer *tokenizer.Tokenizer
	selector  *StrategySelector
	logger    zerolog.Logger
	guard     guard

	candidateLimit int
	fusionK        int
	perDocument    int

	rewriter   QueryRewriter
	processors []ResultProcessor
	history    HistoryRecorder
	suggester  *Suggester
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLogger sets the logger; the default discards everything
func WithLogger(l zerolog.Logger) Option { return func(s *Searcher) { s.logger = l } }

// WithTokenizer replaces the default tokenizer
func WithTokenizer(t *tokenizer.Tokenizer) Option { return func(s *Searcher) { s.tokenizer = t } }

// WithSelector replaces the default strategy selector
func WithSelector(sel *StrategySelector) Option { return func(s *Searcher) { s.selector = sel } }

// WithRetry sets the retry policy for collaborator calls
func WithRetry(cfg retry.Config) Option { return func(s *Searcher) { s.guard.retry = cfg } }

// WithTimeout sets the per-attempt collaborator timeout
func WithTimeout(d time.Duration) Option { return func(s *Searcher) { s.guard.timeout = d } }

// WithCandidateLimit caps the rows each keyword pass reads
func WithCandidateLimit(n int) Option { return func(s *Searcher) { s.candidateLimit = n } }

// WithFusionK sets the rank-fusion constant
func WithFusionK(k int) Option { return func(s *Searcher) { s.fusionK = k } }

// WithFilenameChunksPerDocument sets how many chunks a filename hit expands to
func WithFilenameChunksPerDocument(n int) Option { return func(s *Searcher) { s.perDocument = n } }

// WithRewriter installs a query rewriter
func WithRewriter(r QueryRewriter) Option { return func(s *Searcher) { s.rewriter = r } }

// WithProcessor appends a result processor; processors run in order
func WithProcessor(p ResultProcessor) Option {
	return func(s *Searcher) { s.processors = append(s.processors, p) }
}

// WithHistory records every search through h
func WithHistory(h HistoryRecorder) Option { return func(s *Searcher) { s.history = h } }

// WithSuggester attaches keyword suggestions to no_match responses
func WithSuggester(sg *Suggester) Option { return func(s *Searcher) { s.suggester = sg } }

// New creates a Searcher. emb may be nil, in which case vector passes fail
// as an unavailable embedder and searches degrade to keyword results.
func New(store DocumentStore, index VectorIndex, emb embedder.Embedder, opts ...Option) *Searcher {
	s := &Searcher{
		store:          store,
		logger:         zerolog.Nop(),
		guard:          guard{retry: retry.Default(), timeout: DefaultCollaboratorTimeout},
		candidateLimit: DefaultCandidateLimit,
		fusionK:        DefaultFusionK,
		perDocument:    DefaultFilenameChunksPerDocument,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokenizer == nil {
		s.tokenizer = tokenizer.New(tokenizer.DefaultTables())
	}
	if s.selector == nil {
		s.selector = NewDefaultStrategySelector()
	}
	if s.perDocument <= 0 {
		s.perDocument = DefaultFilenameChunksPerDocument
	}

	s.keyword = NewKeywordMatcher(store, s.candidateLimit)
	s.keyword.guard = s.guard
	s.vector = NewVectorMatcher(emb, index)
	s.vector.guard = s.guard
	return s
}

// Tokenizer returns the tokenizer the searcher uses
func (s *Searcher) Tokenizer() *tokenizer.Tokenizer { return s.tokenizer }

// Selector returns the strategy selector the searcher uses
func (s *Searcher) Selector() *StrategySelector { return s.selector }

// Search runs the full retrieval pipeline for one query. An empty query is
// not an error: it yields an empty no_match response. When every pass the
// strategy needed failed, the degraded response is returned together with
// the error.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	override, err := s.validateRequest(&req)
	if err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	resp := &SearchResponse{
		RequestID: uuid.NewString(),
		Query:     strings.TrimSpace(req.Query),
		Tokens:    []string{},
		Intent:    types.IntentFactual,
		Results:   types.RankedList{},
	}
	log := s.logger.With().Str("request_id", resp.RequestID).Logger()

	if s.rewriter != nil && resp.Query != "" {
		rewritten, err := s.rewriter.Rewrite(ctx, resp.Query)
		if err != nil {
			log.Warn().Err(err).Msg("query rewrite failed, using original query")
		} else {
			resp.Query = strings.TrimSpace(rewritten)
		}
	}

	if resp.Query == "" {
		resp.Status = types.StatusNoMatch
		resp.Duration = time.Since(start)
		return resp, nil
	}

	resp.Tokens = s.tokenizer.Tokenize(resp.Query)
	decision := s.selector.Select(resp.Query)
	if override != "" {
		decision.Strategy = override
		decision.Reason = "explicit strategy"
	}
	resp.Intent = decision.Intent
	resp.Reason = decision.Reason

	out, err := s.execute(ctx, decision.Strategy, resp.Query, resp.Tokens, req)
	if err != nil {
		return nil, err
	}
	resp.StrategyUsed = out.strategy
	failed := out.failed

	results := out.results
	if !out.direct {
		results = results.Truncate(req.TopK * 2)
	}
	results, err = s.hydrate(ctx, log, results, resp.Tokens)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		log.Warn().Err(err).Msg("result hydration failed, returning unresolved results")
		failed = append(failed, CollaboratorStore)
	}
	results = results.Truncate(req.TopK)

	for _, p := range s.processors {
		processed, err := p.Process(ctx, resp.Query, results)
		if err != nil {
			log.Warn().Err(err).Msg("result processor failed")
			continue
		}
		results = processed
	}

	resp.Results = results
	resp.Confidence = Confidence(results)
	resp.FailedCollaborators = dedupe(failed)

	switch {
	case out.allFailed:
		resp.Status = types.StatusDegraded
	case len(resp.FailedCollaborators) > 0:
		resp.Status = types.StatusPartial
	case len(results) == 0:
		resp.Status = types.StatusNoMatch
	default:
		resp.Status = types.StatusOK
	}

	if resp.Status == types.StatusNoMatch && s.suggester != nil {
		suggestions, err := s.suggester.Suggest(ctx, resp.Query, req.Filter)
		if err != nil {
			log.Debug().Err(err).Msg("keyword suggestions unavailable")
		}
		resp.Suggestions = suggestions
	}

	resp.Duration = time.Since(start)
	s.record(ctx, log, resp)

	log.Debug().
		Str("intent", string(resp.Intent)).
		Str("strategy", string(resp.StrategyUsed)).
		Strs("tokens", resp.Tokens).
		Int("results", len(resp.Results)).
		Str("status", string(resp.Status)).
		Dur("duration", resp.Duration).
		Msg("search completed")

	if out.allFailed {
		return resp, fmt.Errorf("all retrieval passes failed: %w", out.err)
	}
	return resp, nil
}

// validateRequest applies defaults and parses the strategy override
func (s *Searcher) validateRequest(req *SearchRequest) (types.Strategy, error) {
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if req.TopK > MaxTopK {
		req.TopK = MaxTopK
	}
	if req.Strategy == "" {
		return "", nil
	}
	strategy, err := types.ParseStrategy(string(req.Strategy))
	if err != nil {
		return "", err
	}
	return strategy, nil
}

// outcome is the result of running a strategy plan, fallbacks included
type outcome struct {
	strategy  types.Strategy
	results   types.RankedList
	direct    bool
	failed    []string
	allFailed bool
	err       error
}

// passResult is what one retrieval pass reports back
type passResult struct {
	method types.Method
	list   types.RankedList
	err    error
	needed bool // The pass had work to do; false for keyword passes without tokens
}

// execute runs the plan for strategy, following fallbacks
func (s *Searcher) execute(ctx context.Context, strategy types.Strategy, query string, tokens []string, req SearchRequest) (*outcome, error) {
	var failed []string
	visited := make(map[types.Strategy]bool)

	for {
		visited[strategy] = true
		p := plans[strategy]

		if len(tokens) == 0 && !p.vector && p.fallback != "" && !visited[p.fallback] {
			strategy = p.fallback
			continue
		}

		passes, err := s.runPasses(ctx, p, query, tokens, req)
		if err != nil {
			return nil, err
		}

		var lists []types.RankedList
		var errs []error
		needed, broken := 0, 0
		for _, pr := range passes {
			if pr.needed {
				needed++
			}
			if pr.err != nil {
				broken++
				errs = append(errs, pr.err)
				failed = append(failed, collaboratorOf(pr.err))
				continue
			}
			lists = append(lists, pr.list)
		}

		if p.direct {
			if len(lists) == 1 && len(lists[0]) > 0 {
				direct := lists[0].Truncate(req.TopK)
				return &outcome{strategy: strategy, results: direct, direct: true, failed: failed}, nil
			}
			if !visited[p.fallback] {
				strategy = p.fallback
				continue
			}
		}

		out := &outcome{
			strategy: strategy,
			results:  Fuse(lists, s.fusionK),
			failed:   failed,
		}
		if needed > 0 && broken == needed {
			out.allFailed = true
			out.err = errors.Join(errs...)
		}
		return out, nil
	}
}

// runPasses builds the plan's ranked lists concurrently. Each goroutine keeps
// its own error so one failing collaborator does not cancel the others.
func (s *Searcher) runPasses(ctx context.Context, p plan, query string, tokens []string, req SearchRequest) ([]passResult, error) {
	perPass := req.TopK * 2
	var filenames, contents, vectors passResult
	filenames.method, contents.method, vectors.method = types.MethodFilename, types.MethodContent, types.MethodVector

	g, gctx := errgroup.WithContext(ctx)

	if p.filename {
		filenames.needed = len(tokens) > 0
		g.Go(func() error {
			list, err := s.keyword.MatchFilenames(gctx, tokens, req.Filter, perPass)
			if err == nil {
				list, err = s.keyword.ExpandDocuments(gctx, list, s.perDocument, req.Filter)
			}
			filenames.list, filenames.err = list, err
			return nil
		})
	}
	if p.content {
		contents.needed = len(tokens) > 0
		g.Go(func() error {
			contents.list, contents.err = s.keyword.MatchContent(gctx, tokens, req.Filter, perPass)
			return nil
		})
	}
	if p.vector {
		vectors.needed = true
		g.Go(func() error {
			vectors.list, vectors.err = s.vector.Match(gctx, query, req.Filter, perPass)
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []passResult
	if p.filename {
		out = append(out, filenames)
	}
	if p.content {
		out = append(out, contents)
	}
	if p.vector {
		out = append(out, vectors)
	}
	return out, nil
}

// hydrate resolves chunks and documents for each result and builds previews.
// Results whose chunk or document vanished are dropped and logged.
func (s *Searcher) hydrate(ctx context.Context, log zerolog.Logger, list types.RankedList, tokens []string) (types.RankedList, error) {
	if len(list) == 0 {
		return list, nil
	}

	var chunkIDs []int64
	docSet := make(map[int64]struct{})
	for _, r := range list {
		if r.ChunkID != 0 {
			chunkIDs = append(chunkIDs, r.ChunkID)
		}
		docSet[r.DocumentID] = struct{}{}
	}
	docIDs := make([]int64, 0, len(docSet))
	for id := range docSet {
		docIDs = append(docIDs, id)
	}
	sort.Slice(docIDs, func(i, j int) bool { return docIDs[i] < docIDs[j] })

	chunks := map[int64]*types.Chunk{}
	if len(chunkIDs) > 0 {
		var err error
		chunks, err = guarded(ctx, s.guard, CollaboratorStore, "get_chunks", func(ctx context.Context) (map[int64]*types.Chunk, error) {
			return s.store.GetChunks(ctx, chunkIDs)
		})
		if err != nil {
			return list, err
		}
	}
	docs, err := guarded(ctx, s.guard, CollaboratorStore, "get_documents", func(ctx context.Context) (map[int64]*types.Document, error) {
		return s.store.GetDocuments(ctx, docIDs)
	})
	if err != nil {
		return list, err
	}

	out := make(types.RankedList, 0, len(list))
	for _, r := range list {
		doc, ok := docs[r.DocumentID]
		if !ok {
			log.Warn().Err(types.ErrInconsistentData).
				Int64("document_id", r.DocumentID).Int64("chunk_id", r.ChunkID).
				Msg("result references a missing document, dropping")
			continue
		}
		r.Document = doc

		if r.ChunkID == 0 {
			r.Preview = doc.Filename
			out = append(out, r)
			continue
		}

		chunk, ok := chunks[r.ChunkID]
		if !ok {
			log.Warn().Err(types.ErrInconsistentData).
				Int64("chunk_id", r.ChunkID).Str("method", string(r.Method)).
				Msg("result references a missing chunk, dropping")
			continue
		}
		r.Chunk = chunk
		r.Preview = buildPreview(chunk.Content, tokens)
		out = append(out, r)
	}
	return out, nil
}

// record writes the search to history. It runs even if the caller's context
// was cancelled after results were produced; failures are only logged.
func (s *Searcher) record(ctx context.Context, log zerolog.Logger, resp *SearchResponse) {
	if s.history == nil {
		return
	}
	hctx := context.WithoutCancel(ctx)
	if s.guard.timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(hctx, s.guard.timeout)
		defer cancel()
	}

	rec := &storage.SearchRecord{
		ID:          resp.RequestID,
		Query:       resp.Query,
		Tokens:      resp.Tokens,
		Intent:      resp.Intent,
		Strategy:    resp.StrategyUsed,
		Status:      resp.Status,
		ResultCount: len(resp.Results),
		Confidence:  resp.Confidence,
		Duration:    resp.Duration,
		CreatedAt:   time.Now(),
	}
	if err := s.history.RecordSearch(hctx, rec); err != nil {
		log.Warn().Err(err).Msg("failed to record search history")
	}
}

func collaboratorOf(err error) string {
	var ce *types.CollaboratorError
	if errors.As(err, &ce) {
		return ce.Collaborator
	}
	return CollaboratorStore
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
