package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docrag-mcp/internal/searcher"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams           = -32602 // Invalid method parameters
	ErrorCodeInternalError           = -32603 // Internal JSON-RPC error
	ErrorCodeCollaboratorUnavailable = -32001 // Store or embedder could not answer
)

const (
	defaultKeywordLimit = 50
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing or not a string",
		})
	}

	topK := getIntDefault(args, "top_k", searcher.DefaultTopK)
	if topK < 1 || topK > searcher.MaxTopK {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 100", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	var strategy types.Strategy
	if raw := getStringDefault(args, "strategy", ""); raw != "" {
		parsed, err := types.ParseStrategy(raw)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid strategy", map[string]interface{}{
				"param":   "strategy",
				"value":   raw,
				"allowed": strategyNames(),
			})
		}
		strategy = parsed
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		TopK:     topK,
		Filter:   parseFilter(args),
		Strategy: strategy,
	})
	if err != nil && resp == nil {
		if errors.Is(err, types.ErrInvalidInput) {
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	out := formatSearchResponse(resp)
	if err != nil {
		// Degraded: every retrieval pass failed, report it alongside the empty result
		out["error"] = err.Error()
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func formatSearchResponse(resp *searcher.SearchResponse) map[string]interface{} {
	results := make([]map[string]interface{}, 0, len(resp.Results))
	for i, r := range resp.Results {
		item := map[string]interface{}{
			"rank":        i + 1,
			"document_id": r.DocumentID,
			"score":       r.Score,
			"method":      string(r.Method),
			"preview":     r.Preview,
		}
		if r.ChunkID != 0 {
			item["chunk_id"] = r.ChunkID
		}
		if r.Document != nil {
			item["filename"] = r.Document.Filename
			item["doc_type"] = string(r.Document.DocType)
			item["uploaded_at"] = r.Document.UploadedAt.Format(time.RFC3339)
		}
		if r.Chunk != nil {
			item["source_type"] = string(r.Chunk.SourceType)
			item["source_title"] = r.Chunk.SourceTitle
			if kws := r.Chunk.KeywordList(); len(kws) > 0 {
				item["keywords"] = kws
			}
		}
		sources := make([]map[string]interface{}, 0, len(r.Sources))
		for _, src := range r.Sources {
			sources = append(sources, map[string]interface{}{
				"method":    string(src.Method),
				"rank":      src.Rank,
				"raw_score": src.RawScore,
			})
		}
		item["sources"] = sources
		results = append(results, item)
	}

	out := map[string]interface{}{
		"request_id":  resp.RequestID,
		"query":       resp.Query,
		"tokens":      resp.Tokens,
		"intent":      string(resp.Intent),
		"strategy":    string(resp.StrategyUsed),
		"reason":      resp.Reason,
		"status":      string(resp.Status),
		"confidence":  resp.Confidence,
		"duration_ms": resp.Duration.Milliseconds(),
		"results":     results,
	}
	if len(resp.FailedCollaborators) > 0 {
		out["failed_collaborators"] = resp.FailedCollaborators
	}
	if len(resp.Suggestions) > 0 {
		out["suggestions"] = resp.Suggestions
	}
	return out
}

// handleClassifyQuery handles the classify_query tool invocation
func (s *Server) handleClassifyQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	decision := s.searcher.Selector().Select(query)
	response := map[string]interface{}{
		"query":    query,
		"tokens":   s.searcher.Tokenizer().Tokenize(query),
		"intent":   string(decision.Intent),
		"strategy": string(decision.Strategy),
		"reason":   decision.Reason,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSuggestKeywords handles the suggest_keywords tool invocation
func (s *Server) handleSuggestKeywords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	suggestions, err := s.suggester.Suggest(ctx, query, parseFilter(args))
	if err != nil {
		return nil, collaboratorError("failed to load keywords", err)
	}

	response := map[string]interface{}{
		"query":       query,
		"suggestions": suggestions,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListKeywords handles the list_keywords tool invocation
func (s *Server) handleListKeywords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	limit := getIntDefault(args, "limit", defaultKeywordLimit)
	if limit < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be positive", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	vocab, err := s.storage.ListKeywords(ctx, parseFilter(args))
	if err != nil {
		return nil, collaboratorError("failed to list keywords", err)
	}

	total := len(vocab)
	if len(vocab) > limit {
		vocab = vocab[:limit]
	}
	keywords := make([]map[string]interface{}, 0, len(vocab))
	for _, kc := range vocab {
		keywords = append(keywords, map[string]interface{}{
			"keyword": kc.Keyword,
			"count":   kc.Count,
		})
	}

	response := map[string]interface{}{
		"total":    total,
		"keywords": keywords,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRecentSearches handles the recent_searches tool invocation
func (s *Server) handleRecentSearches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	limit := getIntDefault(args, "limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 500", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	records, err := s.storage.ListSearches(ctx, limit)
	if err != nil {
		return nil, collaboratorError("failed to list searches", err)
	}

	searches := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		searches = append(searches, map[string]interface{}{
			"request_id":   r.ID,
			"query":        r.Query,
			"tokens":       r.Tokens,
			"intent":       string(r.Intent),
			"strategy":     string(r.Strategy),
			"status":       string(r.Status),
			"result_count": r.ResultCount,
			"confidence":   r.Confidence,
			"duration_ms":  r.Duration.Milliseconds(),
			"created_at":   r.CreatedAt.Format(time.RFC3339),
		})
	}

	response := map[string]interface{}{
		"searches": searches,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	byDocType := make(map[string]int, len(status.DocumentsByType))
	for k, v := range status.DocumentsByType {
		byDocType[string(k)] = v
	}
	bySource := make(map[string]int, len(status.ChunksBySourceType))
	for k, v := range status.ChunksBySourceType {
		bySource[string(k)] = v
	}

	embedding := map[string]interface{}{"configured": s.embedder != nil}
	if s.embedder != nil {
		embedding["provider"] = s.embedder.Provider()
		embedding["model"] = s.embedder.Model()
		embedding["dimension"] = s.embedder.Dimension()
	}

	statistics := map[string]interface{}{
		"documents":             status.Documents,
		"chunks":                status.Chunks,
		"embeddings":            status.Embeddings,
		"searches":              status.Searches,
		"documents_by_type":     byDocType,
		"chunks_by_source_type": bySource,
		"size_mb":               fmt.Sprintf("%.2f", status.SizeMB),
	}
	if !status.LastUploadAt.IsZero() {
		statistics["last_upload_at"] = status.LastUploadAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"schema_version": status.SchemaVersion,
		"build_mode":     status.BuildMode,
		"statistics":     statistics,
		"embedding":      embedding,
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"vector_extension":     status.Health.VectorExtension,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func collaboratorError(message string, err error) error {
	return newMCPError(ErrorCodeCollaboratorUnavailable, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// parseFilter reads the optional doc_types and source_types arrays
func parseFilter(args map[string]interface{}) *types.Filter {
	f := &types.Filter{}
	for _, v := range getStringSlice(args, "doc_types") {
		f.DocTypes = append(f.DocTypes, types.DocType(v))
	}
	for _, v := range getStringSlice(args, "source_types") {
		f.SourceTypes = append(f.SourceTypes, types.SourceType(v))
	}
	if f.IsEmpty() {
		return nil
	}
	return f
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, skipping non-string items
func getStringSlice(args map[string]interface{}, key string) []string {
	switch raw := args[key].(type) {
	case []string:
		return raw
	case []interface{}:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
