package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docrag-mcp/pkg/types"
)

func strategyNames() []string {
	names := make([]string, len(types.Strategies))
	for i, s := range types.Strategies {
		names[i] = string(s)
	}
	return names
}

// filterProperties describes the shared doc_types/source_types scope
func filterProperties() map[string]interface{} {
	return map[string]interface{}{
		"doc_types": map[string]interface{}{
			"type":        "array",
			"description": "Only search documents of these types",
			"items": map[string]interface{}{
				"type": "string",
				"enum": []string{
					string(types.DocKnowledge), string(types.DocTraining),
					string(types.DocProcedure), string(types.DocTroubleshooting),
				},
			},
		},
		"source_types": map[string]interface{}{
			"type":        "array",
			"description": "Only search chunks cut from these document parts",
			"items": map[string]interface{}{
				"type": "string",
				"enum": []string{
					string(types.SourceChapter), string(types.SourceStep),
					string(types.SourceField), string(types.SourceSection),
				},
			},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	props := map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Search query in natural language, keywords or a document id such as N706",
		},
		"top_k": map[string]interface{}{
			"type":        "integer",
			"description": "Maximum number of results to return (1-100)",
			"default":     10,
			"minimum":     1,
			"maximum":     100,
		},
		"strategy": map[string]interface{}{
			"type":        "string",
			"description": "Override automatic routing: keyword_only, vector_only, hybrid or filename_priority",
			"enum":        strategyNames(),
		},
	}
	for k, v := range filterProperties() {
		props[k] = v
	}

	return mcp.Tool{
		Name:        "search_documents",
		Description: "Search uploaded documents with hybrid keyword and vector retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"query"},
		},
	}
}

// classifyQueryTool returns the tool definition for classify_query
func classifyQueryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "classify_query",
		Description: "Show how a query is tokenized, which intent it has and which strategy it would run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query to analyze",
				},
			},
			Required: []string{"query"},
		},
	}
}

// suggestKeywordsTool returns the tool definition for suggest_keywords
func suggestKeywordsTool() mcp.Tool {
	props := map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Possibly misspelled keyword",
		},
	}
	for k, v := range filterProperties() {
		props[k] = v
	}
	return mcp.Tool{
		Name:        "suggest_keywords",
		Description: "Suggest annotated keywords similar to a query",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"query"},
		},
	}
}

// listKeywordsTool returns the tool definition for list_keywords
func listKeywordsTool() mcp.Tool {
	props := map[string]interface{}{
		"limit": map[string]interface{}{
			"type":        "integer",
			"description": "Maximum number of keywords, most frequent first",
			"default":     50,
			"minimum":     1,
		},
	}
	for k, v := range filterProperties() {
		props[k] = v
	}
	return mcp.Tool{
		Name:        "list_keywords",
		Description: "List the keyword vocabulary annotated on document chunks",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
		},
	}
}

// recentSearchesTool returns the tool definition for recent_searches
func recentSearchesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "recent_searches",
		Description: "List recently executed searches, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of entries",
					"default":     20,
					"minimum":     1,
					"maximum":     500,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report document store statistics and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
