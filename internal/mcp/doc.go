// Package mcp implements the Model Context Protocol (MCP) server for docrag.
//
// The server exposes the retrieval engine to AI assistants over stdio:
//   - search_documents: hybrid search with optional strategy override and type filters
//   - classify_query: tokens, intent and strategy a query would route to
//   - suggest_keywords: annotated keywords close to a misspelled query
//   - list_keywords: keyword vocabulary with frequencies
//   - recent_searches: query history, newest first
//   - get_status: store statistics and health
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {
//	    "query": "N706 蝴蝶Mura.pptx 內容詳細解析",
//	    "top_k": 5,
//	    "doc_types": ["training"]
//	  }
//	}
//
//	Response:
//	{
//	  "intent": "factual",
//	  "strategy": "filename_priority",
//	  "status": "ok",
//	  "confidence": 0.4,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "filename": "N706 蝴蝶Mura.pptx",
//	      "score": 2,
//	      "method": "filename",
//	      "preview": "蝴蝶Mura 是面板..."
//	    }
//	  ]
//	}
//
// A search whose every retrieval pass failed still returns a result with
// status "degraded" and an "error" field; status "partial" lists the
// failed collaborators.
//
// # Error Handling
//
// Protocol errors are returned as MCPError values:
//   - -32602: Invalid params (missing query, top_k out of range, unknown strategy)
//   - -32603: Internal error
//   - -32001: Store or embedder unavailable
//
// The server logs to stderr; stdout is reserved for the protocol.
package mcp
