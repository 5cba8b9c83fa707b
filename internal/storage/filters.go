package storage

import (
	"database/sql/driver"
	"strings"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// foldFunction is the SQL name of the Unicode lower-casing function each
// driver registers. SQLite's built-in lower() folds ASCII only.
const foldFunction = "docrag_fold"

func fold(s string) string {
	return strings.ToLower(s)
}

// foldValue applies fold to a TEXT or BLOB argument; other values pass through
func foldValue(v driver.Value) driver.Value {
	switch x := v.(type) {
	case string:
		return fold(x)
	case []byte:
		return fold(string(x))
	default:
		return v
	}
}

// likeEscaper escapes LIKE wildcards; '\' is the ESCAPE character
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// foldPatterns lowers, escapes and dedupes patterns into LIKE arguments
func foldPatterns(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		like := "%" + likeEscaper.Replace(fold(p)) + "%"
		if _, ok := seen[like]; ok {
			continue
		}
		seen[like] = struct{}{}
		out = append(out, like)
	}
	return out
}

// anyColumnLike builds "(docrag_fold(col) LIKE ? ESCAPE '\' OR ...)" over columns
func anyColumnLike(b *strings.Builder, columns []string) {
	b.WriteString("(")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(" OR ")
		}
		b.WriteString(foldFunction + "(" + col + `) LIKE ? ESCAPE '\'`)
	}
	b.WriteString(")")
}

// likeAny builds the predicate matching rows where any pattern occurs in any column
func likeAny(columns, likes []string) (string, []interface{}) {
	var b strings.Builder
	args := make([]interface{}, 0, len(columns)*len(likes))
	b.WriteString("(")
	for i, like := range likes {
		if i > 0 {
			b.WriteString(" OR ")
		}
		anyColumnLike(&b, columns)
		for range columns {
			args = append(args, like)
		}
	}
	b.WriteString(")")
	return b.String(), args
}

// hitCount builds an expression counting the patterns found in at least one
// column, so rows can be ranked by distinct matches before LIMIT applies.
func hitCount(columns, likes []string) (string, []interface{}) {
	var b strings.Builder
	args := make([]interface{}, 0, len(columns)*len(likes))
	b.WriteString("(")
	for i, like := range likes {
		if i > 0 {
			b.WriteString(" + ")
		}
		b.WriteString("CASE WHEN ")
		anyColumnLike(&b, columns)
		b.WriteString(" THEN 1 ELSE 0 END")
		for range columns {
			args = append(args, like)
		}
	}
	b.WriteString(")")
	return b.String(), args
}

// applyDocumentFilter restricts d.doc_type
func applyDocumentFilter(query string, args []interface{}, filter *types.Filter) (string, []interface{}) {
	if filter == nil || len(filter.DocTypes) == 0 {
		return query, args
	}
	query += " AND d.doc_type IN (" + placeholders(len(filter.DocTypes)) + ")"
	for _, t := range filter.DocTypes {
		args = append(args, string(t))
	}
	return query, args
}

// applyChunkFilter restricts c.source_type
func applyChunkFilter(query string, args []interface{}, filter *types.Filter) (string, []interface{}) {
	if filter == nil || len(filter.SourceTypes) == 0 {
		return query, args
	}
	query += " AND c.source_type IN (" + placeholders(len(filter.SourceTypes)) + ")"
	for _, t := range filter.SourceTypes {
		args = append(args, string(t))
	}
	return query, args
}

// applySourceExists keeps documents owning at least one chunk of the filtered source types
func applySourceExists(query string, args []interface{}, filter *types.Filter) (string, []interface{}) {
	if filter == nil || len(filter.SourceTypes) == 0 {
		return query, args
	}
	query += " AND EXISTS (SELECT 1 FROM chunks c WHERE c.doc_id = d.id"
	query, args = applyChunkFilter(query, args, filter)
	query += ")"
	return query, args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
