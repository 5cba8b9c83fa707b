package types

import (
	"fmt"
	"strings"
)

// Intent is a coarse classification of what a query is looking for
type Intent string

const (
	IntentProcedural      Intent = "procedural"
	IntentTroubleshooting Intent = "troubleshooting"
	IntentComparative     Intent = "comparative"
	IntentDocumentLookup  Intent = "document_lookup"
	IntentFactual         Intent = "factual"
)

// Intents lists every known intent in default priority order. Factual is the
// fallback and never matched by a rule.
var Intents = []Intent{
	IntentProcedural,
	IntentTroubleshooting,
	IntentComparative,
	IntentDocumentLookup,
	IntentFactual,
}

// ParseIntent converts a config or request string into an Intent
func ParseIntent(s string) (Intent, error) {
	in := Intent(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Intents {
		if in == known {
			return in, nil
		}
	}
	return "", fmt.Errorf("%w: unknown intent %q", ErrInvalidInput, s)
}

// Strategy selects which matchers run for a query
type Strategy string

const (
	StrategyKeywordOnly      Strategy = "keyword_only"
	StrategyVectorOnly       Strategy = "vector_only"
	StrategyHybrid           Strategy = "hybrid"
	StrategyFilenamePriority Strategy = "filename_priority"
)

// Strategies lists every strategy
var Strategies = []Strategy{
	StrategyKeywordOnly,
	StrategyVectorOnly,
	StrategyHybrid,
	StrategyFilenamePriority,
}

// ParseStrategy converts a string into a Strategy. The short forms "keyword",
// "vector" and "filename" are accepted.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keyword_only", "keyword":
		return StrategyKeywordOnly, nil
	case "vector_only", "vector":
		return StrategyVectorOnly, nil
	case "hybrid":
		return StrategyHybrid, nil
	case "filename_priority", "filename":
		return StrategyFilenamePriority, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, s)
	}
}

// Status tells callers how a search ended
type Status string

const (
	StatusOK       Status = "ok"
	StatusNoMatch  Status = "no_match" // Nothing matched; all collaborators answered
	StatusPartial  Status = "partial"  // Some collaborators failed, results come from the rest
	StatusDegraded Status = "degraded" // Every collaborator the plan needed failed
)
