package searcher

import (
	"fmt"
	"regexp"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// DefaultDocIDPatterns recognise document identifiers such as N706 or SOP-001
func DefaultDocIDPatterns() []string {
	return []string{
		`\b[A-Z]\d{3,}\b`,
		`\b[A-Za-z][A-Za-z0-9]*-[A-Za-z0-9-]*\d[A-Za-z0-9-]*\b`,
	}
}

// DefaultStrategyTable maps each intent to the strategy it runs
func DefaultStrategyTable() map[types.Intent]types.Strategy {
	return map[types.Intent]types.Strategy{
		types.IntentProcedural:      types.StrategyHybrid,
		types.IntentTroubleshooting: types.StrategyHybrid,
		types.IntentComparative:     types.StrategyVectorOnly,
		types.IntentDocumentLookup:  types.StrategyFilenamePriority,
		types.IntentFactual:         types.StrategyHybrid,
	}
}

// Decision is the outcome of strategy selection
type Decision struct {
	Intent   types.Intent
	Strategy types.Strategy
	Reason   string
}

// plan lists which ranked lists a strategy builds
type plan struct {
	filename bool
	content  bool
	vector   bool
	direct   bool           // Return a non-empty filename list without fusion
	fallback types.Strategy // Used when the plan cannot run or comes back empty
}

var plans = map[types.Strategy]plan{
	types.StrategyKeywordOnly:      {filename: true, content: true, fallback: types.StrategyVectorOnly},
	types.StrategyVectorOnly:       {vector: true},
	types.StrategyHybrid:           {filename: true, content: true, vector: true},
	types.StrategyFilenamePriority: {filename: true, direct: true, fallback: types.StrategyHybrid},
}

// StrategySelector routes a query to a strategy
type StrategySelector struct {
	classifier *IntentClassifier
	docIDs     []*regexp.Regexp
	table      map[types.Intent]types.Strategy
}

// NewStrategySelector compiles the document id patterns and validates table.
// Intents missing from table route to hybrid.
func NewStrategySelector(classifier *IntentClassifier, docIDPatterns []string, table map[types.Intent]types.Strategy) (*StrategySelector, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", types.ErrInvalidInput)
	}

	s := &StrategySelector{
		classifier: classifier,
		table:      make(map[types.Intent]types.Strategy, len(table)),
	}
	for _, p := range docIDPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid document id pattern %q: %w", p, err)
		}
		s.docIDs = append(s.docIDs, re)
	}
	for intent, strategy := range table {
		if _, ok := plans[strategy]; !ok {
			return nil, fmt.Errorf("%w: intent %s maps to unknown strategy %q", types.ErrInvalidInput, intent, strategy)
		}
		s.table[intent] = strategy
	}
	return s, nil
}

// NewDefaultStrategySelector builds a selector from the built-in tables
func NewDefaultStrategySelector() *StrategySelector {
	classifier, err := NewIntentClassifier(DefaultIntentRules())
	if err != nil {
		panic(err)
	}
	s, err := NewStrategySelector(classifier, DefaultDocIDPatterns(), DefaultStrategyTable())
	if err != nil {
		panic(err)
	}
	return s
}

// Classify returns the intent of query
func (s *StrategySelector) Classify(query string) types.Intent {
	return s.classifier.Classify(query)
}

// Select classifies query and picks its strategy. A document identifier in
// the query forces filename_priority regardless of intent.
func (s *StrategySelector) Select(query string) Decision {
	intent := s.classifier.Classify(query)

	for _, re := range s.docIDs {
		if id := re.FindString(query); id != "" {
			return Decision{
				Intent:   intent,
				Strategy: types.StrategyFilenamePriority,
				Reason:   fmt.Sprintf("document identifier %q", id),
			}
		}
	}

	strategy, ok := s.table[intent]
	if !ok {
		strategy = types.StrategyHybrid
	}
	return Decision{
		Intent:   intent,
		Strategy: strategy,
		Reason:   fmt.Sprintf("intent %s", intent),
	}
}
