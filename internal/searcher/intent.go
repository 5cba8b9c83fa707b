package searcher

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// IntentRule maps trigger keywords to an intent. Rules are evaluated in order.
type IntentRule struct {
	Intent   types.Intent
	Keywords []string
}

// DefaultIntentRules returns the built-in rules in priority order
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		{
			Intent: types.IntentProcedural,
			Keywords: []string{
				"如何", "怎麼", "怎么", "步驟", "步骤", "流程", "程序", "操作", "方法", "SOP",
				"how to", "steps", "procedure", "install", "configure", "setup",
			},
		},
		{
			Intent: types.IntentTroubleshooting,
			Keywords: []string{
				"問題", "问题", "異常", "异常", "錯誤", "错误", "故障", "失敗", "失败", "排除", "解決", "解决", "不良", "原因",
				"error", "fail", "failure", "issue", "problem", "fix", "troubleshoot", "broken",
			},
		},
		{
			Intent: types.IntentComparative,
			Keywords: []string{
				"比較", "比较", "差異", "差异", "差別", "差别", "不同", "區別", "区别", "優缺點", "优缺点",
				"vs", "versus", "compare", "comparison", "difference",
			},
		},
		{
			Intent: types.IntentDocumentLookup,
			Keywords: []string{
				"文件", "檔案", "档案", "簡報", "简报", "報告", "报告", "手冊", "手册",
				"document", "file", "manual", "report", "slides",
			},
		},
	}
}

type compiledRule struct {
	intent  types.Intent
	pattern *regexp.Regexp
}

// IntentClassifier assigns a query to the first intent whose rule matches
type IntentClassifier struct {
	rules []compiledRule
}

// NewIntentClassifier compiles rules. ASCII keywords match on word boundaries,
// everything else as a case-insensitive substring.
func NewIntentClassifier(rules []IntentRule) (*IntentClassifier, error) {
	c := &IntentClassifier{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		if rule.Intent == types.IntentFactual {
			return nil, fmt.Errorf("%w: factual is the fallback intent and cannot have a rule", types.ErrInvalidInput)
		}
		if _, err := types.ParseIntent(string(rule.Intent)); err != nil {
			return nil, err
		}

		alts := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			quoted := regexp.QuoteMeta(kw)
			if isWordy(kw) {
				quoted = `\b` + quoted + `\b`
			}
			alts = append(alts, quoted)
		}
		if len(alts) == 0 {
			continue
		}

		re, err := regexp.Compile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s rule: %w", rule.Intent, err)
		}
		c.rules = append(c.rules, compiledRule{intent: rule.Intent, pattern: re})
	}
	return c, nil
}

// Classify returns the intent of query, IntentFactual when no rule matches
func (c *IntentClassifier) Classify(query string) types.Intent {
	for _, r := range c.rules {
		if r.pattern.MatchString(query) {
			return r.intent
		}
	}
	return types.IntentFactual
}

// isWordy reports whether kw is made of ASCII letters, digits and spaces
func isWordy(kw string) bool {
	for _, r := range kw {
		if r > unicode.MaxASCII {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ' ' {
			return false
		}
	}
	return true
}
