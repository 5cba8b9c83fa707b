package tokenizer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinLength is the shortest token, in runes, that survives tokenization
const DefaultMinLength = 2

// Tables holds the language data a Tokenizer is built from
type Tables struct {
	Extensions []string // File extensions stripped from queries, with or without the dot
	Separators string   // Runes that split tokens in addition to Unicode whitespace
	StopWords  []string // Matched case-insensitively
	MinLength  int      // Minimum token length in runes; <= 0 means DefaultMinLength
}

// DefaultTables returns the built-in extension, separator and stop-word tables
func DefaultTables() Tables {
	return Tables{
		Extensions: []string{".pptx", ".ppt", ".pdf", ".docx", ".doc", ".xlsx", ".xls", ".csv", ".md", ".txt"},
		Separators: ",;:!?()[]{}<>\"'`/\\|~*+=&^%$#@" +
			"，。、；：！？（）【】「」『』《》〈〉～“”‘’·…",
		StopWords: []string{
			// Traditional Chinese
			"內容", "詳細", "解析", "說明", "介紹", "資料", "相關", "請問", "給我", "歸納", "總結", "列表", "有哪些", "什麼", "問題",
			"的", "了", "吧", "嗎", "呢", "與", "及",
			// Simplified Chinese
			"内容", "详细", "说明", "介绍", "资料", "相关", "请问", "给我", "归纳", "总结", "什么", "问题", "吗", "与",
			// English
			"the", "an", "of", "for", "to", "in", "on", "and", "or", "is", "are", "what", "how",
			"please", "show", "me", "about", "content", "contents", "detail", "details", "explain", "info",
		},
		MinLength: DefaultMinLength,
	}
}

// Tokenizer splits raw queries into normalized keyword tokens. It is immutable
// after construction and safe for concurrent use.
type Tokenizer struct {
	extPattern   *regexp.Regexp
	separators   map[rune]struct{}
	stopWords    map[string]struct{}
	hanStopWords []string // Longest first
	minLength    int
}

// New builds a Tokenizer from tables. The tables are copied.
func New(tables Tables) *Tokenizer {
	t := &Tokenizer{
		separators: make(map[rune]struct{}),
		stopWords:  make(map[string]struct{}, len(tables.StopWords)),
		minLength:  tables.MinLength,
	}
	if t.minLength <= 0 {
		t.minLength = DefaultMinLength
	}

	for _, r := range tables.Separators {
		t.separators[r] = struct{}{}
	}

	for _, w := range tables.StopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		t.stopWords[w] = struct{}{}
		if isAllHan(w) {
			t.hanStopWords = append(t.hanStopWords, w)
		}
	}
	sort.SliceStable(t.hanStopWords, func(i, j int) bool {
		return len(t.hanStopWords[i]) > len(t.hanStopWords[j])
	})

	t.extPattern = compileExtensions(tables.Extensions)
	return t
}

// compileExtensions builds one case-insensitive pattern for every extension,
// longest first so ".pptx" wins over ".ppt".
func compileExtensions(exts []string) *regexp.Regexp {
	cleaned := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext != "" {
			cleaned = append(cleaned, regexp.QuoteMeta(ext))
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return len(cleaned[i]) > len(cleaned[j])
	})
	return regexp.MustCompile(`(?i)\.(?:` + strings.Join(cleaned, "|") + `)\b`)
}

// Tokenize returns the distinct keyword tokens of query in first-seen order.
// Callers must treat the result as a set. It never fails; empty or noise-only
// queries yield an empty slice.
func (t *Tokenizer) Tokenize(query string) []string {
	if t.extPattern != nil {
		query = t.extPattern.ReplaceAllString(query, " ")
	}

	tokens := make([]string, 0, 8)
	seen := make(map[string]struct{})
	for _, piece := range strings.FieldsFunc(query, t.isSeparator) {
		for _, part := range t.splitStopWords(piece) {
			part = strings.Trim(part, ".")
			if utf8.RuneCountInString(part) < t.minLength {
				continue
			}
			key := strings.ToLower(part)
			if _, stop := t.stopWords[key]; stop {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tokens = append(tokens, part)
		}
	}
	return tokens
}

// IsStopWord reports whether w is in the stop-word table
func (t *Tokenizer) IsStopWord(w string) bool {
	_, ok := t.stopWords[strings.ToLower(w)]
	return ok
}

func (t *Tokenizer) isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	_, ok := t.separators[r]
	return ok
}

// splitStopWords cuts Han stop-words out of pieces containing Han text.
// Matching is leftmost-longest, so no returned part contains a stop-word.
func (t *Tokenizer) splitStopWords(piece string) []string {
	if len(t.hanStopWords) == 0 || !containsHan(piece) {
		return []string{piece}
	}

	var parts []string
	start := 0
	for i := 0; i < len(piece); {
		if n := t.matchHanStopWord(piece[i:]); n > 0 {
			parts = append(parts, piece[start:i])
			i += n
			start = i
			continue
		}
		_, size := utf8.DecodeRuneInString(piece[i:])
		i += size
	}
	return append(parts, piece[start:])
}

func (t *Tokenizer) matchHanStopWord(s string) int {
	for _, w := range t.hanStopWords {
		if strings.HasPrefix(s, w) {
			return len(w)
		}
	}
	return 0
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func isAllHan(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.Is(unicode.Han, r) {
			return false
		}
	}
	return true
}
