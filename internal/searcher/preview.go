package searcher

import (
	"strings"
	"unicode/utf8"
)

const (
	previewBefore = 50
	previewAfter  = 150
	previewHead   = 200
)

// buildPreview returns a window of text around the first token occurrence,
// or its head when no token occurs. Offsets are counted in runes.
func buildPreview(text string, tokens []string) string {
	runes := []rune(text)
	lowered := []rune(strings.ToLower(text))

	// ToLower can change rune counts for a few scripts; fall back to the head
	if len(lowered) == len(runes) {
		first := -1
		for _, t := range tokens {
			idx := runeIndex(lowered, []rune(strings.ToLower(t)))
			if idx >= 0 && (first < 0 || idx < first) {
				first = idx
			}
		}
		if first >= 0 {
			start := max(0, first-previewBefore)
			end := min(len(runes), first+previewAfter)
			return decorate(string(runes[start:end]), start > 0, end < len(runes))
		}
	}

	if utf8.RuneCountInString(text) <= previewHead {
		return text
	}
	return decorate(string(runes[:previewHead]), false, true)
}

func decorate(s string, prefix, suffix bool) string {
	if prefix {
		s = "..." + s
	}
	if suffix {
		s += "..."
	}
	return s
}

func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
